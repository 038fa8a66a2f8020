package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aldahabi27/bspssepy-go/config"
)

func TestResolvePlanPathPrefersFlagOverConfig(t *testing.T) {
	cfg := config.Default()
	cfg.PlanPath = "from-config.csv"

	assert.Equal(t, "from-flag.csv", resolvePlanPath(cfg, "from-flag.csv"))
	assert.Equal(t, "from-config.csv", resolvePlanPath(cfg, ""))
}

func TestLoadConfigRejectsDefaultWithoutCaseName(t *testing.T) {
	_, logger, err := loadConfig("", "")
	assert.Error(t, err) // Default() has no case.caseName, so Validate fails
	assert.Nil(t, logger)
}
