package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aldahabi27/bspssepy-go/bspssepyerr"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Sim.BaseFreqHz != 60 {
		t.Errorf("expected default base frequency 60, got %f", cfg.Sim.BaseFreqHz)
	}
	if cfg.Sim.BSPSSEPyTimeStepSec != 1.0 {
		t.Errorf("expected default bspssepyTimeStep 1.0, got %f", cfg.Sim.BSPSSEPyTimeStepSec)
	}
	if !cfg.Policy.EnforceActionLock {
		t.Error("expected enforceActionLock true by default")
	}
	if !cfg.NATS.Embedded {
		t.Error("expected embedded NATS by default")
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		c := Default()
		c.Case.Name = "IEEE9"
		return c
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid default config", modify: func(c *Config) {}, wantErr: false},
		{name: "missing case name", modify: func(c *Config) { c.Case.Name = "" }, wantErr: true},
		{name: "zero solver step", modify: func(c *Config) { c.Sim.SimulationTimeStepSec = 0 }, wantErr: true},
		{
			name: "framework step smaller than solver step",
			modify: func(c *Config) {
				c.Sim.SimulationTimeStepSec = 1
				c.Sim.BSPSSEPyTimeStepSec = 0.5
			},
			wantErr: true,
		},
		{
			name: "framework step not an integer multiple",
			modify: func(c *Config) {
				c.Sim.SimulationTimeStepSec = 0.3
				c.Sim.BSPSSEPyTimeStepSec = 1.0
			},
			wantErr: true,
		},
		{
			name: "sequential-strict without lock is invalid",
			modify: func(c *Config) {
				c.Policy.ControlSequenceAsIs = true
				c.Policy.EnforceActionLock = false
			},
			wantErr: true,
		},
		{
			name: "sequential-strict with lock is valid",
			modify: func(c *Config) {
				c.Policy.ControlSequenceAsIs = true
				c.Policy.EnforceActionLock = true
			},
			wantErr: false,
		},
		{
			name: "inverted safety margins",
			modify: func(c *Config) {
				c.Policy.EnforceFrequencySafetyMargin = true
				c.Policy.FreqSafetyMinHz = 61
				c.Policy.FreqSafetyMaxHz = 59
			},
			wantErr: true,
		},
		{
			name: "NBS generator missing connection element",
			modify: func(c *Config) {
				c.Generators = []GeneratorConfig{{Name: "GEN2", GenType: "NBS"}}
			},
			wantErr: true,
		},
		{
			name: "invalid voltage flag",
			modify: func(c *Config) {
				c.Channels.VoltageFlag = 9
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !bspssepyerr.Is(err, bspssepyerr.KindInvalidConfig) {
				t.Errorf("Validate() error kind = %v, want InvalidConfig", err)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
case:
  caseName: IEEE9
  version: 2
sim:
  simulationTimeStep: 0.001
  bspssepyTimeStep: 1
policy:
  enforceActionLock: true
generators:
  - name: GEN2
    genType: NBS
    loadName: CRANK-GEN2
    crankingTimeSec: 150
    rampRateMWPerMin: 6
    popfMW: 163.03
    useGenRampRate: true
    connectionType: BRN
    connectionElement: BRN-2-7
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.Case.Name != "IEEE9" {
		t.Errorf("expected case name IEEE9, got %s", cfg.Case.Name)
	}
	if len(cfg.Generators) != 1 || cfg.Generators[0].Name != "GEN2" {
		t.Errorf("expected one generator GEN2, got %+v", cfg.Generators)
	}
}

func TestLoaderLoadMergesOverDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := `
case:
  caseName: IEEE9
sim:
  bspssepyTimeStep: 2
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	l := NewLoader(nil)
	cfg, err := l.Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Case.Name != "IEEE9" {
		t.Errorf("expected case name IEEE9, got %s", cfg.Case.Name)
	}
	if cfg.Sim.BSPSSEPyTimeStepSec != 2 {
		t.Errorf("expected bspssepyTimeStep 2, got %f", cfg.Sim.BSPSSEPyTimeStepSec)
	}
	if cfg.Sim.BaseFreqHz != 60 {
		t.Errorf("expected baseFreqHz to keep its default of 60, got %f", cfg.Sim.BaseFreqHz)
	}
}

func TestConfigSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := Default()
	cfg.Case.Name = "saved-case"

	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}

	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.Case.Name != "saved-case" {
		t.Errorf("expected case name saved-case, got %s", loaded.Case.Name)
	}
}
