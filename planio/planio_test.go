package planio

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aldahabi27/bspssepy-go/bspssepyerr"
	"github.com/aldahabi27/bspssepy-go/ops"
	"github.com/aldahabi27/bspssepy-go/registry"
)

const sampleCSV = `Control Sequence,Device Type,Identification Type,Identification Value,Action Type,Action Time,Values
1,BUS,Name,Bus1,on,0,
2,GEN,Name,GEN2,on,60,
3,GEN,name,GEN2,update,900,P=150;Q=20
`

func TestParseCanonicalizesAliasesAndValues(t *testing.T) {
	rows, err := Parse(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, registry.KindBus, rows[0].DeviceType)
	assert.Equal(t, "Name", rows[0].IDType)
	assert.Equal(t, ops.ActionOn, rows[0].ActionType)

	assert.Equal(t, registry.KindGenerator, rows[2].DeviceType)
	assert.Equal(t, ops.ActionUpdate, rows[2].ActionType)
	assert.InDelta(t, 150, rows[2].Values["P"], 1e-9)
	assert.InDelta(t, 20, rows[2].Values["Q"], 1e-9)
}

func TestParseRejectsUnknownDeviceType(t *testing.T) {
	const bad = `Control Sequence,Device Type,Identification Type,Identification Value,Action Type,Action Time
1,FROB,Name,X,on,0
`
	_, err := Parse(strings.NewReader(bad))
	require.Error(t, err)
	assert.True(t, bspssepyerr.Is(err, bspssepyerr.KindMalformedRow))
}

func TestParseEmptyReturnsNoRows(t *testing.T) {
	rows, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestParseDecodesTieGroupAndTieTarget(t *testing.T) {
	const withTies = `Control Sequence,Device Type,Identification Type,Identification Value,Action Type,Action Time,Values,Tie Group,Tie Target
1,BRN,Name,BRN-1-2,on,60,,startup,
2,GEN,Name,GEN2,on,60,,startup,
3,LOAD,Name,CL-GEN2,new,0,PL=5,,gen:GEN2
`
	rows, err := Parse(strings.NewReader(withTies))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "group:startup", rows[0].TieKey)
	assert.Equal(t, "group:startup", rows[1].TieKey)

	assert.Equal(t, registry.KindGenerator, rows[2].TiedDeviceType)
	assert.Equal(t, "GEN2", rows[2].TiedDeviceName)
}

func TestParseRejectsMalformedTieTarget(t *testing.T) {
	const bad = `Control Sequence,Device Type,Identification Type,Identification Value,Action Type,Action Time,Values,Tie Group,Tie Target
1,LOAD,Name,CL1,new,0,,,nocolon
`
	_, err := Parse(strings.NewReader(bad))
	require.Error(t, err)
	assert.True(t, bspssepyerr.Is(err, bspssepyerr.KindMalformedRow))
}
