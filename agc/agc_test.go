package agc

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aldahabi27/bspssepy-go/registry"
	"github.com/aldahabi27/bspssepy-go/solver"
)

func twoUnitFixture(t *testing.T, alpha1, alpha2 float64) (*registry.Registry, *solver.FakeGateway) {
	gw := solver.NewFakeGateway(60.0)
	gw.AddBus(1, "Bus1", registry.BusTypeSwing)
	gw.AddBus(2, "Bus2", registry.BusTypeGenerator)
	gw.AddGenerator("GEN1", 1, 300)
	gw.AddGenerator("GEN2", 2, 100)

	genSeeds := []registry.GeneratorSeed{
		{Name: "GEN1", GenType: registry.GenTypeBS, AGCAlpha: alpha1, SpeedDroopR: 0.05, DampingD: 1, BiasScaling: 1},
		{Name: "GEN2", GenType: registry.GenTypeBS, AGCAlpha: alpha2, SpeedDroopR: 0.05, DampingD: 1, BiasScaling: 1},
	}
	r, err := registry.New(context.Background(), gw, genSeeds, nil)
	require.NoError(t, err)
	return r, gw
}

func TestTickWithinDeadbandEmitsNoAdjustment(t *testing.T) {
	ctx := context.Background()
	r, gw := twoUnitFixture(t, 0.6, 0.4)
	require.NoError(t, gw.SetChannelValue("GEN1.freq", 60.0))
	require.NoError(t, gw.SetChannelValue("GEN2.freq", 60.0))

	c := New(Config{BaseFreqHz: 60, DeadbandHz: 0.02, DeadbandRateHzPerSec: 0.01, TAGCSec: 5})
	res, err := c.Tick(ctx, 0, 1, r, gw)
	require.NoError(t, err)
	assert.True(t, res.FrequencyRegulated)
}

func TestTickRescalesActiveSetWhenUnitOffline(t *testing.T) {
	ctx := context.Background()
	r, gw := twoUnitFixture(t, 0.6, 0.4)

	require.NoError(t, gw.SetChannelValue("GEN1.freq", 0.998))
	require.NoError(t, gw.SetChannelValue("GEN2.freq", 0.998))

	g2, _ := r.Generator("GEN2")
	g2.Phase = registry.PhaseOff

	c := New(Config{BaseFreqHz: 60, DeadbandHz: 0.001, DeadbandRateHzPerSec: 0.0001, TAGCSec: 5})
	_, err := c.Tick(ctx, 0, 1, r, gw)
	require.NoError(t, err)

	row1, ok := r.AGCRow("GEN1")
	require.True(t, ok)
	assert.InDelta(t, 0.6*2/1, row1.EffectiveAlpha, 1e-9)

	row2, ok := r.AGCRow("GEN2")
	require.True(t, ok)
	assert.Equal(t, 0.0, row2.Alpha)
}

func TestTickEmitsIncrementOutsideDeadband(t *testing.T) {
	ctx := context.Background()
	r, gw := twoUnitFixture(t, 1.0, 0)
	g1, _ := r.Generator("GEN1")

	require.NoError(t, gw.SetGref(ctx, "GEN1", 100.0/300.0))
	require.NoError(t, gw.SetChannelValue("GEN1.freq", 0.995))

	c := New(Config{BaseFreqHz: 60, DeadbandHz: 0.01, DeadbandRateHzPerSec: 0.001, TAGCSec: 5})
	res, err := c.Tick(ctx, 0, 1, r, gw)
	require.NoError(t, err)
	assert.False(t, res.FrequencyRegulated)

	v, err := gw.ReadChannel(ctx, g1.Channels.Pelec)
	require.NoError(t, err)
	assert.Greater(t, v, 100.0)
}

func TestTickReportsFrequencyUnavailableOnNaN(t *testing.T) {
	ctx := context.Background()
	r, gw := twoUnitFixture(t, 0.6, 0.4)
	require.NoError(t, gw.SetChannelValue("GEN1.freq", 0.998))
	require.NoError(t, gw.SetChannelValue("GEN2.freq", math.NaN()))

	c := New(Config{BaseFreqHz: 60, DeadbandHz: 0.02, DeadbandRateHzPerSec: 0.01, TAGCSec: 5})
	_, err := c.Tick(ctx, 0, 1, r, gw)
	require.Error(t, err)
}
