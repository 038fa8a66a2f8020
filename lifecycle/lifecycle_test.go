package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aldahabi27/bspssepy-go/bspssepyerr"
	"github.com/aldahabi27/bspssepy-go/channel"
	"github.com/aldahabi27/bspssepy-go/ops"
	"github.com/aldahabi27/bspssepy-go/registry"
	"github.com/aldahabi27/bspssepy-go/solver"
)

func newNBSFixture(t *testing.T, crankingTimeSec, rampRate, popf float64, useRampRate bool) (*registry.Registry, *solver.FakeGateway, *registry.Generator) {
	gw := solver.NewFakeGateway(60.0)
	gw.AddBus(1, "Bus1", registry.BusTypeSwing)
	gw.AddBus(2, "Bus2", registry.BusTypeGenerator)
	gw.AddBranch("BRN-1-2", 1, 2, "1", false)
	gw.AddLoad("CRANK-GEN2", "1", 2, [6]float64{1, 0.5, 0, 0, 0, 0}, false)
	gw.AddGenerator("GEN2", 2, 100)

	genSeeds := []registry.GeneratorSeed{
		{
			Name: "GEN2", GenType: registry.GenTypeNBS, LoadName: "CRANK-GEN2",
			CrankingTimeSec: crankingTimeSec, RampRateMWPerMin: rampRate, PopfMW: popf,
			UseGenRampRate: useRampRate,
			Connection:     registry.GenConnection{Type: registry.ConnectionBranch, ElementName: "BRN-1-2", FromBus: 1, ToBus: 2},
		},
	}
	r, err := registry.New(context.Background(), gw, genSeeds, nil)
	require.NoError(t, err)
	g, ok := r.Generator("GEN2")
	require.True(t, ok)
	return r, gw, g
}

func TestEnableCranksThenRampsWithoutRampRate(t *testing.T) {
	ctx := context.Background()
	r, gw, g := newNBSFixture(t, 10, 0, 50, false)

	res, err := Enable(ctx, 0, ops.Selectors{Name: "GEN2"}, r, gw)
	require.NoError(t, err)
	assert.Equal(t, ops.Incomplete, res)
	assert.Equal(t, registry.PhaseCranking, g.Phase)

	load, _ := r.Load("CRANK-GEN2")
	assert.Equal(t, registry.LoadEnabled, load.Status)

	res, err = Enable(ctx, 5, ops.Selectors{Name: "GEN2"}, r, gw)
	require.NoError(t, err)
	assert.Equal(t, ops.Incomplete, res)
	assert.Equal(t, registry.PhaseCranking, g.Phase)

	res, err = Enable(ctx, 10, ops.Selectors{Name: "GEN2"}, r, gw)
	require.NoError(t, err)
	assert.Equal(t, ops.Incomplete, res)
	assert.Equal(t, registry.PhaseRamping, g.Phase)
	assert.Equal(t, registry.LoadDisabled, load.Status)
	br, _ := r.Branch("BRN-1-2")
	assert.Equal(t, registry.ElementClosed, br.Status)

	res, err = Enable(ctx, 10, ops.Selectors{Name: "GEN2"}, r, gw)
	require.NoError(t, err)
	assert.Equal(t, ops.Done, res)
	assert.Equal(t, registry.PhaseInService, g.Phase)
}

func TestEnableRampsWithRampRate(t *testing.T) {
	ctx := context.Background()
	r, gw, g := newNBSFixture(t, 0, 6, 6, true)

	_, err := Enable(ctx, 0, ops.Selectors{Name: "GEN2"}, r, gw)
	require.NoError(t, err)
	_, err = Enable(ctx, 0, ops.Selectors{Name: "GEN2"}, r, gw)
	require.NoError(t, err)
	require.Equal(t, registry.PhaseRamping, g.Phase)

	pelecIdx, err := gw.RegisterChannel(ctx, "GEN2.pelec", channel.TypePelec, 2, "GEN2", 0)
	require.NoError(t, err)

	res, err := Enable(ctx, 60, ops.Selectors{Name: "GEN2"}, r, gw)
	require.NoError(t, err)
	assert.Equal(t, ops.Incomplete, res)

	res, err = Enable(ctx, 120, ops.Selectors{Name: "GEN2"}, r, gw)
	require.NoError(t, err)
	v, err := gw.ReadChannel(ctx, pelecIdx)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, v, 1e-6)
	assert.Equal(t, ops.Done, res)
	assert.Equal(t, registry.PhaseInService, g.Phase)
}

func TestEnableRefusesPrematureEnergization(t *testing.T) {
	ctx := context.Background()
	r, gw, _ := newNBSFixture(t, 10, 0, 50, false)
	br, _ := r.Branch("BRN-1-2")
	br.Status = registry.ElementClosed

	_, err := Enable(ctx, 0, ops.Selectors{Name: "GEN2"}, r, gw)
	require.Error(t, err)
	assert.True(t, bspssepyerr.Is(err, bspssepyerr.KindPrematureEnergization))
}

func TestDisableTearsDownAndReturnsToOff(t *testing.T) {
	ctx := context.Background()
	r, gw, g := newNBSFixture(t, 0, 0, 0, false)
	g.Phase = registry.PhaseInService
	br, _ := r.Branch("BRN-1-2")
	br.Status = registry.ElementClosed

	res, err := Disable(ctx, 100, ops.Selectors{Name: "GEN2"}, r, gw)
	require.NoError(t, err)
	assert.Equal(t, ops.Done, res)
	assert.Equal(t, registry.PhaseOff, g.Phase)
	assert.Equal(t, registry.ElementTripped, br.Status)

	bus2, _ := r.Bus(2)
	assert.Equal(t, registry.BusTypeSwing, bus2.Type)
}
