package solver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aldahabi27/bspssepy-go/channel"
)

func TestFakeGatewayInitialQueriesReflectFixture(t *testing.T) {
	ctx := context.Background()
	gw := NewFakeGateway(60.0)
	gw.AddBus(1, "Bus1", 3)
	gw.AddBranch("BRN1", 1, 2, "1", true)
	gw.AddTransformer("TRN1", 2, 3, "1", false)
	gw.AddLoad("L1", "1", 2, [6]float64{10, 5, 0, 0, 0, 0}, true)
	gw.AddGenerator("GEN1", 1, 100)
	gw.AddIBR("IBR1", 4)

	buses, err := gw.InitialBuses(ctx)
	require.NoError(t, err)
	require.Len(t, buses, 1)
	assert.Equal(t, 3, buses[0].Type)

	branches, err := gw.InitialBranches(ctx)
	require.NoError(t, err)
	require.Len(t, branches, 1)
	assert.True(t, branches[0].Closed)

	xfmrs, err := gw.InitialTransformers(ctx)
	require.NoError(t, err)
	require.Len(t, xfmrs, 1)
	assert.False(t, xfmrs[0].Closed)

	loads, err := gw.InitialLoads(ctx)
	require.NoError(t, err)
	require.Len(t, loads, 1)

	gens, err := gw.InitialGenerators(ctx)
	require.NoError(t, err)
	require.Len(t, gens, 1)

	ibrs, err := gw.InitialIBRs(ctx)
	require.NoError(t, err)
	require.Len(t, ibrs, 1)
}

func TestFakeGatewayGrefTracksPelec(t *testing.T) {
	ctx := context.Background()
	gw := NewFakeGateway(60.0)
	gw.AddGenerator("GEN2", 2, 100)

	pelecIdx, err := gw.RegisterChannel(ctx, "GEN2.pelec", channel.TypePelec, 2, "GEN2", 0)
	require.NoError(t, err)

	require.NoError(t, gw.SetGref(ctx, "GEN2", 0.5))
	v, err := gw.ReadChannel(ctx, pelecIdx)
	require.NoError(t, err)
	assert.Equal(t, 50.0, v)

	require.NoError(t, gw.IncrementGref(ctx, "GEN2", 0.1))
	v, err = gw.ReadChannel(ctx, pelecIdx)
	require.NoError(t, err)
	assert.InDelta(t, 60.0, v, 1e-9)
}

func TestFakeGatewayBranchCloseTripUnknownDevice(t *testing.T) {
	ctx := context.Background()
	gw := NewFakeGateway(60.0)
	err := gw.CloseBranch(ctx, "NOPE")
	assert.Error(t, err)
}

func TestFakeGatewayAdvanceToRejectsRegression(t *testing.T) {
	ctx := context.Background()
	gw := NewFakeGateway(60.0)
	require.NoError(t, gw.AdvanceTo(ctx, 10))
	assert.Error(t, gw.AdvanceTo(ctx, 5))
	assert.Equal(t, 10.0, gw.Now())
}

func TestFakeGatewayChannelScripting(t *testing.T) {
	ctx := context.Background()
	gw := NewFakeGateway(60.0)
	gw.AddGenerator("GEN2", 2, 100)
	idx, err := gw.RegisterChannel(ctx, "GEN2.freq", channel.TypeFrequency, 2, "GEN2", 60.0)
	require.NoError(t, err)

	require.NoError(t, gw.SetChannelValue("GEN2.freq", 59.9))
	v, err := gw.ReadChannel(ctx, idx)
	require.NoError(t, err)
	assert.Equal(t, 59.9, v)
}
