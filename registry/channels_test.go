package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aldahabi27/bspssepy-go/channel"
)

func TestRegisterBusChannelsAsListedRegistersExplicitBuses(t *testing.T) {
	ctx := context.Background()
	gw := newFixtureGateway()
	r, err := New(ctx, gw, []GeneratorSeed{{Name: "GEN1", GenType: GenTypeBS}}, nil)
	require.NoError(t, err)

	err = r.RegisterBusChannels(ctx, SubscriptionConfig{
		ExplicitVoltageBuses: []int{1, 2},
		VoltageFlag:          channel.FlagAsListed,
		FrequencyFlag:        channel.FlagAsListed,
	})
	require.NoError(t, err)

	_, ok := r.Channels.Get("Bus1.voltage")
	assert.True(t, ok)
	_, ok = r.Channels.Get("Bus2.voltage")
	assert.True(t, ok)
	_, ok = r.Channels.Get("Bus3.voltage")
	assert.False(t, ok)
}

func TestRegisterBusChannelsGenBusesFlagResolvesFromGeneratorRoster(t *testing.T) {
	ctx := context.Background()
	gw := newFixtureGateway()
	r, err := New(ctx, gw, []GeneratorSeed{
		{Name: "GEN1", GenType: GenTypeBS},
		{Name: "GEN2", GenType: GenTypeNBS, LoadName: "CRANK-GEN2", Connection: GenConnection{
			Type: ConnectionTransformer, ElementName: "TRN-2-3", FromBus: 2, ToBus: 3,
		}},
	}, nil)
	require.NoError(t, err)

	err = r.RegisterBusChannels(ctx, SubscriptionConfig{
		VoltageFlag:   channel.FlagGenBuses,
		FrequencyFlag: channel.FlagGenBuses,
	})
	require.NoError(t, err)

	_, ok := r.Channels.Get("Bus1.voltage")
	assert.True(t, ok, "GEN1 sits on Bus1")
	_, ok = r.Channels.Get("Bus3.voltage")
	assert.True(t, ok, "GEN2 sits on Bus3")
	_, ok = r.Channels.Get("Bus1.freq")
	assert.True(t, ok)
}

func TestRegisterBusChannelsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	gw := newFixtureGateway()
	r, err := New(ctx, gw, []GeneratorSeed{{Name: "GEN1", GenType: GenTypeBS}}, nil)
	require.NoError(t, err)

	cfg := SubscriptionConfig{
		ExplicitVoltageBuses: []int{1},
		VoltageFlag:          channel.FlagAsListed,
		FrequencyFlag:        channel.FlagAsListed,
	}
	require.NoError(t, r.RegisterBusChannels(ctx, cfg))
	require.NoError(t, r.RegisterBusChannels(ctx, cfg))

	ch, ok := r.Channels.Get("Bus1.voltage")
	require.True(t, ok)
	assert.Equal(t, 6, ch.Index) // GEN1's six generator channels hold 0-5
}

func TestRegisterBusChannelsRejectsUnknownBus(t *testing.T) {
	ctx := context.Background()
	gw := newFixtureGateway()
	r, err := New(ctx, gw, []GeneratorSeed{{Name: "GEN1", GenType: GenTypeBS}}, nil)
	require.NoError(t, err)

	err = r.RegisterBusChannels(ctx, SubscriptionConfig{
		ExplicitVoltageBuses: []int{99},
		VoltageFlag:          channel.FlagAsListed,
		FrequencyFlag:        channel.FlagAsListed,
	})
	require.Error(t, err)
}
