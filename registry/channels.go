package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/aldahabi27/bspssepy-go/bspssepyerr"
	"github.com/aldahabi27/bspssepy-go/channel"
)

// SubscriptionConfig mirrors config.ChannelConfig without importing the
// config package (which already imports registry): the bus-scoped
// voltage/frequency monitoring lists and flags of spec.md §6.
type SubscriptionConfig struct {
	ExplicitVoltageBuses   []int
	ExplicitFrequencyBuses []int
	VoltageFlag            channel.Flag
	FrequencyFlag          channel.Flag
}

// RegisterBusChannels resolves cfg's voltage/frequency subscription
// lists against the Registry's own device tables and registers one
// channel per (bus, quantity), via channel.ResolveSubscriptions
// (spec.md §6). Call once after New, before Run.
func (r *Registry) RegisterBusChannels(ctx context.Context, cfg SubscriptionConfig) error {
	sets := r.busSets()

	voltageBuses, err := channel.ResolveSubscriptions(cfg.VoltageFlag, cfg.ExplicitVoltageBuses, sets)
	if err != nil {
		return bspssepyerr.New(bspssepyerr.KindInvalidConfig, "Registry.RegisterBusChannels", err)
	}
	for _, bus := range voltageBuses {
		if err := r.registerBusChannel(ctx, bus, channel.TypeVoltage, "voltage"); err != nil {
			return err
		}
	}

	frequencyBuses, err := channel.ResolveSubscriptions(cfg.FrequencyFlag, cfg.ExplicitFrequencyBuses, sets)
	if err != nil {
		return bspssepyerr.New(bspssepyerr.KindInvalidConfig, "Registry.RegisterBusChannels", err)
	}
	for _, bus := range frequencyBuses {
		if err := r.registerBusChannel(ctx, bus, channel.TypeFrequency, "freq"); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) registerBusChannel(ctx context.Context, bus int, typ channel.Type, suffix string) error {
	b, ok := r.busesByNumber[bus]
	if !ok {
		return bspssepyerr.New(bspssepyerr.KindInvalidConfig, "Registry.RegisterBusChannels",
			fmt.Errorf("bus %d not found", bus))
	}
	name := b.Name + "." + suffix
	if _, exists := r.Channels.Get(name); exists {
		return nil
	}
	if _, err := r.gw.RegisterChannel(ctx, name, typ, bus, "", 0); err != nil {
		return bspssepyerr.New(bspssepyerr.KindSolverError, "Registry.RegisterBusChannels", err)
	}
	r.Channels.Register(name, typ, bus, "", 0)
	return nil
}

// busSets computes the distinct bus-number sets channel.Flag resolution
// needs, derived from the Registry's own tables.
func (r *Registry) busSets() channel.BusSets {
	var sets channel.BusSets
	for bus := range r.busesByNumber {
		sets.AllBuses = append(sets.AllBuses, bus)
	}
	for _, g := range r.generators {
		sets.GenBuses = append(sets.GenBuses, g.Bus)
	}
	for _, e := range r.transformers {
		sets.XfmrBuses = append(sets.XfmrBuses, e.FromBus, e.ToBus)
	}
	for _, l := range r.loads {
		sets.LoadBuses = append(sets.LoadBuses, l.Bus)
	}
	sort.Ints(sets.AllBuses)
	sort.Ints(sets.GenBuses)
	sort.Ints(sets.XfmrBuses)
	sort.Ints(sets.LoadBuses)
	return sets
}

