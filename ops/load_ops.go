package ops

import (
	"context"
	"fmt"

	"github.com/aldahabi27/bspssepy-go/bspssepyerr"
	"github.com/aldahabi27/bspssepy-go/registry"
	"github.com/aldahabi27/bspssepy-go/solver"
)

// loadEnable implements LOAD.on. On a transition to Enabled it applies
// the load-enabled feed-forward (§4.3): every InService generator with
// loadEnabledResponse==true receives an immediate gref increment
// proportional to the load's active power.
func loadEnable(ctx context.Context, t float64, sel Selectors, reg *registry.Registry, gw solver.Gateway) (Result, error) {
	l, ok := reg.Load(sel.Name)
	if !ok {
		return Done, bspssepyerr.New(bspssepyerr.KindUnknownDevice, "LOAD.on", nil)
	}
	if l.Status == registry.LoadEnabled {
		return Done, nil
	}
	if err := gw.EnableLoad(ctx, sel.Name); err != nil {
		return Done, bspssepyerr.New(bspssepyerr.KindSolverError, "LOAD.on", err)
	}
	l.Status = registry.LoadEnabled
	l.LastAction = "enable"
	l.LastActionTime = t

	if err := applyLoadEnabledFeedForward(ctx, l, reg, gw); err != nil {
		return Done, err
	}
	return Done, nil
}

// applyLoadEnabledFeedForward implements the Δgref_pu = loadActive *
// lerpf / mvaBase feed-forward for every InService, loadEnabledResponse
// generator. lerpf is the generator's configured value, except when
// configured as exactly -1, in which case the generator's current
// effectiveAlpha is substituted (the design's open question #2: when
// effectiveAlpha==0 this yields no feed-forward, which is the preserved
// behavior, not a bug).
func applyLoadEnabledFeedForward(ctx context.Context, l *registry.Load, reg *registry.Registry, gw solver.Gateway) error {
	for _, g := range reg.Generators() {
		if g.Phase != registry.PhaseInService || !g.LoadEnabledResponse {
			continue
		}
		lerpf := g.LERPF
		if lerpf == -1 {
			if row, ok := reg.AGCRow(g.Name); ok {
				lerpf = row.EffectiveAlpha
			} else {
				lerpf = 0
			}
		}
		if lerpf == 0 || g.MVABase == 0 {
			continue
		}
		deltaPU := l.Power.PL * lerpf / g.MVABase
		if deltaPU == 0 {
			continue
		}
		if err := gw.IncrementGref(ctx, g.Name, deltaPU); err != nil {
			return bspssepyerr.New(bspssepyerr.KindSolverError, "LOAD.on/feedforward", err)
		}
	}
	return nil
}

func loadDisable(ctx context.Context, t float64, sel Selectors, reg *registry.Registry, gw solver.Gateway) (Result, error) {
	l, ok := reg.Load(sel.Name)
	if !ok {
		return Done, bspssepyerr.New(bspssepyerr.KindUnknownDevice, "LOAD.off", nil)
	}
	if l.Status == registry.LoadDisabled {
		return Done, nil
	}
	if err := gw.DisableLoad(ctx, sel.Name); err != nil {
		return Done, bspssepyerr.New(bspssepyerr.KindSolverError, "LOAD.off", err)
	}
	l.Status = registry.LoadDisabled
	l.LastAction = "disable"
	l.LastActionTime = t
	return Done, nil
}

// loadNew implements LOAD.new(powerArray, ties): creates a fresh load
// row at runtime, at sel.Number if given, else at the bus resolved
// through sel.TiedDeviceType/TiedDeviceName (the `ties` argument),
// analogous to original_source's BSPSSEPyLoad_New resolving BusNumber
// from an ElementName/ElementType pair when no bus is given directly.
func loadNew(ctx context.Context, t float64, sel Selectors, reg *registry.Registry, gw solver.Gateway) (Result, error) {
	if _, exists := reg.Load(sel.Name); exists {
		return Done, nil
	}

	bus := sel.Number
	if bus == 0 && sel.TiedDeviceName != "" {
		tied, ok := reg.GetByName(sel.TiedDeviceType, sel.TiedDeviceName)
		if !ok {
			return Done, bspssepyerr.New(bspssepyerr.KindUnknownDevice, "LOAD.new", nil)
		}
		b, err := tiedDeviceBus(tied)
		if err != nil {
			return Done, bspssepyerr.New(bspssepyerr.KindMalformedRow, "LOAD.new", err)
		}
		bus = b
	}
	if bus == 0 {
		return Done, bspssepyerr.New(bspssepyerr.KindInvalidConfig, "LOAD.new", nil)
	}

	power := [6]float64{
		sel.Values["PL"], sel.Values["QL"], sel.Values["IP"],
		sel.Values["IQ"], sel.Values["YP"], sel.Values["YQ"],
	}
	if err := gw.NewLoad(ctx, sel.Name, bus, power); err != nil {
		return Done, bspssepyerr.New(bspssepyerr.KindSolverError, "LOAD.new", err)
	}
	reg.NewLoadRow(&registry.Load{
		Name:   sel.Name,
		Bus:    bus,
		Status: registry.LoadEnabled,
		Power: registry.LoadPower{
			PL: power[0], QL: power[1], IP: power[2], IQ: power[3], YP: power[4], YQ: power[5],
		},
		TiedDeviceName: sel.TiedDeviceName,
		TiedDeviceType: string(sel.TiedDeviceType),
		LastAction:     "new",
		LastActionTime: t,
	})
	return Done, nil
}

// tiedDeviceBus extracts the bus location a tied device's generalized
// Row carries -- "number" for a bus itself, "bus" for a load/generator/
// ibr, or "fromBus" for a branch/transformer chain.
func tiedDeviceBus(row registry.Row) (int, error) {
	if n, ok := row.Fields["number"].(int); ok {
		return n, nil
	}
	if n, ok := row.Fields["bus"].(int); ok {
		return n, nil
	}
	if n, ok := row.Fields["fromBus"].(int); ok {
		return n, nil
	}
	return 0, fmt.Errorf("tied device %q has no resolvable bus location", row.Name)
}
