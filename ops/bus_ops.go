package ops

import (
	"context"

	"github.com/aldahabi27/bspssepy-go/bspssepyerr"
	"github.com/aldahabi27/bspssepy-go/registry"
	"github.com/aldahabi27/bspssepy-go/solver"
)

// busClose implements BUS.on: close (restore the bus to its initialType).
// Idempotent: a bus already at its initial type and Closed returns Done
// with no side effects.
func busClose(ctx context.Context, t float64, sel Selectors, reg *registry.Registry, gw solver.Gateway) (Result, error) {
	b, ok := reg.Bus(sel.Number)
	if !ok {
		return Done, bspssepyerr.New(bspssepyerr.KindUnknownDevice, "BUS.on", nil)
	}
	if b.Status == registry.BusClosed && b.Type == b.InitialType {
		return Done, nil
	}
	if err := gw.CloseBus(ctx, sel.Number, b.InitialType); err != nil {
		return Done, bspssepyerr.New(bspssepyerr.KindSolverError, "BUS.on", err)
	}
	b.Type = b.InitialType
	b.Status = registry.BusClosed
	b.LastAction = "close"
	b.LastActionTime = t
	return Done, nil
}

// busTrip implements BUS.off: trip (set type 4).
func busTrip(ctx context.Context, t float64, sel Selectors, reg *registry.Registry, gw solver.Gateway) (Result, error) {
	b, ok := reg.Bus(sel.Number)
	if !ok {
		return Done, bspssepyerr.New(bspssepyerr.KindUnknownDevice, "BUS.off", nil)
	}
	if b.Status == registry.BusTripped {
		return Done, nil
	}
	if err := gw.TripBus(ctx, sel.Number); err != nil {
		return Done, bspssepyerr.New(bspssepyerr.KindSolverError, "BUS.off", err)
	}
	b.Type = registry.BusTypeTripped
	b.Status = registry.BusTripped
	b.LastAction = "trip"
	b.LastActionTime = t
	return Done, nil
}

// busChangeType implements BUS.changetype(newType).
func busChangeType(ctx context.Context, t float64, sel Selectors, reg *registry.Registry, gw solver.Gateway) (Result, error) {
	b, ok := reg.Bus(sel.Number)
	if !ok {
		return Done, bspssepyerr.New(bspssepyerr.KindUnknownDevice, "BUS.changetype", nil)
	}
	newType := int(sel.Values["newType"])
	if b.Type == newType {
		return Done, nil
	}
	if err := gw.ChangeBusType(ctx, sel.Number, newType); err != nil {
		return Done, bspssepyerr.New(bspssepyerr.KindSolverError, "BUS.changetype", err)
	}
	b.Type = newType
	if newType == registry.BusTypeTripped {
		b.Status = registry.BusTripped
	} else {
		b.Status = registry.BusClosed
	}
	b.LastAction = "changetype"
	b.LastActionTime = t
	return Done, nil
}
