package ops

import (
	"context"

	"github.com/aldahabi27/bspssepy-go/bspssepyerr"
	"github.com/aldahabi27/bspssepy-go/registry"
	"github.com/aldahabi27/bspssepy-go/solver"
)

// branchClose implements BRN.on. If either end-bus is tripped (type 4),
// it is closed first (recursive, bounded depth 1 per the design's open
// question #3). If the branch is genControlled, the call is rejected
// with GeneratorOwned unless the caller is privileged (the Generator
// Lifecycle closing its own connection element).
func branchClose(ctx context.Context, t float64, sel Selectors, reg *registry.Registry, gw solver.Gateway) (Result, error) {
	return closeElement(ctx, t, sel, reg, gw, "BRN.on", false)
}

func branchTrip(ctx context.Context, t float64, sel Selectors, reg *registry.Registry, gw solver.Gateway) (Result, error) {
	return tripElement(ctx, t, sel, reg, gw, "BRN.off", false)
}

func closeElement(ctx context.Context, t float64, sel Selectors, reg *registry.Registry, gw solver.Gateway, op string, isXfmr bool) (Result, error) {
	elem, ok := elementFor(reg, sel.Name, isXfmr)
	if !ok {
		return Done, bspssepyerr.New(bspssepyerr.KindUnknownDevice, op, nil)
	}
	if elem.GenControlled && !sel.Privileged {
		return Done, bspssepyerr.New(bspssepyerr.KindGeneratorOwned, op, nil)
	}
	if elem.Status == registry.ElementClosed {
		return Done, nil
	}

	if err := closeAdjacentTrippedBus(ctx, t, reg, gw, elem.FromBus); err != nil {
		return Done, err
	}
	if err := closeAdjacentTrippedBus(ctx, t, reg, gw, elem.ToBus); err != nil {
		return Done, err
	}

	var err error
	if isXfmr {
		err = gw.CloseTransformer(ctx, sel.Name)
	} else {
		err = gw.CloseBranch(ctx, sel.Name)
	}
	if err != nil {
		return Done, bspssepyerr.New(bspssepyerr.KindSolverError, op, err)
	}
	elem.Status = registry.ElementClosed
	elem.LastAction = "close"
	elem.LastActionTime = t
	return Done, nil
}

func tripElement(ctx context.Context, t float64, sel Selectors, reg *registry.Registry, gw solver.Gateway, op string, isXfmr bool) (Result, error) {
	elem, ok := elementFor(reg, sel.Name, isXfmr)
	if !ok {
		return Done, bspssepyerr.New(bspssepyerr.KindUnknownDevice, op, nil)
	}
	if elem.GenControlled && !sel.Privileged {
		return Done, bspssepyerr.New(bspssepyerr.KindGeneratorOwned, op, nil)
	}
	if elem.Status == registry.ElementTripped {
		return Done, nil
	}
	var err error
	if isXfmr {
		err = gw.TripTransformer(ctx, sel.Name)
	} else {
		err = gw.TripBranch(ctx, sel.Name)
	}
	if err != nil {
		return Done, bspssepyerr.New(bspssepyerr.KindSolverError, op, err)
	}
	elem.Status = registry.ElementTripped
	elem.LastAction = "trip"
	elem.LastActionTime = t
	return Done, nil
}

func elementFor(reg *registry.Registry, name string, isXfmr bool) (*registry.Element, bool) {
	if isXfmr {
		return reg.Transformer(name)
	}
	return reg.Branch(name)
}

// closeAdjacentTrippedBus closes busNumber if it is currently tripped,
// satisfying the recursive-depth-1 rule: this call never cascades
// further than the one bus directly adjacent to the element being
// closed.
func closeAdjacentTrippedBus(ctx context.Context, t float64, reg *registry.Registry, gw solver.Gateway, busNumber int) error {
	b, ok := reg.Bus(busNumber)
	if !ok || b.Status != registry.BusTripped {
		return nil
	}
	if err := gw.CloseBus(ctx, busNumber, b.InitialType); err != nil {
		return bspssepyerr.New(bspssepyerr.KindSolverError, "BUS.on(recursive)", err)
	}
	b.Type = b.InitialType
	b.Status = registry.BusClosed
	b.LastAction = "close(recursive)"
	b.LastActionTime = t
	return nil
}
