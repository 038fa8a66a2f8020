package ops

import (
	"context"

	"github.com/aldahabi27/bspssepy-go/bspssepyerr"
	"github.com/aldahabi27/bspssepy-go/registry"
	"github.com/aldahabi27/bspssepy-go/solver"
)

func ibrEnable(ctx context.Context, t float64, sel Selectors, reg *registry.Registry, gw solver.Gateway) (Result, error) {
	i, ok := reg.IBR(sel.Name)
	if !ok {
		return Done, bspssepyerr.New(bspssepyerr.KindUnknownDevice, "IBR.on", nil)
	}
	if i.Status == registry.IBREnabled {
		return Done, nil
	}
	if err := gw.EnableIBR(ctx, sel.Name); err != nil {
		return Done, bspssepyerr.New(bspssepyerr.KindSolverError, "IBR.on", err)
	}
	i.Status = registry.IBREnabled
	i.LastAction = "enable"
	i.LastActionTime = t
	return Done, nil
}

func ibrDisable(ctx context.Context, t float64, sel Selectors, reg *registry.Registry, gw solver.Gateway) (Result, error) {
	i, ok := reg.IBR(sel.Name)
	if !ok {
		return Done, bspssepyerr.New(bspssepyerr.KindUnknownDevice, "IBR.off", nil)
	}
	if i.Status == registry.IBRDisabled {
		return Done, nil
	}
	if err := gw.DisableIBR(ctx, sel.Name); err != nil {
		return Done, bspssepyerr.New(bspssepyerr.KindSolverError, "IBR.off", err)
	}
	i.Status = registry.IBRDisabled
	i.LastAction = "disable"
	i.LastActionTime = t
	return Done, nil
}

func ibrUpdate(ctx context.Context, t float64, sel Selectors, reg *registry.Registry, gw solver.Gateway) (Result, error) {
	i, ok := reg.IBR(sel.Name)
	if !ok {
		return Done, bspssepyerr.New(bspssepyerr.KindUnknownDevice, "IBR.update", nil)
	}
	p := sel.Values["P"]
	q := sel.Values["Q"]
	if err := gw.SetIBRPower(ctx, sel.Name, p, q); err != nil {
		return Done, bspssepyerr.New(bspssepyerr.KindSolverError, "IBR.update", err)
	}
	i.ActiveMW = p
	i.ReactiveMVAR = q
	i.LastAction = "update"
	i.LastActionTime = t
	return Done, nil
}
