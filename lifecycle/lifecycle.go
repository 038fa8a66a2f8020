// Package lifecycle implements the Generator Lifecycle (C4): the
// 4-phase state machine (Off -> Cranking -> Ramping -> InService) that
// brings a non-black-start generator onto the grid, and its reverse
// teardown. It composes Device Operations (C3) primitives rather than
// calling the Solver Gateway directly wherever a primitive exists
// (cranking-load enable/disable, connection-element close/trip), and
// registers itself as the GEN.on/GEN.off handlers in the ops package's
// dispatch table so the Action Dispatcher never special-cases GEN.
package lifecycle

import (
	"context"
	"math"

	"github.com/aldahabi27/bspssepy-go/bspssepyerr"
	"github.com/aldahabi27/bspssepy-go/ops"
	"github.com/aldahabi27/bspssepy-go/registry"
	"github.com/aldahabi27/bspssepy-go/solver"
)

// Register installs the Enable/Disable state machine as the GEN.on and
// GEN.off operations. Call once during startup wiring, after the ops
// package has been imported.
func Register() {
	ops.Register(registry.KindGenerator, ops.ActionOn, ops.OpFunc(Enable))
	ops.Register(registry.KindGenerator, ops.ActionOff, ops.OpFunc(Disable))
}

// Enable drives one framework tick of the Off->Cranking->Ramping->
// InService state machine. The Dispatcher re-invokes it every tick
// while the owning action remains InProgress.
func Enable(ctx context.Context, t float64, sel ops.Selectors, reg *registry.Registry, gw solver.Gateway) (ops.Result, error) {
	g, ok := reg.Generator(sel.Name)
	if !ok {
		return ops.Done, bspssepyerr.New(bspssepyerr.KindUnknownDevice, "GEN.on", nil)
	}

	switch g.Phase {
	case registry.PhaseInService:
		return ops.Done, nil

	case registry.PhaseOff:
		return enableOff(ctx, t, g, reg, gw)

	case registry.PhaseCranking:
		return enableCranking(ctx, t, g, reg, gw)

	case registry.PhaseRamping:
		return enableRamping(ctx, t, g, gw)

	default:
		return ops.Incomplete, nil
	}
}

// enableOff handles the Off->Cranking transition, refusing
// PrematureEnergization if a neighbor of the generator bus is already
// closed.
func enableOff(ctx context.Context, t float64, g *registry.Generator, reg *registry.Registry, gw solver.Gateway) (ops.Result, error) {
	for _, e := range reg.ElementsAdjacentToBus(g.Bus) {
		if e.Status == registry.ElementClosed {
			return ops.Done, bspssepyerr.New(bspssepyerr.KindPrematureEnergization, "GEN.on", nil)
		}
	}

	if g.LoadName != "" {
		if _, err := ops.Dispatch(ctx, t, registry.KindLoad, ops.ActionOn,
			ops.Selectors{Name: g.LoadName, Privileged: true}, reg, gw); err != nil {
			return ops.Done, err
		}
	}

	g.Phase = registry.PhaseCranking
	g.LastAction = "enable:crank-start"
	g.LastActionTime = t
	return ops.Incomplete, nil
}

// enableCranking handles the Cranking->Ramping transition once the
// cranking time has elapsed.
func enableCranking(ctx context.Context, t float64, g *registry.Generator, reg *registry.Registry, gw solver.Gateway) (ops.Result, error) {
	if t-g.LastActionTime < g.CrankingTimeSec {
		return ops.Incomplete, nil
	}

	if g.LoadName != "" {
		if _, err := ops.Dispatch(ctx, t, registry.KindLoad, ops.ActionOff,
			ops.Selectors{Name: g.LoadName, Privileged: true}, reg, gw); err != nil {
			return ops.Done, err
		}
	}

	connKind := registry.KindBranch
	if g.Connection.Type == registry.ConnectionTransformer {
		connKind = registry.KindTransformer
	}
	if _, err := ops.Dispatch(ctx, t, connKind, ops.ActionOn,
		ops.Selectors{Name: g.Connection.ElementName, Privileged: true}, reg, gw); err != nil {
		return ops.Done, err
	}

	if err := gw.SetGref(ctx, g.Name, 0); err != nil {
		return ops.Done, bspssepyerr.New(bspssepyerr.KindSolverError, "GEN.on/cranking-done", err)
	}
	currentVref, err := gw.ReadChannel(ctx, g.Channels.Vref)
	if err != nil {
		return ops.Done, bspssepyerr.New(bspssepyerr.KindSolverError, "GEN.on/cranking-done", err)
	}
	if err := gw.SetVref(ctx, g.Name, currentVref); err != nil {
		return ops.Done, bspssepyerr.New(bspssepyerr.KindSolverError, "GEN.on/cranking-done", err)
	}

	g.Phase = registry.PhaseRamping
	g.LastAction = "enable:ramp-start"
	g.LastActionTime = t
	g.LastRampTickTime = t
	return ops.Incomplete, nil
}

// enableRamping handles the Ramping->InService transition, in either
// of the two sub-modes named in §4.4.
func enableRamping(ctx context.Context, t float64, g *registry.Generator, gw solver.Gateway) (ops.Result, error) {
	if g.PopfMW == 0 {
		if err := gw.SetGref(ctx, g.Name, 0); err != nil {
			return ops.Done, bspssepyerr.New(bspssepyerr.KindSolverError, "GEN.on/ramp(popf=0)", err)
		}
		g.Phase = registry.PhaseInService
		g.LastAction = "enable:ramp-done(popf=0)"
		g.LastActionTime = t
		return ops.Done, nil
	}

	if !g.UseGenRampRate {
		if g.MVABase == 0 {
			return ops.Done, bspssepyerr.New(bspssepyerr.KindInvalidConfig, "GEN.on/ramp", nil)
		}
		if err := gw.SetGref(ctx, g.Name, g.PopfMW/g.MVABase); err != nil {
			return ops.Done, bspssepyerr.New(bspssepyerr.KindSolverError, "GEN.on/ramp", err)
		}
		g.Phase = registry.PhaseInService
		g.LastAction = "enable:ramp-done"
		g.LastActionTime = t
		return ops.Done, nil
	}

	return rampStep(ctx, t, g, gw)
}

// rampStep implements the useGenRampRate==true sub-mode: a per-tick
// step bounded by rampRate_MW_per_min, until the remaining delta falls
// within 1% of popf and below the per-tick step size.
func rampStep(ctx context.Context, t float64, g *registry.Generator, gw solver.Gateway) (ops.Result, error) {
	pelec, err := gw.ReadChannel(ctx, g.Channels.Pelec)
	if err != nil {
		return ops.Done, bspssepyerr.New(bspssepyerr.KindSolverError, "GEN.on/ramp", err)
	}

	dt := t - g.LastRampTickTime
	if dt <= 0 {
		dt = 1
	}
	stepMW := g.RampRateMWPerMin * dt / 60

	remaining := g.PopfMW - pelec
	absRemaining := math.Abs(remaining)

	if absRemaining/math.Abs(g.PopfMW) <= 0.01 && absRemaining <= stepMW {
		if err := gw.SetGref(ctx, g.Name, g.PopfMW/g.MVABase); err != nil {
			return ops.Done, bspssepyerr.New(bspssepyerr.KindSolverError, "GEN.on/ramp-final", err)
		}
		g.Phase = registry.PhaseInService
		g.LastAction = "enable:ramp-done"
		g.LastActionTime = t
		return ops.Done, nil
	}

	direction := 1.0
	if remaining < 0 {
		direction = -1.0
	}
	if err := gw.IncrementGref(ctx, g.Name, direction*stepMW/g.MVABase); err != nil {
		return ops.Done, bspssepyerr.New(bspssepyerr.KindSolverError, "GEN.on/ramp-step", err)
	}
	g.LastRampTickTime = t
	return ops.Incomplete, nil
}

// Disable tears the generator down: trip its connection element, then
// change the generator bus to swing (type 3) so the remaining island
// keeps a reference, then drop the phase straight to Off. This still
// satisfies the monotonic-descending invariant (it never increases).
func Disable(ctx context.Context, t float64, sel ops.Selectors, reg *registry.Registry, gw solver.Gateway) (ops.Result, error) {
	g, ok := reg.Generator(sel.Name)
	if !ok {
		return ops.Done, bspssepyerr.New(bspssepyerr.KindUnknownDevice, "GEN.off", nil)
	}
	if g.Phase == registry.PhaseOff {
		return ops.Done, nil
	}

	connKind := registry.KindBranch
	if g.Connection.Type == registry.ConnectionTransformer {
		connKind = registry.KindTransformer
	}
	if _, err := ops.Dispatch(ctx, t, connKind, ops.ActionOff,
		ops.Selectors{Name: g.Connection.ElementName, Privileged: true}, reg, gw); err != nil {
		return ops.Done, err
	}

	if err := gw.ChangeBusType(ctx, g.Bus, registry.BusTypeSwing); err != nil {
		return ops.Done, bspssepyerr.New(bspssepyerr.KindSolverError, "GEN.off", err)
	}
	if b, ok := reg.Bus(g.Bus); ok {
		b.Type = registry.BusTypeSwing
		b.Status = registry.BusClosed
		b.LastAction = "disable:gen-teardown"
		b.LastActionTime = t
	}

	g.Phase = registry.PhaseOff
	g.LastAction = "disable"
	g.LastActionTime = t
	return ops.Done, nil
}
