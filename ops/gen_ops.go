package ops

import (
	"context"

	"github.com/aldahabi27/bspssepy-go/bspssepyerr"
	"github.com/aldahabi27/bspssepy-go/registry"
	"github.com/aldahabi27/bspssepy-go/solver"
)

// genUpdate implements GEN.update(P,Q): a direct, one-shot setpoint
// change outside the ramp state machine. Per the design's open
// question #1, update bypasses the useGenRampRate/|Δ|/popf<=1% gate
// regardless of how the generator is configured; callers that want
// ramped behavior issue GEN.on instead.
//
// Q (reactive power, MVAR) has no grounded mapping onto anything
// solver.Gateway exposes for a synchronous generator -- there is no
// Qref setter, and original_source's GenUpdate extracts a Q value but
// never applies it either. Rather than silently forward it onto
// SetVref (a per-unit voltage setpoint, a different physical quantity),
// Q is recorded on the generator row and otherwise ignored until the
// Gateway contract grows a reactive-power setpoint.
func genUpdate(ctx context.Context, t float64, sel Selectors, reg *registry.Registry, gw solver.Gateway) (Result, error) {
	g, ok := reg.Generator(sel.Name)
	if !ok {
		return Done, bspssepyerr.New(bspssepyerr.KindUnknownDevice, "GEN.update", nil)
	}
	if g.MVABase == 0 {
		return Done, bspssepyerr.New(bspssepyerr.KindInvalidConfig, "GEN.update", nil)
	}
	if p, ok := sel.Values["P"]; ok {
		if err := gw.SetGref(ctx, sel.Name, p/g.MVABase); err != nil {
			return Done, bspssepyerr.New(bspssepyerr.KindSolverError, "GEN.update", err)
		}
	}
	if q, ok := sel.Values["Q"]; ok {
		g.QopfMVAR = q
	}
	g.LastAction = "update"
	g.LastActionTime = t
	return Done, nil
}
