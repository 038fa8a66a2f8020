package ops

import (
	"context"

	"github.com/aldahabi27/bspssepy-go/registry"
	"github.com/aldahabi27/bspssepy-go/solver"
)

// transformerClose implements TRN.on. Transformers share Branch's shape
// and precondition checks exactly (§3: "identical shape and invariants
// to Branch").
func transformerClose(ctx context.Context, t float64, sel Selectors, reg *registry.Registry, gw solver.Gateway) (Result, error) {
	return closeElement(ctx, t, sel, reg, gw, "TRN.on", true)
}

func transformerTrip(ctx context.Context, t float64, sel Selectors, reg *registry.Registry, gw solver.Gateway) (Result, error) {
	return tripElement(ctx, t, sel, reg, gw, "TRN.off", true)
}
