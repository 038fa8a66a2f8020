// Package agc implements the AGC Controller (C5): a discrete-time
// secondary frequency controller that redistributes gref adjustments
// across InService generators using participation factors, with
// deadband/dead-zone suppression and active-set rescaling so units
// going offline do not silently starve the remaining regulation.
package agc

import (
	"context"
	"math"

	"github.com/aldahabi27/bspssepy-go/bspssepyerr"
	"github.com/aldahabi27/bspssepy-go/registry"
	"github.com/aldahabi27/bspssepy-go/solver"
)

// Config holds the tunables named in the design's AGC formulas.
type Config struct {
	BaseFreqHz           float64
	DeadbandHz           float64
	DeadbandRateHzPerSec float64
	TAGCSec              float64
}

// Controller runs one AGC evaluation per framework tick. It keeps the
// previous tick's per-generator Δf to compute the frequency rate of
// change; this is the only state it carries across ticks.
type Controller struct {
	cfg           Config
	prevDeltaFreq map[string]float64
}

// New returns a Controller configured with cfg.
func New(cfg Config) *Controller {
	return &Controller{cfg: cfg, prevDeltaFreq: make(map[string]float64)}
}

// TickResult summarizes one AGC evaluation for logging/snapshotting.
type TickResult struct {
	FrequencyRegulated bool
	DeltaFreqBarHz     float64
	RateBarHzPerSec    float64
}

// Tick evaluates every InService generator's frequency channel, applies
// the no-action deadband test, rescales participation factors across
// the active set, and emits increment_gref adjustments for every
// participating generator when the system is outside the deadband.
func (c *Controller) Tick(ctx context.Context, t, dtFw float64, reg *registry.Registry, gw solver.Gateway) (TickResult, error) {
	gens := reg.Generators()

	var eligible []*registry.Generator
	for _, g := range gens {
		if g.Phase == registry.PhaseInService {
			eligible = append(eligible, g)
		}
	}
	if len(eligible) == 0 {
		return TickResult{FrequencyRegulated: true}, nil
	}

	deltaFreqs := make(map[string]float64, len(eligible))
	rates := make(map[string]float64, len(eligible))
	var sumDelta, sumRate float64

	for _, g := range eligible {
		fRaw, err := gw.ReadChannel(ctx, g.Channels.Freq)
		if err != nil {
			return TickResult{}, bspssepyerr.New(bspssepyerr.KindSolverError, "AGC.Tick", err)
		}
		if math.IsNaN(fRaw) {
			return TickResult{}, bspssepyerr.New(bspssepyerr.KindFrequencyUnavailable, "AGC.Tick", nil)
		}

		var df float64
		if math.Abs(fRaw) < 1.0 {
			// Heuristic: a channel magnitude under 1 is reporting in
			// per-unit.
			df = (fRaw - 1) * c.cfg.BaseFreqHz
		} else {
			df = fRaw - c.cfg.BaseFreqHz
		}

		prev := c.prevDeltaFreq[g.Name]
		rate := math.Abs(df-prev) / dtFw

		deltaFreqs[g.Name] = df
		rates[g.Name] = rate
		sumDelta += df
		sumRate += rate
	}

	deltaBar := sumDelta / float64(len(eligible))
	rateBar := sumRate / float64(len(eligible))

	var nTotal, nActive int
	for _, g := range gens {
		if g.AGCAlpha > 0 {
			nTotal++
			if g.Phase == registry.PhaseInService {
				nActive++
			}
		}
	}

	regulated := math.Abs(deltaBar) < c.cfg.DeadbandHz/c.cfg.BaseFreqHz && rateBar < c.cfg.DeadbandRateHzPerSec

	for _, g := range gens {
		row, ok := reg.AGCRow(g.Name)
		if !ok {
			continue
		}
		if g.AGCAlpha <= 0 || g.Phase != registry.PhaseInService {
			row.Alpha = 0
			row.EffectiveAlpha = 0
			continue
		}
		effAlpha := g.AGCAlpha
		if nActive > 0 {
			effAlpha = g.AGCAlpha * float64(nTotal) / float64(nActive)
		}
		row.Alpha = g.AGCAlpha
		row.EffectiveAlpha = effAlpha
		row.DeltaFreqHz = deltaFreqs[g.Name]
		row.DeltaFreqRateHzPerSec = rates[g.Name]
	}

	if !regulated {
		for _, g := range eligible {
			if g.AGCAlpha <= 0 {
				continue
			}
			row, ok := reg.AGCRow(g.Name)
			if !ok {
				continue
			}
			deltaMW := -row.EffectiveAlpha * deltaBar * g.EffectiveBias() * (dtFw / c.cfg.TAGCSec)

			curMW, err := gw.ReadChannel(ctx, g.Channels.Pelec)
			if err != nil {
				return TickResult{}, bspssepyerr.New(bspssepyerr.KindSolverError, "AGC.Tick", err)
			}
			newMW := curMW + deltaMW
			if newMW < 0 {
				newMW = 0
			}
			actualDeltaMW := newMW - curMW
			row.DeltaPG_MW = actualDeltaMW
			if actualDeltaMW == 0 || g.MVABase == 0 {
				continue
			}
			if err := gw.IncrementGref(ctx, g.Name, actualDeltaMW/g.MVABase); err != nil {
				return TickResult{}, bspssepyerr.New(bspssepyerr.KindSolverError, "AGC.Tick", err)
			}
		}
	} else {
		for _, g := range eligible {
			if row, ok := reg.AGCRow(g.Name); ok {
				row.DeltaPG_MW = 0
			}
		}
	}

	for _, g := range eligible {
		c.prevDeltaFreq[g.Name] = deltaFreqs[g.Name]
	}

	return TickResult{FrequencyRegulated: regulated, DeltaFreqBarHz: deltaBar, RateBarHzPerSec: rateBar}, nil
}
