package dispatcher

import "context"

// ActionRow is the action-plan table's per-row projection for §4.6's
// "action-plan table with progress emoji and formatted times"; the emoji
// and time formatting themselves are a tui/snapshot rendering concern,
// not data this package owns.
type ActionRow struct {
	Seq        int
	DeviceType string
	IDValue    string
	ActionType string
	ActionTime float64
	Status     ActionStatus
	Notes      string
}

// GeneratorRow is the generator table's projection. Powers are in MW;
// MVABase is carried so a renderer can derive the p.u. values.
type GeneratorRow struct {
	Name     string
	Phase    string
	MVABase  float64
	PopfMW   float64
	PelecMW  float64
	FreqHz   float64
}

// AGCRow mirrors registry.AGCRow, rounded for display by the consumer.
type AGCRow struct {
	GenName        string
	Alpha          float64
	EffectiveAlpha float64
	DeltaPGMW      float64
	DeltaFreqHz    float64
}

// StateSnapshot is the read-only composite state the Dispatcher exposes
// each tick (§4.1 Snapshot(), §4.6 State Publisher). It never aliases
// registry internals so a caller holding a StateSnapshot cannot observe
// a subsequent tick's mutation.
type StateSnapshot struct {
	RunID string
	Time  float64

	Actions    []ActionRow
	Generators []GeneratorRow
	AGC        []AGCRow

	FrequencyHz        float64
	FrequencyRegulated bool
}

func (d *Dispatcher) buildSnapshot(ctx context.Context) StateSnapshot {
	snap := StateSnapshot{
		RunID:       d.runID,
		Time:        d.t,
		FrequencyHz: d.lastFreqHz,
	}

	for _, a := range d.actions {
		snap.Actions = append(snap.Actions, ActionRow{
			Seq:        a.Seq,
			DeviceType: string(a.DeviceType),
			IDValue:    a.IDValue,
			ActionType: string(a.ActionType),
			ActionTime: a.ActionTime,
			Status:     a.Status,
			Notes:      a.Notes,
		})
	}

	for _, g := range d.reg.Generators() {
		pelec, _ := d.gw.ReadChannel(ctx, g.Channels.Pelec)
		freq, _ := d.gw.ReadChannel(ctx, g.Channels.Freq)
		snap.Generators = append(snap.Generators, GeneratorRow{
			Name:    g.Name,
			Phase:   g.Phase.String(),
			MVABase: g.MVABase,
			PopfMW:  g.PopfMW,
			PelecMW: pelec,
			FreqHz:  freq,
		})
	}

	for _, row := range d.reg.AGCRows() {
		snap.AGC = append(snap.AGC, AGCRow{
			GenName:        row.GenName,
			Alpha:          row.Alpha,
			EffectiveAlpha: row.EffectiveAlpha,
			DeltaPGMW:      row.DeltaPG_MW,
			DeltaFreqHz:    row.DeltaFreqHz,
		})
	}

	snap.FrequencyRegulated = d.frequencyWithinSafety()
	return snap
}
