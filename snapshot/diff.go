package snapshot

import "github.com/aldahabi27/bspssepy-go/dispatcher"

// Diff is the minimal update a consumer (UI, log sink) needs to apply
// after one tick: either a FullReset (first publish, or a table's shape
// changed) or the cell-wise changes since the previous snapshot.
type Diff struct {
	RunID     string `json:"runId"`
	Time      float64 `json:"time"`
	FullReset bool    `json:"fullReset"`

	// Present only when FullReset is true.
	Full *dispatcher.StateSnapshot `json:"full,omitempty"`

	// Present only when FullReset is false: the rows whose contents
	// differ from the previous snapshot, keyed by table.
	ChangedActions    []dispatcher.ActionRow    `json:"changedActions,omitempty"`
	ChangedGenerators []dispatcher.GeneratorRow `json:"changedGenerators,omitempty"`
	ChangedAGC        []dispatcher.AGCRow       `json:"changedAGC,omitempty"`
}

// Diff computes the shape-then-cell-wise diff between prev and next
// (§4.6). haveSeen is false only for the very first snapshot of a run,
// which is always a FullReset.
func Diff(prev, next dispatcher.StateSnapshot, haveSeen bool) Diff {
	d := Diff{RunID: next.RunID, Time: next.Time}

	if !haveSeen || len(prev.Actions) != len(next.Actions) ||
		len(prev.Generators) != len(next.Generators) || len(prev.AGC) != len(next.AGC) {
		d.FullReset = true
		full := next
		d.Full = &full
		return d
	}

	for i, row := range next.Actions {
		if row != prev.Actions[i] {
			d.ChangedActions = append(d.ChangedActions, row)
		}
	}
	for i, row := range next.Generators {
		if row != prev.Generators[i] {
			d.ChangedGenerators = append(d.ChangedGenerators, row)
		}
	}
	for i, row := range next.AGC {
		if row != prev.AGC[i] {
			d.ChangedAGC = append(d.ChangedAGC, row)
		}
	}
	return d
}
