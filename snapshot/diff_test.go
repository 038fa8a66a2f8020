package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aldahabi27/bspssepy-go/dispatcher"
)

func TestDiffFirstSnapshotIsFullReset(t *testing.T) {
	next := dispatcher.StateSnapshot{RunID: "r1", Time: 1,
		Actions: []dispatcher.ActionRow{{Seq: 1, Status: dispatcher.StatusNotStarted}}}

	d := Diff(dispatcher.StateSnapshot{}, next, false)
	assert.True(t, d.FullReset)
	require.NotNil(t, d.Full)
	assert.Equal(t, "r1", d.Full.RunID)
}

func TestDiffShapeMismatchIsFullReset(t *testing.T) {
	prev := dispatcher.StateSnapshot{Actions: []dispatcher.ActionRow{{Seq: 1}}}
	next := dispatcher.StateSnapshot{Actions: []dispatcher.ActionRow{{Seq: 1}, {Seq: 2}}}

	d := Diff(prev, next, true)
	assert.True(t, d.FullReset)
}

func TestDiffReportsOnlyChangedCells(t *testing.T) {
	prev := dispatcher.StateSnapshot{
		Actions:    []dispatcher.ActionRow{{Seq: 1, Status: dispatcher.StatusInProgress}},
		Generators: []dispatcher.GeneratorRow{{Name: "GEN1", Phase: "Cranking"}},
	}
	next := dispatcher.StateSnapshot{
		Actions:    []dispatcher.ActionRow{{Seq: 1, Status: dispatcher.StatusCompleted}},
		Generators: []dispatcher.GeneratorRow{{Name: "GEN1", Phase: "Cranking"}},
	}

	d := Diff(prev, next, true)
	assert.False(t, d.FullReset)
	require.Len(t, d.ChangedActions, 1)
	assert.Equal(t, dispatcher.StatusCompleted, d.ChangedActions[0].Status)
	assert.Empty(t, d.ChangedGenerators)
}
