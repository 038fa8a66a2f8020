// Package tui renders a dispatcher.StateSnapshot as terminal tables,
// grounded on greg-hellings-devdashboard's
// core/pkg/report/format/console.go go-pretty usage: a rounded-style
// table.Writer per snapshot section, one status emoji column for the
// action-plan table per spec.md §4.6.
package tui

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/aldahabi27/bspssepy-go/dispatcher"
)

// Render writes every StateSnapshot table (action plan, AGC, generators)
// to w as go-pretty rounded tables.
func Render(w io.Writer, snap dispatcher.StateSnapshot) {
	fmt.Fprintf(w, "run %s  t=%.1fs  freq=%.3fHz regulated=%v\n\n",
		snap.RunID, snap.Time, snap.FrequencyHz, snap.FrequencyRegulated)

	renderActions(w, snap.Actions)
	fmt.Fprintln(w)
	renderGenerators(w, snap.Generators)
	fmt.Fprintln(w)
	renderAGC(w, snap.AGC)
}

func renderActions(w io.Writer, rows []dispatcher.ActionRow) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Seq", "Device", "ID", "Action", "Time(s)", "", "Status", "Notes"})
	for _, r := range rows {
		tw.AppendRow(table.Row{r.Seq, r.DeviceType, r.IDValue, r.ActionType,
			fmt.Sprintf("%.1f", r.ActionTime), statusEmoji(r.Status), r.Status.String(), r.Notes})
	}
	tw.Render()
}

func renderGenerators(w io.Writer, rows []dispatcher.GeneratorRow) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Generator", "Phase", "Pelec(MW)", "Pelec(pu)", "Popf(MW)", "Freq(Hz)"})
	for _, r := range rows {
		puPelec := 0.0
		if r.MVABase != 0 {
			puPelec = r.PelecMW / r.MVABase
		}
		tw.AppendRow(table.Row{r.Name, r.Phase, fmt.Sprintf("%.2f", r.PelecMW),
			fmt.Sprintf("%.4f", puPelec), fmt.Sprintf("%.2f", r.PopfMW), fmt.Sprintf("%.3f", r.FreqHz)})
	}
	tw.Render()
}

func renderAGC(w io.Writer, rows []dispatcher.AGCRow) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Generator", "Alpha", "EffAlpha", "dPG(MW)", "dFreq(Hz)"})
	for _, r := range rows {
		tw.AppendRow(table.Row{r.GenName, fmt.Sprintf("%.3f", r.Alpha), fmt.Sprintf("%.3f", r.EffectiveAlpha),
			fmt.Sprintf("%.3f", r.DeltaPGMW), fmt.Sprintf("%.3f", r.DeltaFreqHz)})
	}
	tw.Render()
}

func statusEmoji(s dispatcher.ActionStatus) string {
	switch s {
	case dispatcher.StatusNotStarted:
		return "⏳"
	case dispatcher.StatusInProgress:
		return "🔄"
	case dispatcher.StatusCompleted:
		return "✅"
	case dispatcher.StatusSkipped:
		return "⛔"
	default:
		return "?"
	}
}
