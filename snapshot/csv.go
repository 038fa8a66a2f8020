package snapshot

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"

	"github.com/aldahabi27/bspssepy-go/config"
	"github.com/aldahabi27/bspssepy-go/dispatcher"
)

// ChannelCSVWriter writes the derived per-channel time series described
// in spec.md §6 Outputs: "time (s)" as the first column, then one column
// per channel name, grounded on
// original_source/.../fun/bspssepy/plot/plot.py's channel CSV writer.
type ChannelCSVWriter struct {
	w          *csv.Writer
	f          *os.File
	names      []string
	wroteHeader bool
}

// NewChannelCSVWriter creates (or truncates) path and its parent
// directory, ready to receive rows via WriteRow.
func NewChannelCSVWriter(path string, channelNames []string) (*ChannelCSVWriter, error) {
	if err := config.EnsureParentDir(path); err != nil {
		return nil, fmt.Errorf("create channel csv directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create channel csv: %w", err)
	}
	names := append([]string(nil), channelNames...)
	sort.Strings(names)
	return &ChannelCSVWriter{w: csv.NewWriter(f), f: f, names: names}, nil
}

// WriteRow appends one row: timeSec followed by values looked up from
// readings by channel name, in the sorted header order.
func (c *ChannelCSVWriter) WriteRow(timeSec float64, readings map[string]float64) error {
	if !c.wroteHeader {
		header := append([]string{"time (s)"}, c.names...)
		if err := c.w.Write(header); err != nil {
			return fmt.Errorf("write channel csv header: %w", err)
		}
		c.wroteHeader = true
	}

	row := make([]string, 0, len(c.names)+1)
	row = append(row, fmt.Sprintf("%g", timeSec))
	for _, name := range c.names {
		row = append(row, fmt.Sprintf("%g", readings[name]))
	}
	if err := c.w.Write(row); err != nil {
		return fmt.Errorf("write channel csv row: %w", err)
	}
	c.w.Flush()
	return c.w.Error()
}

// Close flushes and closes the underlying file.
func (c *ChannelCSVWriter) Close() error {
	c.w.Flush()
	return c.f.Close()
}

// GeneratorReadings flattens a StateSnapshot's generator rows into the
// channel-name->value map WriteRow expects, using "<name>.pelec" and
// "<name>.freq" as channel names.
func GeneratorReadings(snap dispatcher.StateSnapshot) map[string]float64 {
	out := make(map[string]float64, len(snap.Generators)*2)
	for _, g := range snap.Generators {
		out[g.Name+".pelec"] = g.PelecMW
		out[g.Name+".freq"] = g.FreqHz
	}
	return out
}
