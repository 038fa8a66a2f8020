// Package channel models the Electrical Solver's named scalar time series
// (§3 Channel entity) and the bus/flag-driven subscription rules of
// spec.md §6 that decide which channels get registered at startup.
package channel

import "fmt"

// Type identifies the physical quantity a channel carries.
type Type string

const (
	TypeFrequency Type = "Frequency"
	TypeVoltage   Type = "Voltage"
	TypePower     Type = "Power"
	TypeGref      Type = "Gref"
	TypeVref      Type = "Vref"
	TypePelec     Type = "Pelec"
	TypeQelec     Type = "Qelec"
	TypePmech     Type = "Pmech"
)

// Channel is a single registered time series. Index is assigned by the
// Solver Gateway at registration and is immutable afterward.
type Channel struct {
	Index      int
	Type       Type
	BusNumber  int    // 0 if not bus-scoped
	DeviceID   string // "" if not device-scoped
	BaseValue  float64
}

// Flag selects which buses get voltage/frequency channels when the
// explicit monitor lists in config are overridden, per spec.md §6:
//
//	0: as-listed  1: gen buses  2: xfmr buses  3: gen+xfmr  4: load buses  5: all
type Flag int

const (
	FlagAsListed Flag = iota
	FlagGenBuses
	FlagXfmrBuses
	FlagGenAndXfmrBuses
	FlagLoadBuses
	FlagAllBuses
)

// BusSets carries the distinct bus-number sets needed to resolve a Flag.
// Registry populates this from its own tables before calling
// ResolveSubscriptions.
type BusSets struct {
	GenBuses  []int
	XfmrBuses []int
	LoadBuses []int
	AllBuses  []int
}

// ResolveSubscriptions returns the bus numbers that should receive a
// channel of the given flag/explicit-list combination. When flag is
// FlagAsListed, explicit is returned deduplicated and sorted ascending.
func ResolveSubscriptions(flag Flag, explicit []int, sets BusSets) ([]int, error) {
	switch flag {
	case FlagAsListed:
		return dedupeSorted(explicit), nil
	case FlagGenBuses:
		return dedupeSorted(sets.GenBuses), nil
	case FlagXfmrBuses:
		return dedupeSorted(sets.XfmrBuses), nil
	case FlagGenAndXfmrBuses:
		return dedupeSorted(append(append([]int{}, sets.GenBuses...), sets.XfmrBuses...)), nil
	case FlagLoadBuses:
		return dedupeSorted(sets.LoadBuses), nil
	case FlagAllBuses:
		return dedupeSorted(sets.AllBuses), nil
	default:
		return nil, fmt.Errorf("unknown channel subscription flag %d", flag)
	}
}

func dedupeSorted(in []int) []int {
	seen := make(map[int]struct{}, len(in))
	out := make([]int, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	// simple insertion sort; subscription lists are small
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// Table is an in-memory registry of registered channels, keyed by a
// caller-chosen logical name (e.g. "GEN2.freq", "Bus7.voltage").
type Table struct {
	byName map[string]*Channel
	next   int
}

// NewTable returns an empty channel table.
func NewTable() *Table {
	return &Table{byName: make(map[string]*Channel)}
}

// Register assigns the next channel index and stores the channel under
// name. Registering the same name twice returns the existing channel
// without allocating a new index.
func (t *Table) Register(name string, typ Type, busNumber int, deviceID string, baseValue float64) *Channel {
	if existing, ok := t.byName[name]; ok {
		return existing
	}
	c := &Channel{
		Index:     t.next,
		Type:      typ,
		BusNumber: busNumber,
		DeviceID:  deviceID,
		BaseValue: baseValue,
	}
	t.byName[name] = c
	t.next++
	return c
}

// Get returns the channel registered under name, if any.
func (t *Table) Get(name string) (*Channel, bool) {
	c, ok := t.byName[name]
	return c, ok
}

// Len returns the number of registered channels.
func (t *Table) Len() int { return len(t.byName) }

// Names returns every registered channel name, in registration order.
func (t *Table) Names() []string {
	names := make([]string, len(t.byName))
	for name, c := range t.byName {
		names[c.Index] = name
	}
	return names
}
