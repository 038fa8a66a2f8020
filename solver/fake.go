package solver

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aldahabi27/bspssepy-go/bspssepyerr"
	"github.com/aldahabi27/bspssepy-go/channel"
)

// channelRecord is FakeGateway's bookkeeping for one registered channel.
type channelRecord struct {
	name      string
	typ       channel.Type
	busNumber int
	deviceID  string
	value     float64
}

type busRec struct {
	number      int
	name        string
	typ         int
	initialType int
}

type branchRec struct {
	name     string
	fromBus  int
	toBus    int
	id       string
	closed   bool
	isXfmr   bool
}

type loadRec struct {
	name    string
	id      string
	bus     int
	power   [6]float64
	enabled bool
}

type genRec struct {
	name     string
	bus      int
	mvaBase  float64
	grefPU   float64
	vrefPU   float64
}

type ibrRec struct {
	name    string
	bus     int
	enabled bool
	p, q    float64
}

// FakeGateway is an in-memory Gateway implementation for tests, demos and
// integrations without a live PSS/E-class engine attached. It models
// device status transitions faithfully but approximates electrical
// dynamics: generator active power tracks gref instantly (the governor
// model itself is explicitly out of scope, per spec.md Non-goals) and
// frequency channels hold whatever SetChannelValue last scripted, or a
// flat nominal default.
type FakeGateway struct {
	mu sync.Mutex

	now        float64
	baseFreqHz float64

	buses       map[int]*busRec
	branches    map[string]*branchRec
	loads       map[string]*loadRec
	gens        map[string]*genRec
	ibrs        map[string]*ibrRec

	channels    []*channelRecord
	channelIdx  map[string]int // name -> index, for SetChannelValue
	pelecByGen  map[string]int // gen name -> Pelec channel index, auto-updated on gref change
	freqByGen   map[string]int // gen name -> Frequency channel index
}

// NewFakeGateway returns an empty fixture. Use the Add* builder methods to
// seed devices before calling Initial*, matching how a real solver's
// initial case load would populate the same tables.
func NewFakeGateway(baseFreqHz float64) *FakeGateway {
	return &FakeGateway{
		baseFreqHz: baseFreqHz,
		buses:      make(map[int]*busRec),
		branches:   make(map[string]*branchRec),
		loads:      make(map[string]*loadRec),
		gens:       make(map[string]*genRec),
		ibrs:       make(map[string]*ibrRec),
		channelIdx: make(map[string]int),
		pelecByGen: make(map[string]int),
		freqByGen:  make(map[string]int),
	}
}

// --- fixture builders -------------------------------------------------

func (g *FakeGateway) AddBus(number int, name string, typ int) {
	g.buses[number] = &busRec{number: number, name: name, typ: typ, initialType: typ}
}

func (g *FakeGateway) AddBranch(name string, fromBus, toBus int, id string, closed bool) {
	g.branches[name] = &branchRec{name: name, fromBus: fromBus, toBus: toBus, id: id, closed: closed}
}

func (g *FakeGateway) AddTransformer(name string, fromBus, toBus int, id string, closed bool) {
	g.branches[name] = &branchRec{name: name, fromBus: fromBus, toBus: toBus, id: id, closed: closed, isXfmr: true}
}

func (g *FakeGateway) AddLoad(name, id string, bus int, power [6]float64, enabled bool) {
	g.loads[name] = &loadRec{name: name, id: id, bus: bus, power: power, enabled: enabled}
}

func (g *FakeGateway) AddGenerator(name string, bus int, mvaBase float64) {
	g.gens[name] = &genRec{name: name, bus: bus, mvaBase: mvaBase}
}

func (g *FakeGateway) AddIBR(name string, bus int) {
	g.ibrs[name] = &ibrRec{name: name, bus: bus}
}

// --- initial queries ----------------------------------------------------

func (g *FakeGateway) InitialBuses(_ context.Context) ([]BusState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]BusState, 0, len(g.buses))
	for _, b := range g.buses {
		out = append(out, BusState{Number: b.number, Name: b.name, Type: b.typ})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (g *FakeGateway) InitialBranches(_ context.Context) ([]BranchState, error) {
	return g.branchStates(false), nil
}

func (g *FakeGateway) InitialTransformers(_ context.Context) ([]BranchState, error) {
	return g.branchStates(true), nil
}

func (g *FakeGateway) branchStates(xfmr bool) []BranchState {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []BranchState
	for _, b := range g.branches {
		if b.isXfmr != xfmr {
			continue
		}
		out = append(out, BranchState{Name: b.name, FromBus: b.fromBus, ToBus: b.toBus, ID: b.id, Closed: b.closed})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (g *FakeGateway) InitialLoads(_ context.Context) ([]LoadState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]LoadState, 0, len(g.loads))
	for _, l := range g.loads {
		out = append(out, LoadState{Name: l.name, ID: l.id, Bus: l.bus, Power: l.power, Enabled: l.enabled})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (g *FakeGateway) InitialGenerators(_ context.Context) ([]GeneratorState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]GeneratorState, 0, len(g.gens))
	for _, gr := range g.gens {
		out = append(out, GeneratorState{Name: gr.name, Bus: gr.bus, MVABase: gr.mvaBase})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (g *FakeGateway) InitialIBRs(_ context.Context) ([]IBRState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]IBRState, 0, len(g.ibrs))
	for _, i := range g.ibrs {
		out = append(out, IBRState{Name: i.name, Bus: i.bus})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- channels -------------------------------------------------------------

func (g *FakeGateway) RegisterChannel(_ context.Context, name string, typ channel.Type, busNumber int, deviceID string, baseValue float64) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if idx, ok := g.channelIdx[name]; ok {
		return idx, nil
	}
	idx := len(g.channels)
	if typ == channel.TypeFrequency && baseValue == 0 {
		baseValue = g.baseFreqHz
	}
	g.channels = append(g.channels, &channelRecord{name: name, typ: typ, busNumber: busNumber, deviceID: deviceID, value: baseValue})
	g.channelIdx[name] = idx
	switch typ {
	case channel.TypePelec:
		g.pelecByGen[deviceID] = idx
	case channel.TypeFrequency:
		g.freqByGen[deviceID] = idx
	}
	return idx, nil
}

func (g *FakeGateway) ReadChannel(_ context.Context, idx int) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if idx < 0 || idx >= len(g.channels) {
		return 0, bspssepyerr.New(bspssepyerr.KindSolverError, "ReadChannel", fmt.Errorf("channel index %d out of range", idx))
	}
	return g.channels[idx].value, nil
}

// SetChannelValue is a test/demo hook that scripts a channel's value
// directly, e.g. to simulate a frequency excursion (S3) or a specific
// power reading. It bypasses the gref-tracking auto-update.
func (g *FakeGateway) SetChannelValue(name string, value float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	idx, ok := g.channelIdx[name]
	if !ok {
		return fmt.Errorf("unknown channel %q", name)
	}
	g.channels[idx].value = value
	return nil
}

// --- bus mutation ---------------------------------------------------------

func (g *FakeGateway) CloseBus(_ context.Context, number int, restoreType int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.buses[number]
	if !ok {
		return bspssepyerr.New(bspssepyerr.KindUnknownDevice, "CloseBus", fmt.Errorf("bus %d", number))
	}
	b.typ = restoreType
	return nil
}

func (g *FakeGateway) TripBus(_ context.Context, number int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.buses[number]
	if !ok {
		return bspssepyerr.New(bspssepyerr.KindUnknownDevice, "TripBus", fmt.Errorf("bus %d", number))
	}
	b.typ = 4
	return nil
}

func (g *FakeGateway) ChangeBusType(_ context.Context, number int, newType int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.buses[number]
	if !ok {
		return bspssepyerr.New(bspssepyerr.KindUnknownDevice, "ChangeBusType", fmt.Errorf("bus %d", number))
	}
	b.typ = newType
	return nil
}

// --- branch / transformer mutation ----------------------------------------

func (g *FakeGateway) CloseBranch(ctx context.Context, name string) error { return g.setBranch(name, false, true) }
func (g *FakeGateway) TripBranch(ctx context.Context, name string) error  { return g.setBranch(name, false, false) }
func (g *FakeGateway) CloseTransformer(ctx context.Context, name string) error {
	return g.setBranch(name, true, true)
}
func (g *FakeGateway) TripTransformer(ctx context.Context, name string) error {
	return g.setBranch(name, true, false)
}

func (g *FakeGateway) setBranch(name string, xfmr, closed bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.branches[name]
	if !ok || b.isXfmr != xfmr {
		return bspssepyerr.New(bspssepyerr.KindUnknownDevice, "setBranch", fmt.Errorf("element %q", name))
	}
	b.closed = closed
	return nil
}

// --- loads ------------------------------------------------------------

func (g *FakeGateway) EnableLoad(_ context.Context, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.loads[name]
	if !ok {
		return bspssepyerr.New(bspssepyerr.KindUnknownDevice, "EnableLoad", fmt.Errorf("load %q", name))
	}
	l.enabled = true
	return nil
}

func (g *FakeGateway) DisableLoad(_ context.Context, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.loads[name]
	if !ok {
		return bspssepyerr.New(bspssepyerr.KindUnknownDevice, "DisableLoad", fmt.Errorf("load %q", name))
	}
	l.enabled = false
	return nil
}

func (g *FakeGateway) NewLoad(_ context.Context, name string, bus int, power [6]float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.loads[name]; ok {
		return fmt.Errorf("load %q already exists", name)
	}
	g.loads[name] = &loadRec{name: name, id: "1", bus: bus, power: power, enabled: true}
	return nil
}

// --- IBRs ---------------------------------------------------------------

func (g *FakeGateway) EnableIBR(_ context.Context, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	i, ok := g.ibrs[name]
	if !ok {
		return bspssepyerr.New(bspssepyerr.KindUnknownDevice, "EnableIBR", fmt.Errorf("ibr %q", name))
	}
	i.enabled = true
	return nil
}

func (g *FakeGateway) DisableIBR(_ context.Context, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	i, ok := g.ibrs[name]
	if !ok {
		return bspssepyerr.New(bspssepyerr.KindUnknownDevice, "DisableIBR", fmt.Errorf("ibr %q", name))
	}
	i.enabled = false
	return nil
}

func (g *FakeGateway) SetIBRPower(_ context.Context, name string, p, q float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	i, ok := g.ibrs[name]
	if !ok {
		return bspssepyerr.New(bspssepyerr.KindUnknownDevice, "SetIBRPower", fmt.Errorf("ibr %q", name))
	}
	i.p, i.q = p, q
	return nil
}

// --- generator reference setpoints -----------------------------------

func (g *FakeGateway) SetGref(_ context.Context, genName string, valuePU float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	gr, ok := g.gens[genName]
	if !ok {
		return bspssepyerr.New(bspssepyerr.KindUnknownDevice, "SetGref", fmt.Errorf("generator %q", genName))
	}
	gr.grefPU = valuePU
	g.syncPelecLocked(gr)
	return nil
}

func (g *FakeGateway) IncrementGref(_ context.Context, genName string, deltaPU float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	gr, ok := g.gens[genName]
	if !ok {
		return bspssepyerr.New(bspssepyerr.KindUnknownDevice, "IncrementGref", fmt.Errorf("generator %q", genName))
	}
	gr.grefPU += deltaPU
	g.syncPelecLocked(gr)
	return nil
}

func (g *FakeGateway) SetVref(_ context.Context, genName string, valuePU float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	gr, ok := g.gens[genName]
	if !ok {
		return bspssepyerr.New(bspssepyerr.KindUnknownDevice, "SetVref", fmt.Errorf("generator %q", genName))
	}
	gr.vrefPU = valuePU
	return nil
}

// syncPelecLocked reflects gref directly onto the generator's Pelec
// channel, approximating an instantaneous governor (the real governor
// model is explicitly out of scope; see spec Non-goals).
func (g *FakeGateway) syncPelecLocked(gr *genRec) {
	idx, ok := g.pelecByGen[gr.name]
	if !ok {
		return
	}
	g.channels[idx].value = gr.grefPU * gr.mvaBase
}

// --- clock -------------------------------------------------------------

func (g *FakeGateway) AdvanceTo(_ context.Context, simTimeSec float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if simTimeSec < g.now {
		return bspssepyerr.New(bspssepyerr.KindSolverError, "AdvanceTo", fmt.Errorf("time would regress: %f < %f", simTimeSec, g.now))
	}
	g.now = simTimeSec
	return nil
}

func (g *FakeGateway) Now() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.now
}

var _ Gateway = (*FakeGateway)(nil)
