package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/aldahabi27/bspssepy-go/bspssepyerr"
	"github.com/aldahabi27/bspssepy-go/channel"
	"github.com/aldahabi27/bspssepy-go/solver"
)

// GeneratorSeed is the per-generator configuration (spec.md §6
// `generators[]`) needed to construct a Generator row on top of the
// solver-mirrored GeneratorState.
type GeneratorSeed struct {
	Name                string
	LoadName            string
	GenType             GenType
	CrankingTimeSec     float64
	RampRateMWPerMin    float64
	CrankingPowerArray  []float64
	PopfMW              float64
	QopfMVAR            float64
	AGCAlpha            float64
	SpeedDroopR         float64
	DampingD            float64
	BiasScaling         float64
	UseGenRampRate      bool
	LoadEnabledResponse bool
	LERPF               float64
	Connection          GenConnection
}

// IBRSeed is the per-IBR configuration (spec.md §6 `ibrs[]`).
type IBRSeed struct {
	Name              string
	GridForming       bool
	InitialCapacityMW float64
}

// Registry holds every device table. Per spec.md §5, Registry is mutated
// only from the Dispatcher's single-writer task and otherwise only read;
// no internal locking is required or added.
type Registry struct {
	gw       solver.Gateway
	Channels *channel.Table

	busesByNumber map[int]*Bus
	busesByName   map[string]*Bus

	branches     map[string]*Element
	transformers map[string]*Element

	loads      map[string]*Load
	generators map[string]*Generator
	ibrs       map[string]*IBR
	agcRows    map[string]*AGCRow
}

// New constructs a Registry from the solver's initial device state plus
// the generator/IBR seeds from configuration. It registers the per-
// generator channels (gref, vref, pelec, qelec, pmech, freq) used by the
// lifecycle and AGC controller.
func New(ctx context.Context, gw solver.Gateway, genSeeds []GeneratorSeed, ibrSeeds []IBRSeed) (*Registry, error) {
	r := &Registry{
		gw:            gw,
		Channels:      channel.NewTable(),
		busesByNumber: make(map[int]*Bus),
		busesByName:   make(map[string]*Bus),
		branches:      make(map[string]*Element),
		transformers:  make(map[string]*Element),
		loads:         make(map[string]*Load),
		generators:    make(map[string]*Generator),
		ibrs:          make(map[string]*IBR),
		agcRows:       make(map[string]*AGCRow),
	}

	buses, err := gw.InitialBuses(ctx)
	if err != nil {
		return nil, bspssepyerr.New(bspssepyerr.KindSolverError, "Registry.New/InitialBuses", err)
	}
	for _, b := range buses {
		status := BusInitialized
		if b.Type == BusTypeTripped {
			status = BusTripped
		}
		r.busesByNumber[b.Number] = &Bus{
			Number:      b.Number,
			Name:        b.Name,
			Type:        b.Type,
			InitialType: b.Type,
			Status:      status,
		}
		if b.Name != "" {
			r.busesByName[b.Name] = r.busesByNumber[b.Number]
		}
	}

	branches, err := gw.InitialBranches(ctx)
	if err != nil {
		return nil, bspssepyerr.New(bspssepyerr.KindSolverError, "Registry.New/InitialBranches", err)
	}
	for _, b := range branches {
		r.branches[b.Name] = elementFromState(b, false)
	}

	xfmrs, err := gw.InitialTransformers(ctx)
	if err != nil {
		return nil, bspssepyerr.New(bspssepyerr.KindSolverError, "Registry.New/InitialTransformers", err)
	}
	for _, x := range xfmrs {
		r.transformers[x.Name] = elementFromState(x, true)
	}

	loads, err := gw.InitialLoads(ctx)
	if err != nil {
		return nil, bspssepyerr.New(bspssepyerr.KindSolverError, "Registry.New/InitialLoads", err)
	}
	for _, l := range loads {
		status := LoadInitialized
		if l.Enabled {
			status = LoadEnabled
		}
		r.loads[l.Name] = &Load{
			Name:   l.Name,
			ID:     l.ID,
			Bus:    l.Bus,
			Status: status,
			Power: LoadPower{
				PL: l.Power[0], QL: l.Power[1], IP: l.Power[2],
				IQ: l.Power[3], YP: l.Power[4], YQ: l.Power[5],
			},
		}
	}

	gens, err := gw.InitialGenerators(ctx)
	if err != nil {
		return nil, bspssepyerr.New(bspssepyerr.KindSolverError, "Registry.New/InitialGenerators", err)
	}
	gensByName := make(map[string]solver.GeneratorState, len(gens))
	for _, g := range gens {
		gensByName[g.Name] = g
	}

	for _, seed := range genSeeds {
		gs, ok := gensByName[seed.Name]
		if !ok {
			return nil, bspssepyerr.New(bspssepyerr.KindInvalidConfig, "Registry.New",
				fmt.Errorf("generator %q not present in solver case", seed.Name))
		}
		gen := &Generator{
			Name:                seed.Name,
			Bus:                 gs.Bus,
			MVABase:             gs.MVABase,
			GenType:             seed.GenType,
			LoadName:            seed.LoadName,
			CrankingTimeSec:     seed.CrankingTimeSec,
			RampRateMWPerMin:    seed.RampRateMWPerMin,
			CrankingPowerArray:  seed.CrankingPowerArray,
			PopfMW:              seed.PopfMW,
			QopfMVAR:            seed.QopfMVAR,
			AGCAlpha:            seed.AGCAlpha,
			SpeedDroopR:         seed.SpeedDroopR,
			DampingD:            seed.DampingD,
			BiasScaling:         seed.BiasScaling,
			UseGenRampRate:      seed.UseGenRampRate,
			LoadEnabledResponse: seed.LoadEnabledResponse,
			LERPF:               seed.LERPF,
			Connection:          seed.Connection,
		}

		if seed.GenType == GenTypeBS {
			gen.Phase = PhaseInService
		} else {
			gen.Phase = PhaseOff
			elem, ok := r.connectionElement(seed.Connection)
			if !ok {
				return nil, bspssepyerr.New(bspssepyerr.KindInvalidConfig, "Registry.New",
					fmt.Errorf("generator %q connection element %q not found", seed.Name, seed.Connection.ElementName))
			}
			elem.GenControlled = true
		}

		if err := r.registerGeneratorChannels(ctx, gen); err != nil {
			return nil, err
		}

		r.generators[seed.Name] = gen
		r.agcRows[seed.Name] = &AGCRow{GenName: seed.Name, Alpha: seed.AGCAlpha}
	}

	ibrs, err := gw.InitialIBRs(ctx)
	if err != nil {
		return nil, bspssepyerr.New(bspssepyerr.KindSolverError, "Registry.New/InitialIBRs", err)
	}
	ibrsByName := make(map[string]solver.IBRState, len(ibrs))
	for _, i := range ibrs {
		ibrsByName[i.Name] = i
	}
	for _, seed := range ibrSeeds {
		is, ok := ibrsByName[seed.Name]
		if !ok {
			return nil, bspssepyerr.New(bspssepyerr.KindInvalidConfig, "Registry.New",
				fmt.Errorf("ibr %q not present in solver case", seed.Name))
		}
		r.ibrs[seed.Name] = &IBR{
			Name:              seed.Name,
			Bus:               is.Bus,
			Status:            IBRInitialized,
			GridForming:       seed.GridForming,
			InitialCapacityMW: seed.InitialCapacityMW,
		}
	}

	return r, nil
}

func elementFromState(s solver.BranchState, isXfmr bool) *Element {
	status := ElementInitialized
	if s.Closed {
		status = ElementClosed
	} else {
		status = ElementTripped
	}
	return &Element{
		Name:          s.Name,
		FromBus:       s.FromBus,
		ToBus:         s.ToBus,
		ID:            s.ID,
		IsTransformer: isXfmr,
		Status:        status,
	}
}

func (r *Registry) connectionElement(c GenConnection) (*Element, bool) {
	if c.Type == ConnectionTransformer {
		e, ok := r.transformers[c.ElementName]
		return e, ok
	}
	e, ok := r.branches[c.ElementName]
	return e, ok
}

func (r *Registry) registerGeneratorChannels(ctx context.Context, gen *Generator) error {
	type spec struct {
		suffix string
		typ    channel.Type
		dst    *int
	}
	specs := []spec{
		{"gref", channel.TypeGref, &gen.Channels.Gref},
		{"vref", channel.TypeVref, &gen.Channels.Vref},
		{"pelec", channel.TypePelec, &gen.Channels.Pelec},
		{"qelec", channel.TypeQelec, &gen.Channels.Qelec},
		{"pmech", channel.TypePmech, &gen.Channels.Pmech},
		{"freq", channel.TypeFrequency, &gen.Channels.Freq},
	}
	for _, s := range specs {
		idx, err := r.gw.RegisterChannel(ctx, gen.Name+"."+s.suffix, s.typ, gen.Bus, gen.Name, 0)
		if err != nil {
			return bspssepyerr.New(bspssepyerr.KindSolverError, "Registry.registerGeneratorChannels", err)
		}
		*s.dst = idx
		r.Channels.Register(gen.Name+"."+s.suffix, s.typ, gen.Bus, gen.Name, 0)
	}
	return nil
}

// --- reads ---------------------------------------------------------------

func (r *Registry) Bus(number int) (*Bus, bool) {
	b, ok := r.busesByNumber[number]
	return b, ok
}

func (r *Registry) BusByName(name string) (*Bus, bool) {
	b, ok := r.busesByName[name]
	return b, ok
}

func (r *Registry) Branch(name string) (*Element, bool) {
	e, ok := r.branches[name]
	return e, ok
}

func (r *Registry) Transformer(name string) (*Element, bool) {
	e, ok := r.transformers[name]
	return e, ok
}

func (r *Registry) Load(name string) (*Load, bool) {
	l, ok := r.loads[name]
	return l, ok
}

func (r *Registry) Generator(name string) (*Generator, bool) {
	g, ok := r.generators[name]
	return g, ok
}

func (r *Registry) IBR(name string) (*IBR, bool) {
	i, ok := r.ibrs[name]
	return i, ok
}

func (r *Registry) AGCRow(genName string) (*AGCRow, bool) {
	a, ok := r.agcRows[genName]
	return a, ok
}

// Generators returns every generator, sorted by name for deterministic
// iteration (AGC and the load-enabled feed-forward both iterate the
// full set each tick).
func (r *Registry) Generators() []*Generator {
	out := make([]*Generator, 0, len(r.generators))
	for _, g := range r.generators {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AGCRows returns every AGC row, sorted by generator name.
func (r *Registry) AGCRows() []*AGCRow {
	out := make([]*AGCRow, 0, len(r.agcRows))
	for _, a := range r.agcRows {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GenName < out[j].GenName })
	return out
}

// ElementsAdjacentToBus returns every branch and transformer (closed or
// not) with fromBus or toBus equal to number. Used by the Generator
// Lifecycle's premature-energization check and by BRN/TRN.close's
// recursive tripped-end-bus handling.
func (r *Registry) ElementsAdjacentToBus(number int) []*Element {
	var out []*Element
	for _, e := range r.branches {
		if e.FromBus == number || e.ToBus == number {
			out = append(out, e)
		}
	}
	for _, e := range r.transformers {
		if e.FromBus == number || e.ToBus == number {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Buses returns every bus, sorted by number.
func (r *Registry) Buses() []*Bus {
	out := make([]*Bus, 0, len(r.busesByNumber))
	for _, b := range r.busesByNumber {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// Branches returns every branch, sorted by name.
func (r *Registry) Branches() []*Element {
	return sortedElements(r.branches)
}

// Transformers returns every transformer, sorted by name.
func (r *Registry) Transformers() []*Element {
	return sortedElements(r.transformers)
}

func sortedElements(m map[string]*Element) []*Element {
	out := make([]*Element, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Loads returns every load, sorted by name.
func (r *Registry) Loads() []*Load {
	out := make([]*Load, 0, len(r.loads))
	for _, l := range r.loads {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// IBRs returns every IBR, sorted by name.
func (r *Registry) IBRs() []*IBR {
	out := make([]*IBR, 0, len(r.ibrs))
	for _, i := range r.ibrs {
		out = append(out, i)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// NewLoadRow inserts a framework-side row for a load created at runtime
// by LOAD.new (§4.3). Used only by the ops package.
func (r *Registry) NewLoadRow(l *Load) {
	r.loads[l.Name] = l
}
