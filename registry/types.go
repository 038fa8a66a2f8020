// Package registry implements the Device Registry (C2): in-memory tables
// for buses, branches, transformers, loads, generators, IBRs and AGC rows.
// Each row carries both solver-mirrored fields (kept in sync with the
// Solver Gateway) and framework-owned fields (status, last action,
// simulation notes). Rows are mutated by the ops, lifecycle and agc
// packages; Registry itself only stores and reads.
package registry

// Kind identifies one of the six device tables.
type Kind string

const (
	KindBus         Kind = "BUS"
	KindBranch      Kind = "BRN"
	KindTransformer Kind = "TRN"
	KindLoad        Kind = "LOAD"
	KindGenerator   Kind = "GEN"
	KindIBR         Kind = "IBR"
)

// BusStatus is the framework-owned status of a bus.
type BusStatus string

const (
	BusInitialized BusStatus = "Initialized"
	BusClosed      BusStatus = "Closed"
	BusTripped     BusStatus = "Tripped"
)

// BusType codes, mirrored from the solver: 1 load, 2 generator (PV), 3
// swing, 4 tripped/isolated.
const (
	BusTypeLoad      = 1
	BusTypeGenerator = 2
	BusTypeSwing     = 3
	BusTypeTripped   = 4
)

// ElementStatus is the framework-owned status shared by branches and
// transformers (identical shape per spec.md §3).
type ElementStatus string

const (
	ElementInitialized ElementStatus = "Initialized"
	ElementClosed      ElementStatus = "Closed"
	ElementTripped      ElementStatus = "Tripped"
)

// LoadStatus is the framework-owned status of a load.
type LoadStatus string

const (
	LoadInitialized LoadStatus = "Initialized"
	LoadEnabled     LoadStatus = "Enabled"
	LoadDisabled    LoadStatus = "Disabled"
)

// GenPhase is the Generator Lifecycle's 4-phase state, kept as an
// explicit int-backed enum for CSV/plan wire compatibility (§9 design
// note) while still giving a readable String().
type GenPhase int

const (
	PhaseOff GenPhase = iota
	PhaseCranking
	PhaseRamping
	PhaseInService
)

func (p GenPhase) String() string {
	switch p {
	case PhaseOff:
		return "Off"
	case PhaseCranking:
		return "Cranking"
	case PhaseRamping:
		return "Ramping"
	case PhaseInService:
		return "InService"
	default:
		return "Unknown"
	}
}

// GenType distinguishes black-start from non-black-start units.
type GenType string

const (
	GenTypeBS  GenType = "BS"
	GenTypeNBS GenType = "NBS"
)

// ConnectionType names the kind of element connecting a generator to its
// bus: a plain branch or a step-up transformer.
type ConnectionType string

const (
	ConnectionBranch      ConnectionType = "BRN"
	ConnectionTransformer ConnectionType = "TRN"
)

// GenConnection describes the element that a Generator Lifecycle closes
// to bring a non-black-start unit onto the grid.
type GenConnection struct {
	Type        ConnectionType
	ElementName string
	FromBus     int
	ToBus       int
	ElementID   string
}

// GenChannels names the channel indices a generator's lifecycle and AGC
// controller read/mutate.
type GenChannels struct {
	Gref, Vref, Pelec, Qelec, Pmech, Freq int
}

// Bus mirrors spec.md §3's Bus entity.
type Bus struct {
	Number         int
	Name           string
	Type           int
	InitialType    int // set once at load, never mutated afterward
	Status         BusStatus
	LastAction     string
	LastActionTime float64
}

// Element mirrors spec.md §3's Branch/Transformer entity (identical
// shape for both kinds).
type Element struct {
	Name           string
	FromBus        int
	ToBus          int
	ID             string
	IsTransformer  bool
	Status         ElementStatus
	GenControlled  bool
	LastAction     string
	LastActionTime float64
}

// LoadPower is the six solver-mirrored power components of a load.
type LoadPower struct {
	PL, QL, IP, IQ, YP, YQ float64
}

// Load mirrors spec.md §3's Load entity.
type Load struct {
	Name             string
	ID               string
	Bus              int
	Status           LoadStatus
	Power            LoadPower
	TiedDeviceName   string
	TiedDeviceType   string
	LastAction       string
	LastActionTime   float64
}

// IsCrankingLoadFor reports whether this load is the cranking load of a
// generator configured with the given LoadName (spec.md §3: "a load
// whose name matches a generator's configured loadName is the
// generator's cranking load").
func (l *Load) IsCrankingLoadFor(genLoadName string) bool {
	return genLoadName != "" && l.Name == genLoadName
}

// Generator mirrors spec.md §3's Generator entity.
type Generator struct {
	Name     string
	ID       string
	Bus      int
	MVABase  float64

	Phase   GenPhase
	GenType GenType
	LoadName string

	CrankingTimeSec     float64
	RampRateMWPerMin    float64
	CrankingPowerArray  []float64
	PopfMW              float64
	QopfMVAR            float64

	AGCAlpha       float64 // participation factor in [0,1]
	SpeedDroopR    float64
	DampingD       float64
	BiasScaling    float64
	UseGenRampRate bool
	LoadEnabledResponse bool
	LERPF          float64 // in [-1, 1]; -1 means "use effectiveAlpha"

	Connection GenConnection
	Channels   GenChannels

	LastAction     string
	LastActionTime float64

	// LastRampTickTime marks the last framework tick at which the
	// Ramping phase applied a ramp-rate step; used to derive dt_fw
	// between consecutive lifecycle re-invocations.
	LastRampTickTime float64
}

// EffectiveBias implements the glossary's "Effective bias" formula:
// biasScaling · (1/R + D).
func (g *Generator) EffectiveBias() float64 {
	if g.SpeedDroopR == 0 {
		return g.BiasScaling * g.DampingD
	}
	return g.BiasScaling * (1/g.SpeedDroopR + g.DampingD)
}

// IBRStatus is the framework-owned status of an inverter-based resource.
type IBRStatus string

const (
	IBRInitialized IBRStatus = "Initialized"
	IBREnabled     IBRStatus = "Enabled"
	IBRDisabled    IBRStatus = "Disabled"
)

// IBR models an inverter-based resource (§6 config: type, GFM flag,
// initial capacity), supplementing spec.md's device set per
// SPEC_FULL.md §4.
type IBR struct {
	Name              string
	Bus               int
	Status            IBRStatus
	GridForming       bool
	InitialCapacityMW float64
	ActiveMW          float64
	ReactiveMVAR      float64
	LastAction        string
	LastActionTime    float64
}

// AGCRow mirrors spec.md §3's AGC Row entity.
type AGCRow struct {
	GenName       string
	Alpha         float64
	EffectiveAlpha float64
	DeltaPG_MW    float64
	DeltaFreqHz   float64
	DeltaFreqRateHzPerSec float64
}
