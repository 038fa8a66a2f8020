// Package solver defines the Solver Gateway (C1): a uniform typed API over
// the external Electrical Solver (a PSS/E-class dynamic power-flow engine).
// The real engine is an external collaborator; this package only defines
// the contract plus an in-memory FakeGateway used by tests, demos and
// integrations that do not yet have a live solver attached.
package solver

import (
	"context"

	"github.com/aldahabi27/bspssepy-go/channel"
)

// BusState is the solver-mirrored snapshot of a bus at registration time.
type BusState struct {
	Number int
	Name   string
	Type   int // 1..4, see registry.BusType
}

// BranchState is the solver-mirrored snapshot of a branch or two-winding
// transformer at registration time; the two device kinds share this shape.
type BranchState struct {
	Name     string
	FromBus  int
	ToBus    int
	ID       string
	Closed   bool
}

// LoadState is the solver-mirrored snapshot of a load at registration time.
type LoadState struct {
	Name  string
	ID    string
	Bus   int
	// Power is [PL, QL, IP, IQ, YP, YQ] per spec.md §3.
	Power   [6]float64
	Enabled bool
}

// GeneratorState is the solver-mirrored snapshot of a generator at
// registration time.
type GeneratorState struct {
	Name    string
	Bus     int
	MVABase float64
}

// IBRState is the solver-mirrored snapshot of an inverter-based resource.
type IBRState struct {
	Name string
	Bus  int
}

// Gateway is the uniform typed API the Action Dispatcher, Device
// Operations, Generator Lifecycle and AGC Controller use to read and
// mutate the external Electrical Solver. All calls are expected to be
// serialized by the caller (§5): the underlying solver is not reentrant.
type Gateway interface {
	// Initial device queries, used once at Registry construction.
	InitialBuses(ctx context.Context) ([]BusState, error)
	InitialBranches(ctx context.Context) ([]BranchState, error)
	InitialTransformers(ctx context.Context) ([]BranchState, error)
	InitialLoads(ctx context.Context) ([]LoadState, error)
	InitialGenerators(ctx context.Context) ([]GeneratorState, error)
	InitialIBRs(ctx context.Context) ([]IBRState, error)

	// RegisterChannel assigns an immutable channel index and begins
	// tracking the named time series.
	RegisterChannel(ctx context.Context, name string, typ channel.Type, busNumber int, deviceID string, baseValue float64) (int, error)

	// ReadChannel returns the most recently solved value for idx.
	ReadChannel(ctx context.Context, idx int) (float64, error)

	// Device status mutation primitives (§4.3 Device Operations wrap
	// these; they do not call the solver directly except through here).
	CloseBus(ctx context.Context, number int, restoreType int) error
	TripBus(ctx context.Context, number int) error
	ChangeBusType(ctx context.Context, number int, newType int) error

	CloseBranch(ctx context.Context, name string) error
	TripBranch(ctx context.Context, name string) error
	CloseTransformer(ctx context.Context, name string) error
	TripTransformer(ctx context.Context, name string) error

	EnableLoad(ctx context.Context, name string) error
	DisableLoad(ctx context.Context, name string) error
	NewLoad(ctx context.Context, name string, bus int, power [6]float64) error

	EnableIBR(ctx context.Context, name string) error
	DisableIBR(ctx context.Context, name string) error
	SetIBRPower(ctx context.Context, name string, p, q float64) error

	SetGref(ctx context.Context, genName string, valuePU float64) error
	IncrementGref(ctx context.Context, genName string, deltaPU float64) error
	SetVref(ctx context.Context, genName string, valuePU float64) error

	// AdvanceTo runs the solver forward, in internal dt_sol steps, until
	// its clock reaches simTimeSec. It must never regress solver time.
	AdvanceTo(ctx context.Context, simTimeSec float64) error

	// Now returns the solver's current simulated time in seconds.
	Now() float64
}
