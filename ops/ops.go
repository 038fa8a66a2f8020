// Package ops implements the Device Operations (C3): per-device-kind
// primitive actions that wrap the Solver Gateway (C1) and update the
// Device Registry (C2) atomically. Every operation shares the
// (t, selectors, registry, gateway) -> (Result, error) shape from the
// design's Op-interface design note, dispatched through a static
// (Kind, ActionType) table instead of a deviceType->actionType map.
package ops

import (
	"context"

	"github.com/aldahabi27/bspssepy-go/bspssepyerr"
	"github.com/aldahabi27/bspssepy-go/registry"
	"github.com/aldahabi27/bspssepy-go/solver"
)

// Result is the outcome of a single Op invocation.
type Result int

const (
	// Done means the action's effect is fully applied; the caller should
	// mark the action Completed.
	Done Result = iota
	// Incomplete means the action is still in progress (e.g. a generator
	// is cranking); the caller re-invokes on the next framework tick.
	Incomplete
)

func (r Result) String() string {
	if r == Done {
		return "Done"
	}
	return "Incomplete"
}

// ActionType names the plan-level verb applied to a device.
type ActionType string

const (
	ActionOn     ActionType = "on"
	ActionOff    ActionType = "off"
	ActionUpdate ActionType = "update"
	ActionNew    ActionType = "new"
	ActionChangeType ActionType = "changetype"
)

// Selectors carries an operation's resolved target plus any keyed plan
// values (the `K=V;K=V` Values column, already parsed).
type Selectors struct {
	Name    string
	Number  int
	FromBus int
	ToBus   int
	Values  map[string]float64

	// TiedDeviceType/TiedDeviceName carry LOAD.new's `ties` argument: the
	// device the new load is wired to, used to resolve the load's bus
	// when no bus was given directly and recorded on the created row.
	TiedDeviceType registry.Kind
	TiedDeviceName string

	// Privileged is set by the Generator Lifecycle when it invokes an
	// operation on a genControlled element on the element owner's
	// behalf; direct plan actions never set this.
	Privileged bool
}

// Op is one (Kind, ActionType) primitive.
type Op interface {
	Do(ctx context.Context, t float64, sel Selectors, reg *registry.Registry, gw solver.Gateway) (Result, error)
}

// OpFunc adapts a plain function to the Op interface.
type OpFunc func(ctx context.Context, t float64, sel Selectors, reg *registry.Registry, gw solver.Gateway) (Result, error)

func (f OpFunc) Do(ctx context.Context, t float64, sel Selectors, reg *registry.Registry, gw solver.Gateway) (Result, error) {
	return f(ctx, t, sel, reg, gw)
}

type opKey struct {
	kind   registry.Kind
	action ActionType
}

var dispatchTable = map[opKey]Op{
	{registry.KindBus, ActionOn}:         OpFunc(busClose),
	{registry.KindBus, ActionOff}:        OpFunc(busTrip),
	{registry.KindBus, ActionChangeType}: OpFunc(busChangeType),

	{registry.KindBranch, ActionOn}:  OpFunc(branchClose),
	{registry.KindBranch, ActionOff}: OpFunc(branchTrip),

	{registry.KindTransformer, ActionOn}:  OpFunc(transformerClose),
	{registry.KindTransformer, ActionOff}: OpFunc(transformerTrip),

	{registry.KindLoad, ActionOn}:  OpFunc(loadEnable),
	{registry.KindLoad, ActionOff}: OpFunc(loadDisable),
	{registry.KindLoad, ActionNew}: OpFunc(loadNew),

	// GEN.on and GEN.off are not registered here: they run the full
	// Generator Lifecycle state machine (§4.4), which composes these
	// same primitives and registers itself into this table via
	// Register, keeping the C3->C4 dependency one-directional.
	{registry.KindGenerator, ActionUpdate}: OpFunc(genUpdate),

	{registry.KindIBR, ActionOn}:     OpFunc(ibrEnable),
	{registry.KindIBR, ActionOff}:    OpFunc(ibrDisable),
	{registry.KindIBR, ActionUpdate}: OpFunc(ibrUpdate),
}

// Lookup resolves the Op for (kind, action); ok is false for a
// combination outside the closed set in the design's Op registry table.
func Lookup(kind registry.Kind, action ActionType) (Op, bool) {
	op, ok := dispatchTable[opKey{kind, action}]
	return op, ok
}

// Register installs op as the handler for (kind, action). Used by the
// lifecycle package to install GEN.on/GEN.off, the only two entries in
// the design's Op registry table that are not pure C3 primitives.
func Register(kind registry.Kind, action ActionType, op Op) {
	dispatchTable[opKey{kind, action}] = op
}

// Dispatch resolves and invokes the Op for (kind, action) directly,
// failing with MalformedRow if the combination is not registered.
func Dispatch(ctx context.Context, t float64, kind registry.Kind, action ActionType, sel Selectors, reg *registry.Registry, gw solver.Gateway) (Result, error) {
	op, ok := Lookup(kind, action)
	if !ok {
		return Done, bspssepyerr.New(bspssepyerr.KindMalformedRow, "Dispatch",
			errUnknownOp(kind, action))
	}
	return op.Do(ctx, t, sel, reg, gw)
}

type unknownOpError struct {
	kind   registry.Kind
	action ActionType
}

func (e unknownOpError) Error() string {
	return "no operation registered for " + string(e.kind) + "." + string(e.action)
}

func errUnknownOp(kind registry.Kind, action ActionType) error {
	return unknownOpError{kind: kind, action: action}
}
