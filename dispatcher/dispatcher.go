// Package dispatcher implements the Action Dispatcher (C6): the single
// task that owns the framework clock, evaluates the control plan against
// the configured scheduling mode, advances the Generator Lifecycle and
// AGC Controller each tick, and exposes the most recently composed
// StateSnapshot. Grounded on processor/task-dispatcher/component.go's
// run-loop and atomic-counter idioms, adapted from NATS message
// dispatch to framework-tick plan evaluation.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/aldahabi27/bspssepy-go/agc"
	"github.com/aldahabi27/bspssepy-go/bspssepyerr"
	"github.com/aldahabi27/bspssepy-go/config"
	"github.com/aldahabi27/bspssepy-go/ops"
	"github.com/aldahabi27/bspssepy-go/registry"
	"github.com/aldahabi27/bspssepy-go/solver"
)

// ActionStatus is an action's position in the NotStarted->InProgress->
// Completed state machine, or the terminal Skipped variant. Kept
// int-backed for CSV/plan wire compatibility per the design's "state
// machines as explicit enums" note.
type ActionStatus int

const (
	StatusNotStarted ActionStatus = 0
	StatusInProgress  ActionStatus = 1
	StatusCompleted   ActionStatus = 2
	StatusSkipped     ActionStatus = -999
)

func (s ActionStatus) String() string {
	switch s {
	case StatusNotStarted:
		return "NotStarted"
	case StatusInProgress:
		return "InProgress"
	case StatusCompleted:
		return "Completed"
	case StatusSkipped:
		return "Skipped"
	default:
		return "Unknown"
	}
}

// PlanRow is one canonicalized control-plan entry, as produced by the
// planio package's CSV parser (or constructed directly by tests/embedders).
type PlanRow struct {
	DeviceType registry.Kind
	IDType     string // "Name" or "Number"
	IDValue    string
	ActionType ops.ActionType
	ActionTime float64
	Values     map[string]float64

	// TieKey groups rows the plan author explicitly ties together (the
	// "Tie Group" CSV column), or that share the same element chain when
	// BypassTiedActions is set (computed by Load, below). Empty means
	// "not explicitly tied"; rows may still be tied implicitly by
	// TieActionsByExecutionTime sharing ActionTime.
	TieKey string

	// TiedDeviceType/TiedDeviceName decode the "Tie Target" CSV column:
	// LOAD.new's `ties` argument (spec.md §4), naming the device a new
	// load is wired to. Empty for every other action type.
	TiedDeviceType registry.Kind
	TiedDeviceName string
}

// Action is a loaded PlanRow plus its runtime execution state.
type Action struct {
	PlanRow
	Seq                  int
	Status               ActionStatus
	StartTime            float64
	EndTime              float64
	Notes                string
	CorrelationID        string
	effectiveActionTime  float64
}

// Dispatcher drives one restoration run: a single framework-tick loop
// that owns the Registry and is its only mutator (spec.md §5).
type Dispatcher struct {
	cfg    *config.Config
	reg    *registry.Registry
	gw     solver.Gateway
	agcCtl *agc.Controller
	logger *slog.Logger

	runID   string
	actions []*Action

	t              float64
	lastFreqHz     float64
	quietUntilTime float64 // dispatcher-level delay_agc_after_action gate

	lastSnapshot StateSnapshot
	startedAt    time.Time
}

// New builds a Dispatcher over an already-constructed Registry and
// Gateway. Callers must have called lifecycle.Register() beforehand so
// GEN.on/GEN.off resolve in the ops dispatch table.
func New(cfg *config.Config, reg *registry.Registry, gw solver.Gateway, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		cfg: cfg,
		reg: reg,
		gw:  gw,
		agcCtl: agc.New(agc.Config{
			BaseFreqHz:           cfg.Sim.BaseFreqHz,
			DeadbandHz:           cfg.Sim.AGCDeadbandHz,
			DeadbandRateHzPerSec: cfg.Sim.AGCDeadbandRateHzPerS,
			TAGCSec:              cfg.Sim.AGCTimeConstantSec,
		}),
		logger:     logger,
		runID:      uuid.New().String(),
		lastFreqHz: cfg.Sim.BaseFreqHz,
	}
}

// RunID returns the identifier assigned to this Dispatcher at
// construction, used to correlate log lines and published snapshots.
func (d *Dispatcher) RunID() string { return d.runID }

// Load assigns sequence numbers to rows (in slice order), resolves each
// row's device name against the Registry, and stores the plan. Rows are
// expected to already be canonicalized (case-insensitive aliasing is
// planio's job, not Dispatcher's).
func (d *Dispatcher) Load(rows []PlanRow) error {
	if d.cfg.Policy.ControlSequenceAsIs && !d.cfg.Policy.EnforceActionLock {
		return bspssepyerr.New(bspssepyerr.KindInvalidConfig, "Dispatcher.Load",
			fmt.Errorf("controlSequenceAsIs requires enforceActionLock"))
	}

	actions := make([]*Action, 0, len(rows))
	for i, row := range rows {
		if _, _, err := resolveTarget(d.reg, row); err != nil {
			return err
		}
		actions = append(actions, &Action{
			PlanRow:             row,
			Seq:                 i + 1,
			Status:              StatusNotStarted,
			effectiveActionTime: row.ActionTime,
			CorrelationID:       uuid.New().String(),
		})
	}

	if d.cfg.Policy.TieActionsByExecutionTime {
		byTime := make(map[float64][]*Action)
		for _, a := range actions {
			byTime[a.ActionTime] = append(byTime[a.ActionTime], a)
		}
		for _, group := range byTime {
			if len(group) < 2 {
				continue
			}
			key := fmt.Sprintf("time:%g", group[0].ActionTime)
			for _, a := range group {
				if a.TieKey == "" {
					a.TieKey = key
				}
			}
		}
	}

	if d.cfg.Policy.BypassTiedActions {
		d.tieElementChains(actions)
	}

	d.actions = actions
	return nil
}

// tieElementChains implements spec.md §4.1's third tie criterion: a
// GEN.on/GEN.off action and an action on that generator's own connection
// element (its BRN/TRN "chain") are tied together, so EnforceActionLock
// does not block one on the other even though the lifecycle issues the
// connection-element action itself rather than the plan.
func (d *Dispatcher) tieElementChains(actions []*Action) {
	for _, a := range actions {
		if a.DeviceType != registry.KindGenerator {
			continue
		}
		g, ok := d.reg.Generator(a.IDValue)
		if !ok || g.Connection.ElementName == "" {
			continue
		}
		connKind := registry.KindBranch
		if g.Connection.Type == registry.ConnectionTransformer {
			connKind = registry.KindTransformer
		}
		key := "chain:" + g.Name
		for _, other := range actions {
			if other == a {
				continue
			}
			if other.DeviceType == connKind && other.IDValue == g.Connection.ElementName {
				if a.TieKey == "" {
					a.TieKey = key
				}
				if other.TieKey == "" {
					other.TieKey = key
				}
			}
		}
	}
}

// Actions returns the loaded plan in seq order, for snapshotting/tests.
func (d *Dispatcher) Actions() []*Action { return d.actions }

// Run drives the simulation until every non-skipped action is Completed,
// the hard wall-clock limit elapses, or ctx is canceled. onTick, if
// non-nil, is invoked with the current tick's StateSnapshot, before Run
// checks for completion, once every ProgressPrintTimeMin of framework
// time (every tick when that is zero) and always on the tick where every
// action is done -- this is spec.md
// §5's publishSnapshot(t) step; a nil onTick only observes the final
// snapshot via Snapshot() after Run returns.
func (d *Dispatcher) Run(ctx context.Context, onTick func(StateSnapshot)) error {
	d.startedAt = time.Now()
	dtFw := d.cfg.Sim.BSPSSEPyTimeStepSec
	var ticksSincePrint int

	for {
		if ctx.Err() != nil {
			d.lastSnapshot = d.buildSnapshot(ctx)
			return bspssepyerr.New(bspssepyerr.KindCanceled, "Dispatcher.Run", ctx.Err())
		}
		if d.cfg.Sim.HardTimeLimitEnabled {
			if time.Since(d.startedAt) > time.Duration(d.cfg.Sim.HardTimeLimitMin*float64(time.Minute)) {
				d.lastSnapshot = d.buildSnapshot(ctx)
				return bspssepyerr.New(bspssepyerr.KindHardTimeLimitExceeded, "Dispatcher.Run", nil)
			}
		}

		if err := d.gw.AdvanceTo(ctx, d.t+dtFw); err != nil {
			return bspssepyerr.New(bspssepyerr.KindSolverError, "Dispatcher.Run", err)
		}
		d.t += dtFw

		if err := d.evaluatePlan(ctx, d.t); err != nil {
			return err
		}
		d.advanceLifecycles()
		if err := d.runAGC(ctx, d.t, dtFw); err != nil {
			return err
		}
		d.lastSnapshot = d.buildSnapshot(ctx)

		// ProgressPrintTimeMin gates onTick to roughly once per that many
		// minutes of framework time, instead of every BSPSSEPyTimeStepSec
		// tick (spec.md §5/§6's progress cadence).
		ticksSincePrint++
		printEveryNTicks := 1
		if d.cfg.Sim.ProgressPrintTimeMin > 0 && dtFw > 0 {
			printEveryNTicks = int(d.cfg.Sim.ProgressPrintTimeMin * 60 / dtFw)
			if printEveryNTicks < 1 {
				printEveryNTicks = 1
			}
		}
		if onTick != nil && (ticksSincePrint >= printEveryNTicks || d.allDone()) {
			onTick(d.lastSnapshot)
			ticksSincePrint = 0
		}

		if d.allDone() {
			return nil
		}
	}
}

// Snapshot is a lock-free read of the most recently published state; safe
// to call from any goroutine since Run only ever replaces the field with
// a freshly built value (never mutates one in place).
func (d *Dispatcher) Snapshot() StateSnapshot { return d.lastSnapshot }

func (d *Dispatcher) allDone() bool {
	for _, a := range d.actions {
		if a.Status != StatusCompleted && a.Status != StatusSkipped {
			return false
		}
	}
	return true
}

func (d *Dispatcher) anyInProgress() bool {
	for _, a := range d.actions {
		if a.Status == StatusInProgress {
			return true
		}
	}
	return false
}

// evaluatePlan walks the plan once per tick and starts or re-executes
// eligible actions per the configured scheduling mode (spec.md §4.1).
func (d *Dispatcher) evaluatePlan(ctx context.Context, t float64) error {
	freqOK := d.frequencyWithinSafety()

	order := make([]*Action, len(d.actions))
	copy(order, d.actions)
	sort.SliceStable(order, func(i, j int) bool { return order[i].Seq < order[j].Seq })

	for _, a := range order {
		switch a.Status {
		case StatusCompleted, StatusSkipped:
			continue
		case StatusInProgress:
			if err := d.execute(ctx, t, a); err != nil {
				return err
			}
			continue
		}

		// a.Status == StatusNotStarted
		if d.cfg.Policy.ControlSequenceAsIs {
			if !d.allEarlierDone(a) {
				continue
			}
		} else {
			if t < a.effectiveActionTime {
				continue
			}
			if d.cfg.Policy.EnforceActionLock && d.anyInProgress() && !d.tiedToInProgress(a) {
				continue
			}
		}

		if d.cfg.Policy.EnforceFrequencySafetyMargin && !freqOK {
			a.Notes = "DeferredForFrequency"
			continue
		}
		if t < d.quietUntilTime {
			continue
		}

		if d.cfg.Policy.AccountForActionExecutionDelays {
			if delta := t - a.effectiveActionTime; delta > 0 {
				d.shiftLaterActions(a, delta)
			}
		}

		a.Status = StatusInProgress
		a.StartTime = t
		if err := d.execute(ctx, t, a); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) allEarlierDone(a *Action) bool {
	for _, other := range d.actions {
		if other.Seq >= a.Seq {
			continue
		}
		if other.Status != StatusCompleted && other.Status != StatusSkipped {
			return false
		}
	}
	return true
}

func (d *Dispatcher) tiedToInProgress(a *Action) bool {
	if a.TieKey == "" {
		return false
	}
	for _, other := range d.actions {
		if other != a && other.TieKey == a.TieKey && other.Status == StatusInProgress {
			return true
		}
	}
	return false
}

// shiftLaterActions implements gap-preserving execution-delay absorption:
// every not-yet-started action after a gets its effective action time
// pushed by delta so the authored inter-action gaps survive.
func (d *Dispatcher) shiftLaterActions(a *Action, delta float64) {
	for _, other := range d.actions {
		if other.Seq > a.Seq && other.Status == StatusNotStarted {
			other.effectiveActionTime += delta
		}
	}
}

func (d *Dispatcher) execute(ctx context.Context, t float64, a *Action) error {
	_, sel, err := resolveTarget(d.reg, a.PlanRow)
	if err != nil {
		a.Status = StatusSkipped
		a.Notes = err.Error()
		return nil
	}
	sel.Values = a.Values
	sel.TiedDeviceType = a.TiedDeviceType
	sel.TiedDeviceName = a.TiedDeviceName

	result, err := ops.Dispatch(ctx, t, a.DeviceType, a.ActionType, sel, d.reg, d.gw)
	if err != nil {
		a.Status = StatusSkipped
		a.Notes = err.Error()
		d.logger.Warn("action skipped", slog.String("op", string(a.DeviceType)+"."+string(a.ActionType)),
			slog.String("target", a.IDValue), slog.String("error", err.Error()))
		return nil
	}
	if result == ops.Done {
		a.Status = StatusCompleted
		a.EndTime = t
		d.quietUntilTime = t + d.cfg.Policy.DelayAGCAfterActionSec
	}
	return nil
}

// advanceLifecycles is a defensive pass that surfaces the current
// Generator Lifecycle phase into any still-InProgress GEN.on/GEN.off
// action's notes; the lifecycle state machine itself advances inside
// evaluatePlan's re-invocation of the GEN op (§4.4's "Dispatcher
// re-invokes on the next framework tick").
func (d *Dispatcher) advanceLifecycles() {
	for _, a := range d.actions {
		if a.Status != StatusInProgress || a.DeviceType != registry.KindGenerator {
			continue
		}
		if g, ok := d.reg.Generator(a.IDValue); ok {
			a.Notes = g.Phase.String()
		}
	}
}

func (d *Dispatcher) runAGC(ctx context.Context, t, dtFw float64) error {
	res, err := d.agcCtl.Tick(ctx, t, dtFw, d.reg, d.gw)
	if err != nil {
		d.logger.Warn("agc tick error", slog.String("error", err.Error()))
		return nil
	}
	d.lastFreqHz = d.cfg.Sim.BaseFreqHz + res.DeltaFreqBarHz
	return nil
}

func (d *Dispatcher) frequencyWithinSafety() bool {
	return d.lastFreqHz >= d.cfg.Policy.FreqSafetyMinHz && d.lastFreqHz <= d.cfg.Policy.FreqSafetyMaxHz
}

// resolveTarget maps a PlanRow onto the device the Registry already
// tracks, returning the ops.Selectors needed to invoke the matching Op.
func resolveTarget(reg *registry.Registry, row PlanRow) (string, ops.Selectors, error) {
	sel := ops.Selectors{Name: row.IDValue, Values: row.Values}

	switch row.DeviceType {
	case registry.KindBus:
		if row.IDType == "Number" {
			n := 0
			if _, err := fmt.Sscanf(row.IDValue, "%d", &n); err != nil {
				return "", sel, bspssepyerr.New(bspssepyerr.KindMalformedRow, "resolveTarget", err)
			}
			if b, ok := reg.Bus(n); ok {
				sel.Number = n
				return b.Name, sel, nil
			}
			return "", sel, bspssepyerr.New(bspssepyerr.KindUnknownDevice, "resolveTarget", fmt.Errorf("bus %d", n))
		}
		if b, ok := reg.BusByName(row.IDValue); ok {
			sel.Number = b.Number
			return b.Name, sel, nil
		}
		return "", sel, bspssepyerr.New(bspssepyerr.KindUnknownDevice, "resolveTarget", fmt.Errorf("bus %q", row.IDValue))
	case registry.KindBranch:
		if _, ok := reg.Branch(row.IDValue); !ok {
			return "", sel, bspssepyerr.New(bspssepyerr.KindUnknownDevice, "resolveTarget", fmt.Errorf("branch %q", row.IDValue))
		}
	case registry.KindTransformer:
		if _, ok := reg.Transformer(row.IDValue); !ok {
			return "", sel, bspssepyerr.New(bspssepyerr.KindUnknownDevice, "resolveTarget", fmt.Errorf("transformer %q", row.IDValue))
		}
	case registry.KindLoad:
		if _, ok := reg.Load(row.IDValue); !ok && row.ActionType != ops.ActionNew {
			return "", sel, bspssepyerr.New(bspssepyerr.KindUnknownDevice, "resolveTarget", fmt.Errorf("load %q", row.IDValue))
		}
		if row.ActionType == ops.ActionNew {
			if busVal, ok := row.Values["Bus"]; ok {
				sel.Number = int(busVal)
			}
		}
	case registry.KindGenerator:
		if _, ok := reg.Generator(row.IDValue); !ok {
			return "", sel, bspssepyerr.New(bspssepyerr.KindUnknownDevice, "resolveTarget", fmt.Errorf("generator %q", row.IDValue))
		}
	case registry.KindIBR:
		if _, ok := reg.IBR(row.IDValue); !ok {
			return "", sel, bspssepyerr.New(bspssepyerr.KindUnknownDevice, "resolveTarget", fmt.Errorf("ibr %q", row.IDValue))
		}
	default:
		return "", sel, bspssepyerr.New(bspssepyerr.KindMalformedRow, "resolveTarget", fmt.Errorf("unknown device type %q", row.DeviceType))
	}
	return row.IDValue, sel, nil
}
