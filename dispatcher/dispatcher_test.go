package dispatcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aldahabi27/bspssepy-go/bspssepyerr"
	"github.com/aldahabi27/bspssepy-go/config"
	"github.com/aldahabi27/bspssepy-go/lifecycle"
	"github.com/aldahabi27/bspssepy-go/ops"
	"github.com/aldahabi27/bspssepy-go/registry"
	"github.com/aldahabi27/bspssepy-go/solver"
)

func init() {
	lifecycle.Register()
}

func twoBusFixture(t *testing.T) (*config.Config, *registry.Registry, *solver.FakeGateway) {
	t.Helper()
	gw := solver.NewFakeGateway(60.0)
	gw.AddBus(1, "Bus1", registry.BusTypeSwing)
	gw.AddBus(2, "Bus2", registry.BusTypeGenerator)
	gw.AddGenerator("GEN1", 1, 300)

	genSeeds := []registry.GeneratorSeed{
		{Name: "GEN1", GenType: registry.GenTypeBS, AGCAlpha: 1, SpeedDroopR: 0.05, DampingD: 1, BiasScaling: 1},
	}
	reg, err := registry.New(context.Background(), gw, genSeeds, nil)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Case.Name = "TEST"
	cfg.Sim.SimulationTimeStepSec = 1
	cfg.Sim.BSPSSEPyTimeStepSec = 1
	cfg.Sim.HardTimeLimitEnabled = false
	return cfg, reg, gw
}

func TestLoadTiesGeneratorActionToItsConnectionElementChain(t *testing.T) {
	gw := solver.NewFakeGateway(60.0)
	gw.AddBus(1, "Bus1", registry.BusTypeSwing)
	gw.AddBus(2, "Bus2", registry.BusTypeLoad)
	gw.AddBus(3, "Bus3", registry.BusTypeGenerator)
	gw.AddBranch("BRN-2-3", 2, 3, "1", false)
	gw.AddGenerator("GEN2", 3, 200)

	genSeeds := []registry.GeneratorSeed{
		{
			Name: "GEN2", GenType: registry.GenTypeNBS,
			Connection: registry.GenConnection{Type: registry.ConnectionBranch, ElementName: "BRN-2-3", FromBus: 2, ToBus: 3},
		},
	}
	reg, err := registry.New(context.Background(), gw, genSeeds, nil)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Case.Name = "TEST"
	cfg.Sim.SimulationTimeStepSec = 1
	cfg.Sim.BSPSSEPyTimeStepSec = 1
	cfg.Sim.HardTimeLimitEnabled = false
	cfg.Policy.BypassTiedActions = true
	d := New(cfg, reg, gw, nil)

	require.NoError(t, d.Load([]PlanRow{
		{DeviceType: registry.KindGenerator, IDType: "Name", IDValue: "GEN2", ActionType: ops.ActionOn, ActionTime: 10},
		{DeviceType: registry.KindBranch, IDType: "Name", IDValue: "BRN-2-3", ActionType: ops.ActionOn, ActionTime: 20},
	}))

	actions := d.Actions()
	require.Len(t, actions, 2)
	assert.NotEmpty(t, actions[0].TieKey)
	assert.Equal(t, actions[0].TieKey, actions[1].TieKey)
}

func TestLoadRejectsUnknownDevice(t *testing.T) {
	cfg, reg, gw := twoBusFixture(t)
	d := New(cfg, reg, gw, nil)

	err := d.Load([]PlanRow{
		{DeviceType: registry.KindBranch, IDType: "Name", IDValue: "BRN-NOPE", ActionType: ops.ActionOn},
	})
	require.Error(t, err)
	assert.True(t, bspssepyerr.Is(err, bspssepyerr.KindUnknownDevice))
}

func TestLoadRejectsSequentialStrictWithoutLock(t *testing.T) {
	cfg, reg, gw := twoBusFixture(t)
	cfg.Policy.ControlSequenceAsIs = true
	cfg.Policy.EnforceActionLock = false
	d := New(cfg, reg, gw, nil)

	err := d.Load(nil)
	require.Error(t, err)
}

func TestSequentialStrictOrdersBySeq(t *testing.T) {
	cfg, reg, gw := twoBusFixture(t)
	cfg.Policy.ControlSequenceAsIs = true
	cfg.Policy.EnforceActionLock = true
	d := New(cfg, reg, gw, nil)

	// seq=1 has a later actionTime than seq=2; sequential-strict must
	// still run seq=1 to completion before seq=2 starts.
	require.NoError(t, d.Load([]PlanRow{
		{DeviceType: registry.KindBus, IDType: "Name", IDValue: "Bus2", ActionType: ops.ActionOff, ActionTime: 300},
		{DeviceType: registry.KindBus, IDType: "Name", IDValue: "Bus1", ActionType: ops.ActionOff, ActionTime: 10},
	}))

	require.NoError(t, d.Run(context.Background(), nil))

	actions := d.Actions()
	require.Len(t, actions, 2)
	assert.Equal(t, StatusCompleted, actions[0].Status)
	assert.Equal(t, StatusCompleted, actions[1].Status)
	assert.LessOrEqual(t, actions[0].EndTime, actions[1].EndTime)
}

func TestRunInvokesOnTickEveryFrameworkTick(t *testing.T) {
	cfg, reg, gw := twoBusFixture(t)
	cfg.Sim.ProgressPrintTimeMin = 0 // no gating: every tick publishes
	d := New(cfg, reg, gw, nil)

	require.NoError(t, d.Load([]PlanRow{
		{DeviceType: registry.KindBus, IDType: "Name", IDValue: "Bus2", ActionType: ops.ActionOff, ActionTime: 3},
	}))

	var ticks []StateSnapshot
	require.NoError(t, d.Run(context.Background(), func(s StateSnapshot) {
		ticks = append(ticks, s)
	}))

	require.Len(t, ticks, 3)
	assert.Equal(t, d.Snapshot(), ticks[len(ticks)-1])
}

func TestProgressPrintGateSkipsIntermediateTicks(t *testing.T) {
	cfg, reg, gw := twoBusFixture(t)
	cfg.Sim.ProgressPrintTimeMin = 1 // one tick/sec, gate at 60 ticks
	d := New(cfg, reg, gw, nil)

	require.NoError(t, d.Load([]PlanRow{
		{DeviceType: registry.KindBus, IDType: "Name", IDValue: "Bus2", ActionType: ops.ActionOff, ActionTime: 3},
	}))

	var calls int
	require.NoError(t, d.Run(context.Background(), func(StateSnapshot) { calls++ }))

	// Under the gate, only the final tick (forced by allDone) publishes.
	assert.Equal(t, 1, calls)
}

func TestFrequencySafetyGateDefersNewActions(t *testing.T) {
	cfg, reg, gw := twoBusFixture(t)
	cfg.Policy.EnforceFrequencySafetyMargin = true
	cfg.Policy.FreqSafetyMinHz = 59.95
	cfg.Policy.FreqSafetyMaxHz = 60.05
	cfg.Sim.AGCDeadbandHz = 1000 // keep AGC itself inert; we drive frequency by hand
	cfg.Sim.AGCDeadbandRateHzPerS = 1000
	d := New(cfg, reg, gw, nil)

	require.NoError(t, gw.SetChannelValue("GEN1.freq", 59.80))

	require.NoError(t, d.Load([]PlanRow{
		{DeviceType: registry.KindBus, IDType: "Name", IDValue: "Bus2", ActionType: ops.ActionOff, ActionTime: 0},
	}))

	// Run AGC first so lastFreqHz reflects the scripted low frequency
	// before evaluatePlan checks the safety gate on this tick.
	require.NoError(t, d.runAGC(context.Background(), 1, 1))
	require.NoError(t, d.evaluatePlan(context.Background(), 1))
	assert.Equal(t, StatusNotStarted, d.actions[0].Status)
	assert.Equal(t, "DeferredForFrequency", d.actions[0].Notes)
}

func TestGapPreservationShiftsLaterActions(t *testing.T) {
	cfg, reg, gw := twoBusFixture(t)
	cfg.Policy.AccountForActionExecutionDelays = true
	cfg.Policy.EnforceActionLock = false
	d := New(cfg, reg, gw, nil)

	require.NoError(t, d.Load([]PlanRow{
		{DeviceType: registry.KindBus, IDType: "Name", IDValue: "Bus1", ActionType: ops.ActionOff, ActionTime: 5},
		{DeviceType: registry.KindBus, IDType: "Name", IDValue: "Bus2", ActionType: ops.ActionOff, ActionTime: 15},
	}))

	// The first action starts late, at t=8 instead of its authored t=5 -- a
	// delay of 3s that must carry over to the second action's effective time.
	require.NoError(t, d.evaluatePlan(context.Background(), 8))
	assert.InDelta(t, 18, d.actions[1].effectiveActionTime, 1e-9)
}
