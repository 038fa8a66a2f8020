// Package main wires the restoration simulator's components together:
// config loading, Registry construction over a solver Gateway,
// Generator Lifecycle and AGC registration, control-plan loading, and
// the Action Dispatcher's run loop with snapshot publishing, metrics
// and terminal rendering attached.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aldahabi27/bspssepy-go/channel"
	"github.com/aldahabi27/bspssepy-go/config"
	"github.com/aldahabi27/bspssepy-go/dispatcher"
	"github.com/aldahabi27/bspssepy-go/lifecycle"
	"github.com/aldahabi27/bspssepy-go/metrics"
	"github.com/aldahabi27/bspssepy-go/planio"
	"github.com/aldahabi27/bspssepy-go/registry"
	"github.com/aldahabi27/bspssepy-go/snapshot"
	"github.com/aldahabi27/bspssepy-go/solver"
	"github.com/aldahabi27/bspssepy-go/tui"
)

func init() {
	lifecycle.Register()
}

// App owns every long-lived component for one restoration run.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	gw           solver.Gateway
	reg          *registry.Registry
	disp         *dispatcher.Dispatcher
	pub          *snapshot.NatsPublisher
	rec          *metrics.Recorder
	channelNames []string
}

// NewApp builds a Registry over a FakeGateway seeded from cfg and a
// Dispatcher ready to Load a control plan. The solver.Gateway used here
// is the in-memory FakeGateway: wiring a live PSS/E-class engine is an
// external-collaborator integration point (solver.Gateway), not
// something this CLI constructs on its own.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	gw := solver.NewFakeGateway(cfg.Sim.BaseFreqHz)

	reg, err := registry.New(ctx, gw, cfg.GeneratorSeeds(), cfg.IBRSeeds())
	if err != nil {
		return nil, fmt.Errorf("construct registry: %w", err)
	}
	if err := reg.RegisterBusChannels(ctx, registry.SubscriptionConfig{
		ExplicitVoltageBuses:   cfg.Channels.BusesToMonitorVoltage,
		ExplicitFrequencyBuses: cfg.Channels.BusesToMonitorFrequency,
		VoltageFlag:            channel.Flag(cfg.Channels.VoltageFlag),
		FrequencyFlag:          channel.Flag(cfg.Channels.FrequencyFlag),
	}); err != nil {
		return nil, fmt.Errorf("register bus channels: %w", err)
	}

	pub, err := snapshot.NewNatsPublisher(ctx, snapshot.Config{
		URL:               cfg.NATS.URL,
		Embedded:          cfg.NATS.Embedded,
		AsyncPrintDelayMS: cfg.Sim.AsyncPrintDelayMS,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("start snapshot publisher: %w", err)
	}

	channelNames := make([]string, 0, len(reg.Generators())*2)
	for _, g := range reg.Generators() {
		channelNames = append(channelNames, g.Name+".pelec", g.Name+".freq")
	}

	return &App{
		cfg:          cfg,
		logger:       logger,
		gw:           gw,
		reg:          reg,
		disp:         dispatcher.New(cfg, reg, gw, logger),
		pub:          pub,
		rec:          metrics.New(),
		channelNames: channelNames,
	}, nil
}

// LoadPlan parses the control-plan CSV at path and loads it into the
// Dispatcher.
func (a *App) LoadPlan(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open control plan: %w", err)
	}
	defer f.Close()

	rows, err := planio.Parse(f)
	if err != nil {
		return fmt.Errorf("parse control plan: %w", err)
	}
	return a.disp.Load(rows)
}

// Run drives the Dispatcher to completion, publishing and rendering
// every framework tick it emits (spec.md §5's per-tick publishSnapshot(t)
// step) rather than only the final one.
func (a *App) Run(ctx context.Context) error {
	defer a.pub.Close()

	csvWriter, err := snapshot.NewChannelCSVWriter(a.cfg.ChannelCSVPath(), a.channelNames)
	if err != nil {
		return fmt.Errorf("open channel csv: %w", err)
	}
	defer csvWriter.Close()

	runErr := a.disp.Run(ctx, func(snap dispatcher.StateSnapshot) {
		a.publishTick(ctx, snap, csvWriter)
	})

	return runErr
}

func (a *App) publishTick(ctx context.Context, snap dispatcher.StateSnapshot, csvWriter *snapshot.ChannelCSVWriter) {
	start := time.Now()
	a.rec.ObserveTick(snap, time.Since(start).Seconds())

	if err := a.pub.Publish(ctx, snap); err != nil {
		a.logger.Warn("publish snapshot failed", slog.String("error", err.Error()))
	}
	if err := csvWriter.WriteRow(snap.Time, snapshot.GeneratorReadings(snap)); err != nil {
		a.logger.Warn("write channel csv row failed", slog.String("error", err.Error()))
	}
	tui.Render(os.Stdout, snap)
}

// Snapshot returns the Dispatcher's most recently published state.
func (a *App) Snapshot() dispatcher.StateSnapshot { return a.disp.Snapshot() }

// Registry exposes the constructed Registry, mainly for validate-mode
// reporting.
func (a *App) Registry() *registry.Registry { return a.reg }

// Metrics exposes the Prometheus registry for an operator-attached
// HTTP handler.
func (a *App) Metrics() *metrics.Recorder { return a.rec }

// Close releases the snapshot publisher's NATS connection (and the
// embedded server, if one was started). Run already does this via
// defer; callers that skip Run (validate mode) must call it directly.
func (a *App) Close() { a.pub.Close() }
