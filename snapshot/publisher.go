// Package snapshot implements the State Publisher (C7): it consumes the
// Action Dispatcher's per-tick StateSnapshot, computes a shape-then-cell
// diff against the previously published one, and ships the diff (which
// carries the whole snapshot on a FullReset) plus a progress log line to
// an embedded (or external) NATS/JetStream server. A ChannelCSVWriter
// separately persists the derived per-channel
// time series described in spec.md §6 Outputs.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/aldahabi27/bspssepy-go/dispatcher"
)

// SubjectSnapshot and SubjectLog are the NATS subjects a NatsPublisher
// ships to, per SPEC_FULL.md §3.
const (
	SubjectSnapshot = "bspssepy.snapshot"
	SubjectLog      = "bspssepy.log"
)

// NatsPublisher starts an embedded NATS+JetStream server (or dials an
// external one) and publishes every StateSnapshot plus the
// action-progress log line.
type NatsPublisher struct {
	logger *slog.Logger

	embedded *server.Server
	conn     *nats.Conn
	js       jetstream.JetStream

	prev     dispatcher.StateSnapshot
	haveSeen bool

	asyncPrintDelayMS int
}

// Config selects embedded vs. external NATS for the publisher.
type Config struct {
	URL      string
	Embedded bool

	// AsyncPrintDelayMS is sim.asyncPrintDelayMs (config.SimConfig): the
	// pacing delay applied after each published tick, for a
	// human-watched run. Zero means no delay beyond a cooperative yield.
	AsyncPrintDelayMS int
}

// NewNatsPublisher starts (or connects to) NATS and returns a ready
// Publisher.
func NewNatsPublisher(ctx context.Context, cfg Config, logger *slog.Logger) (*NatsPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &NatsPublisher{logger: logger, asyncPrintDelayMS: cfg.AsyncPrintDelayMS}

	if cfg.URL != "" && !cfg.Embedded {
		conn, err := nats.Connect(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("connect to NATS: %w", err)
		}
		p.conn = conn
	} else {
		opts := &server.Options{
			Port:      -1,
			JetStream: true,
			NoLog:     true,
			NoSigs:    true,
		}
		ns, err := server.NewServer(opts)
		if err != nil {
			return nil, fmt.Errorf("create embedded NATS server: %w", err)
		}
		go ns.Start()
		if !ns.ReadyForConnections(5 * time.Second) {
			ns.Shutdown()
			return nil, fmt.Errorf("embedded NATS server failed to start")
		}
		p.embedded = ns

		conn, err := nats.Connect(ns.ClientURL())
		if err != nil {
			ns.Shutdown()
			return nil, fmt.Errorf("connect to embedded NATS: %w", err)
		}
		p.conn = conn
	}

	js, err := jetstream.New(p.conn)
	if err != nil {
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}
	p.js = js
	return p, nil
}

// Publish diffs snap against the last published snapshot, ships the diff
// (or a FullReset on shape mismatch) to SubjectSnapshot, and writes a
// human-readable progress line to SubjectLog.
func (p *NatsPublisher) Publish(ctx context.Context, snap dispatcher.StateSnapshot) error {
	d := Diff(p.prev, snap, p.haveSeen)
	p.prev = snap
	p.haveSeen = true

	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal snapshot diff: %w", err)
	}
	if err := p.conn.Publish(SubjectSnapshot, payload); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}

	line := fmt.Sprintf("t=%.1fs freq=%.3fHz regulated=%v actions=%d",
		snap.Time, snap.FrequencyHz, snap.FrequencyRegulated, len(snap.Actions))
	if err := p.conn.Publish(SubjectLog, []byte(line)); err != nil {
		return fmt.Errorf("publish log line: %w", err)
	}

	// A short cooperative yield (or configured pacing delay) after the
	// log write, per §5's async_print_delay note.
	yield(p.asyncPrintDelayMS)
	return nil
}

// Close drains the NATS connection and, if embedded, shuts the server
// down.
func (p *NatsPublisher) Close() {
	if p.conn != nil {
		p.conn.Drain()
		p.conn.Close()
	}
	if p.embedded != nil {
		p.embedded.Shutdown()
		p.embedded.WaitForShutdown()
	}
}
