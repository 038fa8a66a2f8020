// Package metrics exposes Prometheus instrumentation for one
// restoration run, mirroring the teacher's component.Metadata/Health()
// counters idiom (processor/task-dispatcher's atomic.Int64 fields)
// promoted to real Prometheus gauges/counters registered against a
// private registry instead of the global default one.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aldahabi27/bspssepy-go/dispatcher"
)

// Recorder owns a private Prometheus registry and the gauges/counters
// derived from each published StateSnapshot.
type Recorder struct {
	Registry *prometheus.Registry

	actionsCompleted prometheus.Counter
	actionsSkipped   prometheus.Counter
	tickDuration     prometheus.Histogram
	frequencyHz      prometheus.Gauge
	agcDeltaFreqHz   prometheus.Gauge
	generatorPhase   *prometheus.GaugeVec

	prevCompleted int
	prevSkipped   int
}

// New builds a Recorder with all metrics registered.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		Registry: reg,
		actionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bspssepy", Name: "actions_completed_total",
			Help: "Control-plan actions that reached Completed.",
		}),
		actionsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bspssepy", Name: "actions_skipped_total",
			Help: "Control-plan actions that reached Skipped.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bspssepy", Name: "dispatcher_tick_duration_seconds",
			Help:    "Wall-clock time to evaluate one framework tick.",
			Buckets: prometheus.DefBuckets,
		}),
		frequencyHz: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bspssepy", Name: "system_frequency_hz",
			Help: "Latest AGC-measured mean system frequency.",
		}),
		agcDeltaFreqHz: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bspssepy", Name: "agc_delta_freq_hz",
			Help: "Latest AGC mean frequency deviation from base.",
		}),
		generatorPhase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "bspssepy", Name: "generator_phase",
			Help: "Generator Lifecycle phase as an integer (0=Off..3=InService).",
		}, []string{"generator"}),
	}
	reg.MustRegister(r.actionsCompleted, r.actionsSkipped, r.tickDuration,
		r.frequencyHz, r.agcDeltaFreqHz, r.generatorPhase)
	return r
}

// ObserveTick updates every gauge/counter from one StateSnapshot and the
// wall-clock duration the tick took to evaluate.
func (r *Recorder) ObserveTick(snap dispatcher.StateSnapshot, tickSeconds float64) {
	r.tickDuration.Observe(tickSeconds)
	r.frequencyHz.Set(snap.FrequencyHz)

	if len(snap.AGC) > 0 {
		var sum float64
		for _, row := range snap.AGC {
			sum += row.DeltaFreqHz
		}
		r.agcDeltaFreqHz.Set(sum / float64(len(snap.AGC)))
	}

	var completed, skipped int
	for _, a := range snap.Actions {
		switch a.Status {
		case dispatcher.StatusCompleted:
			completed++
		case dispatcher.StatusSkipped:
			skipped++
		}
	}
	if completed > r.prevCompleted {
		r.actionsCompleted.Add(float64(completed - r.prevCompleted))
		r.prevCompleted = completed
	}
	if skipped > r.prevSkipped {
		r.actionsSkipped.Add(float64(skipped - r.prevSkipped))
		r.prevSkipped = skipped
	}

	for _, g := range snap.Generators {
		r.generatorPhase.WithLabelValues(g.Name).Set(phaseOrdinal(g.Phase))
	}
}

func phaseOrdinal(phase string) float64 {
	switch phase {
	case "Off":
		return 0
	case "Cranking":
		return 1
	case "Ramping":
		return 2
	case "InService":
		return 3
	default:
		return -1
	}
}
