// Package config loads and validates the restoration simulator's
// configuration: solver case selection, timestep policy, scheduling
// mode, safety margins, and the per-generator/IBR device roster.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/aldahabi27/bspssepy-go/bspssepyerr"
	"github.com/aldahabi27/bspssepy-go/registry"
)

// Config is the complete simulator configuration (§6 of the design
// spec's External Interfaces).
type Config struct {
	Case    CaseConfig    `yaml:"case"`
	Sim     SimConfig     `yaml:"sim"`
	Policy  PolicyConfig  `yaml:"policy"`
	Logging LoggingConfig `yaml:"logging"`
	NATS    NATSConfig    `yaml:"nats"`

	Generators []GeneratorConfig `yaml:"generators"`
	IBRs       []IBRConfig       `yaml:"ibrs"`

	Channels ChannelConfig `yaml:"channels"`

	PlanPath string `yaml:"planPath"`

	// OutputDir is where per-run artifacts land: OutputDir/Case.Name/
	// channels.csv holds the per-channel time series (spec.md §6
	// Outputs).
	OutputDir string `yaml:"outputDir"`
}

// CaseConfig selects the solver case files.
type CaseConfig struct {
	Name                    string `yaml:"caseName"`
	Version                 int    `yaml:"version"`
	PSSEMaxNewtonIterations int    `yaml:"psseMaxNewtonIterations"`
	IgnoreCNV               bool   `yaml:"ignoreCNV"`
	IgnoreSNP               bool   `yaml:"ignoreSNP"`
}

// SimConfig holds the two timebases and the progress/quiet-time
// cadences.
type SimConfig struct {
	SimulationTimeStepSec float64 `yaml:"simulationTimeStep"`
	BSPSSEPyTimeStepSec   float64 `yaml:"bspssepyTimeStep"`
	HardTimeLimitMin      float64 `yaml:"hardTimeLimitMin"`
	HardTimeLimitEnabled  bool    `yaml:"hardTimeLimitEnabled"`
	ProgressPrintTimeMin  float64 `yaml:"progressPrintTime"`
	AsyncPrintDelayMS     int     `yaml:"asyncPrintDelayMs"`
	BaseFreqHz            float64 `yaml:"baseFreqHz"`
	AGCDeadbandHz         float64 `yaml:"agcDeadbandHz"`
	AGCDeadbandRateHzPerS float64 `yaml:"agcDeadbandRateHzPerSec"`
	AGCTimeConstantSec    float64 `yaml:"agcTimeConstantSec"`
}

// PolicyConfig holds the Action Dispatcher's scheduling and safety
// policy flags.
type PolicyConfig struct {
	EnforceActionLock                bool    `yaml:"enforceActionLock"`
	ControlSequenceAsIs               bool    `yaml:"controlSequenceAsIs"`
	TieActionsByExecutionTime        bool    `yaml:"tieActionsByExecutionTime"`
	BypassTiedActions                bool    `yaml:"bypassTiedActions"`
	AccountForActionExecutionDelays  bool    `yaml:"accountForActionExecutionDelays"`
	EnforceFrequencySafetyMargin     bool    `yaml:"enforceFrequencySafetyMargin"`
	FreqSafetyMinHz                 float64 `yaml:"freqSafetyMin"`
	FreqSafetyMaxHz                 float64 `yaml:"freqSafetyMax"`
	DelayAGCAfterActionSec           float64 `yaml:"delayAgcAfterAction"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// NATSConfig configures the snapshot/log publisher.
type NATSConfig struct {
	URL      string `yaml:"url"`
	Embedded bool   `yaml:"embedded"`
}

// GeneratorConfig is the per-generator configuration entry (§6
// `generators[]`).
type GeneratorConfig struct {
	Name                string    `yaml:"name"`
	GenType             string    `yaml:"genType"` // "BS" or "NBS"
	LoadName            string    `yaml:"loadName"`
	CrankingTimeSec     float64   `yaml:"crankingTimeSec"`
	RampRateMWPerMin    float64   `yaml:"rampRateMWPerMin"`
	CrankingPowerArray  []float64 `yaml:"crankingPowerArray"`
	PopfMW              float64   `yaml:"popfMW"`
	QopfMVAR            float64   `yaml:"qopfMVAR"`
	AGCAlpha            float64   `yaml:"agcAlpha"`
	SpeedDroopR         float64   `yaml:"speedDroopR"`
	DampingD            float64   `yaml:"dampingD"`
	BiasScaling         float64   `yaml:"biasScaling"`
	UseGenRampRate      bool      `yaml:"useGenRampRate"`
	LoadEnabledResponse bool      `yaml:"loadEnabledResponse"`
	LERPF               float64   `yaml:"lerpf"`

	ConnectionType    string `yaml:"connectionType"` // "BRN" or "TRN"
	ConnectionElement string `yaml:"connectionElement"`
	ConnectionFromBus int    `yaml:"connectionFromBus"`
	ConnectionToBus   int    `yaml:"connectionToBus"`
	ConnectionID      string `yaml:"connectionId"`
}

// IBRConfig is the per-IBR configuration entry (§6 `ibrs[]`).
type IBRConfig struct {
	Name              string  `yaml:"name"`
	GridForming       bool    `yaml:"gridForming"`
	InitialCapacityMW float64 `yaml:"initialCapacityMW"`
}

// ChannelConfig holds the monitoring bus lists and subscription flags.
type ChannelConfig struct {
	BusesToMonitorVoltage  []int `yaml:"busesToMonitorVoltage"`
	BusesToMonitorFrequency []int `yaml:"busesToMonitorFrequency"`
	VoltageFlag            int   `yaml:"voltageFlag"`
	FrequencyFlag          int   `yaml:"frequencyFlag"`
}

// Default returns a Config with sensible defaults; Load merges a
// user-supplied file over this baseline with mergo so unset fields
// fall back here rather than to Go's zero values.
func Default() *Config {
	return &Config{
		Case: CaseConfig{
			Version:                 1,
			PSSEMaxNewtonIterations: 100,
		},
		Sim: SimConfig{
			SimulationTimeStepSec: 0.001,
			BSPSSEPyTimeStepSec:   1.0,
			HardTimeLimitMin:      120,
			HardTimeLimitEnabled:  true,
			ProgressPrintTimeMin:  1,
			AsyncPrintDelayMS:     20,
			BaseFreqHz:            60,
			AGCDeadbandHz:         0.02,
			AGCDeadbandRateHzPerS: 0.01,
			AGCTimeConstantSec:    5,
		},
		Policy: PolicyConfig{
			EnforceActionLock:    true,
			FreqSafetyMinHz:      59.5,
			FreqSafetyMaxHz:      60.5,
			DelayAGCAfterActionSec: 2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		NATS: NATSConfig{
			Embedded: true,
		},
		OutputDir: "output",
	}
}

// ChannelCSVPath returns the per-channel CSV output path for this run:
// OutputDir/Case.Name/channels.csv.
func (c *Config) ChannelCSVPath() string {
	return filepath.Join(c.OutputDir, c.Case.Name, "channels.csv")
}

// Validate enforces the policy combinations and required fields the
// design's error table names InvalidConfig for.
func (c *Config) Validate() error {
	if c.Case.Name == "" {
		return bspssepyerr.New(bspssepyerr.KindInvalidConfig, "Config.Validate", fmt.Errorf("case.caseName is required"))
	}
	if c.Sim.SimulationTimeStepSec <= 0 {
		return bspssepyerr.New(bspssepyerr.KindInvalidConfig, "Config.Validate", fmt.Errorf("sim.simulationTimeStep must be > 0"))
	}
	if c.Sim.BSPSSEPyTimeStepSec < c.Sim.SimulationTimeStepSec {
		return bspssepyerr.New(bspssepyerr.KindInvalidConfig, "Config.Validate",
			fmt.Errorf("sim.bspssepyTimeStep (%g) must be >= sim.simulationTimeStep (%g)", c.Sim.BSPSSEPyTimeStepSec, c.Sim.SimulationTimeStepSec))
	}
	ratio := c.Sim.BSPSSEPyTimeStepSec / c.Sim.SimulationTimeStepSec
	if math.Abs(ratio-math.Round(ratio)) > 1e-6 {
		return bspssepyerr.New(bspssepyerr.KindInvalidConfig, "Config.Validate",
			fmt.Errorf("sim.bspssepyTimeStep must be an integer multiple of sim.simulationTimeStep"))
	}

	if c.Policy.ControlSequenceAsIs && !c.Policy.EnforceActionLock {
		return bspssepyerr.New(bspssepyerr.KindInvalidConfig, "Config.Validate",
			fmt.Errorf("policy.controlSequenceAsIs requires policy.enforceActionLock"))
	}
	if c.Policy.EnforceFrequencySafetyMargin && c.Policy.FreqSafetyMinHz >= c.Policy.FreqSafetyMaxHz {
		return bspssepyerr.New(bspssepyerr.KindInvalidConfig, "Config.Validate",
			fmt.Errorf("policy.freqSafetyMin must be < policy.freqSafetyMax"))
	}

	seen := make(map[string]bool, len(c.Generators))
	for _, g := range c.Generators {
		if g.Name == "" {
			return bspssepyerr.New(bspssepyerr.KindInvalidConfig, "Config.Validate", fmt.Errorf("generator entry missing name"))
		}
		if seen[g.Name] {
			return bspssepyerr.New(bspssepyerr.KindInvalidConfig, "Config.Validate", fmt.Errorf("duplicate generator name %q", g.Name))
		}
		seen[g.Name] = true
		switch registry.GenType(g.GenType) {
		case registry.GenTypeBS, registry.GenTypeNBS:
		default:
			return bspssepyerr.New(bspssepyerr.KindInvalidConfig, "Config.Validate", fmt.Errorf("generator %q has invalid genType %q", g.Name, g.GenType))
		}
		if registry.GenType(g.GenType) == registry.GenTypeNBS && g.ConnectionElement == "" {
			return bspssepyerr.New(bspssepyerr.KindInvalidConfig, "Config.Validate", fmt.Errorf("NBS generator %q missing connectionElement", g.Name))
		}
	}

	for _, i := range c.IBRs {
		if i.Name == "" {
			return bspssepyerr.New(bspssepyerr.KindInvalidConfig, "Config.Validate", fmt.Errorf("ibr entry missing name"))
		}
	}

	switch c.Channels.VoltageFlag {
	case 0, 1, 2, 3, 4, 5:
	default:
		return bspssepyerr.New(bspssepyerr.KindInvalidConfig, "Config.Validate", fmt.Errorf("channels.voltageFlag %d out of range", c.Channels.VoltageFlag))
	}
	switch c.Channels.FrequencyFlag {
	case 0, 1, 2, 3, 4, 5:
	default:
		return bspssepyerr.New(bspssepyerr.KindInvalidConfig, "Config.Validate", fmt.Errorf("channels.frequencyFlag %d out of range", c.Channels.FrequencyFlag))
	}

	return nil
}

// GeneratorSeeds converts the config's generator roster into the
// registry construction inputs.
func (c *Config) GeneratorSeeds() []registry.GeneratorSeed {
	out := make([]registry.GeneratorSeed, 0, len(c.Generators))
	for _, g := range c.Generators {
		connType := registry.ConnectionBranch
		if g.ConnectionType == string(registry.ConnectionTransformer) {
			connType = registry.ConnectionTransformer
		}
		out = append(out, registry.GeneratorSeed{
			Name:                g.Name,
			LoadName:            g.LoadName,
			GenType:             registry.GenType(g.GenType),
			CrankingTimeSec:     g.CrankingTimeSec,
			RampRateMWPerMin:    g.RampRateMWPerMin,
			CrankingPowerArray:  g.CrankingPowerArray,
			PopfMW:              g.PopfMW,
			QopfMVAR:            g.QopfMVAR,
			AGCAlpha:            g.AGCAlpha,
			SpeedDroopR:         g.SpeedDroopR,
			DampingD:            g.DampingD,
			BiasScaling:         g.BiasScaling,
			UseGenRampRate:      g.UseGenRampRate,
			LoadEnabledResponse: g.LoadEnabledResponse,
			LERPF:               g.LERPF,
			Connection: registry.GenConnection{
				Type:        connType,
				ElementName: g.ConnectionElement,
				FromBus:     g.ConnectionFromBus,
				ToBus:       g.ConnectionToBus,
				ElementID:   g.ConnectionID,
			},
		})
	}
	return out
}

// IBRSeeds converts the config's IBR roster into registry construction
// inputs.
func (c *Config) IBRSeeds() []registry.IBRSeed {
	out := make([]registry.IBRSeed, 0, len(c.IBRs))
	for _, i := range c.IBRs {
		out = append(out, registry.IBRSeed{
			Name:              i.Name,
			GridForming:       i.GridForming,
			InitialCapacityMW: i.InitialCapacityMW,
		})
	}
	return out
}

// LoadFromFile reads and parses a YAML config file, without merging
// against defaults or validating; callers typically use Loader.Load
// instead.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes cfg to path as YAML, creating parent directories as
// needed.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
