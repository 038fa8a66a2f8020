package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/fsnotify/fsnotify"
)

// Loader reads a config file and merges it over Default() with mergo so
// every field the file omits keeps its documented default instead of
// Go's zero value.
type Loader struct {
	logger *slog.Logger
}

// NewLoader returns a Loader that logs to logger, or slog.Default() if
// logger is nil.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load reads path, merges it over the default configuration, and
// validates the result.
func (l *Loader) Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		if err := mergo.Merge(cfg, fileCfg, mergo.WithOverride); err != nil {
			return nil, err
		}
		l.logger.Debug("loaded config file", slog.String("path", path))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WatchPlan watches the control-plan file at planPath and invokes
// onChange whenever it is rewritten, until ctx is canceled. An empty
// planPath makes this a no-op. This lets an operator edit the plan
// mid-run and have the next framework tick pick up the new rows.
func (l *Loader) WatchPlan(ctx context.Context, planPath string, onChange func()) error {
	if planPath == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(planPath); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					l.logger.Info("plan file changed", slog.String("path", planPath))
					onChange()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.logger.Warn("plan watcher error", slog.String("error", err.Error()))
			}
		}
	}()
	return nil
}

// EnsureParentDir creates the parent directory of path if missing; used
// before writing output CSVs and channel exports.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
