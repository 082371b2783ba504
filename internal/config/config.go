// Package config resolves the bridge's working directory and loads its
// YAML configuration: multiplexer binary path, timing knobs for the
// aggregator's debounce/resync timers, and the session grace period.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const markerFile = ".tmuxbridge-dir.txt"

// Config is the on-disk YAML configuration for the bridge.
type Config struct {
	// Tmux is the path to the multiplexer binary. Defaults to "tmux" (PATH lookup).
	Tmux string `yaml:"tmux"`
	// TmuxArgs are extra arguments appended to every control-mode invocation,
	// e.g. ["-f", "/etc/tmux-bridge.conf"].
	TmuxArgs []string `yaml:"tmux_args,omitempty"`

	// Timing holds the durations named in spec §4.3/§4.4/§4.5.
	Timing TimingConfig `yaml:"timing"`
}

// TimingConfig holds the bridge's timing knobs. Zero values are replaced by
// DefaultTiming()'s values at load time. The serve command passes only
// Grace and SubscriptionQueueLen on to the registry; a Monitor runs its
// Aggregator with fixed 16ms debounce and 500ms resync intervals and
// disconnects with a fixed 2s budget, so DebounceMillis, ResyncMillis and
// DisconnectMillis are loaded but not applied.
type TimingConfig struct {
	// DebounceMillis is the PaneOutput coalescing window (spec: ~16ms).
	DebounceMillis int `yaml:"debounce_ms"`
	// ResyncMillis is the periodic structural resync interval (spec: ~500ms).
	ResyncMillis int `yaml:"resync_ms"`
	// GraceMillis is how long a Monitor survives with zero attached clients
	// before it is torn down (spec: ~2s).
	GraceMillis int `yaml:"grace_ms"`
	// DisconnectMillis is the wall-clock budget for a graceful disconnect
	// before the child is killed forcibly (spec: ~2s).
	DisconnectMillis int `yaml:"disconnect_ms"`
	// SubscriptionQueueLen is the bound on a client subscription's pending
	// delta queue before the oldest deltas are dropped (spec: >=64).
	SubscriptionQueueLen int `yaml:"subscription_queue_len"`
}

// DefaultTiming returns the spec-recommended defaults.
func DefaultTiming() TimingConfig {
	return TimingConfig{
		DebounceMillis:       16,
		ResyncMillis:         500,
		GraceMillis:          2000,
		DisconnectMillis:     2000,
		SubscriptionQueueLen: 64,
	}
}

// Debounce returns the PaneOutput coalescing window as a Duration.
func (t TimingConfig) Debounce() time.Duration { return time.Duration(t.DebounceMillis) * time.Millisecond }

// Resync returns the periodic structural resync interval as a Duration.
func (t TimingConfig) Resync() time.Duration { return time.Duration(t.ResyncMillis) * time.Millisecond }

// Grace returns the post-detach grace period as a Duration.
func (t TimingConfig) Grace() time.Duration { return time.Duration(t.GraceMillis) * time.Millisecond }

// Disconnect returns the graceful-disconnect wall-clock budget as a Duration.
func (t TimingConfig) Disconnect() time.Duration {
	return time.Duration(t.DisconnectMillis) * time.Millisecond
}

func (t *TimingConfig) applyDefaults() {
	d := DefaultTiming()
	if t.DebounceMillis <= 0 {
		t.DebounceMillis = d.DebounceMillis
	}
	if t.ResyncMillis <= 0 {
		t.ResyncMillis = d.ResyncMillis
	}
	if t.GraceMillis <= 0 {
		t.GraceMillis = d.GraceMillis
	}
	if t.DisconnectMillis <= 0 {
		t.DisconnectMillis = d.DisconnectMillis
	}
	if t.SubscriptionQueueLen <= 0 {
		t.SubscriptionQueueLen = d.SubscriptionQueueLen
	}
}

// IsBridgeDir checks if dir contains a valid marker file.
func IsBridgeDir(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, markerFile))
	return err == nil && !info.IsDir()
}

// WriteMarker writes the marker file recording the current version.
func WriteMarker(dir, version string) error {
	return os.WriteFile(filepath.Join(dir, markerFile), []byte("v"+version+"\n"), 0o644)
}

var (
	resolvedDir string
	resolvedErr error
	resolveOnce sync.Once
)

// ResolveDir finds the bridge root directory.
// Order: TMUXBRIDGE_DIR env var -> walk up CWD -> ~/.tmuxbridge/ fallback.
// Result is cached for the process lifetime.
func ResolveDir() (string, error) {
	resolveOnce.Do(func() {
		resolvedDir, resolvedErr = resolveDir()
	})
	return resolvedDir, resolvedErr
}

// ResetResolveCache resets the cached ResolveDir result. For testing only.
func ResetResolveCache() {
	resolveOnce = sync.Once{}
	resolvedDir = ""
	resolvedErr = nil
}

func resolveDir() (string, error) {
	if dir := os.Getenv("TMUXBRIDGE_DIR"); dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return "", fmt.Errorf("TMUXBRIDGE_DIR: %w", err)
		}
		if err := os.MkdirAll(abs, 0o700); err != nil {
			return "", fmt.Errorf("TMUXBRIDGE_DIR: %w", err)
		}
		if !IsBridgeDir(abs) {
			if err := WriteMarker(abs, "0"); err != nil {
				return "", fmt.Errorf("TMUXBRIDGE_DIR: %w", err)
			}
		}
		return abs, nil
	}

	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; ; {
			if IsBridgeDir(dir) {
				return dir, nil
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".tmuxbridge")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	if !IsBridgeDir(dir) {
		if err := WriteMarker(dir, "0"); err != nil {
			return "", fmt.Errorf("migrate %s: %w", dir, err)
		}
	}
	return dir, nil
}

// Dir returns the resolved bridge directory, falling back to ~/.tmuxbridge
// on resolution error so callers that run before full initialization still
// get a usable path.
func Dir() string {
	dir, err := ResolveDir()
	if err == nil {
		return dir
	}
	home, homeErr := os.UserHomeDir()
	if homeErr != nil {
		return filepath.Join(".", ".tmuxbridge")
	}
	return filepath.Join(home, ".tmuxbridge")
}

// Load reads the bridge config from <dir>/config.yaml.
// If the file does not exist, it returns a Config with spec defaults.
func Load() (*Config, error) {
	return LoadFrom(filepath.Join(Dir(), "config.yaml"))
}

// LoadFrom reads the bridge config from the given path.
// If the file does not exist, it returns a Config with spec defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{Tmux: "tmux"}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.Timing.applyDefaults()
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Tmux == "" {
		cfg.Tmux = "tmux"
	}
	cfg.Timing.applyDefaults()
	return cfg, nil
}
