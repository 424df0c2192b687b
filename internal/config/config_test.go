package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dantte-lp/goike/internal/config"
	"github.com/dantte-lp/goike/internal/ike"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()

	if cfg.Metrics.Addr != ":9500" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9500")
	}

	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/metrics")
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "json")
	}

	if cfg.Engine.MaxRestarts != ike.DefaultMaxRestarts {
		t.Errorf("Engine.MaxRestarts = %d, want %d", cfg.Engine.MaxRestarts, ike.DefaultMaxRestarts)
	}

	if cfg.Engine.PayloadCapacity != ike.DefaultPayloadCapacity {
		t.Errorf("Engine.PayloadCapacity = %d, want %d", cfg.Engine.PayloadCapacity, ike.DefaultPayloadCapacity)
	}

	if cfg.Simulation.Exchange != "main" || cfg.Simulation.AuthMethod != "psk" {
		t.Errorf("Simulation = %s/%s, want main/psk", cfg.Simulation.Exchange, cfg.Simulation.AuthMethod)
	}

	if !cfg.Simulation.QuickMode {
		t.Error("Simulation.QuickMode = false, want true")
	}

	// Defaults must pass validation.
	if err := config.Validate(cfg); err != nil {
		t.Errorf("DefaultConfig() failed validation: %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	yamlContent := `
metrics:
  addr: ":9600"
  path: "/custom-metrics"
log:
  level: "debug"
  format: "text"
engine:
  max_restarts: 3
  payload_capacity: 12
  aux_capacity: 4
simulation:
  exchange: "aggressive"
  auth_method: "signatures"
  hash: "sha256"
  suspend_psk: true
  quick_mode: false
  parallel: 8
  interval: "250ms"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Metrics.Addr != ":9600" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9600")
	}

	if cfg.Metrics.Path != "/custom-metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/custom-metrics")
	}

	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v, want debug/text", cfg.Log)
	}

	want := config.EngineConfig{MaxRestarts: 3, PayloadCapacity: 12, AuxCapacity: 4}
	if cfg.Engine != want {
		t.Errorf("Engine = %+v, want %+v", cfg.Engine, want)
	}

	sim := cfg.Simulation
	if x, err := sim.ExchangeType(); err != nil || x != ike.ExchangeAggressive {
		t.Errorf("ExchangeType() = %s, %v, want aggressive", x, err)
	}

	if a, err := sim.Auth(); err != nil || a != ike.AuthMethodSignatures {
		t.Errorf("Auth() = %s, %v, want signatures", a, err)
	}

	if h, err := sim.HashAlgorithm(); err != nil || h != ike.HashSHA256 {
		t.Errorf("HashAlgorithm() = %s, %v, want sha256", h, err)
	}

	if !sim.SuspendPSK || sim.QuickMode {
		t.Errorf("SuspendPSK/QuickMode = %v/%v, want true/false", sim.SuspendPSK, sim.QuickMode)
	}

	if sim.Parallel != 8 {
		t.Errorf("Parallel = %d, want 8", sim.Parallel)
	}

	if sim.Interval != 250*time.Millisecond {
		t.Errorf("Interval = %v, want %v", sim.Interval, 250*time.Millisecond)
	}
}

func TestLoadMergesDefaults(t *testing.T) {
	t.Parallel()

	// Partial YAML: only override log.level and one engine key.
	// Everything else should inherit from defaults.
	yamlContent := `
log:
  level: "warn"
engine:
  max_restarts: 0
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	// Overridden values.
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "warn")
	}

	if cfg.Engine.MaxRestarts != 0 {
		t.Errorf("Engine.MaxRestarts = %d, want 0", cfg.Engine.MaxRestarts)
	}

	// Default values should be preserved.
	def := config.DefaultConfig()

	if cfg.Metrics != def.Metrics {
		t.Errorf("Metrics = %+v, want default %+v", cfg.Metrics, def.Metrics)
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want default %q", cfg.Log.Format, "json")
	}

	if cfg.Engine.PayloadCapacity != def.Engine.PayloadCapacity || cfg.Engine.AuxCapacity != def.Engine.AuxCapacity {
		t.Errorf("Engine = %+v, want default capacities", cfg.Engine)
	}

	if cfg.Simulation != def.Simulation {
		t.Errorf("Simulation = %+v, want default %+v", cfg.Simulation, def.Simulation)
	}
}

// TestLoadEnvOverrides cannot run in parallel: t.Setenv modifies the
// process environment.
func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GOIKE_LOG_LEVEL", "error")
	t.Setenv("GOIKE_ENGINE_MAX_RESTARTS", "2")
	t.Setenv("GOIKE_SIMULATION_AUTH_METHOD", "pke")

	path := writeTemp(t, "log:\n  level: debug\n")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Log.Level != "error" {
		t.Errorf("Log.Level = %q, want env override %q", cfg.Log.Level, "error")
	}

	if cfg.Engine.MaxRestarts != 2 {
		t.Errorf("Engine.MaxRestarts = %d, want env override 2", cfg.Engine.MaxRestarts)
	}

	if cfg.Simulation.AuthMethod != "pke" {
		t.Errorf("Simulation.AuthMethod = %q, want env override %q", cfg.Simulation.AuthMethod, "pke")
	}
}

func TestLoadWithoutFile(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error: %v", err)
	}

	if cfg.Simulation.Parallel != 1 {
		t.Errorf("Simulation.Parallel = %d, want default 1", cfg.Simulation.Parallel)
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr error
	}{
		{
			name: "unknown log format",
			modify: func(cfg *config.Config) {
				cfg.Log.Format = "xml"
			},
			wantErr: config.ErrInvalidLogFormat,
		},
		{
			name: "relative metrics path",
			modify: func(cfg *config.Config) {
				cfg.Metrics.Path = "metrics"
			},
			wantErr: config.ErrEmptyMetricsPath,
		},
		{
			name: "negative max restarts",
			modify: func(cfg *config.Config) {
				cfg.Engine.MaxRestarts = -1
			},
			wantErr: config.ErrInvalidMaxRestarts,
		},
		{
			name: "zero payload capacity",
			modify: func(cfg *config.Config) {
				cfg.Engine.PayloadCapacity = 0
			},
			wantErr: config.ErrInvalidPayloadCapacity,
		},
		{
			name: "negative aux capacity",
			modify: func(cfg *config.Config) {
				cfg.Engine.AuxCapacity = -4
			},
			wantErr: config.ErrInvalidAuxCapacity,
		},
		{
			name: "quick mode as phase 1",
			modify: func(cfg *config.Config) {
				cfg.Simulation.Exchange = "quick"
			},
			wantErr: config.ErrInvalidExchange,
		},
		{
			name: "unknown exchange",
			modify: func(cfg *config.Config) {
				cfg.Simulation.Exchange = "base"
			},
			wantErr: config.ErrInvalidExchange,
		},
		{
			name: "unset auth method",
			modify: func(cfg *config.Config) {
				cfg.Simulation.AuthMethod = ""
			},
			wantErr: config.ErrInvalidAuthMethod,
		},
		{
			name: "unknown hash",
			modify: func(cfg *config.Config) {
				cfg.Simulation.Hash = "tiger"
			},
			wantErr: ike.ErrUnknownHash,
		},
		{
			name: "zero parallel",
			modify: func(cfg *config.Config) {
				cfg.Simulation.Parallel = 0
			},
			wantErr: config.ErrInvalidParallel,
		},
		{
			name: "zero interval",
			modify: func(cfg *config.Config) {
				cfg.Simulation.Interval = 0
			},
			wantErr: config.ErrInvalidInterval,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			tt.modify(cfg)

			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate() returned nil, want error")
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Parallel()

	path := writeTemp(t, "simulation:\n  parallel: -3\n")

	if _, err := config.Load(path); !errors.Is(err, config.ErrInvalidParallel) {
		t.Errorf("Load() error = %v, want %v", err, config.ErrInvalidParallel)
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  slog.Level
	}{
		{input: "debug", want: slog.LevelDebug},
		{input: "DEBUG", want: slog.LevelDebug},
		{input: "info", want: slog.LevelInfo},
		{input: "warn", want: slog.LevelWarn},
		{input: "WARN", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "Error", want: slog.LevelError},
		{input: "unknown", want: slog.LevelInfo},
		{input: "", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got := config.ParseLogLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadNonexistentFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load("/nonexistent/path/config.yml")
	if err == nil {
		t.Fatal("Load() returned nil error for nonexistent file")
	}
}

// writeTemp creates a temporary YAML file and returns its path.
// The file is automatically cleaned up when the test finishes.
func writeTemp(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "goike.yml")

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	return path
}
