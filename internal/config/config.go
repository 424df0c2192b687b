// Package config manages goike configuration using koanf/v2.
//
// Supports YAML files, environment variables, and CLI flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/dantte-lp/goike/internal/ike"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete goike configuration.
type Config struct {
	Log        LogConfig        `koanf:"log"`
	Metrics    MetricsConfig    `koanf:"metrics"`
	Engine     EngineConfig     `koanf:"engine"`
	Simulation SimulationConfig `koanf:"simulation"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9500").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// EngineConfig holds the dispatch engine limits.
type EngineConfig struct {
	// MaxRestarts bounds immediate re-dispatches within one Dispatch call.
	MaxRestarts int `koanf:"max_restarts"`

	// PayloadCapacity is the number of payloads an outbound packet can hold.
	PayloadCapacity int `koanf:"payload_capacity"`

	// AuxCapacity is the size of an outbound packet's auxiliary buffer.
	AuxCapacity int `koanf:"aux_capacity"`
}

// SimulationConfig describes the loopback negotiation run by ikectl
// simulate and by the ikesimd soak daemon.
type SimulationConfig struct {
	// Exchange is the phase-1 exchange: "main" or "aggressive".
	Exchange string `koanf:"exchange"`

	// AuthMethod is the phase-1 auth class: "psk", "sig" or "pke"
	// (long names accepted).
	AuthMethod string `koanf:"auth_method"`

	// Hash is the phase-1 hash algorithm used for NAT-D payloads.
	Hash string `koanf:"hash"`

	// SuspendPSK makes the pre-shared key lookup suspend once per side.
	SuspendPSK bool `koanf:"suspend_psk"`

	// QuickMode runs a quick mode exchange after phase 1.
	QuickMode bool `koanf:"quick_mode"`

	// Parallel is the number of independent pairs run concurrently.
	Parallel int `koanf:"parallel"`

	// Interval is the pause between soak rounds in ikesimd.
	Interval time.Duration `koanf:"interval"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults.
//
// Engine capacities match the outbound pool defaults in package ike; the
// simulation defaults to main mode with pre-shared keys followed by quick
// mode.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Addr: ":9500",
			Path: "/metrics",
		},
		Engine: EngineConfig{
			MaxRestarts:     ike.DefaultMaxRestarts,
			PayloadCapacity: ike.DefaultPayloadCapacity,
			AuxCapacity:     ike.DefaultAuxCapacity,
		},
		Simulation: SimulationConfig{
			Exchange:   "main",
			AuthMethod: "psk",
			Hash:       "sha1",
			QuickMode:  true,
			Parallel:   1,
			Interval:   5 * time.Second,
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for goike configuration.
// Variables are named GOIKE_<section>_<key>, e.g., GOIKE_LOG_LEVEL.
const envPrefix = "GOIKE_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (GOIKE_ prefix), and merges on top of DefaultConfig().
// Missing fields inherit defaults. An empty path skips the file layer.
//
// Environment variable mapping:
//
//	GOIKE_LOG_LEVEL                 -> log.level
//	GOIKE_METRICS_ADDR              -> metrics.addr
//	GOIKE_ENGINE_MAX_RESTARTS       -> engine.max_restarts
//	GOIKE_SIMULATION_AUTH_METHOD    -> simulation.auth_method
//
// Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k, DefaultConfig()); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// envKeyMapper transforms GOIKE_ENGINE_MAX_RESTARTS -> engine.max_restarts.
// Only the first underscore after the prefix separates section from key, so
// multi-word keys keep their underscores.
func envKeyMapper(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.Replace(s, "_", ".", 1)
}

// loadDefaults sets the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"log.level":               defaults.Log.Level,
		"log.format":              defaults.Log.Format,
		"metrics.addr":            defaults.Metrics.Addr,
		"metrics.path":            defaults.Metrics.Path,
		"engine.max_restarts":     defaults.Engine.MaxRestarts,
		"engine.payload_capacity": defaults.Engine.PayloadCapacity,
		"engine.aux_capacity":     defaults.Engine.AuxCapacity,
		"simulation.exchange":     defaults.Simulation.Exchange,
		"simulation.auth_method":  defaults.Simulation.AuthMethod,
		"simulation.hash":         defaults.Simulation.Hash,
		"simulation.suspend_psk":  defaults.Simulation.SuspendPSK,
		"simulation.quick_mode":   defaults.Simulation.QuickMode,
		"simulation.parallel":     defaults.Simulation.Parallel,
		"simulation.interval":     defaults.Simulation.Interval.String(),
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrInvalidLogFormat indicates log.format is neither json nor text.
	ErrInvalidLogFormat = errors.New("log.format must be json or text")

	// ErrEmptyMetricsPath indicates the metrics path is empty or relative.
	ErrEmptyMetricsPath = errors.New("metrics.path must start with /")

	// ErrInvalidMaxRestarts indicates a negative restart limit.
	ErrInvalidMaxRestarts = errors.New("engine.max_restarts must be >= 0")

	// ErrInvalidPayloadCapacity indicates a non-positive payload capacity.
	ErrInvalidPayloadCapacity = errors.New("engine.payload_capacity must be >= 1")

	// ErrInvalidAuxCapacity indicates a negative auxiliary capacity.
	ErrInvalidAuxCapacity = errors.New("engine.aux_capacity must be >= 0")

	// ErrInvalidExchange indicates a phase-1 exchange other than main or
	// aggressive.
	ErrInvalidExchange = errors.New("simulation.exchange must be main or aggressive")

	// ErrInvalidAuthMethod indicates an unknown or unset auth method.
	ErrInvalidAuthMethod = errors.New("simulation.auth_method must be psk, sig or pke")

	// ErrInvalidHash indicates an unknown hash algorithm.
	ErrInvalidHash = errors.New("simulation.hash is not a known algorithm")

	// ErrInvalidParallel indicates a non-positive pair count.
	ErrInvalidParallel = errors.New("simulation.parallel must be >= 1")

	// ErrInvalidInterval indicates a non-positive soak interval.
	ErrInvalidInterval = errors.New("simulation.interval must be > 0")
)

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, cfg.Log.Format)
	}

	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return ErrEmptyMetricsPath
	}

	if err := validateEngine(cfg.Engine); err != nil {
		return err
	}

	return validateSimulation(cfg.Simulation)
}

func validateEngine(ec EngineConfig) error {
	if ec.MaxRestarts < 0 {
		return ErrInvalidMaxRestarts
	}
	if ec.PayloadCapacity < 1 {
		return ErrInvalidPayloadCapacity
	}
	if ec.AuxCapacity < 0 {
		return ErrInvalidAuxCapacity
	}
	return nil
}

func validateSimulation(sc SimulationConfig) error {
	if _, err := sc.ExchangeType(); err != nil {
		return err
	}
	if _, err := sc.Auth(); err != nil {
		return err
	}
	if _, err := sc.HashAlgorithm(); err != nil {
		return err
	}
	if sc.Parallel < 1 {
		return ErrInvalidParallel
	}
	if sc.Interval <= 0 {
		return ErrInvalidInterval
	}
	return nil
}

// ExchangeType parses the configured phase-1 exchange.
func (sc SimulationConfig) ExchangeType() (ike.ExchangeType, error) {
	x, err := ike.ParseExchangeType(sc.Exchange)
	if err != nil || (x != ike.ExchangeIdentityProtection && x != ike.ExchangeAggressive) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidExchange, sc.Exchange)
	}
	return x, nil
}

// Auth parses the configured auth method class.
func (sc SimulationConfig) Auth() (ike.AuthMethod, error) {
	a, err := ike.ParseAuthMethod(sc.AuthMethod)
	if err != nil || a == ike.AuthMethodUnknown {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAuthMethod, sc.AuthMethod)
	}
	return a, nil
}

// HashAlgorithm parses the configured hash algorithm.
func (sc SimulationConfig) HashAlgorithm() (ike.HashAlgorithm, error) {
	h, err := ike.ParseHashAlgorithm(sc.Hash)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidHash, err)
	}
	return h, nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
