// ikesimd runs loopback ISAKMP negotiations continuously and exports the
// dispatch engine metrics for soak testing.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/trace"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dantte-lp/goike/internal/config"
	"github.com/dantte-lp/goike/internal/ikesim"
	ikemetrics "github.com/dantte-lp/goike/internal/metrics"
	appversion "github.com/dantte-lp/goike/internal/version"
)

const (
	// shutdownTimeout bounds the metrics server drain.
	shutdownTimeout = 10 * time.Second

	// readHeaderTimeout guards the metrics endpoint against slow clients.
	readHeaderTimeout = 10 * time.Second

	// Flight recorder window: at least the last 500ms, at most 2 MiB.
	flightRecorderMinAge   = 500 * time.Millisecond
	flightRecorderMaxBytes = 2 << 20
)

func main() {
	os.Exit(run())
}

// simd is the running daemon.
type simd struct {
	configPath string
	level      *slog.LevelVar
	logger     *slog.Logger
	reg        *prometheus.Registry
	soaker     *ikesim.Soaker
	fr         *trace.FlightRecorder
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// No configured logger yet.
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()),
		)
		return 1
	}

	d := &simd{configPath: *configPath, level: new(slog.LevelVar)}
	d.level.Set(config.ParseLogLevel(cfg.Log.Level))
	d.logger = newLoggerWithLevel(cfg.Log, d.level)

	d.logger.Info("ikesimd starting",
		appversion.LogAttrs(),
		slog.String("metrics_addr", cfg.Metrics.Addr),
		slog.String("exchange", cfg.Simulation.Exchange),
		slog.String("auth_method", cfg.Simulation.AuthMethod),
		slog.Int("parallel", cfg.Simulation.Parallel),
		slog.Duration("interval", cfg.Simulation.Interval),
	)

	d.reg = prometheus.NewRegistry()
	d.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := ikemetrics.NewCollector(d.reg)

	soakCfg, err := soakConfigFrom(cfg)
	if err == nil {
		d.soaker, err = ikesim.NewSoaker(soakCfg, d.logger, collector)
	}
	if err != nil {
		d.logger.Error("invalid simulation settings", slog.String("error", err.Error()))
		return 1
	}

	d.fr = startFlightRecorder(d.logger)

	if err := d.serve(cfg.Metrics); err != nil {
		d.logger.Error("ikesimd exited with error", slog.String("error", err.Error()))
		return 1
	}

	st := d.soaker.Stats()
	d.logger.Info("ikesimd stopped",
		slog.Uint64("rounds", st.Rounds),
		slog.Uint64("pairs", st.Pairs),
		slog.Uint64("failures", st.Failures),
	)
	return 0
}

// soakConfigFrom builds the soak configuration from the simulation and
// engine sections.
func soakConfigFrom(cfg *config.Config) (ikesim.SoakConfig, error) {
	opts, err := ikesim.OptionsFromConfig(cfg.Simulation, cfg.Engine)
	if err != nil {
		return ikesim.SoakConfig{}, err
	}
	return ikesim.SoakConfig{
		Options:  opts,
		Parallel: cfg.Simulation.Parallel,
		Interval: cfg.Simulation.Interval,
	}, nil
}

// serve runs the soak loop, the metrics server, the watchdog and the
// SIGHUP handler until SIGINT or SIGTERM, then shuts down.
func (d *simd) serve(mc config.MetricsConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsSrv := &http.Server{
		Addr:              mc.Addr,
		Handler:           metricsHandler(mc.Path, d.reg),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		d.logger.Info("metrics server listening",
			slog.String("addr", mc.Addr),
			slog.String("path", mc.Path),
		)
		return listenAndServe(gCtx, metricsSrv)
	})

	g.Go(func() error { return d.soaker.Run(gCtx) })

	g.Go(func() error {
		keepAlive(gCtx, d.logger)
		return nil
	})

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	g.Go(func() error {
		defer signal.Stop(hup)
		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-hup:
				d.reload()
			}
		}
	})

	sdNotify(d.logger, daemon.SdNotifyReady)

	g.Go(func() error {
		<-gCtx.Done()
		return d.shutdown(gCtx, metricsSrv)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// -------------------------------------------------------------------------
// SIGHUP Reload
// -------------------------------------------------------------------------

// reload re-reads the configuration and applies the log level and the
// simulation section. The metrics endpoint is not rebound. On error the
// previous settings stay in effect.
func (d *simd) reload() {
	d.logger.Info("received SIGHUP, reloading configuration")

	cfg, err := config.Load(d.configPath)
	if err != nil {
		d.logger.Error("reload failed, keeping current settings", slog.String("error", err.Error()))
		return
	}

	prev := d.level.Level()
	d.level.Set(config.ParseLogLevel(cfg.Log.Level))

	soakCfg, err := soakConfigFrom(cfg)
	if err == nil {
		err = d.soaker.Update(soakCfg)
	}
	if err != nil {
		d.logger.Error("simulation settings rejected, keeping current ones", slog.String("error", err.Error()))
	}

	d.logger.Info("configuration reloaded",
		slog.String("old_log_level", prev.String()),
		slog.String("new_log_level", d.level.Level().String()),
		slog.Int("parallel", cfg.Simulation.Parallel),
		slog.Duration("interval", cfg.Simulation.Interval),
	)
}

// -------------------------------------------------------------------------
// Shutdown
// -------------------------------------------------------------------------

// shutdown tells systemd the daemon is stopping, stops the flight recorder
// and drains the HTTP servers. ctx is already done, so the drain gets its
// own deadline.
func (d *simd) shutdown(ctx context.Context, servers ...*http.Server) error {
	d.logger.Info("shutting down")
	sdNotify(d.logger, daemon.SdNotifyStopping)

	if d.fr != nil {
		d.fr.Stop()
	}

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var errs []error
	for _, srv := range servers {
		if err := srv.Shutdown(drainCtx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s: %w", srv.Addr, err))
		}
	}
	return errors.Join(errs...)
}

// startFlightRecorder keeps a rolling execution trace of the last rounds.
// It returns nil when tracing is unavailable.
func startFlightRecorder(logger *slog.Logger) *trace.FlightRecorder {
	fr := trace.NewFlightRecorder(trace.FlightRecorderConfig{
		MinAge:   flightRecorderMinAge,
		MaxBytes: flightRecorderMaxBytes,
	})
	if err := fr.Start(); err != nil {
		logger.Warn("flight recorder unavailable", slog.String("error", err.Error()))
		return nil
	}
	return fr
}

// -------------------------------------------------------------------------
// HTTP
// -------------------------------------------------------------------------

// listenAndServe binds srv.Addr through a net.ListenConfig and serves
// until the server is shut down.
func listenAndServe(ctx context.Context, srv *http.Server) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", srv.Addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", srv.Addr, err)
	}
	return nil
}

func metricsHandler(path string, reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux
}

// newLoggerWithLevel builds the daemon logger on stdout. level is shared so
// SIGHUP can change it.
func newLoggerWithLevel(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
