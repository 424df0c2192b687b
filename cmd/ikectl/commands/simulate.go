package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dantte-lp/goike/internal/config"
	"github.com/dantte-lp/goike/internal/ikesim"
	ikemetrics "github.com/dantte-lp/goike/internal/metrics"
)

// simulateFlags are the command-line overrides of the simulation section.
type simulateFlags struct {
	exchange   string
	auth       string
	hash       string
	suspendPSK bool
	quickMode  bool
	parallel   int
}

// simulationView is the outcome of a simulate run. Transcript is the
// record of the first pair; every pair runs the same options.
type simulationView struct {
	Pairs      int          `json:"pairs"      yaml:"pairs"`
	Exchange   string       `json:"exchange"   yaml:"exchange"`
	Auth       string       `json:"auth"       yaml:"auth"`
	Hash       string       `json:"hash"       yaml:"hash"`
	SuspendPSK bool         `json:"suspend_psk" yaml:"suspend_psk"`
	QuickMode  bool         `json:"quick_mode" yaml:"quick_mode"`
	Transcript []entryView  `json:"transcript" yaml:"transcript"`
	Metrics    []metricView `json:"metrics"    yaml:"metrics"`

	transcript *ikesim.Transcript
}

func simulateCmd(opts *options) *cobra.Command {
	var f simulateFlags

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run loopback negotiations between two in-process peers",
		Long: "Runs phase 1, optionally followed by quick mode, between an initiator " +
			"and a responder that share an in-memory wire. Defaults come from the " +
			"simulation section of the configuration; flags override it.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadSimulationConfig(cmd, opts.configPath, f)
			if err != nil {
				return err
			}

			simOpts, err := ikesim.OptionsFromConfig(cfg.Simulation, cfg.Engine)
			if err != nil {
				return err
			}

			logger := newLogger(cmd.ErrOrStderr(), cfg.Log)
			reg := prometheus.NewRegistry()

			view, err := runSimulation(cmd.Context(), simOpts, cfg.Simulation.Parallel,
				logger, ikemetrics.NewCollector(reg))
			if err != nil {
				return err
			}

			if view.Metrics, err = gatherMetrics(reg); err != nil {
				return err
			}

			return render(cmd.OutOrStdout(), opts.format, view, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "Exchange:\t%s\n", view.Exchange)
				fmt.Fprintf(w, "Auth:\t%s\n", view.Auth)
				fmt.Fprintf(w, "Hash:\t%s\n", view.Hash)
				fmt.Fprintf(w, "Suspend PSK:\t%t\n", view.SuspendPSK)
				fmt.Fprintf(w, "Quick Mode:\t%t\n", view.QuickMode)
				fmt.Fprintf(w, "Pairs Connected:\t%d\n", view.Pairs)
				fmt.Fprintln(w)
				fmt.Fprint(w, view.transcript.String())
				fmt.Fprintln(w)
				fmt.Fprintln(w, "METRIC\tVALUE")
				for _, m := range view.Metrics {
					fmt.Fprintf(w, "%s\t%g\n", m, m.Value)
				}
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.exchange, "exchange", "", "phase-1 exchange: main, aggressive")
	flags.StringVar(&f.auth, "auth", "", "auth method: psk, sig, pke")
	flags.StringVar(&f.hash, "hash", "", "SA hash algorithm: md5, sha1, sha256, sha384, sha512")
	flags.BoolVar(&f.suspendPSK, "suspend-psk", false, "suspend on the pre-shared key lookup")
	flags.BoolVar(&f.quickMode, "quick-mode", true, "run quick mode after phase 1")
	flags.IntVar(&f.parallel, "parallel", 1, "number of pairs to run concurrently")

	return cmd
}

// loadSimulationConfig loads the configuration and applies the flags the
// user set explicitly.
func loadSimulationConfig(cmd *cobra.Command, path string, f simulateFlags) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()
	sim := &cfg.Simulation

	if flags.Changed("exchange") {
		sim.Exchange = f.exchange
	}
	if flags.Changed("auth") {
		sim.AuthMethod = f.auth
	}
	if flags.Changed("hash") {
		sim.Hash = f.hash
	}
	if flags.Changed("suspend-psk") {
		sim.SuspendPSK = f.suspendPSK
	}
	if flags.Changed("quick-mode") {
		sim.QuickMode = f.quickMode
	}
	if flags.Changed("parallel") {
		sim.Parallel = f.parallel
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate flags: %w", err)
	}

	return cfg, nil
}

// runSimulation runs n independent pairs concurrently with opts. All pairs
// report to mr.
func runSimulation(
	ctx context.Context,
	opts ikesim.Options,
	n int,
	logger *slog.Logger,
	mr *ikemetrics.Collector,
) (*simulationView, error) {
	transcripts := make([]*ikesim.Transcript, n)

	g, gctx := errgroup.WithContext(ctx)
	for i := range n {
		pr, err := ikesim.NewPair(opts, logger.With(slog.Int("pair", i)), mr)
		if err != nil {
			return nil, fmt.Errorf("pair %d: %w", i, err)
		}

		g.Go(func() error {
			tr, err := pr.Run(gctx)
			if err != nil {
				return fmt.Errorf("pair %d: %w\n%s", i, err, tr)
			}
			transcripts[i] = tr
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &simulationView{
		Pairs:      n,
		Exchange:   opts.Exchange.String(),
		Auth:       opts.Auth.String(),
		Hash:       opts.Hash.String(),
		SuspendPSK: opts.SuspendPSK,
		QuickMode:  opts.QuickMode,
		Transcript: entriesToView(transcripts[0]),
		transcript: transcripts[0],
	}, nil
}

// gatherMetrics returns every non-zero counter and gauge sample in reg.
func gatherMetrics(reg prometheus.Gatherer) ([]metricView, error) {
	families, err := reg.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	var out []metricView
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			v, ok := sampleValue(mf.GetType(), m)
			if !ok || v == 0 {
				continue
			}

			mv := metricView{Name: mf.GetName(), Value: v}
			if pairs := m.GetLabel(); len(pairs) > 0 {
				mv.Labels = make(map[string]string, len(pairs))
				for _, lp := range pairs {
					mv.Labels[lp.GetName()] = lp.GetValue()
				}
			}
			out = append(out, mv)
		}
	}

	return out, nil
}

func sampleValue(t dto.MetricType, m *dto.Metric) (float64, bool) {
	switch t {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue(), true
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue(), true
	default:
		return 0, false
	}
}

// newLogger creates a slog.Logger writing to w per the log configuration.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: config.ParseLogLevel(cfg.Level)}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}
