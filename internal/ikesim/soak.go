package ikesim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dantte-lp/goike/internal/ike"
)

// Soak errors.
var (
	// ErrInvalidParallel indicates a soak round without pairs.
	ErrInvalidParallel = errors.New("parallel must be >= 1")

	// ErrInvalidInterval indicates a non-positive round interval.
	ErrInvalidInterval = errors.New("interval must be > 0")
)

// SoakConfig describes the rounds a Soaker runs.
type SoakConfig struct {
	Options  Options
	Parallel int
	Interval time.Duration
}

func (c SoakConfig) validate() error {
	if c.Parallel < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidParallel, c.Parallel)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, c.Interval)
	}
	// Build a throwaway pair to reject unusable options up front.
	pr, err := NewPair(c.Options, slog.New(slog.DiscardHandler), nil)
	if err != nil {
		return err
	}
	pr.Close()
	return nil
}

// SoakStats are the cumulative counters of a Soaker.
type SoakStats struct {
	Rounds   uint64
	Pairs    uint64
	Failures uint64
}

// Soaker runs rounds of concurrent pairs on a fixed interval, sharing one
// metrics reporter. The configuration may be replaced between rounds.
type Soaker struct {
	mu  sync.Mutex
	cfg SoakConfig

	logger  *slog.Logger
	mr      ike.MetricsReporter
	newPair func(Options, *slog.Logger, ike.MetricsReporter) (*Pair, error)

	rounds   atomic.Uint64
	pairs    atomic.Uint64
	failures atomic.Uint64
}

// NewSoaker validates cfg and returns a Soaker. mr may be nil.
func NewSoaker(cfg SoakConfig, logger *slog.Logger, mr ike.MetricsReporter) (*Soaker, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Soaker{
		cfg:    cfg,
		logger:  logger.With(slog.String("component", "ikesim.soak")),
		mr:      mr,
		newPair: NewPair,
	}, nil
}

// Update replaces the configuration used by subsequent rounds. An invalid
// cfg is rejected and the current one stays in effect.
func (s *Soaker) Update(cfg SoakConfig) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return nil
}

func (s *Soaker) config() SoakConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Stats returns the counters accumulated so far.
func (s *Soaker) Stats() SoakStats {
	return SoakStats{
		Rounds:   s.rounds.Load(),
		Pairs:    s.pairs.Load(),
		Failures: s.failures.Load(),
	}
}

// Round runs one round of Parallel pairs and closes them. Every started
// pair runs to completion before Round returns; the error reports the
// first failure.
func (s *Soaker) Round(ctx context.Context) error {
	cfg := s.config()

	var (
		g       errgroup.Group
		failed  atomic.Uint64
		started uint64
		newErr  error
	)
	for i := range cfg.Parallel {
		pr, err := s.newPair(cfg.Options, s.logger, s.mr)
		if err != nil {
			newErr = fmt.Errorf("pair %d: %w", i, err)
			break
		}
		started++
		g.Go(func() error {
			defer pr.Close()
			if _, err := pr.Run(ctx); err != nil {
				failed.Add(1)
				return fmt.Errorf("pair %d: %w", i, err)
			}
			return nil
		})
	}
	err := g.Wait()

	s.rounds.Add(1)
	s.pairs.Add(started)
	s.failures.Add(failed.Load())
	if newErr != nil {
		return newErr
	}
	return err
}

// Run executes a round immediately and then once per interval until ctx
// is cancelled. Failed rounds are logged and counted; Run itself only
// returns when ctx ends.
func (s *Soaker) Run(ctx context.Context) error {
	interval := s.config().Interval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.runRound(ctx)

		// Pick up an interval changed by Update.
		if next := s.config().Interval; next != interval {
			interval = next
			ticker.Reset(interval)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Soaker) runRound(ctx context.Context) {
	start := time.Now()
	err := s.Round(ctx)

	switch {
	case err == nil:
		s.logger.DebugContext(ctx, "soak round complete",
			slog.Duration("elapsed", time.Since(start)),
			slog.Uint64("rounds", s.rounds.Load()),
		)
	case ctx.Err() != nil:
		// Shutdown interrupted the round.
	default:
		s.logger.WarnContext(ctx, "soak round failed",
			slog.String("error", err.Error()),
			slog.Uint64("failures", s.failures.Load()),
		)
	}
}
