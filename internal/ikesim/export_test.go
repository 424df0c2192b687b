package ikesim

import (
	"log/slog"

	"github.com/dantte-lp/goike/internal/ike"
)

// SetPairFactory replaces the constructor s uses for the pairs of a round.
func SetPairFactory(s *Soaker, f func(Options, *slog.Logger, ike.MetricsReporter) (*Pair, error)) {
	s.newPair = f
}
