package checker

import (
	"errors"
	"fmt"
	"path/filepath"

	"v.io/x/lib/vlog"

	"github.com/amirkhaki/watson/pkg/runtime"
	"github.com/amirkhaki/watson/pkg/trust"
)

const (
	StrategyRandom = "random"
	StrategyTrust  = "trust"
	StrategyReplay = "replay"
)

// ErrInvalidStrategy is returned for a strategy name the checker does not know.
var ErrInvalidStrategy = errors.New("invalid strategy")

// Strategies lists the strategy names NewStrategy accepts.
func Strategies() []string {
	return []string{StrategyRandom, StrategyTrust, StrategyReplay}
}

// NewStrategy builds the strategy named by cfg. id names the campaign and
// separates its debug output from other campaigns.
func NewStrategy(cfg Config, id string, log *vlog.Logger) (runtime.Strategy, error) {
	switch cfg.Strategy {
	case StrategyRandom:
		return runtime.NewRandomStrategy(cfg.Seed), nil
	case StrategyTrust:
		opts := trust.Options{Seed: cfg.Seed, Logger: log}
		if cfg.Policy == "random" {
			opts.Policy = trust.Random
		}
		if cfg.Debug && cfg.ReportPath != "" {
			opts.DebugDir = filepath.Join(cfg.ReportPath, id+"-graphs")
		}
		return trust.NewStrategy(opts), nil
	case StrategyReplay:
		s, err := runtime.LoadReplayStrategy(cfg.ReplayFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load replay trace: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidStrategy, cfg.Strategy)
	}
}
