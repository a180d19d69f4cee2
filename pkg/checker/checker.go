// Package checker runs checking campaigns: it drives a program under test
// through iterations of a runtime session until a bug shows up, the
// strategy has nothing left to explore, or the budget runs out.
package checker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"v.io/x/lib/vlog"

	"github.com/amirkhaki/watson/pkg/runtime"
	"github.com/amirkhaki/watson/pkg/trust"
)

// Target is a named program under test.
type Target struct {
	Name    string
	Program func(rt *runtime.Runtime)
}

// Checker runs campaigns with one configuration. It holds no per-campaign
// state, so campaigns may run concurrently.
type Checker struct {
	cfg Config
	log *vlog.Logger
}

// New validates cfg and sets up the checker's logger.
func New(cfg Config) (*Checker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := vlog.NewLogger("watson")
	var err error
	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		err = log.Configure(vlog.OverridePriorConfiguration(true), vlog.LogDir(cfg.LogDir), vlog.Level(cfg.Verbosity))
	} else {
		err = log.Configure(vlog.OverridePriorConfiguration(true), vlog.LogToStderr(true), vlog.Level(cfg.Verbosity))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}
	return &Checker{cfg: cfg, log: log}, nil
}

// Config returns the checker's configuration.
func (c *Checker) Config() Config { return c.cfg }

// Check runs one campaign against program. The returned error reports a
// failure of the checker itself; bugs of the program are in the report.
func (c *Checker) Check(ctx context.Context, name string, program func(rt *runtime.Runtime)) (*Report, error) {
	report := &Report{
		ID:       uuid.New().String(),
		Program:  name,
		Strategy: c.cfg.Strategy,
		Outcome:  runtime.OutcomeSuccess.String(),
	}
	if c.cfg.Strategy != StrategyReplay {
		report.Seed = c.cfg.Seed
	}
	inner, err := NewStrategy(c.cfg, report.ID, c.log)
	if err != nil {
		return nil, err
	}
	rec := runtime.NewRecordStrategy(inner)
	cov := runtime.NewCoverageStrategy(rec)
	rt := runtime.New(cov, runtime.Options{
		Retries: c.cfg.Retries,
		Backoff: c.cfg.Backoff,
		Logger:  c.log,
	})
	defer rt.Close()

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	defer c.log.FlushLog()
	c.log.VI(1).Infof("campaign %s: checking %s with %s", report.ID, name, c.cfg.Strategy)
	start := time.Now()
	err = c.campaign(ctx, report, rt, cov, rec, inner, program)
	cov.Teardown()
	report.Elapsed = time.Since(start)
	report.Distinct = cov.Distinct()
	if t, ok := inner.(*trust.Strategy); ok {
		report.Graphs = t.Graphs()
	}
	c.log.VI(1).Infof("campaign %s: %s after %d iterations", report.ID, report.Outcome, report.Iterations)
	if err != nil {
		return report, err
	}

	if c.cfg.ReportPath != "" {
		filename, err := report.Save(c.cfg.ReportPath)
		if err != nil {
			return report, err
		}
		c.log.VI(1).Infof("report written to %s", filename)
	}
	return report, nil
}

func (c *Checker) campaign(ctx context.Context, report *Report, rt *runtime.Runtime, s runtime.Strategy, rec runtime.Recorder, inner runtime.Strategy, program func(*runtime.Runtime)) error {
	limit := c.cfg.iterations()
	for i := 0; limit == 0 || i < limit; i++ {
		if ctx.Err() != nil {
			report.Outcome = runtime.OutcomeTimeout.String()
			return nil
		}
		if err := s.InitIteration(i); err != nil {
			h, ok := runtime.AsHalt(err)
			if !ok || h.Kind != runtime.HaltChecker || h.Err != nil {
				return fmt.Errorf("iteration %d: %w", i, err)
			}
			c.log.VI(1).Infof("exploration complete after %d iterations", i)
			return nil
		}
		res := rt.Run(ctx, program)
		s.ResetIteration(i)
		report.Iterations++
		c.log.VI(2).Infof("iteration %d: %v", i, res)

		switch {
		case res.Outcome == runtime.OutcomeBlocked:
			report.Blocked++
		case res.Outcome == runtime.OutcomeTimeout:
			report.Outcome = res.Outcome.String()
			return nil
		case res.Outcome == runtime.OutcomeError:
			report.Outcome = res.Outcome.String()
			report.Failure = res.Err.Error()
			c.log.Errorf("iteration %d: %v", i, res.Err)
			return nil
		case res.Outcome.Bug():
			report.Outcome = res.Outcome.String()
			report.Failure = describe(res)
			report.Deadlocked = res.Deadlocked
			report.Schedule = res.Schedule
			report.trace = rec.Trace()
			var failure *runtime.AssertionError
			if t, ok := inner.(*trust.Strategy); ok && errors.As(res.Err, &failure) {
				report.Witness = t.Witness(failure.Task)
			}
			c.log.Infof("iteration %d found a bug: %s", i, report.Failure)
			return nil
		}
	}
	return nil
}

func describe(res runtime.Result) string {
	if res.Outcome == runtime.OutcomeDeadlock {
		return fmt.Sprintf("deadlock: tasks %v wait forever", res.Deadlocked)
	}
	return res.Err.Error()
}

// CheckAll runs one campaign per target concurrently. Reports come back in
// the order of targets.
func (c *Checker) CheckAll(ctx context.Context, targets []Target) ([]*Report, error) {
	reports := make([]*Report, len(targets))
	g, ctx := errgroup.WithContext(ctx)
	for i, t := range targets {
		g.Go(func() error {
			r, err := c.Check(ctx, t.Name, t.Program)
			if err != nil {
				return fmt.Errorf("%s: %w", t.Name, err)
			}
			reports[i] = r
			return nil
		})
	}
	return reports, g.Wait()
}
