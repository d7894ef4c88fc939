package player

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"webreplay/backend/internal/models"
	"webreplay/backend/internal/selector"
	"webreplay/backend/internal/simulator"
)

// Runner executes steps against a live page: navigation goes through the
// navigator, element steps are resolved then simulated, page-level steps
// skip resolution entirely.
type Runner struct {
	eval     selector.Evaluator
	nav      Navigator
	resolver *selector.Resolver
	logger   *zap.Logger
}

func NewRunner(eval selector.Evaluator, nav Navigator, retry selector.RetryPolicy, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		eval:     eval,
		nav:      nav,
		resolver: selector.NewResolver(eval, logger, retry),
		logger:   logger,
	}
}

func (r *Runner) RunStep(ctx context.Context, step models.RecordedStep, opts models.PlaybackOptions) error {
	sim := simulator.New(r.eval, r.logger, simulator.Options{
		HighlightElements: opts.HighlightElements,
	})

	switch step.Type {
	case models.StepNavigation:
		url := step.Value
		if url == "" {
			url = step.URL
		}
		if url == "" {
			return fmt.Errorf("%w: step carries no URL", ErrNavigationFailed)
		}
		if err := r.nav.Navigate(ctx, url); err != nil {
			return fmt.Errorf("%w: %v", ErrNavigationFailed, err)
		}
		return nil

	case models.StepWait, models.StepScroll:
		if !sim.Simulate(ctx, nil, step) {
			return fmt.Errorf("%s step failed", step.Type)
		}
		return nil

	default:
		m, err := r.resolver.Resolve(ctx, step.Target)
		if err != nil {
			return fmt.Errorf("could not locate target for %s step: %w", step.Type, err)
		}
		if !sim.Simulate(ctx, m, step) {
			return fmt.Errorf("%s simulation failed (strategy %s)", step.Type, m.Strategy)
		}
		return nil
	}
}
