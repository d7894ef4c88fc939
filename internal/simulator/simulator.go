// Package simulator reproduces recorded user input against resolved
// elements with enough protocol accuracy that reactive UI frameworks
// observe it as genuine interaction, not just the browser's own default
// handlers. Event sequences are dispatched by the page agent; this side
// owns ordering, pacing and failure conversion.
package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"webreplay/backend/internal/models"
	"webreplay/backend/internal/selector"
)

const (
	// settleDelay lets layout settle after scrolling the target into view.
	settleDelay = 300 * time.Millisecond
	// highlightDuration is how long the temporary outline stays on screen.
	highlightDuration = 500 * time.Millisecond
	// defaultWait is used when a wait step carries no parseable duration.
	defaultWait = 500 * time.Millisecond
)

// Options tune presentation-only behavior; correctness never depends on them.
type Options struct {
	HighlightElements bool
}

// Simulator executes one action against one resolved element. All failures,
// including exceptions raised inside the page, are converted to a boolean
// result; nothing here is fatal to a playback session by itself.
type Simulator struct {
	eval   selector.Evaluator
	logger *zap.Logger
	opts   Options
}

func New(eval selector.Evaluator, logger *zap.Logger, opts Options) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{eval: eval, logger: logger, opts: opts}
}

// Simulate performs the step's action. For element-bound actions the match
// must come from a prior resolution in the same document generation.
func (s *Simulator) Simulate(ctx context.Context, m *selector.Match, step models.RecordedStep) bool {
	switch step.Type {
	case models.StepWait:
		return s.wait(ctx, step)
	case models.StepScroll:
		return s.scroll(ctx, step)
	case models.StepClick, models.StepInput, models.StepSelect, models.StepKeypress:
		if m == nil {
			s.logger.Warn("element action without a resolved target", zap.String("type", string(step.Type)))
			return false
		}
		return s.elementAction(ctx, m, step)
	default:
		s.logger.Warn("unsupported step type", zap.String("type", string(step.Type)))
		return false
	}
}

func (s *Simulator) elementAction(ctx context.Context, m *selector.Match, step models.RecordedStep) bool {
	// Bring the target on screen and give layout a beat to settle before
	// dispatching anything.
	if ok := s.call(ctx, agentCall("scrollIntoView", m.Handle, nil)); !ok {
		s.logger.Debug("scroll-into-view failed, continuing", zap.Int("handle", m.Handle))
	}
	if err := sleep(ctx, settleDelay); err != nil {
		return false
	}
	if s.opts.HighlightElements {
		// Best-effort UX affordance; ignore the result.
		s.call(ctx, agentCall("highlight", m.Handle, map[string]any{
			"duration": highlightDuration.Milliseconds(),
		}))
	}

	switch step.Type {
	case models.StepClick:
		args := map[string]any{}
		if step.Position != nil {
			args["x"] = step.Position.X
			args["y"] = step.Position.Y
		}
		return s.call(ctx, agentCall("click", m.Handle, args))
	case models.StepInput:
		return s.call(ctx, agentCall("setValue", m.Handle, map[string]any{
			"value": step.Value,
		}))
	case models.StepSelect:
		return s.call(ctx, agentCall("selectOption", m.Handle, map[string]any{
			"value": step.Value,
		}))
	case models.StepKeypress:
		info := LookupKey(NormalizeKeyName(step.Value))
		return s.call(ctx, agentCall("keypress", m.Handle, map[string]any{
			"key":     info.Key,
			"code":    info.Code,
			"keyCode": info.KeyCode,
		}))
	}
	return false
}

func (s *Simulator) scroll(ctx context.Context, step models.RecordedStep) bool {
	pos := step.ScrollPosition
	if pos == nil {
		pos = &models.Point{}
	}
	expr := fmt.Sprintf("window.__wrAgent.scrollTo(%g, %g)", pos.X, pos.Y)
	return s.call(ctx, expr)
}

func (s *Simulator) wait(ctx context.Context, step models.RecordedStep) bool {
	d := defaultWait
	if ms, err := strconv.ParseInt(step.Value, 10, 64); err == nil && ms > 0 {
		d = time.Duration(ms) * time.Millisecond
	}
	return sleep(ctx, d) == nil
}

// call evaluates one agent action and folds every failure mode (transport
// error, page exception, explicit false) into the boolean result.
func (s *Simulator) call(ctx context.Context, expr string) bool {
	var ok bool
	if err := s.eval.Evaluate(ctx, expr, &ok); err != nil {
		s.logger.Warn("simulation dispatch failed", zap.String("call", expr), zap.Error(err))
		return false
	}
	if !ok {
		s.logger.Debug("simulation reported failure", zap.String("call", expr))
	}
	return ok
}

func agentCall(action string, handle int, args map[string]any) string {
	if args == nil {
		args = map[string]any{}
	}
	payload, err := json.Marshal(args)
	if err != nil {
		payload = []byte("{}")
	}
	return fmt.Sprintf("window.__wrAgent.%s(%d, %s)", action, handle, payload)
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
