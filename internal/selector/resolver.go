package selector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"webreplay/backend/internal/models"
)

// ErrNotFound is returned when every strategy failed for every attempt.
var ErrNotFound = errors.New("no locator strategy matched the element")

// Evaluator dispatches a JavaScript expression to the page agent and decodes
// its JSON result into out. Implementations are expected to tolerate the
// agent being briefly unavailable (e.g. right after a navigation) and retry
// delivery before giving up.
type Evaluator interface {
	Evaluate(ctx context.Context, expr string, out any) error
}

// Rect is the layout box of a resolved element, in viewport coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Match is a successful resolution. Handle indexes the element in the page
// agent's node registry and stays valid until the next navigation.
type Match struct {
	Found    bool   `json:"found"`
	Strategy string `json:"strategy,omitempty"`
	Handle   int    `json:"handle"`
	Visible  bool   `json:"visible"`
	Tag      string `json:"tag,omitempty"`
	Rect     Rect   `json:"rect"`
}

// RetryPolicy controls how long resolution keeps re-running the strategy
// chain to tolerate asynchronous rendering.
type RetryPolicy struct {
	MaxAttempts int
	Interval    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 10, Interval: 500 * time.Millisecond}
}

// strategy is one locator attempt: a name for logging and the agent call
// that executes it. Strategies that do not apply to a given selector are
// simply not emitted (the found/not-applicable split the chain is built on).
type strategy struct {
	name string
	call string
}

// Resolver re-finds elements from stored selectors. Every strategy searches
// the main document and, through the page agent, every open shadow root
// reachable from it, since any tag may host a shadow tree at replay time
// even if it did not at capture time.
type Resolver struct {
	eval   Evaluator
	logger *zap.Logger
	retry  RetryPolicy
}

func NewResolver(eval Evaluator, logger *zap.Logger, retry RetryPolicy) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = DefaultRetryPolicy().MaxAttempts
	}
	if retry.Interval <= 0 {
		retry.Interval = DefaultRetryPolicy().Interval
	}
	return &Resolver{eval: eval, logger: logger, retry: retry}
}

// Resolve runs the full strategy chain, first match wins, re-running the
// chain every retry interval until the attempt budget is exhausted. A
// non-visible match is still returned; visibility is the caller's concern
// (it is logged, not fatal).
func (r *Resolver) Resolve(ctx context.Context, sel models.ElementSelector) (*Match, error) {
	if sel.IsPage() {
		return nil, fmt.Errorf("selector targets the page sentinel, nothing to resolve")
	}

	chain := buildStrategies(sel)
	if len(chain) == 0 {
		return nil, ErrNotFound
	}

	for attempt := 1; attempt <= r.retry.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for _, st := range chain {
			var m Match
			if err := r.eval.Evaluate(ctx, st.call, &m); err != nil {
				// A failing strategy never fails the whole resolution.
				r.logger.Debug("locator strategy errored",
					zap.String("strategy", st.name), zap.Error(err))
				continue
			}
			if !m.Found {
				continue
			}
			if !m.Visible {
				r.logger.Warn("resolved element is not visible, proceeding best-effort",
					zap.String("strategy", st.name), zap.String("css", sel.CSS))
			}
			r.logger.Debug("element resolved",
				zap.String("strategy", st.name),
				zap.Int("attempt", attempt),
				zap.Int("handle", m.Handle))
			return &m, nil
		}

		if attempt < r.retry.MaxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.retry.Interval):
			}
		}
	}

	r.logger.Warn("element resolution exhausted all attempts",
		zap.String("css", sel.CSS),
		zap.String("tag", sel.TagName),
		zap.Int("attempts", r.retry.MaxAttempts))
	return nil, ErrNotFound
}

// buildStrategies assembles the ordered chain for one selector. Order
// mirrors resolution priority: shadow host chain first, then deep CSS,
// XPath, the attribute shortcuts, and text matching as last resort.
func buildStrategies(sel models.ElementSelector) []strategy {
	attr := func(name string) string {
		return sel.Attributes[name]
	}

	var chain []strategy
	add := func(name string, args map[string]any) {
		chain = append(chain, strategy{name: name, call: agentLocateCall(name, args)})
	}

	if hosts := sel.ShadowHosts(); len(hosts) > 0 && sel.CSS != "" {
		add("shadowChain", map[string]any{"hosts": hosts, "css": sel.CSS})
	}
	if sel.CSS != "" {
		add("css", map[string]any{"css": sel.CSS})
	}
	if sel.XPath != "" {
		// XPath cannot pierce shadow roots by construction; supplementary only.
		add("xpath", map[string]any{"xpath": sel.XPath})
	}
	if id := attr("id"); id != "" {
		add("id", map[string]any{"id": id})
	}
	if name := attr("name"); name != "" {
		add("name", map[string]any{"name": name, "tag": sel.TagName})
	}
	if ph := attr("placeholder"); ph != "" {
		add("placeholder", map[string]any{"placeholder": ph})
	}
	if label := attr("aria-label"); label != "" {
		add("ariaLabel", map[string]any{"label": label})
	}
	if tid := attr("data-testid"); tid != "" {
		add("testId", map[string]any{"testId": tid})
	} else if tid := attr("data-test-id"); tid != "" {
		add("testId", map[string]any{"testId": tid})
	}
	if role := attr("role"); role != "" && sel.Text != "" {
		add("roleText", map[string]any{"role": role, "text": sel.Text})
	}
	if sel.Text != "" && sel.TagName != "" {
		add("tagText", map[string]any{"tag": sel.TagName, "text": sel.Text})
		add("tagTextApprox", map[string]any{"tag": sel.TagName, "text": sel.Text})
	}
	return chain
}

// agentLocateCall renders the page agent invocation for one strategy.
func agentLocateCall(name string, args map[string]any) string {
	payload, err := json.Marshal(args)
	if err != nil {
		// Args are maps of strings and string slices; this cannot fail.
		payload = []byte("{}")
	}
	return fmt.Sprintf("window.__wrAgent.locate(%q, %s)", name, payload)
}
