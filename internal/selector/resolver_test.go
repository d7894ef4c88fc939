package selector

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webreplay/backend/internal/models"
)

var locateCallPattern = regexp.MustCompile(`window\.__wrAgent\.locate\("([^"]+)", (.*)\)$`)

// fakeEvaluator answers locate calls from a canned per-strategy response
// table and records the order strategies were tried in.
type fakeEvaluator struct {
	calls     []string
	responses map[string]string // strategy name -> result JSON
	errors    map[string]error  // strategy name -> transport error
}

func (f *fakeEvaluator) Evaluate(_ context.Context, expr string, out any) error {
	m := locateCallPattern.FindStringSubmatch(expr)
	if m == nil {
		return errors.New("unexpected expression: " + expr)
	}
	name := m[1]
	f.calls = append(f.calls, name)

	if err, ok := f.errors[name]; ok {
		return err
	}
	body, ok := f.responses[name]
	if !ok {
		body = `{"found":false}`
	}
	return json.Unmarshal([]byte(body), out)
}

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, Interval: time.Millisecond}
}

func fullSelector() models.ElementSelector {
	return models.ElementSelector{
		CSS:     "#login",
		XPath:   `//*[@id='login']`,
		Text:    "Log in",
		TagName: "button",
		Attributes: map[string]string{
			"id":          "login",
			"data-testid": "login-button",
		},
	}
}

func TestResolveFirstStrategyWins(t *testing.T) {
	eval := &fakeEvaluator{responses: map[string]string{
		"css": `{"found":true,"strategy":"css","handle":7,"visible":true,"tag":"button","rect":{"x":1,"y":2,"width":30,"height":40}}`,
	}}
	r := NewResolver(eval, nil, fastPolicy(3))

	m, err := r.Resolve(context.Background(), fullSelector())
	require.NoError(t, err)
	assert.Equal(t, 7, m.Handle)
	assert.Equal(t, "css", m.Strategy)
	assert.True(t, m.Visible)
	assert.Equal(t, []string{"css"}, eval.calls)
}

func TestResolveFallsBackThroughChain(t *testing.T) {
	eval := &fakeEvaluator{responses: map[string]string{
		"testId": `{"found":true,"strategy":"testId","handle":3,"visible":true,"tag":"button"}`,
	}}
	r := NewResolver(eval, nil, fastPolicy(3))

	m, err := r.Resolve(context.Background(), fullSelector())
	require.NoError(t, err)
	assert.Equal(t, "testId", m.Strategy)

	// Everything ahead of testId in the chain was tried first, in order.
	assert.Equal(t, []string{"css", "xpath", "id", "testId"}, eval.calls)
}

func TestResolveStrategyErrorIsSkipped(t *testing.T) {
	eval := &fakeEvaluator{
		errors: map[string]error{"css": errors.New("evaluation boom")},
		responses: map[string]string{
			"xpath": `{"found":true,"strategy":"xpath","handle":1,"visible":true}`,
		},
	}
	r := NewResolver(eval, nil, fastPolicy(3))

	m, err := r.Resolve(context.Background(), fullSelector())
	require.NoError(t, err)
	assert.Equal(t, "xpath", m.Strategy)
}

func TestResolveRetriesUntilBudgetExhausted(t *testing.T) {
	eval := &fakeEvaluator{}
	r := NewResolver(eval, nil, fastPolicy(3))

	sel := models.ElementSelector{CSS: ".gone", TagName: "div"}
	_, err := r.Resolve(context.Background(), sel)
	assert.ErrorIs(t, err, ErrNotFound)

	// One css call per attempt, three attempts.
	assert.Equal(t, []string{"css", "css", "css"}, eval.calls)
}

func TestResolveNotApplicableStrategiesNeverEmitted(t *testing.T) {
	eval := &fakeEvaluator{}
	r := NewResolver(eval, nil, fastPolicy(1))

	// Text plus tag only: the chain is just the text matchers plus css/xpath
	// absence means neither appears.
	sel := models.ElementSelector{TagName: "button", Text: "OK"}
	_, err := r.Resolve(context.Background(), sel)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{"tagText", "tagTextApprox"}, eval.calls)
}

func TestResolveShadowChainRunsFirst(t *testing.T) {
	eval := &fakeEvaluator{responses: map[string]string{
		"shadowChain": `{"found":true,"strategy":"shadowChain","handle":9,"visible":true}`,
	}}
	r := NewResolver(eval, nil, fastPolicy(1))

	sel := models.ElementSelector{
		CSS:     "input.search",
		TagName: "input",
		Attributes: map[string]string{
			models.ShadowPathAttr: "#app" + models.ShadowPathSeparator + "search-bar",
		},
	}
	m, err := r.Resolve(context.Background(), sel)
	require.NoError(t, err)
	assert.Equal(t, "shadowChain", m.Strategy)
	assert.Equal(t, []string{"shadowChain"}, eval.calls)
}

func TestResolveNonVisibleMatchStillReturned(t *testing.T) {
	eval := &fakeEvaluator{responses: map[string]string{
		"css": `{"found":true,"strategy":"css","handle":2,"visible":false}`,
	}}
	r := NewResolver(eval, nil, fastPolicy(1))

	m, err := r.Resolve(context.Background(), models.ElementSelector{CSS: "#hidden", TagName: "div"})
	require.NoError(t, err)
	assert.False(t, m.Visible)
}

func TestResolvePageSentinelRejected(t *testing.T) {
	r := NewResolver(&fakeEvaluator{}, nil, fastPolicy(1))
	_, err := r.Resolve(context.Background(), models.PageSelector())
	assert.Error(t, err)
}

func TestResolveHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewResolver(&fakeEvaluator{}, nil, fastPolicy(5))
	_, err := r.Resolve(ctx, models.ElementSelector{CSS: "#x", TagName: "div"})
	assert.ErrorIs(t, err, context.Canceled)
}
