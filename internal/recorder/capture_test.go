package recorder

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webreplay/backend/internal/models"
	"webreplay/backend/internal/selector"
)

func inputSnap(name string) *selector.Snapshot {
	return &selector.Snapshot{
		TagName:    "input",
		Attributes: map[string]string{"name": name},
		Ancestors: []selector.Ancestor{
			{Tag: "input", TypeIndex: 1, TypeCount: 1},
			{Tag: "form", TypeIndex: 1, TypeCount: 1},
		},
	}
}

func buttonSnap(text string) *selector.Snapshot {
	return &selector.Snapshot{
		TagName: "button",
		Text:    text,
		Ancestors: []selector.Ancestor{
			{Tag: "button", TypeIndex: 1, TypeCount: 1},
			{Tag: "body", TypeIndex: 1, TypeCount: 1},
		},
	}
}

func newTestCapturer() *Capturer {
	return NewCapturer(nil, CaptureOptions{})
}

func TestInputBurstCollapsesToFinalValue(t *testing.T) {
	c := newTestCapturer()

	// Keystroke-by-keystroke input events inside the debounce window.
	base := int64(1000)
	for i, v := range []string{"h", "he", "hel", "hell", "hello"} {
		c.Ingest(RawEvent{
			Kind:      RawInput,
			Timestamp: base + int64(i*100),
			URL:       "https://example.com",
			Value:     v,
			Snapshot:  inputSnap("q"),
		})
	}
	c.Flush()

	steps := c.Steps()
	require.Len(t, steps, 1)
	assert.Equal(t, models.StepInput, steps[0].Type)
	assert.Equal(t, "hello", steps[0].Value)
}

func TestInputGapBeyondWindowSplitsSteps(t *testing.T) {
	c := newTestCapturer()

	c.Ingest(RawEvent{Kind: RawInput, Timestamp: 1000, Value: "first", Snapshot: inputSnap("q")})
	// 800ms later, past the 500ms window: a second step.
	c.Ingest(RawEvent{Kind: RawInput, Timestamp: 1800, Value: "first again", Snapshot: inputSnap("q")})
	c.Flush()

	steps := c.Steps()
	require.Len(t, steps, 2)
	assert.Equal(t, "first", steps[0].Value)
	assert.Equal(t, "first again", steps[1].Value)
}

func TestInputToDifferentElementCommitsImmediately(t *testing.T) {
	c := newTestCapturer()

	c.Ingest(RawEvent{Kind: RawInput, Timestamp: 1000, Value: "alice", Snapshot: inputSnap("user")})
	c.Ingest(RawEvent{Kind: RawInput, Timestamp: 1100, Value: "secret", Snapshot: inputSnap("pass")})
	c.Flush()

	steps := c.Steps()
	require.Len(t, steps, 2)
	assert.Equal(t, "alice", steps[0].Value)
	assert.Equal(t, "secret", steps[1].Value)
}

func TestClickCommitsPendingInputFirst(t *testing.T) {
	c := newTestCapturer()

	c.Ingest(RawEvent{Kind: RawInput, Timestamp: 1000, Value: "query", Snapshot: inputSnap("q")})
	c.Ingest(RawEvent{
		Kind:      RawClick,
		Timestamp: 1200,
		Snapshot:  buttonSnap("Search"),
		Position:  &models.Point{X: 50, Y: 60},
	})

	steps := c.Steps()
	require.Len(t, steps, 2)
	assert.Equal(t, models.StepInput, steps[0].Type)
	assert.Equal(t, models.StepClick, steps[1].Type)
	require.NotNil(t, steps[1].Position)
	assert.Equal(t, 50.0, steps[1].Position.X)
}

func TestClickOnTextControlIgnored(t *testing.T) {
	c := newTestCapturer()

	// The focus click on the input is noise; only the typed value survives.
	c.Ingest(RawEvent{Kind: RawClick, Timestamp: 900, Snapshot: inputSnap("q"), Position: &models.Point{X: 5, Y: 5}})
	c.Ingest(RawEvent{Kind: RawInput, Timestamp: 1000, Value: "hello", Snapshot: inputSnap("q")})
	c.Flush()

	steps := c.Steps()
	require.Len(t, steps, 1)
	assert.Equal(t, models.StepInput, steps[0].Type)
	assert.Equal(t, "hello", steps[0].Value)
}

func TestClickOnCheckboxStillRecorded(t *testing.T) {
	c := newTestCapturer()

	c.Ingest(RawEvent{
		Kind:      RawClick,
		Timestamp: 1000,
		Snapshot: &selector.Snapshot{
			TagName:    "input",
			Attributes: map[string]string{"type": "checkbox", "name": "agree"},
			Ancestors:  []selector.Ancestor{{Tag: "input", TypeIndex: 1, TypeCount: 1}},
		},
	})

	steps := c.Steps()
	require.Len(t, steps, 1)
	assert.Equal(t, models.StepClick, steps[0].Type)
}

func TestScrollDebounceKeepsSettledPosition(t *testing.T) {
	c := newTestCapturer()

	// A rapid scroll burst within the 150ms window.
	for i, y := range []float64{100, 250, 400} {
		c.Ingest(RawEvent{
			Kind:      RawScroll,
			Timestamp: int64(1000 + i*50),
			Scroll:    &models.Point{Y: y},
		})
	}
	c.Flush()

	steps := c.Steps()
	require.Len(t, steps, 1)
	assert.Equal(t, models.StepScroll, steps[0].Type)
	assert.Equal(t, 400.0, steps[0].ScrollPosition.Y)
}

func TestScrollBelowThresholdDropped(t *testing.T) {
	c := newTestCapturer()

	c.Ingest(RawEvent{Kind: RawScroll, Timestamp: 1000, Scroll: &models.Point{Y: 30}})
	c.Flush()

	assert.Empty(t, c.Steps())
}

func TestScrollThresholdMeasuredFromLastCommitted(t *testing.T) {
	c := newTestCapturer()

	c.Ingest(RawEvent{Kind: RawScroll, Timestamp: 1000, Scroll: &models.Point{Y: 200}})
	// Past the debounce window, but only 20px further: dropped.
	c.Ingest(RawEvent{Kind: RawScroll, Timestamp: 1500, Scroll: &models.Point{Y: 220}})
	c.Flush()

	steps := c.Steps()
	require.Len(t, steps, 1)
	assert.Equal(t, 200.0, steps[0].ScrollPosition.Y)
}

func TestScrollThresholdIsPerAxis(t *testing.T) {
	c := newTestCapturer()

	// Diagonal drift below the threshold on both axes is dropped even though
	// the straight-line distance exceeds it.
	c.Ingest(RawEvent{Kind: RawScroll, Timestamp: 1000, Scroll: &models.Point{X: 40, Y: 40}})
	c.Flush()
	assert.Empty(t, c.Steps())

	// Crossing the threshold on one axis is enough.
	c.Ingest(RawEvent{Kind: RawScroll, Timestamp: 2000, Scroll: &models.Point{X: 60, Y: 10}})
	c.Flush()

	steps := c.Steps()
	require.Len(t, steps, 1)
	assert.Equal(t, 60.0, steps[0].ScrollPosition.X)
}

func TestControlKeysRecordedPrintableKeysNot(t *testing.T) {
	c := newTestCapturer()

	c.Ingest(RawEvent{Kind: RawKeydown, Timestamp: 1000, Key: "a", Snapshot: buttonSnap("OK")})
	c.Ingest(RawEvent{Kind: RawKeydown, Timestamp: 1100, Key: "Escape", Snapshot: buttonSnap("OK")})

	steps := c.Steps()
	require.Len(t, steps, 1)
	assert.Equal(t, models.StepKeypress, steps[0].Type)
	assert.Equal(t, "Escape", steps[0].Value)
}

func TestTextControlOnlyKeepsIntentKeys(t *testing.T) {
	c := newTestCapturer()

	// Inside a text control, arrows are navigation noise but Enter is intent.
	c.Ingest(RawEvent{Kind: RawKeydown, Timestamp: 1000, Key: "ArrowLeft", Editable: true, Snapshot: inputSnap("q")})
	c.Ingest(RawEvent{Kind: RawKeydown, Timestamp: 1100, Key: "Backspace", Editable: true, Snapshot: inputSnap("q")})
	c.Ingest(RawEvent{Kind: RawKeydown, Timestamp: 1200, Key: "Enter", Editable: true, Snapshot: inputSnap("q")})

	steps := c.Steps()
	require.Len(t, steps, 1)
	assert.Equal(t, "Enter", steps[0].Value)
}

func TestDelayDeltas(t *testing.T) {
	c := newTestCapturer()

	c.Ingest(RawEvent{Kind: RawNavigation, Timestamp: 1000, URL: "https://example.com"})
	c.Ingest(RawEvent{Kind: RawClick, Timestamp: 3500, Snapshot: buttonSnap("Go")})
	c.Ingest(RawEvent{Kind: RawClick, Timestamp: 3700, Snapshot: buttonSnap("Go")})

	steps := c.Steps()
	require.Len(t, steps, 3)
	assert.Equal(t, int64(0), steps[0].Delay)
	assert.Equal(t, int64(2500), steps[1].Delay)
	assert.Equal(t, int64(200), steps[2].Delay)
}

func TestNavigationStepUsesPageSentinel(t *testing.T) {
	c := newTestCapturer()

	c.Ingest(RawEvent{Kind: RawNavigation, Timestamp: 1000, URL: "https://example.com/login"})

	steps := c.Steps()
	require.Len(t, steps, 1)
	assert.Equal(t, models.StepNavigation, steps[0].Type)
	assert.True(t, steps[0].Target.IsPage())
	assert.Equal(t, "https://example.com/login", steps[0].Value)
}

func TestSelectEventRecorded(t *testing.T) {
	c := newTestCapturer()

	c.Ingest(RawEvent{
		Kind:      RawSelect,
		Timestamp: 1000,
		Value:     "opt-b",
		Snapshot: &selector.Snapshot{
			TagName:    "select",
			Attributes: map[string]string{"name": "plan"},
			Ancestors:  []selector.Ancestor{{Tag: "select", TypeIndex: 1, TypeCount: 1}},
		},
	})

	steps := c.Steps()
	require.Len(t, steps, 1)
	assert.Equal(t, models.StepSelect, steps[0].Type)
	assert.Equal(t, "opt-b", steps[0].Value)
	assert.Equal(t, `select[name="plan"]`, steps[0].Target.CSS)
}

func TestDescriptionTruncationKeepsValidUTF8(t *testing.T) {
	c := newTestCapturer()

	// 45 runes, and byte offset 40 falls inside a rune.
	label := "abc" + strings.Repeat("é", 42)
	c.Ingest(RawEvent{Kind: RawClick, Timestamp: 1000, Snapshot: buttonSnap(label)})

	steps := c.Steps()
	require.Len(t, steps, 1)
	assert.True(t, utf8.ValidString(steps[0].Description))
	assert.Contains(t, steps[0].Description, "abc"+strings.Repeat("é", 37)+"…")
}

func TestTruncateCutsOnRuneBoundaries(t *testing.T) {
	s := "abc" + strings.Repeat("é", 42)
	out := truncate(s, 40)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, "abc"+strings.Repeat("é", 37)+"…", out)
}

func TestEveryStepGetsAnID(t *testing.T) {
	c := newTestCapturer()

	c.Ingest(RawEvent{Kind: RawClick, Timestamp: 1000, Snapshot: buttonSnap("A")})
	c.Ingest(RawEvent{Kind: RawClick, Timestamp: 1100, Snapshot: buttonSnap("B")})

	steps := c.Steps()
	require.Len(t, steps, 2)
	assert.NotEmpty(t, steps[0].ID)
	assert.NotEmpty(t, steps[1].ID)
	assert.NotEqual(t, steps[0].ID, steps[1].ID)
}
