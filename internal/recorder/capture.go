package recorder

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"webreplay/backend/internal/models"
	"webreplay/backend/internal/selector"
	"webreplay/backend/internal/simulator"
)

// Debounce defaults. Input coalescing collapses per-keystroke noise into one
// final-value step; scroll coalescing keeps only settled positions that moved
// far enough to matter.
const (
	DefaultInputDebounce   = 500 * time.Millisecond
	DefaultScrollDebounce  = 150 * time.Millisecond
	DefaultScrollThreshold = 50.0
)

// RawKind tags an uninterpreted page event.
type RawKind string

const (
	RawClick      RawKind = "click"
	RawInput      RawKind = "input"
	RawSelect     RawKind = "select"
	RawKeydown    RawKind = "keydown"
	RawScroll     RawKind = "scroll"
	RawNavigation RawKind = "navigation"
)

// RawEvent is one event as the capture script reports it: a timestamped
// action plus the target's snapshot. Interpretation (debouncing, filtering,
// selector construction) happens here, not in the page.
type RawEvent struct {
	Kind      RawKind            `json:"kind"`
	Timestamp int64              `json:"timestamp"`
	URL       string             `json:"url"`
	Value     string             `json:"value,omitempty"`
	Key       string             `json:"key,omitempty"`
	Editable  bool               `json:"editable,omitempty"`
	Position  *models.Point      `json:"position,omitempty"`
	Scroll    *models.Point      `json:"scroll,omitempty"`
	Snapshot  *selector.Snapshot `json:"snapshot,omitempty"`
}

// CaptureOptions tune the debounce windows; zero values take the defaults.
type CaptureOptions struct {
	InputDebounce   time.Duration
	ScrollDebounce  time.Duration
	ScrollThreshold float64
}

func (o CaptureOptions) withDefaults() CaptureOptions {
	if o.InputDebounce <= 0 {
		o.InputDebounce = DefaultInputDebounce
	}
	if o.ScrollDebounce <= 0 {
		o.ScrollDebounce = DefaultScrollDebounce
	}
	if o.ScrollThreshold <= 0 {
		o.ScrollThreshold = DefaultScrollThreshold
	}
	return o
}

type pendingInput struct {
	key   string
	sel   models.ElementSelector
	value string
	ts    int64
	url   string
}

type pendingScroll struct {
	pos models.Point
	ts  int64
	url string
}

// Capturer turns the raw event stream into the ordered, debounced step list
// that gets persisted. Debouncing is driven by the event timestamps, so the
// produced steps depend only on the stream, never on polling cadence.
type Capturer struct {
	mu     sync.Mutex
	gen    *selector.Generator
	logger *zap.Logger
	opts   CaptureOptions

	steps      []models.RecordedStep
	lastStepTS int64

	input      *pendingInput
	scroll     *pendingScroll
	lastScroll models.Point
}

func NewCapturer(logger *zap.Logger, opts CaptureOptions) *Capturer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Capturer{
		gen:    selector.NewGenerator(logger),
		logger: logger,
		opts:   opts.withDefaults(),
	}
}

// Ingest folds one raw event into the step stream. Events must arrive in
// timestamp order; the capture script guarantees that per page.
func (c *Capturer) Ingest(ev RawEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Kind {
	case RawInput:
		c.ingestInput(ev)
	case RawScroll:
		c.ingestScroll(ev)
	case RawKeydown:
		c.ingestKeydown(ev)
	case RawClick:
		if isTextEntryTarget(ev.Snapshot) {
			// A click on a text control only places focus; the typing that
			// follows arrives as input events and becomes the real step.
			return
		}
		c.commitPending()
		c.appendElementStep(models.StepClick, ev, "")
	case RawSelect:
		c.commitPending()
		c.appendElementStep(models.StepSelect, ev, ev.Value)
	case RawNavigation:
		c.commitPending()
		c.appendStep(models.RecordedStep{
			Type:        models.StepNavigation,
			Timestamp:   ev.Timestamp,
			Target:      models.PageSelector(),
			Value:       ev.URL,
			URL:         ev.URL,
			Description: fmt.Sprintf("Navigate to %s", ev.URL),
		})
	default:
		c.logger.Debug("ignoring unknown raw event kind", zap.String("kind", string(ev.Kind)))
	}
}

// Flush commits everything still held in a debounce window. Called when the
// recording stops so trailing input/scroll is never lost.
func (c *Capturer) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commitPending()
}

// Steps returns a copy of the committed step list.
func (c *Capturer) Steps() []models.RecordedStep {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.RecordedStep, len(c.steps))
	copy(out, c.steps)
	return out
}

func (c *Capturer) ingestInput(ev RawEvent) {
	if ev.Snapshot == nil {
		return
	}
	sel := c.gen.Selector(*ev.Snapshot)
	key := inputKey(sel)

	if c.input != nil {
		sameTarget := c.input.key == key
		withinWindow := ev.Timestamp-c.input.ts < c.opts.InputDebounce.Milliseconds()
		if sameTarget && withinWindow {
			// Still typing into the same control: keep only the latest value.
			c.input.value = ev.Value
			c.input.ts = ev.Timestamp
			return
		}
		c.commitInput()
	}
	c.commitScroll()
	c.input = &pendingInput{key: key, sel: sel, value: ev.Value, ts: ev.Timestamp, url: ev.URL}
}

func (c *Capturer) ingestScroll(ev RawEvent) {
	if ev.Scroll == nil {
		return
	}
	c.commitInput()
	if c.scroll != nil && ev.Timestamp-c.scroll.ts < c.opts.ScrollDebounce.Milliseconds() {
		c.scroll.pos = *ev.Scroll
		c.scroll.ts = ev.Timestamp
		return
	}
	c.commitScroll()
	c.scroll = &pendingScroll{pos: *ev.Scroll, ts: ev.Timestamp, url: ev.URL}
}

// ingestKeydown keeps only control keys, and inside editable controls only
// the three that carry intent beyond text entry; ordinary typing is already
// represented by the debounced input step.
func (c *Capturer) ingestKeydown(ev RawEvent) {
	key := simulator.NormalizeKeyName(ev.Key)
	if !simulator.IsControlKey(key) {
		return
	}
	if ev.Editable && !simulator.IsTextControlKey(key) {
		return
	}
	c.commitPending()
	c.appendElementStep(models.StepKeypress, ev, key)
}

// commitPending flushes both debounce windows, oldest first, so committed
// steps stay in timestamp order.
func (c *Capturer) commitPending() {
	if c.input != nil && c.scroll != nil && c.scroll.ts < c.input.ts {
		c.commitScroll()
		c.commitInput()
		return
	}
	c.commitInput()
	c.commitScroll()
}

func (c *Capturer) commitInput() {
	if c.input == nil {
		return
	}
	p := c.input
	c.input = nil
	c.appendStep(models.RecordedStep{
		Type:        models.StepInput,
		Timestamp:   p.ts,
		Target:      p.sel,
		Value:       p.value,
		URL:         p.url,
		Description: describeTarget("Type into", p.sel, p.value),
	})
}

func (c *Capturer) commitScroll() {
	if c.scroll == nil {
		return
	}
	p := c.scroll
	c.scroll = nil

	dx := p.pos.X - c.lastScroll.X
	dy := p.pos.Y - c.lastScroll.Y
	if math.Abs(dx) < c.opts.ScrollThreshold && math.Abs(dy) < c.opts.ScrollThreshold {
		return
	}
	c.lastScroll = p.pos
	pos := p.pos
	c.appendStep(models.RecordedStep{
		Type:           models.StepScroll,
		Timestamp:      p.ts,
		Target:         models.PageSelector(),
		ScrollPosition: &pos,
		URL:            p.url,
		Description:    fmt.Sprintf("Scroll to (%.0f, %.0f)", pos.X, pos.Y),
	})
}

func (c *Capturer) appendElementStep(t models.StepType, ev RawEvent, value string) {
	if ev.Snapshot == nil {
		c.logger.Warn("element event without snapshot dropped", zap.String("kind", string(ev.Kind)))
		return
	}
	sel := c.gen.Selector(*ev.Snapshot)
	step := models.RecordedStep{
		Type:      t,
		Timestamp: ev.Timestamp,
		Target:    sel,
		Value:     value,
		URL:       ev.URL,
	}
	if ev.Position != nil {
		pos := *ev.Position
		step.Position = &pos
	}
	switch t {
	case models.StepClick:
		step.Description = describeTarget("Click", sel, "")
	case models.StepSelect:
		step.Description = describeTarget("Select", sel, value)
	case models.StepKeypress:
		step.Description = describeTarget("Press "+value+" on", sel, "")
	}
	c.appendStep(step)
}

// appendStep assigns the id and the inter-step delay. The first step of a
// recording always carries delay zero.
func (c *Capturer) appendStep(step models.RecordedStep) {
	step.ID = uuid.New().String()
	if len(c.steps) > 0 {
		d := step.Timestamp - c.lastStepTS
		if d > 0 {
			step.Delay = d
		}
	}
	c.lastStepTS = step.Timestamp
	c.steps = append(c.steps, step)
	c.logger.Debug("step recorded",
		zap.String("type", string(step.Type)),
		zap.Int64("delay_ms", step.Delay),
		zap.String("desc", step.Description))
}

func inputKey(sel models.ElementSelector) string {
	return sel.CSS + "\x00" + sel.Attributes[models.ShadowPathAttr]
}

// isTextEntryTarget mirrors the capture script's editable check for events
// that slip through with a snapshot (e.g. buffered before the script update
// took effect in an already-open document).
func isTextEntryTarget(snap *selector.Snapshot) bool {
	if snap == nil {
		return false
	}
	if v, ok := snap.Attributes["contenteditable"]; ok && v != "false" {
		return true
	}
	switch snap.TagName {
	case "textarea":
		return true
	case "input":
		switch snap.Attributes["type"] {
		case "checkbox", "radio", "button", "submit", "reset", "file", "range", "color":
			return false
		}
		return true
	}
	return false
}

func describeTarget(verb string, sel models.ElementSelector, value string) string {
	name := sel.Text
	if name == "" {
		name = sel.Attributes["aria-label"]
	}
	if name == "" {
		name = sel.Attributes["placeholder"]
	}
	if name == "" {
		name = sel.Attributes["name"]
	}
	name = truncate(name, 40)

	target := sel.TagName
	if name != "" {
		target = fmt.Sprintf("%s %q", sel.TagName, name)
	}
	if value != "" {
		return fmt.Sprintf("%s %s: %q", verb, target, truncate(value, 40))
	}
	return fmt.Sprintf("%s %s", verb, target)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}
