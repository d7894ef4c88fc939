package models

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/gorm"
)

type BaseModel struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

type User struct {
	BaseModel
	Username string `json:"username" gorm:"uniqueIndex;size:100;not null"`
	Email    string `json:"email" gorm:"uniqueIndex;size:100;not null"`
	Password string `json:"-" gorm:"size:255;not null"`
	Status   int    `json:"status" gorm:"default:1"` // 1:active, 0:inactive
}

// StepType identifies what kind of interaction a recorded step reproduces.
type StepType string

const (
	StepClick      StepType = "click"
	StepInput      StepType = "input"
	StepSelect     StepType = "select"
	StepScroll     StepType = "scroll"
	StepNavigation StepType = "navigation"
	StepKeypress   StepType = "keypress"
	StepWait       StepType = "wait"
)

// ShadowPathAttr is the attribute key under which a selector carries the
// chain of shadow host selectors needed to reach an element nested inside
// shadow roots. Hosts are joined by ShadowPathSeparator, outermost first.
const (
	ShadowPathAttr      = "shadowPath"
	ShadowPathSeparator = " >>> "
)

// PageTag is the sentinel tag name used as the target of steps that do not
// act on an element (navigation, wait).
const PageTag = "__page__"

// ElementSelector is a redundant, multi-strategy description of how to
// re-find one element. CSS and XPath are always populated (possibly
// imprecise); Text and Attributes are present only when the source element
// exposed them. No single strategy is authoritative - the resolver falls
// back through all of them at replay time.
type ElementSelector struct {
	CSS        string            `json:"css"`
	XPath      string            `json:"xpath"`
	Text       string            `json:"text,omitempty"`
	TagName    string            `json:"tagName"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// ShadowHosts returns the stored shadow host chain, outermost first, or nil
// when the element did not sit inside a shadow root at capture time.
func (s ElementSelector) ShadowHosts() []string {
	raw := s.Attributes[ShadowPathAttr]
	if raw == "" {
		return nil
	}
	var hosts []string
	for _, h := range strings.Split(raw, ShadowPathSeparator) {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

// IsPage reports whether this selector is the non-element sentinel.
func (s ElementSelector) IsPage() bool {
	return s.TagName == PageTag
}

// PageSelector returns the sentinel target used by navigation and wait steps.
func PageSelector() ElementSelector {
	return ElementSelector{TagName: PageTag}
}

// Point is a viewport or page coordinate pair.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// RecordedStep is one captured unit of interaction. Steps are immutable once
// created; flows only ever append, reorder or drop them as whole units.
// Delay is the elapsed time in milliseconds since the previous step was
// captured and is the pacing unit during replay.
type RecordedStep struct {
	ID             string          `json:"id"`
	Type           StepType        `json:"type"`
	Timestamp      int64           `json:"timestamp"`
	Target         ElementSelector `json:"target"`
	Value          string          `json:"value,omitempty"`
	Position       *Point          `json:"position,omitempty"`
	ScrollPosition *Point          `json:"scrollPosition,omitempty"`
	URL            string          `json:"url,omitempty"`
	Delay          int64           `json:"delay"`
	Description    string          `json:"description,omitempty"`
}

// Flow is the unit of persistence and replay: a named, ordered step sequence
// anchored at a start URL. Step order defines execution order. Steps are
// stored as a JSON blob, the same way the step payload travels over the API.
type Flow struct {
	ID             string         `json:"id" gorm:"primaryKey;size:36"`
	Name           string         `json:"name" gorm:"size:200;not null"`
	Description    string         `json:"description" gorm:"size:1000"`
	StartURL       string         `json:"start_url" gorm:"size:500;not null"`
	Steps          string         `json:"-" gorm:"type:longtext"`
	CronExpression string         `json:"cron_expression" gorm:"size:100"`
	UserID         uint           `json:"user_id"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`
}

func (f *Flow) GetSteps() ([]RecordedStep, error) {
	var steps []RecordedStep
	if f.Steps == "" {
		return steps, nil
	}
	err := json.Unmarshal([]byte(f.Steps), &steps)
	return steps, err
}

func (f *Flow) SetSteps(steps []RecordedStep) error {
	if steps == nil {
		steps = []RecordedStep{}
	}
	data, err := json.Marshal(steps)
	if err != nil {
		return err
	}
	f.Steps = string(data)
	return nil
}

// PlaybackOptions tune one playback session. Speed scales only the pacing
// delay between steps, never the simulated actions themselves.
type PlaybackOptions struct {
	Speed             float64 `json:"speed"`
	StepByStep        bool    `json:"step_by_step"`
	StopOnError       bool    `json:"stop_on_error"`
	HighlightElements bool    `json:"highlight_elements"`
}

func DefaultPlaybackOptions() PlaybackOptions {
	return PlaybackOptions{
		Speed:             1.0,
		StopOnError:       true,
		HighlightElements: true,
	}
}

// PlaybackState is a point-in-time snapshot of the playback controller,
// exposed over the API. At most one playback session is active at a time.
type PlaybackState struct {
	IsPlaying        bool            `json:"is_playing"`
	IsPaused         bool            `json:"is_paused"`
	CurrentFlowID    string          `json:"current_flow_id,omitempty"`
	CurrentStepIndex int             `json:"current_step_index"`
	TotalSteps       int             `json:"total_steps"`
	Options          PlaybackOptions `json:"options"`
}

// RecordingState is a snapshot of the active recording session.
type RecordingState struct {
	IsRecording bool           `json:"is_recording"`
	SessionID   string         `json:"session_id,omitempty"`
	StartURL    string         `json:"start_url,omitempty"`
	Steps       []RecordedStep `json:"steps"`
}

// FlowExecution is one playback run of a flow, kept for history.
type FlowExecution struct {
	BaseModel
	FlowID         string     `json:"flow_id" gorm:"size:36;index;not null"`
	Flow           Flow       `json:"flow" gorm:"foreignKey:FlowID"`
	Trigger        string     `json:"trigger" gorm:"size:20"` // manual, scheduled
	Status         string     `json:"status" gorm:"size:20"`  // pending, running, passed, failed, cancelled
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time"`
	Duration       int        `json:"duration"` // milliseconds
	StepsTotal     int        `json:"steps_total"`
	StepsCompleted int        `json:"steps_completed"`
	ErrorMessage   string     `json:"error_message" gorm:"type:text"`
	UserID         uint       `json:"user_id"`
}
