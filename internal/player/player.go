// Package player drives flow replay: load a flow, walk its steps at the
// recorded pace, and expose the pause/resume/stop/advance controls. It owns
// only sequencing and state; element work is delegated to the step runner.
package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"webreplay/backend/internal/models"
)

// DefaultPacingFloor is the minimum wait between steps regardless of speed,
// so even aggressive speed-ups leave the page time to react.
const DefaultPacingFloor = 100 * time.Millisecond

var (
	ErrBusy       = errors.New("a playback session is already active")
	ErrNotPlaying = errors.New("no active playback session")
	ErrNotPaused  = errors.New("playback is not paused")

	// ErrNavigationFailed marks a step error that leaves the session on the
	// wrong page. It always ends the session, whatever the error policy.
	ErrNavigationFailed = errors.New("navigation failed")
)

// FlowStore loads flows for replay.
type FlowStore interface {
	GetFlow(ctx context.Context, id string) (*models.Flow, error)
}

// Navigator controls the browser's location.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

// StepRunner executes one step against the live page.
type StepRunner interface {
	RunStep(ctx context.Context, step models.RecordedStep, opts models.PlaybackOptions) error
}

// Result summarizes one finished playback session.
type Result struct {
	FlowID         string
	Status         string // passed, failed, cancelled
	StepsTotal     int
	StepsCompleted int
	Duration       time.Duration
	Err            error
}

type command int

const (
	cmdPause command = iota
	cmdResume
	cmdStop
	cmdAdvance
)

// Player is the playback controller. At most one session runs at a time; a
// single scheduler goroutine owns all sequencing, so control commands never
// race step execution.
type Player struct {
	store       FlowStore
	nav         Navigator
	runner      StepRunner
	logger      *zap.Logger
	pacingFloor time.Duration

	mu      sync.Mutex
	playing bool
	paused  bool
	flowID  string
	idx     int
	total   int
	opts    models.PlaybackOptions
	cmds    chan command
	result  chan Result
}

func New(store FlowStore, nav Navigator, runner StepRunner, logger *zap.Logger) *Player {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Player{
		store:       store,
		nav:         nav,
		runner:      runner,
		logger:      logger,
		pacingFloor: DefaultPacingFloor,
	}
}

// SetPacingFloor overrides the minimum inter-step wait. Must be called
// before Play; non-positive values keep the default.
func (p *Player) SetPacingFloor(d time.Duration) {
	if d > 0 {
		p.pacingFloor = d
	}
}

// Play starts replaying the flow and returns once the session is running.
// The session outcome is delivered on the channel returned by Wait.
func (p *Player) Play(ctx context.Context, flowID string, opts models.PlaybackOptions) error {
	flow, err := p.store.GetFlow(ctx, flowID)
	if err != nil {
		return fmt.Errorf("failed to load flow: %w", err)
	}
	steps, err := flow.GetSteps()
	if err != nil {
		return fmt.Errorf("flow %s has malformed steps: %w", flowID, err)
	}
	if len(steps) == 0 {
		return fmt.Errorf("flow %s has no steps", flowID)
	}
	if opts.Speed <= 0 {
		opts.Speed = 1.0
	}

	p.mu.Lock()
	if p.playing {
		p.mu.Unlock()
		return ErrBusy
	}
	p.playing = true
	p.paused = false
	p.flowID = flowID
	p.idx = 0
	p.total = len(steps)
	p.opts = opts
	p.cmds = make(chan command, 8)
	p.result = make(chan Result, 1)
	cmds, result := p.cmds, p.result
	p.mu.Unlock()

	if err := p.nav.Navigate(ctx, flow.StartURL); err != nil {
		p.mu.Lock()
		p.playing = false
		p.mu.Unlock()
		return fmt.Errorf("failed to open start URL: %w", err)
	}

	p.logger.Info("playback started",
		zap.String("flow_id", flowID),
		zap.Int("steps", len(steps)),
		zap.Float64("speed", opts.Speed),
		zap.Bool("step_by_step", opts.StepByStep))
	go p.loop(ctx, flowID, steps, opts, cmds, result)
	return nil
}

// Wait returns the channel the active session's result is delivered on, or
// nil when nothing is playing.
func (p *Player) Wait() <-chan Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

// Pause takes effect at the next step boundary; the step in flight finishes.
func (p *Player) Pause() error { return p.send(cmdPause) }

// Resume continues a paused session. The interrupted pacing delay restarts
// in full.
func (p *Player) Resume() error { return p.send(cmdResume) }

// Stop cancels the session; already-executed steps are not undone.
func (p *Player) Stop() error { return p.send(cmdStop) }

// Advance triggers the next step of a step-by-step session.
func (p *Player) Advance() error { return p.send(cmdAdvance) }

func (p *Player) send(c command) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return ErrNotPlaying
	}
	if c == cmdResume && !p.paused {
		return ErrNotPaused
	}
	select {
	case p.cmds <- c:
		return nil
	default:
		return fmt.Errorf("playback controller is not accepting commands")
	}
}

// State reports a point-in-time snapshot of the controller.
func (p *Player) State() models.PlaybackState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return models.PlaybackState{
		IsPlaying:        p.playing,
		IsPaused:         p.paused,
		CurrentFlowID:    p.flowID,
		CurrentStepIndex: p.idx,
		TotalSteps:       p.total,
		Options:          p.opts,
	}
}

// loop is the scheduler: one goroutine, one select, owning pacing, control
// commands and step execution for the whole session.
func (p *Player) loop(ctx context.Context, flowID string, steps []models.RecordedStep, opts models.PlaybackOptions, cmds chan command, result chan Result) {
	start := time.Now()
	completed := 0
	var failure error

	finish := func(status string) {
		p.mu.Lock()
		p.playing = false
		p.paused = false
		p.mu.Unlock()
		res := Result{
			FlowID:         flowID,
			Status:         status,
			StepsTotal:     len(steps),
			StepsCompleted: completed,
			Duration:       time.Since(start),
			Err:            failure,
		}
		p.logger.Info("playback finished",
			zap.String("flow_id", flowID),
			zap.String("status", status),
			zap.Int("completed", completed),
			zap.Duration("duration", res.Duration))
		result <- res
	}

	// The timer starts stopped and drained; armNext is the only place it is
	// reset, so Reset always sees a clean channel.
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()
	paused := false
	timerArmed := false

	armNext := func(i int) {
		if opts.StepByStep {
			timerArmed = false
			return
		}
		d := p.pacing(steps[i].Delay, opts.Speed)
		if i == 0 {
			d = 0
		}
		timer.Reset(d)
		timerArmed = true
	}
	armNext(0)

	i := 0
	for {
		if i >= len(steps) {
			finish("passed")
			return
		}

		var fire <-chan time.Time
		if timerArmed && !paused {
			fire = timer.C
		}

		select {
		case <-ctx.Done():
			failure = ctx.Err()
			finish("cancelled")
			return

		case c := <-cmds:
			switch c {
			case cmdStop:
				finish("cancelled")
				return
			case cmdPause:
				paused = true
				if timerArmed {
					if !timer.Stop() {
						select {
						case <-timer.C:
						default:
						}
					}
					timerArmed = false
				}
				p.setPaused(true)
				p.logger.Info("playback paused", zap.Int("step", i))
			case cmdResume:
				if paused {
					paused = false
					p.setPaused(false)
					armNext(i)
					p.logger.Info("playback resumed", zap.Int("step", i))
				}
			case cmdAdvance:
				if opts.StepByStep && !paused {
					if !p.runStep(ctx, steps[i], opts, &completed, &failure) {
						finish("failed")
						return
					}
					i++
					p.setIndex(i)
					if i < len(steps) {
						armNext(i)
					}
				}
			}

		case <-fire:
			timerArmed = false
			if !p.runStep(ctx, steps[i], opts, &completed, &failure) {
				finish("failed")
				return
			}
			i++
			p.setIndex(i)
			if i < len(steps) {
				armNext(i)
			}
		}
	}
}

// runStep executes one step and applies the error policy. The return value
// is whether the session may continue.
func (p *Player) runStep(ctx context.Context, step models.RecordedStep, opts models.PlaybackOptions, completed *int, failure *error) bool {
	p.logger.Debug("executing step",
		zap.String("type", string(step.Type)),
		zap.String("desc", step.Description))

	if err := p.runner.RunStep(ctx, step, opts); err != nil {
		p.logger.Warn("step failed",
			zap.String("type", string(step.Type)),
			zap.String("desc", step.Description),
			zap.Error(err))
		if errors.Is(err, ErrNavigationFailed) {
			// Every later step assumes the page this one failed to reach.
			*failure = err
			return false
		}
		if opts.StopOnError {
			*failure = err
			return false
		}
		// Continue-on-error still counts the step as processed.
		*completed++
		return true
	}
	*completed++
	return true
}

// pacing scales the recorded inter-step delay by the speed factor, floored
// so replay never outruns the page entirely.
func (p *Player) pacing(delayMS int64, speed float64) time.Duration {
	d := time.Duration(float64(delayMS)/speed) * time.Millisecond
	if d < p.pacingFloor {
		d = p.pacingFloor
	}
	return d
}

func (p *Player) setPaused(v bool) {
	p.mu.Lock()
	p.paused = v
	p.mu.Unlock()
}

func (p *Player) setIndex(i int) {
	p.mu.Lock()
	p.idx = i
	p.mu.Unlock()
}
