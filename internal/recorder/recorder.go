// Package recorder captures live browser interaction into replayable steps.
// A thin injected script buffers raw events in the page; this side drains the
// buffer on a fixed cadence and turns the stream into debounced steps.
package recorder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"webreplay/backend/internal/models"
	"webreplay/backend/pkg/chrome"
)

const defaultPollInterval = 100 * time.Millisecond

// drainExpr tolerates the window right after a document swap where the
// capture script has not run yet.
const drainExpr = `window.__wrAgent && window.__wrAgent.recording ? window.__wrAgent.getEvents() : []`

// Listener receives committed steps as they are recorded, for live UI
// streaming. Called from the polling goroutine.
type Listener func(step models.RecordedStep)

// Config describes how recording sessions launch their browser.
type Config struct {
	Headless     bool
	WindowWidth  int
	WindowHeight int
	ChromePath   string
	PollInterval time.Duration
	Capture      CaptureOptions
}

func (c Config) withDefaults() Config {
	if c.WindowWidth <= 0 {
		c.WindowWidth = 1920
	}
	if c.WindowHeight <= 0 {
		c.WindowHeight = 1080
	}
	if c.ChromePath == "" {
		c.ChromePath = chrome.FindChrome()
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	return c
}

type session struct {
	id       string
	startURL string
	capturer *Capturer

	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc

	stopPoll context.CancelFunc
	done     chan struct{}

	notified int
}

// Manager owns recording sessions. At most one can be active; starting a
// second one fails rather than silently stopping the first.
type Manager struct {
	mu        sync.Mutex
	cfg       Config
	logger    *zap.Logger
	active    *session
	listeners []Listener
}

func NewManager(cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{cfg: cfg.withDefaults(), logger: logger}
}

// Subscribe registers a live step listener for all future sessions.
func (m *Manager) Subscribe(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Start launches a browser at startURL and begins capturing. The returned
// state carries the session id clients use to correlate live updates.
func (m *Manager) Start(ctx context.Context, startURL string) (models.RecordingState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return models.RecordingState{}, fmt.Errorf("a recording session is already active")
	}
	if startURL == "" {
		return models.RecordingState{}, fmt.Errorf("start URL is required")
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", m.cfg.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(m.cfg.WindowWidth, m.cfg.WindowHeight),
	)
	if m.cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(m.cfg.ChromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	err := chromedp.Run(browserCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(captureScript).Do(ctx)
			return err
		}),
		chromedp.Navigate(startURL),
	)
	if err != nil {
		cancel()
		allocCancel()
		return models.RecordingState{}, fmt.Errorf("failed to start recording browser: %w", err)
	}

	pollCtx, stopPoll := context.WithCancel(browserCtx)
	s := &session{
		id:          uuid.New().String(),
		startURL:    startURL,
		capturer:    NewCapturer(m.logger, m.cfg.Capture),
		ctx:         browserCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		stopPoll:    stopPoll,
		done:        make(chan struct{}),
	}
	m.active = s

	go m.poll(pollCtx, s)

	m.logger.Info("recording started",
		zap.String("session_id", s.id),
		zap.String("start_url", startURL))
	return models.RecordingState{
		IsRecording: true,
		SessionID:   s.id,
		StartURL:    startURL,
		Steps:       []models.RecordedStep{},
	}, nil
}

// poll drains the page buffer on a fixed cadence until the session stops.
func (m *Manager) poll(ctx context.Context, s *session) {
	defer close(s.done)
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.drain(s)
		}
	}
}

func (m *Manager) drain(s *session) {
	var events []RawEvent
	if err := chromedp.Run(s.ctx, chromedp.Evaluate(drainExpr, &events)); err != nil {
		// Expected during document swaps; the next tick retries.
		m.logger.Debug("event drain failed", zap.Error(err))
		return
	}
	for _, ev := range events {
		s.capturer.Ingest(ev)
	}
	m.publish(s)
}

// publish pushes steps committed since the last drain to all listeners.
func (m *Manager) publish(s *session) {
	steps := s.capturer.Steps()
	if len(steps) <= s.notified {
		return
	}
	m.mu.Lock()
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, step := range steps[s.notified:] {
		for _, l := range listeners {
			l(step)
		}
	}
	s.notified = len(steps)
}

// Stop ends the active session and returns the final debounced step list.
// Pending debounce windows are flushed so trailing input is never lost.
func (m *Manager) Stop() ([]models.RecordedStep, error) {
	m.mu.Lock()
	s := m.active
	m.active = nil
	m.mu.Unlock()

	if s == nil {
		return nil, fmt.Errorf("no active recording session")
	}

	s.stopPoll()
	<-s.done

	// One final synchronous drain before the browser goes away.
	m.drain(s)
	s.capturer.Flush()
	steps := s.capturer.Steps()

	s.cancel()
	s.allocCancel()

	m.logger.Info("recording stopped",
		zap.String("session_id", s.id),
		zap.Int("steps", len(steps)))
	return steps, nil
}

// State reports the current recording session, including steps committed so
// far, or the idle state.
func (m *Manager) State() models.RecordingState {
	m.mu.Lock()
	s := m.active
	m.mu.Unlock()

	if s == nil {
		return models.RecordingState{Steps: []models.RecordedStep{}}
	}
	return models.RecordingState{
		IsRecording: true,
		SessionID:   s.id,
		StartURL:    s.startURL,
		Steps:       s.capturer.Steps(),
	}
}
