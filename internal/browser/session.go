// Package browser owns the Chrome side of playback: session lifecycle,
// the injected page agent, expression evaluation and navigation.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"webreplay/backend/pkg/chrome"
)

const (
	// evaluate delivery retries; covers the window right after a navigation
	// where the agent script has not run yet.
	evalAttempts = 3
	evalInterval = 200 * time.Millisecond

	defaultNavTimeout = 30 * time.Second
	navPollInterval   = 100 * time.Millisecond
)

// Config describes one playback browser session.
type Config struct {
	Headless     bool
	WindowWidth  int
	WindowHeight int
	ChromePath   string
	UserAgent    string
	NavTimeout   time.Duration
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
	if c.NavTimeout <= 0 {
		c.NavTimeout = defaultNavTimeout
	}
	return c
}

// Session is a live Chrome tab with the playback agent installed in every
// document it navigates to. It implements the expression evaluator and
// navigator the playback engine is built on.
type Session struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	navTimeout  time.Duration
	logger      *zap.Logger
}

// NewSession launches Chrome and installs the page agent. The session stays
// alive until Close; parent only bounds startup.
func NewSession(parent context.Context, cfg Config, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", cfg.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)
	if cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromePath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(playbackAgentScript).Do(ctx)
		return err
	}))
	if err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser session: %w", err)
	}

	// The injected script only covers future documents; arm the initial one.
	if err := chromedp.Run(ctx, chromedp.Evaluate(playbackAgentScript, nil)); err != nil {
		logger.Warn("agent install on initial document failed", zap.Error(err))
	}

	select {
	case <-parent.Done():
		cancel()
		allocCancel()
		return nil, parent.Err()
	default:
	}

	logger.Info("browser session started",
		zap.Bool("headless", cfg.Headless),
		zap.String("chrome", cfg.ChromePath))
	return &Session{ctx: ctx, cancel: cancel, allocCancel: allocCancel, navTimeout: cfg.NavTimeout, logger: logger}, nil
}

// Evaluate runs expr in the page and decodes the JSON result into out. A
// dead session context aborts immediately instead of burning the retry
// budget; transient evaluation failures are retried a bounded number of
// times to ride out document swaps.
func (s *Session) Evaluate(ctx context.Context, expr string, out any) error {
	var lastErr error
	for attempt := 1; attempt <= evalAttempts; attempt++ {
		if err := s.ctx.Err(); err != nil {
			return fmt.Errorf("browser session closed: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		runCtx := s.ctx
		if deadline, ok := ctx.Deadline(); ok {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithDeadline(s.ctx, deadline)
			defer cancel()
		}
		lastErr = chromedp.Run(runCtx, chromedp.Evaluate(expr, out))
		if lastErr == nil {
			return nil
		}

		s.logger.Debug("evaluate failed, retrying",
			zap.Int("attempt", attempt), zap.Error(lastErr))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(evalInterval):
		}
	}
	return fmt.Errorf("evaluate failed after %d attempts: %w", evalAttempts, lastErr)
}

// Navigate loads url and waits for the document to become interactive, then
// re-arms the agent in case script injection raced the load.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := chromedp.Run(s.ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}

	deadline := time.Now().Add(s.navTimeout)
	for {
		var state string
		err := chromedp.Run(s.ctx, chromedp.Evaluate("document.readyState", &state))
		if err == nil && (state == "interactive" || state == "complete") {
			break
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("navigation to %s did not become interactive", url)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(navPollInterval):
		}
	}

	if err := chromedp.Run(s.ctx, chromedp.Evaluate(playbackAgentScript, nil)); err != nil {
		s.logger.Warn("agent re-install after navigation failed", zap.Error(err))
	}
	return nil
}

// CurrentURL reports the tab's location.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := chromedp.Run(s.ctx, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

// Close tears down the tab and the Chrome process.
func (s *Session) Close() {
	s.cancel()
	s.allocCancel()
	s.logger.Info("browser session closed")
}
