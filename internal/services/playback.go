package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"webreplay/backend/internal/browser"
	"webreplay/backend/internal/config"
	"webreplay/backend/internal/models"
	"webreplay/backend/internal/player"
	"webreplay/backend/internal/selector"
	"webreplay/backend/pkg/database"
	"webreplay/backend/pkg/logger"
)

var GlobalPlayback *PlaybackService

// PlaybackService ties a playback session together: a browser, a player
// bound to it, and the execution history row tracking the run. One session
// at a time; the player enforces it and so does the service.
type PlaybackService struct {
	cfg    *config.Config
	logger *zap.Logger

	mu      sync.Mutex
	session *browser.Session
	player  *player.Player
	cancel  context.CancelFunc
	execID  uint
}

func InitPlayback(cfg *config.Config) {
	GlobalPlayback = &PlaybackService{
		cfg:    cfg,
		logger: logger.Named("playback"),
	}
}

// gormFlowStore adapts the database to the player's flow loader.
type gormFlowStore struct{}

func (gormFlowStore) GetFlow(ctx context.Context, id string) (*models.Flow, error) {
	var flow models.Flow
	if err := database.DB.WithContext(ctx).First(&flow, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &flow, nil
}

// Start launches a browser and begins replaying the flow. The returned id is
// the execution history row; its status is updated as the run progresses.
func (s *PlaybackService) Start(flowID string, opts models.PlaybackOptions, userID uint, trigger string) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.player != nil {
		return 0, player.ErrBusy
	}

	var flow models.Flow
	if err := database.DB.First(&flow, "id = ?", flowID).Error; err != nil {
		return 0, fmt.Errorf("flow not found: %w", err)
	}
	steps, err := flow.GetSteps()
	if err != nil {
		return 0, fmt.Errorf("flow has malformed steps: %w", err)
	}

	execution := models.FlowExecution{
		FlowID:     flowID,
		Trigger:    trigger,
		Status:     "pending",
		StartTime:  time.Now(),
		StepsTotal: len(steps),
		UserID:     userID,
	}
	if err := database.DB.Create(&execution).Error; err != nil {
		return 0, fmt.Errorf("failed to create execution record: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess, err := browser.NewSession(ctx, browser.Config{
		Headless:     s.cfg.Chrome.HeadlessMode,
		WindowWidth:  s.cfg.Chrome.WindowWidth,
		WindowHeight: s.cfg.Chrome.WindowHeight,
		ChromePath:   s.cfg.Chrome.Path,
		NavTimeout:   time.Duration(s.cfg.Playback.NavTimeoutSec) * time.Second,
	}, s.logger)
	if err != nil {
		cancel()
		s.failExecution(execution.ID, 0, err)
		return execution.ID, err
	}

	retry := selector.RetryPolicy{
		MaxAttempts: s.cfg.Playback.RetryAttempts,
		Interval:    time.Duration(s.cfg.Playback.RetryIntervalMS) * time.Millisecond,
	}
	runner := player.NewRunner(sess, sess, retry, s.logger)
	p := player.New(gormFlowStore{}, sess, runner, s.logger)
	p.SetPacingFloor(time.Duration(s.cfg.Playback.PacingFloorMS) * time.Millisecond)

	if err := p.Play(ctx, flowID, opts); err != nil {
		sess.Close()
		cancel()
		s.failExecution(execution.ID, 0, err)
		return execution.ID, err
	}

	database.DB.Model(&models.FlowExecution{}).
		Where("id = ?", execution.ID).
		Update("status", "running")

	s.session = sess
	s.player = p
	s.cancel = cancel
	s.execID = execution.ID

	go s.watch(p.Wait(), sess, cancel, execution.ID)
	return execution.ID, nil
}

// watch waits for the session result, persists it and tears the browser
// down. It is the only place a playback session ends.
func (s *PlaybackService) watch(wait <-chan player.Result, sess *browser.Session, cancel context.CancelFunc, execID uint) {
	res := <-wait

	end := time.Now()
	updates := map[string]interface{}{
		"status":          res.Status,
		"end_time":        end,
		"duration":        int(res.Duration.Milliseconds()),
		"steps_completed": res.StepsCompleted,
	}
	if res.Err != nil {
		updates["error_message"] = res.Err.Error()
	}
	if err := database.DB.Model(&models.FlowExecution{}).
		Where("id = ?", execID).
		Updates(updates).Error; err != nil {
		s.logger.Error("failed to persist execution result", zap.Uint("execution_id", execID), zap.Error(err))
	}

	sess.Close()
	cancel()

	s.mu.Lock()
	if s.execID == execID {
		s.session = nil
		s.player = nil
		s.cancel = nil
		s.execID = 0
	}
	s.mu.Unlock()
}

func (s *PlaybackService) failExecution(execID uint, completed int, err error) {
	end := time.Now()
	database.DB.Model(&models.FlowExecution{}).
		Where("id = ?", execID).
		Updates(map[string]interface{}{
			"status":          "failed",
			"end_time":        end,
			"steps_completed": completed,
			"error_message":   err.Error(),
		})
}

func (s *PlaybackService) current() (*player.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player == nil {
		return nil, player.ErrNotPlaying
	}
	return s.player, nil
}

func (s *PlaybackService) Pause() error {
	p, err := s.current()
	if err != nil {
		return err
	}
	return p.Pause()
}

func (s *PlaybackService) Resume() error {
	p, err := s.current()
	if err != nil {
		return err
	}
	return p.Resume()
}

func (s *PlaybackService) Stop() error {
	p, err := s.current()
	if err != nil {
		return err
	}
	return p.Stop()
}

func (s *PlaybackService) Advance() error {
	p, err := s.current()
	if err != nil {
		return err
	}
	return p.Advance()
}

// State reports the live controller state, or the idle state when nothing
// is playing.
func (s *PlaybackService) State() models.PlaybackState {
	s.mu.Lock()
	p := s.player
	s.mu.Unlock()
	if p == nil {
		return models.PlaybackState{}
	}
	return p.State()
}
