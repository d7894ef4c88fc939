package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"webreplay/backend/internal/config"
	"webreplay/backend/internal/models"
	"webreplay/backend/internal/recorder"
	"webreplay/backend/pkg/database"
	"webreplay/backend/pkg/logger"
)

var GlobalRecording *RecordingService

// RecordingService fronts the recording manager and streams committed steps
// to connected websocket clients as they happen.
type RecordingService struct {
	manager *recorder.Manager
	logger  *zap.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

func InitRecording(cfg *config.Config) {
	s := &RecordingService{
		logger: logger.Named("recording"),
		conns:  make(map[*websocket.Conn]bool),
	}
	s.manager = recorder.NewManager(recorder.Config{
		// Recording is interactive; the browser is visible regardless of the
		// playback headless setting.
		Headless:     false,
		WindowWidth:  cfg.Chrome.WindowWidth,
		WindowHeight: cfg.Chrome.WindowHeight,
		ChromePath:   cfg.Chrome.Path,
		PollInterval: time.Duration(cfg.Recording.PollIntervalMS) * time.Millisecond,
		Capture: recorder.CaptureOptions{
			InputDebounce:   time.Duration(cfg.Recording.InputDebounceMS) * time.Millisecond,
			ScrollDebounce:  time.Duration(cfg.Recording.ScrollDebounceMS) * time.Millisecond,
			ScrollThreshold: float64(cfg.Recording.ScrollThresholdPX),
		},
	}, s.logger)
	s.manager.Subscribe(s.broadcast)
	GlobalRecording = s
}

func (s *RecordingService) Start(startURL string) (models.RecordingState, error) {
	return s.manager.Start(context.Background(), startURL)
}

func (s *RecordingService) Stop() ([]models.RecordedStep, error) {
	return s.manager.Stop()
}

func (s *RecordingService) State() models.RecordingState {
	return s.manager.State()
}

// SaveFlow persists a finished recording as a new flow.
func (s *RecordingService) SaveFlow(name, description, startURL string, steps []models.RecordedStep, userID uint) (*models.Flow, error) {
	flow := models.Flow{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		StartURL:    startURL,
		UserID:      userID,
	}
	if err := flow.SetSteps(steps); err != nil {
		return nil, err
	}
	if err := database.DB.Create(&flow).Error; err != nil {
		return nil, err
	}
	s.logger.Info("flow saved",
		zap.String("flow_id", flow.ID),
		zap.String("name", flow.Name),
		zap.Int("steps", len(steps)))
	return &flow, nil
}

// AttachConn registers a websocket client for live step updates.
func (s *RecordingService) AttachConn(conn *websocket.Conn) {
	s.mu.Lock()
	s.conns[conn] = true
	s.mu.Unlock()
}

func (s *RecordingService) DetachConn(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *RecordingService) broadcast(step models.RecordedStep) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		if err := conn.WriteJSON(map[string]interface{}{
			"type": "step",
			"step": step,
		}); err != nil {
			s.logger.Debug("websocket write failed, dropping client", zap.Error(err))
			conn.Close()
			delete(s.conns, conn)
		}
	}
}
