package services

import (
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"webreplay/backend/internal/models"
	"webreplay/backend/pkg/database"
	"webreplay/backend/pkg/logger"
)

var GlobalScheduler *SchedulerService

// SchedulerService replays flows on their cron expressions. Entries are
// keyed by flow id so rescheduling a flow replaces its previous entry.
type SchedulerService struct {
	cron   *cron.Cron
	logger *zap.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

func InitScheduler() error {
	GlobalScheduler = &SchedulerService{
		cron:    cron.New(),
		logger:  logger.Named("scheduler"),
		entries: make(map[string]cron.EntryID),
	}

	if err := GlobalScheduler.loadScheduledFlows(); err != nil {
		return err
	}

	GlobalScheduler.cron.Start()
	GlobalScheduler.logger.Info("scheduler service initialized")
	return nil
}

func (s *SchedulerService) loadScheduledFlows() error {
	var flows []models.Flow
	err := database.DB.Where("cron_expression != ''").Find(&flows).Error
	if err != nil {
		return err
	}

	for i := range flows {
		if err := s.AddFlowSchedule(&flows[i]); err != nil {
			s.logger.Warn("failed to schedule flow",
				zap.String("flow_id", flows[i].ID),
				zap.String("cron", flows[i].CronExpression),
				zap.Error(err))
		}
	}

	s.logger.Info("loaded scheduled flows", zap.Int("count", len(flows)))
	return nil
}

// AddFlowSchedule registers or replaces the schedule for one flow. A flow
// without a cron expression just has any previous schedule removed.
func (s *SchedulerService) AddFlowSchedule(flow *models.Flow) error {
	s.RemoveFlowSchedule(flow.ID)
	if flow.CronExpression == "" {
		return nil
	}

	flowID := flow.ID
	ownerID := flow.UserID
	entryID, err := s.cron.AddFunc(flow.CronExpression, func() {
		s.runScheduledFlow(flowID, ownerID)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.entries[flow.ID] = entryID
	s.mu.Unlock()

	s.logger.Info("flow scheduled",
		zap.String("flow_id", flow.ID),
		zap.String("cron", flow.CronExpression))
	return nil
}

func (s *SchedulerService) RemoveFlowSchedule(flowID string) {
	s.mu.Lock()
	entryID, ok := s.entries[flowID]
	if ok {
		delete(s.entries, flowID)
	}
	s.mu.Unlock()

	if ok {
		s.cron.Remove(entryID)
		s.logger.Info("flow schedule removed", zap.String("flow_id", flowID))
	}
}

// runScheduledFlow fires one scheduled replay. A busy engine skips the run
// rather than queueing; the next cron tick tries again.
func (s *SchedulerService) runScheduledFlow(flowID string, ownerID uint) {
	if GlobalPlayback == nil {
		s.logger.Warn("playback service not available for scheduled run",
			zap.String("flow_id", flowID))
		return
	}

	opts := models.DefaultPlaybackOptions()
	opts.HighlightElements = false

	execID, err := GlobalPlayback.Start(flowID, opts, ownerID, "scheduled")
	if err != nil {
		s.logger.Warn("scheduled run did not start",
			zap.String("flow_id", flowID),
			zap.Error(err))
		return
	}
	s.logger.Info("scheduled run started",
		zap.String("flow_id", flowID),
		zap.Uint("execution_id", execID))
}

func (s *SchedulerService) Stop() {
	s.cron.Stop()
	s.logger.Info("scheduler service stopped")
}
