package app

import (
	"context"
	"sync"
	"time"

	"github.com/Freeeeeet/scheduler_hub/internal/hub"
	"go.uber.org/zap"
)

// RequestExpirer отклоняет заявки, чьё занятие уже началось
type RequestExpirer interface {
	ExpireStaleRequests(ctx context.Context) ([]int64, error)
}

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	expirer  RequestExpirer
	notifier hub.Notifier
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler создаёт новый планировщик
func NewScheduler(expirer RequestExpirer, notifier hub.Notifier, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		expirer:  expirer,
		notifier: notifier,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler", zap.Duration("expiry_interval", s.interval))

	s.wg.Add(1)
	go s.runExpiryTask(ctx)
}

// Stop останавливает фоновые задачи и ждёт их завершения
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping background scheduler")
		close(s.stopChan)
	})
	s.wg.Wait()
}

// runExpiryTask периодически закрывает просроченные заявки
func (s *Scheduler) runExpiryTask(ctx context.Context) {
	defer s.wg.Done()

	// Первый запуск сразу при старте
	s.ExpireRequests(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.ExpireRequests(ctx)
		case <-s.stopChan:
			s.logger.Info("Request expiry task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Request expiry task cancelled")
			return
		}
	}
}

// ExpireRequests один проход: отклоняет заявки и обновляет затронутые календари
func (s *Scheduler) ExpireRequests(ctx context.Context) {
	teachers, err := s.expirer.ExpireStaleRequests(ctx)
	if err != nil {
		s.logger.Error("Failed to expire requests", zap.Error(err))
		return
	}

	for _, teacherID := range teachers {
		if err := s.notifier.CalendarChanged(ctx, teacherID, hub.ScopeRequests|hub.ScopeHistory); err != nil {
			s.logger.Error("Failed to broadcast expired requests",
				zap.Int64("teacher_id", teacherID),
				zap.Error(err))
		}
	}
}
