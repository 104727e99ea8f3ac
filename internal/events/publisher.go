// Package events delivers committed domain events to external consumers.
package events

import (
	"context"
	"errors"

	"github.com/Freeeeeet/scheduler_hub/internal/model"
	"go.uber.org/zap"
)

// Publisher отправляет доменное событие после коммита
type Publisher interface {
	Publish(ctx context.Context, event model.DomainEvent) error
}

// NoopPublisher только пишет событие в лог
type NoopPublisher struct {
	logger *zap.Logger
}

func NewNoopPublisher(logger *zap.Logger) *NoopPublisher {
	return &NoopPublisher{logger: logger}
}

func (p *NoopPublisher) Publish(_ context.Context, event model.DomainEvent) error {
	p.logger.Debug("Noop publish",
		zap.String("routing_key", event.RoutingKey()),
		zap.Int64("teacher_id", event.TeacherID))
	return nil
}

// MultiPublisher рассылает событие всем получателям.
// Ошибка одного получателя не мешает остальным.
type MultiPublisher struct {
	publishers []Publisher
}

func NewMultiPublisher(publishers ...Publisher) *MultiPublisher {
	return &MultiPublisher{publishers: publishers}
}

func (m *MultiPublisher) Publish(ctx context.Context, event model.DomainEvent) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len количество получателей
func (m *MultiPublisher) Len() int {
	return len(m.publishers)
}
