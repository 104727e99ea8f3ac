package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Freeeeeet/scheduler_hub/internal/model"
	"go.uber.org/zap"
)

var (
	// ErrQueueFull очередь доставки переполнена, событие отброшено
	ErrQueueFull = errors.New("event queue is full")
	// ErrPublisherClosed публикация после Close
	ErrPublisherClosed = errors.New("publisher is closed")
)

// AsyncConfig настройки фоновой доставки
type AsyncConfig struct {
	QueueSize int           // событий в очереди
	Timeout   time.Duration // на одну доставку
}

func DefaultAsyncConfig() AsyncConfig {
	return AsyncConfig{
		QueueSize: 256,
		Timeout:   5 * time.Second,
	}
}

// AsyncPublisher доставляет события в фоне, не задерживая вызывающего.
// Каждая доставка ограничена Timeout.
type AsyncPublisher struct {
	next   Publisher
	cfg    AsyncConfig
	logger *zap.Logger

	queue chan model.DomainEvent
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewAsyncPublisher(next Publisher, cfg AsyncConfig, logger *zap.Logger) *AsyncPublisher {
	defaults := DefaultAsyncConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}

	p := &AsyncPublisher{
		next:   next,
		cfg:    cfg,
		logger: logger,
		queue:  make(chan model.DomainEvent, cfg.QueueSize),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// Publish ставит событие в очередь и сразу возвращается
func (p *AsyncPublisher) Publish(_ context.Context, event model.DomainEvent) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPublisherClosed
	}
	select {
	case p.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *AsyncPublisher) run() {
	defer p.wg.Done()
	for event := range p.queue {
		p.deliver(event)
	}
}

func (p *AsyncPublisher) deliver(event model.DomainEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
	defer cancel()

	if err := p.next.Publish(ctx, event); err != nil {
		p.logger.Warn("Failed to deliver domain event",
			zap.String("routing_key", event.RoutingKey()),
			zap.Int64("teacher_id", event.TeacherID),
			zap.Error(err))
	}
}

// Close перестаёт принимать события и дожидается доставки очереди
func (p *AsyncPublisher) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	p.wg.Wait()
}
