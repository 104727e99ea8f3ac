package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/scheduler_hub/internal/model"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// ErrCircuitOpen публикация пропущена, пока получатель недоступен
var ErrCircuitOpen = errors.New("publisher circuit is open")

// BreakerConfig настройки circuit breaker
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32        // запросов в half-open
	Interval         time.Duration // период сброса счётчиков в closed
	Timeout          time.Duration // сколько breaker остаётся open
	FailureThreshold uint32        // подряд идущих ошибок до open
}

func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// BreakerPublisher перестаёт обращаться к получателю после серии ошибок
type BreakerPublisher struct {
	next    Publisher
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  *zap.Logger
}

func NewBreakerPublisher(next Publisher, cfg BreakerConfig, logger *zap.Logger) *BreakerPublisher {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Publisher circuit breaker state changed",
				zap.String("publisher", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &BreakerPublisher{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
		logger:  logger,
	}
}

func (b *BreakerPublisher) Publish(ctx context.Context, event model.DomainEvent) error {
	_, err := b.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Publish(ctx, event)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", ErrCircuitOpen, event.RoutingKey())
	}
	return err
}

// State текущее состояние breaker
func (b *BreakerPublisher) State() gobreaker.State {
	return b.breaker.State()
}
