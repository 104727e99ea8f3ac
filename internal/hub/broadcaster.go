package hub

import (
	"context"
	"fmt"
	"sync"

	"github.com/Freeeeeet/scheduler_hub/internal/model"
	"github.com/Freeeeeet/scheduler_hub/internal/protocol"
	"go.uber.org/zap"
)

// Scope какие части календаря изменились
type Scope uint8

const (
	ScopeSlots Scope = 1 << iota
	ScopeRequests
	ScopeHistory

	ScopeAll = ScopeSlots | ScopeRequests | ScopeHistory
)

func (s Scope) Has(flag Scope) bool {
	return s&flag != 0
}

// Notifier сообщает подключённым клиентам об изменении календаря
type Notifier interface {
	CalendarChanged(ctx context.Context, teacherID int64, scope Scope) error
}

// Broadcaster дополнительно отдаёт состояние одному клиенту в общем
// порядке рассылок его комнаты
type Broadcaster interface {
	Notifier
	SendSnapshot(ctx context.Context, c *Client) error
	SendHistory(ctx context.Context, c *Client, limit int) error
}

// SnapshotSource читает закоммиченное состояние календаря
type SnapshotSource interface {
	ListSlots(ctx context.Context, teacherID int64) ([]*model.TimeSlot, error)
	ListPendingRequests(ctx context.Context, teacherID int64) ([]*model.ScheduleRequest, error)
	ProcessedHistory(ctx context.Context, teacherID int64, limit int) ([]*model.ScheduleRequest, error)
}

// LocalBroadcaster перечитывает состояние и рассылает его клиентам этого процесса.
// Чтение и постановка в очередь сериализованы по комнате, включая initial-data
// и историю для одного клиента, поэтому клиенты получают снимки в порядке
// их чтения и сходятся к последнему закоммиченному состоянию.
type LocalBroadcaster struct {
	hub    *Hub
	source SnapshotSource
	logger *zap.Logger

	mu    sync.Mutex
	locks map[int64]*roomLock
}

// roomLock удаляется из карты, когда его никто не держит и не ждёт
type roomLock struct {
	mu   sync.Mutex
	refs int
}

var _ Broadcaster = (*LocalBroadcaster)(nil)

func NewLocalBroadcaster(h *Hub, source SnapshotSource, logger *zap.Logger) *LocalBroadcaster {
	return &LocalBroadcaster{
		hub:    h,
		source: source,
		logger: logger,
		locks:  make(map[int64]*roomLock),
	}
}

// lockRoom захватывает замок комнаты и возвращает функцию освобождения
func (b *LocalBroadcaster) lockRoom(teacherID int64) func() {
	b.mu.Lock()
	l, ok := b.locks[teacherID]
	if !ok {
		l = &roomLock{}
		b.locks[teacherID] = l
	}
	l.refs++
	b.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		b.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(b.locks, teacherID)
		}
		b.mu.Unlock()
	}
}

// lockedRooms количество комнат с активным замком
func (b *LocalBroadcaster) lockedRooms() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.locks)
}

// CalendarChanged рассылает обновлённые списки комнате учителя
func (b *LocalBroadcaster) CalendarChanged(ctx context.Context, teacherID int64, scope Scope) error {
	// Нет слушателей - нечего перечитывать
	if b.hub.RoomSize(teacherID) == 0 {
		return nil
	}

	unlock := b.lockRoom(teacherID)
	defer unlock()

	if scope.Has(ScopeSlots) {
		slots, err := b.source.ListSlots(ctx, teacherID)
		if err != nil {
			return fmt.Errorf("load slots: %w", err)
		}
		if err := b.send(teacherID, protocol.EventSlotsUpdated, slots); err != nil {
			return err
		}
	}

	if scope.Has(ScopeRequests) {
		requests, err := b.source.ListPendingRequests(ctx, teacherID)
		if err != nil {
			return fmt.Errorf("load requests: %w", err)
		}
		if err := b.send(teacherID, protocol.EventRequestsUpdated, requests); err != nil {
			return err
		}
	}

	if scope.Has(ScopeHistory) {
		history, err := b.source.ProcessedHistory(ctx, teacherID, 0)
		if err != nil {
			return fmt.Errorf("load history: %w", err)
		}
		if err := b.send(teacherID, protocol.EventProcessedHistory, history); err != nil {
			return err
		}
	}

	return nil
}

// SendSnapshot отправляет клиенту initial-data его комнаты
func (b *LocalBroadcaster) SendSnapshot(ctx context.Context, c *Client) error {
	unlock := b.lockRoom(c.Room)
	defer unlock()

	slots, err := b.source.ListSlots(ctx, c.Room)
	if err != nil {
		return fmt.Errorf("load slots: %w", err)
	}
	requests, err := b.source.ListPendingRequests(ctx, c.Room)
	if err != nil {
		return fmt.Errorf("load requests: %w", err)
	}

	return b.sendTo(c, protocol.EventInitialData, model.Snapshot{TimeSlots: slots, ScheduleRequests: requests})
}

// SendHistory отправляет клиенту processed-history его комнаты
func (b *LocalBroadcaster) SendHistory(ctx context.Context, c *Client, limit int) error {
	unlock := b.lockRoom(c.Room)
	defer unlock()

	history, err := b.source.ProcessedHistory(ctx, c.Room, limit)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	return b.sendTo(c, protocol.EventProcessedHistory, history)
}

func (b *LocalBroadcaster) sendTo(c *Client, event string, data any) error {
	frame, err := protocol.Encode(event, data)
	if err != nil {
		return err
	}

	if !c.Enqueue(frame) {
		b.logger.Warn("Frame dropped, client queue full",
			zap.String("event", event),
			zap.String("client_id", c.ID.String()))
	}
	return nil
}

func (b *LocalBroadcaster) send(teacherID int64, event string, data any) error {
	frame, err := protocol.Encode(event, data)
	if err != nil {
		return err
	}

	delivered := b.hub.Broadcast(teacherID, frame)
	b.logger.Debug("Broadcast sent",
		zap.String("event", event),
		zap.Int64("room", teacherID),
		zap.Int("delivered", delivered))
	return nil
}
