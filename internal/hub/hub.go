package hub

import (
	"sync"

	"github.com/Freeeeeet/scheduler_hub/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultSendBuffer размер очереди исходящих сообщений клиента
const DefaultSendBuffer = 64

// Client подключённый клиент в комнате календаря учителя
type Client struct {
	ID    uuid.UUID
	Actor model.Actor
	Room  int64 // ID учителя, чей календарь открыт

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient создаёт клиента с очередью указанного размера
func NewClient(actor model.Actor, room int64, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &Client{
		ID:    uuid.New(),
		Actor: actor,
		Room:  room,
		send:  make(chan []byte, buffer),
		done:  make(chan struct{}),
	}
}

// Send канал исходящих сообщений для writer горутины
func (c *Client) Send() <-chan []byte {
	return c.send
}

// Done закрывается, когда клиент отключён
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Enqueue кладёт сообщение в очередь без блокировки.
// Возвращает false, если очередь переполнена или клиент закрыт.
func (c *Client) Enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Close помечает клиента отключённым
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Hub реестр клиентов, сгруппированных по комнатам
type Hub struct {
	mu     sync.RWMutex
	rooms  map[int64]map[*Client]struct{} // teacherID -> clients
	logger *zap.Logger
}

// NewHub создаёт пустой реестр
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		rooms:  make(map[int64]map[*Client]struct{}),
		logger: logger,
	}
}

// Register добавляет клиента в его комнату
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, exists := h.rooms[c.Room]
	if !exists {
		room = make(map[*Client]struct{})
		h.rooms[c.Room] = room
	}
	room[c] = struct{}{}

	h.logger.Debug("Client registered",
		zap.String("client_id", c.ID.String()),
		zap.Int64("user_id", c.Actor.UserID),
		zap.Int64("room", c.Room),
		zap.Int("room_size", len(room)))
}

// Unregister удаляет клиента и закрывает его
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	if room, exists := h.rooms[c.Room]; exists {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, c.Room)
		}
	}
	c.Close()
}

// Broadcast отправляет сообщение всем клиентам комнаты.
// Клиенты с переполненной очередью отключаются.
func (h *Hub) Broadcast(roomID int64, msg []byte) int {
	h.mu.RLock()
	var slow []*Client
	delivered := 0
	for c := range h.rooms[roomID] {
		if c.Enqueue(msg) {
			delivered++
		} else {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	if len(slow) > 0 {
		h.mu.Lock()
		for _, c := range slow {
			h.logger.Warn("Dropping slow client",
				zap.String("client_id", c.ID.String()),
				zap.Int64("user_id", c.Actor.UserID),
				zap.Int64("room", roomID))
			h.removeLocked(c)
		}
		h.mu.Unlock()
	}

	return delivered
}

// RoomSize количество клиентов в комнате
func (h *Hub) RoomSize(roomID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.rooms[roomID])
}

// Rooms возвращает комнаты с активными клиентами
func (h *Hub) Rooms() []int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rooms := make([]int64, 0, len(h.rooms))
	for id := range h.rooms {
		rooms = append(rooms, id)
	}
	return rooms
}

// Close отключает всех клиентов
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, room := range h.rooms {
		for c := range room {
			c.Close()
		}
	}
	h.rooms = make(map[int64]map[*Client]struct{})
}
