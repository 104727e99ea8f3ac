package hub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultRedisChannel канал уведомлений об изменениях календарей
const DefaultRedisChannel = "scheduler:calendar-changed"

// changeNotice сообщение между экземплярами сервера
type changeNotice struct {
	TeacherID int64 `json:"teacherId"`
	Scope     Scope `json:"scope"`
}

func encodeNotice(teacherID int64, scope Scope) ([]byte, error) {
	return json.Marshal(changeNotice{TeacherID: teacherID, Scope: scope})
}

func decodeNotice(payload string) (changeNotice, error) {
	var n changeNotice
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return changeNotice{}, fmt.Errorf("decode change notice: %w", err)
	}
	if n.TeacherID == 0 || n.Scope == 0 {
		return changeNotice{}, fmt.Errorf("decode change notice: empty notice")
	}
	return n, nil
}

// RedisBroadcaster пересылает уведомления через Redis pub/sub, чтобы клиенты
// всех экземпляров сервера получили обновление. Каждый экземпляр, включая
// отправителя, перечитывает состояние из БД и рассылает его локально.
type RedisBroadcaster struct {
	client  *redis.Client
	local   *LocalBroadcaster
	channel string
	logger  *zap.Logger
}

func NewRedisBroadcaster(client *redis.Client, local *LocalBroadcaster, channel string, logger *zap.Logger) *RedisBroadcaster {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisBroadcaster{
		client:  client,
		local:   local,
		channel: channel,
		logger:  logger,
	}
}

// CalendarChanged публикует уведомление в Redis.
// Если Redis недоступен, обновление рассылается хотя бы локально.
func (b *RedisBroadcaster) CalendarChanged(ctx context.Context, teacherID int64, scope Scope) error {
	payload, err := encodeNotice(teacherID, scope)
	if err != nil {
		return err
	}

	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.logger.Warn("Redis publish failed, broadcasting locally",
			zap.Int64("teacher_id", teacherID),
			zap.Error(err))
		return b.local.CalendarChanged(ctx, teacherID, scope)
	}

	return nil
}

// SendSnapshot состояние одному клиенту отдаётся локально
func (b *RedisBroadcaster) SendSnapshot(ctx context.Context, c *Client) error {
	return b.local.SendSnapshot(ctx, c)
}

func (b *RedisBroadcaster) SendHistory(ctx context.Context, c *Client, limit int) error {
	return b.local.SendHistory(ctx, c, limit)
}

// Run подписывается на канал и обрабатывает уведомления до отмены ctx
func (b *RedisBroadcaster) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	// Дожидаемся подтверждения подписки
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	b.logger.Info("Subscribed to calendar changes", zap.String("channel", b.channel))

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Calendar change subscription stopped")
			return nil
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("redis subscription closed")
			}

			notice, err := decodeNotice(msg.Payload)
			if err != nil {
				b.logger.Warn("Skipping malformed change notice", zap.Error(err))
				continue
			}

			if err := b.local.CalendarChanged(ctx, notice.TeacherID, notice.Scope); err != nil {
				b.logger.Error("Failed to broadcast calendar change",
					zap.Int64("teacher_id", notice.TeacherID),
					zap.Error(err))
			}
		}
	}
}
