// Package notify отправляет участникам уведомления о событиях календаря в Telegram.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Freeeeeet/scheduler_hub/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// Sender отправка сообщений, реализуется *bot.Bot
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Directory поиск получателей
type Directory interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
}

// TelegramNotifier реализует events.Publisher
type TelegramNotifier struct {
	sender    Sender
	directory Directory
	loc       *time.Location
	logger    *zap.Logger
}

// NewTelegramBot создаёт клиента Bot API без запроса getMe при старте
func NewTelegramBot(token string) (*bot.Bot, error) {
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return b, nil
}

func NewTelegramNotifier(sender Sender, directory Directory, loc *time.Location, logger *zap.Logger) *TelegramNotifier {
	if loc == nil {
		loc = time.UTC
	}
	return &TelegramNotifier{
		sender:    sender,
		directory: directory,
		loc:       loc,
		logger:    logger,
	}
}

// Publish отправляет уведомление адресату события, если у него есть Telegram
func (n *TelegramNotifier) Publish(ctx context.Context, event model.DomainEvent) error {
	recipient, text, err := n.compose(event)
	if err != nil {
		return err
	}
	if recipient == 0 || text == "" {
		return nil
	}

	user, err := n.directory.GetUser(ctx, recipient)
	if err != nil {
		return fmt.Errorf("get recipient: %w", err)
	}
	if user.TelegramID == nil {
		n.logger.Debug("Recipient has no telegram, skipping",
			zap.Int64("user_id", recipient),
			zap.String("event", string(event.Type)))
		return nil
	}

	_, err = n.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    *user.TelegramID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	n.logger.Info("Notification sent",
		zap.String("event", string(event.Type)),
		zap.Int64("user_id", recipient))
	return nil
}

// compose определяет получателя и текст. Нулевой получатель - уведомлять некого.
func (n *TelegramNotifier) compose(event model.DomainEvent) (int64, string, error) {
	switch event.Type {
	case model.EventSlotBooked, model.EventBookingConfirmed:
		var slot model.TimeSlot
		if err := json.Unmarshal(event.Payload, &slot); err != nil {
			return 0, "", fmt.Errorf("decode slot payload: %w", err)
		}
		if event.Type == model.EventSlotBooked {
			return slot.TeacherID, bookedText(&slot, n.loc), nil
		}
		if slot.StudentID == nil {
			return 0, "", nil
		}
		return *slot.StudentID, confirmedText(&slot, n.loc), nil

	case model.EventRequestSubmitted, model.EventRequestApproved, model.EventRequestRejected:
		var req model.ScheduleRequest
		if err := json.Unmarshal(event.Payload, &req); err != nil {
			return 0, "", fmt.Errorf("decode request payload: %w", err)
		}

		switch event.Type {
		case model.EventRequestSubmitted:
			return req.TeacherID, submittedText(&req, n.loc), nil
		case model.EventRequestApproved:
			return req.StudentID, approvedText(&req, n.loc), nil
		default:
			return req.StudentID, rejectedText(&req, n.loc), nil
		}
	}

	return 0, "", nil
}
