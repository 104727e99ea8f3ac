package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Freeeeeet/scheduler_hub/internal/hub"
	"github.com/Freeeeeet/scheduler_hub/internal/model"
	"github.com/Freeeeeet/scheduler_hub/internal/protocol"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service операции календаря, доступные клиентам по websocket
type Service interface {
	AddTimeSlots(ctx context.Context, actor model.Actor, inputs []model.TimeSlotInput) ([]*model.TimeSlot, error)
	BookSlot(ctx context.Context, actor model.Actor, in model.BookSlotInput) (*model.TimeSlot, error)
	ConfirmBooking(ctx context.Context, actor model.Actor, slotID uuid.UUID) (*model.TimeSlot, error)
	DeleteTimeSlot(ctx context.Context, actor model.Actor, slotID uuid.UUID) (*model.TimeSlot, error)
	SubmitModification(ctx context.Context, actor model.Actor, in model.ModificationInput) (*model.ScheduleRequest, error)
	ApproveModification(ctx context.Context, actor model.Actor, requestID uuid.UUID) (*model.ScheduleRequest, error)
	RejectModification(ctx context.Context, actor model.Actor, requestID uuid.UUID, reason string) (*model.ScheduleRequest, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
}

// Router распределяет входящие кадры по операциям сервиса
type Router struct {
	svc         Service
	broadcaster hub.Broadcaster
	logger      *zap.Logger
}

func NewRouter(svc Service, broadcaster hub.Broadcaster, logger *zap.Logger) *Router {
	return &Router{
		svc:         svc,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// change календарь, который затронула операция
type change struct {
	teacherID int64
	scope     hub.Scope
}

// Handle обрабатывает один кадр клиента
func (r *Router) Handle(ctx context.Context, c *hub.Client, frame []byte) {
	env, err := protocol.Decode(frame)
	if err != nil {
		r.replyError(c, env, err)
		return
	}

	r.logger.Debug("Routing intent",
		zap.String("event", env.Event),
		zap.String("ref", env.ID),
		zap.Int64("user_id", c.Actor.UserID),
		zap.Int64("room", c.Room))

	var ch change
	switch env.Event {
	case protocol.EventAddTimeSlots:
		ch, err = r.addTimeSlots(ctx, c, env.Data)
	case protocol.EventBookSlot:
		ch, err = r.bookSlot(ctx, c, env.Data)
	case protocol.EventConfirmBooking:
		ch, err = r.confirmBooking(ctx, c, env.Data)
	case protocol.EventDeleteTimeSlot:
		ch, err = r.deleteTimeSlot(ctx, c, env.Data)
	case protocol.EventModifyRequest:
		ch, err = r.modifyRequest(ctx, c, env.Data)
	case protocol.EventApproveModification:
		ch, err = r.approveModification(ctx, c, env.Data)
	case protocol.EventRejectModification:
		ch, err = r.rejectModification(ctx, c, env.Data)
	case protocol.EventRequestInitialData:
		err = r.SendInitialData(ctx, c)
	case protocol.EventRequestProcessedHistory:
		err = r.sendHistory(ctx, c, env.Data)
	default:
		err = fmt.Errorf("%w: unknown event %q", model.ErrInvalidRequest, env.Event)
	}

	if err != nil {
		r.replyError(c, env, err)
		return
	}

	if env.ID != "" {
		r.reply(c, protocol.EventAck, protocol.AckPayload{Ref: env.ID, Event: env.Event})
	}

	if ch.scope != 0 {
		if err := r.broadcaster.CalendarChanged(ctx, ch.teacherID, ch.scope); err != nil {
			r.logger.Error("Failed to broadcast change",
				zap.String("event", env.Event),
				zap.Int64("teacher_id", ch.teacherID),
				zap.Error(err))
		}
	}
}

// SendInitialData отправляет клиенту состояние календаря его комнаты.
// Снимок читается под замком комнаты, поэтому не обгонит более новую рассылку.
func (r *Router) SendInitialData(ctx context.Context, c *hub.Client) error {
	return r.broadcaster.SendSnapshot(ctx, c)
}

func (r *Router) sendHistory(ctx context.Context, c *hub.Client, data json.RawMessage) error {
	var in struct {
		Limit int `json:"limit"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &in); err != nil {
			return fmt.Errorf("%w: %v", model.ErrInvalidRequest, err)
		}
	}

	return r.broadcaster.SendHistory(ctx, c, in.Limit)
}

func (r *Router) addTimeSlots(ctx context.Context, c *hub.Client, data json.RawMessage) (change, error) {
	inputs, err := decodeSlotInputs(data)
	if err != nil {
		return change{}, err
	}

	if _, err := r.svc.AddTimeSlots(ctx, c.Actor, inputs); err != nil {
		return change{}, err
	}
	return change{teacherID: c.Actor.UserID, scope: hub.ScopeSlots}, nil
}

func (r *Router) bookSlot(ctx context.Context, c *hub.Client, data json.RawMessage) (change, error) {
	var in model.BookSlotInput
	if err := decode(data, &in); err != nil {
		return change{}, err
	}

	slot, err := r.svc.BookSlot(ctx, c.Actor, in)
	if err != nil {
		return change{}, err
	}
	return change{teacherID: slot.TeacherID, scope: hub.ScopeSlots}, nil
}

func (r *Router) confirmBooking(ctx context.Context, c *hub.Client, data json.RawMessage) (change, error) {
	slotID, err := decodeUUID(data, "slotId")
	if err != nil {
		return change{}, err
	}

	slot, err := r.svc.ConfirmBooking(ctx, c.Actor, slotID)
	if err != nil {
		return change{}, err
	}
	return change{teacherID: slot.TeacherID, scope: hub.ScopeSlots}, nil
}

func (r *Router) deleteTimeSlot(ctx context.Context, c *hub.Client, data json.RawMessage) (change, error) {
	slotID, err := decodeUUID(data, "slotId")
	if err != nil {
		return change{}, err
	}

	slot, err := r.svc.DeleteTimeSlot(ctx, c.Actor, slotID)
	if err != nil {
		return change{}, err
	}
	return change{teacherID: slot.TeacherID, scope: hub.ScopeAll}, nil
}

func (r *Router) modifyRequest(ctx context.Context, c *hub.Client, data json.RawMessage) (change, error) {
	var in model.ModificationInput
	if err := decode(data, &in); err != nil {
		return change{}, err
	}

	req, err := r.svc.SubmitModification(ctx, c.Actor, in)
	if err != nil {
		return change{}, err
	}
	return change{teacherID: req.TeacherID, scope: hub.ScopeRequests}, nil
}

func (r *Router) approveModification(ctx context.Context, c *hub.Client, data json.RawMessage) (change, error) {
	requestID, err := decodeUUID(data, "requestId")
	if err != nil {
		return change{}, err
	}

	req, err := r.svc.ApproveModification(ctx, c.Actor, requestID)
	if err != nil {
		return change{}, err
	}
	return change{teacherID: req.TeacherID, scope: hub.ScopeAll}, nil
}

func (r *Router) rejectModification(ctx context.Context, c *hub.Client, data json.RawMessage) (change, error) {
	in, err := decodeReject(data)
	if err != nil {
		r.reply(c, protocol.EventModificationRejected, protocol.RejectedPayload{Error: err.Error()})
		return change{}, err
	}

	req, err := r.svc.RejectModification(ctx, c.Actor, in.id, in.reason)
	if err != nil {
		r.reply(c, protocol.EventModificationRejected, protocol.RejectedPayload{Error: clientMessage(err)})
		return change{}, err
	}

	r.reply(c, protocol.EventModificationRejected, protocol.RejectedPayload{Success: true})
	return change{teacherID: req.TeacherID, scope: hub.ScopeRequests | hub.ScopeHistory}, nil
}

func (r *Router) reply(c *hub.Client, event string, data any) {
	frame, err := protocol.Encode(event, data)
	if err != nil {
		r.logger.Error("Failed to encode reply", zap.String("event", event), zap.Error(err))
		return
	}
	if !c.Enqueue(frame) {
		r.logger.Warn("Reply dropped, client queue full",
			zap.String("event", event),
			zap.String("client_id", c.ID.String()))
	}
}

func (r *Router) replyError(c *hub.Client, env protocol.Envelope, err error) {
	code := model.Code(err)
	if code == model.CodeInternal {
		r.logger.Error("Intent failed",
			zap.String("event", env.Event),
			zap.Int64("user_id", c.Actor.UserID),
			zap.Error(err))
	} else {
		r.logger.Info("Intent rejected",
			zap.String("event", env.Event),
			zap.Int64("user_id", c.Actor.UserID),
			zap.String("code", string(code)),
			zap.Error(err))
	}

	r.reply(c, protocol.EventError, protocol.ErrorPayload{
		Ref:     env.ID,
		Event:   env.Event,
		Code:    code,
		Message: clientMessage(err),
	})
}

// clientMessage скрывает детали внутренних ошибок
func clientMessage(err error) string {
	if model.Code(err) == model.CodeInternal {
		return "internal error"
	}
	return err.Error()
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", model.ErrInvalidRequest)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidRequest, err)
	}
	return nil
}

func decodeUUID(data json.RawMessage, field string) (uuid.UUID, error) {
	raw, err := protocol.DecodeID(data, field)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s is not a uuid", model.ErrInvalidRequest, field)
	}
	return id, nil
}

// decodeSlotInputs принимает массив слотов или объект {"timeSlots": [...]}
func decodeSlotInputs(data json.RawMessage) ([]model.TimeSlotInput, error) {
	var inputs []model.TimeSlotInput
	if err := json.Unmarshal(data, &inputs); err == nil {
		return inputs, nil
	}

	var wrapped struct {
		TimeSlots []model.TimeSlotInput `json:"timeSlots"`
	}
	if err := decode(data, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.TimeSlots, nil
}

type rejectArgs struct {
	id     uuid.UUID
	reason string
}

func decodeReject(data json.RawMessage) (rejectArgs, error) {
	var in protocol.RejectInput
	if err := json.Unmarshal(data, &in.RequestID); err != nil {
		if err := decode(data, &in); err != nil {
			return rejectArgs{}, err
		}
	}

	id, err := uuid.Parse(in.RequestID)
	if err != nil {
		return rejectArgs{}, fmt.Errorf("%w: requestId is not a uuid", model.ErrInvalidRequest)
	}
	return rejectArgs{id: id, reason: in.Reason}, nil
}
