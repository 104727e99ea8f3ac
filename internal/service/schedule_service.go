package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/scheduler_hub/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MaxSlotsPerBatch     = 200
	MaxCourseContentLen  = 500
	MaxReasonLen         = 500
	DefaultHistoryLimit  = 100
	maxStudentNameLength = 100
)

// EventPublisher получает доменные события после коммита
type EventPublisher interface {
	Publish(ctx context.Context, event model.DomainEvent) error
}

// ScheduleService владеет всеми переходами состояний слотов и заявок
type ScheduleService struct {
	store     Store
	publisher EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// Option настраивает ScheduleService
type Option func(*ScheduleService)

// WithClock подменяет источник времени
func WithClock(now func() time.Time) Option {
	return func(s *ScheduleService) {
		s.now = now
	}
}

// WithPublisher задаёт получателя доменных событий
func WithPublisher(p EventPublisher) Option {
	return func(s *ScheduleService) {
		s.publisher = p
	}
}

func NewScheduleService(store Store, logger *zap.Logger, opts ...Option) *ScheduleService {
	s := &ScheduleService{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddTimeSlots создаёт пачку свободных слотов учителя.
// Пачка применяется целиком или не применяется вовсе.
// Слот с уже существующим ID и теми же границами пропускается (повторная отправка).
func (s *ScheduleService) AddTimeSlots(ctx context.Context, actor model.Actor, inputs []model.TimeSlotInput) ([]*model.TimeSlot, error) {
	if !actor.IsTeacher() {
		return nil, model.ErrNotATeacher
	}

	if len(inputs) == 0 {
		return nil, model.ErrEmptyBatch
	}

	if len(inputs) > MaxSlotsPerBatch {
		return nil, fmt.Errorf("%w: %d > %d", model.ErrBatchTooLarge, len(inputs), MaxSlotsPerBatch)
	}

	now := s.now()

	// Валидация времени и пересечений внутри пачки
	for i, in := range inputs {
		if !in.EndTime.After(in.StartTime) {
			return nil, fmt.Errorf("slot %d: %w", i, model.ErrInvalidInterval)
		}
		if in.StartTime.Before(now) {
			return nil, fmt.Errorf("slot %d: %w", i, model.ErrSlotInPast)
		}
		for j := 0; j < i; j++ {
			if inputs[j].StartTime.Before(in.EndTime) && in.StartTime.Before(inputs[j].EndTime) {
				return nil, fmt.Errorf("slots %d and %d: %w", j, i, model.ErrSlotOverlap)
			}
		}
	}

	var created []*model.TimeSlot
	result := make([]*model.TimeSlot, 0, len(inputs))

	err := s.store.InTx(ctx, func(ctx context.Context, repos Repos) error {
		for _, in := range inputs {
			if in.ID != uuid.Nil {
				existing, err := repos.Slots.GetByID(ctx, in.ID)
				if err != nil {
					return fmt.Errorf("get slot: %w", err)
				}
				if existing != nil {
					if existing.TeacherID == actor.UserID &&
						existing.StartTime.Equal(in.StartTime) &&
						existing.EndTime.Equal(in.EndTime) {
						result = append(result, existing)
						continue
					}
					return fmt.Errorf("slot %s: %w", in.ID, model.ErrSlotConflict)
				}
			}

			overlapping, err := repos.Slots.FindOverlapping(ctx, actor.UserID, in.StartTime, in.EndTime, uuid.Nil)
			if err != nil {
				return fmt.Errorf("find overlapping: %w", err)
			}
			if len(overlapping) > 0 {
				return fmt.Errorf("slot %s - %s overlaps %s: %w",
					in.StartTime.Format(time.RFC3339), in.EndTime.Format(time.RFC3339),
					overlapping[0].ID, model.ErrSlotOverlap)
			}

			id := in.ID
			if id == uuid.Nil {
				id = uuid.New()
			}

			slot := &model.TimeSlot{
				ID:        id,
				TeacherID: actor.UserID,
				StartTime: in.StartTime,
				EndTime:   in.EndTime,
				Status:    model.SlotStatusFree,
				CreatedAt: now,
				UpdatedAt: now,
			}

			if err := repos.Slots.Create(ctx, slot); err != nil {
				return fmt.Errorf("create slot: %w", err)
			}

			created = append(created, slot)
			result = append(result, slot)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Time slots added",
		zap.Int64("teacher_id", actor.UserID),
		zap.Int("requested", len(inputs)),
		zap.Int("created", len(created)),
	)

	for _, slot := range created {
		s.publish(ctx, model.NewSlotEvent(model.EventSlotCreated, actor, slot, now))
	}

	return result, nil
}

// BookSlot бронирует свободный слот для студента
func (s *ScheduleService) BookSlot(ctx context.Context, actor model.Actor, in model.BookSlotInput) (*model.TimeSlot, error) {
	if !actor.IsStudent() {
		return nil, model.ErrNotAStudent
	}

	if in.StudentID != 0 && in.StudentID != actor.UserID {
		return nil, model.ErrForbidden
	}

	content := strings.TrimSpace(in.CourseContent)
	if len([]rune(content)) > MaxCourseContentLen {
		return nil, model.ErrContentTooLong
	}

	name := strings.TrimSpace(in.StudentName)
	if name == "" {
		name = actor.Name
	}
	if r := []rune(name); len(r) > maxStudentNameLength {
		name = string(r[:maxStudentNameLength])
	}

	now := s.now()
	var booked *model.TimeSlot
	changed := false

	err := s.store.InTx(ctx, func(ctx context.Context, repos Repos) error {
		slot, err := repos.Slots.GetByIDForUpdate(ctx, in.SlotID)
		if err != nil {
			return fmt.Errorf("get slot: %w", err)
		}

		if slot == nil {
			return model.ErrSlotNotFound
		}

		// Повторная отправка того же бронирования
		if slot.HeldBy(actor.UserID) {
			booked = slot
			return nil
		}

		if !slot.IsFree() {
			return model.ErrSlotUnavailable
		}

		if !slot.StartTime.After(now) {
			return model.ErrSlotInPast
		}

		studentID := actor.UserID
		slot.Status = model.SlotStatusBusy
		slot.IsConfirmed = false
		slot.StudentID = &studentID
		slot.StudentName = name
		slot.CourseContent = content
		slot.UpdatedAt = now

		if err := repos.Slots.Update(ctx, slot); err != nil {
			return fmt.Errorf("book slot: %w", err)
		}

		booked = slot
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.logger.Info("Slot booked",
			zap.String("slot_id", booked.ID.String()),
			zap.Int64("teacher_id", booked.TeacherID),
			zap.Int64("student_id", actor.UserID),
		)
		s.publish(ctx, model.NewSlotEvent(model.EventSlotBooked, actor, booked, now))
	}

	return booked, nil
}

// ConfirmBooking подтверждает бронирование учителем
func (s *ScheduleService) ConfirmBooking(ctx context.Context, actor model.Actor, slotID uuid.UUID) (*model.TimeSlot, error) {
	if !actor.IsTeacher() {
		return nil, model.ErrNotATeacher
	}

	now := s.now()
	var confirmed *model.TimeSlot
	changed := false

	err := s.store.InTx(ctx, func(ctx context.Context, repos Repos) error {
		slot, err := s.ownedSlot(ctx, repos, actor, slotID)
		if err != nil {
			return err
		}

		if slot.IsFree() {
			return model.ErrSlotNotBooked
		}

		if slot.IsConfirmed {
			confirmed = slot
			return nil
		}

		slot.IsConfirmed = true
		slot.UpdatedAt = now

		if err := repos.Slots.Update(ctx, slot); err != nil {
			return fmt.Errorf("confirm booking: %w", err)
		}

		confirmed = slot
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.logger.Info("Booking confirmed",
			zap.String("slot_id", slotID.String()),
			zap.Int64("teacher_id", actor.UserID),
		)
		s.publish(ctx, model.NewSlotEvent(model.EventBookingConfirmed, actor, confirmed, now))
	}

	return confirmed, nil
}

// DeleteTimeSlot удаляет свободный слот учителя
func (s *ScheduleService) DeleteTimeSlot(ctx context.Context, actor model.Actor, slotID uuid.UUID) (*model.TimeSlot, error) {
	if !actor.IsTeacher() {
		return nil, model.ErrNotATeacher
	}

	var deleted *model.TimeSlot

	err := s.store.InTx(ctx, func(ctx context.Context, repos Repos) error {
		slot, err := s.ownedSlot(ctx, repos, actor, slotID)
		if err != nil {
			return err
		}

		if !slot.IsFree() {
			return model.ErrSlotBooked
		}

		if err := repos.Slots.Delete(ctx, slotID); err != nil {
			return fmt.Errorf("delete slot: %w", err)
		}

		deleted = slot
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Slot deleted",
		zap.String("slot_id", slotID.String()),
		zap.Int64("teacher_id", actor.UserID),
	)
	s.publish(ctx, model.NewSlotEvent(model.EventSlotDeleted, actor, deleted, s.now()))

	return deleted, nil
}

// SubmitModification создаёт заявку студента на перенос или отмену занятия
func (s *ScheduleService) SubmitModification(ctx context.Context, actor model.Actor, in model.ModificationInput) (*model.ScheduleRequest, error) {
	if !actor.IsStudent() {
		return nil, model.ErrNotAStudent
	}

	now := s.now()

	switch in.Type {
	case model.RequestTypeReschedule:
		if in.NewStartTime == nil || in.NewEndTime == nil {
			return nil, fmt.Errorf("%w: reschedule needs new start and end time", model.ErrInvalidRequest)
		}
		if !in.NewEndTime.After(*in.NewStartTime) {
			return nil, model.ErrInvalidInterval
		}
		if in.NewStartTime.Before(now) {
			return nil, model.ErrSlotInPast
		}
	case model.RequestTypeCancel:
		in.NewStartTime = nil
		in.NewEndTime = nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", model.ErrInvalidRequest, in.Type)
	}

	reason := strings.TrimSpace(in.Reason)
	if len([]rune(reason)) > MaxReasonLen {
		return nil, fmt.Errorf("%w: reason is too long", model.ErrInvalidRequest)
	}

	var created *model.ScheduleRequest
	changed := false

	err := s.store.InTx(ctx, func(ctx context.Context, repos Repos) error {
		if in.ID != uuid.Nil {
			existing, err := repos.Requests.GetByID(ctx, in.ID)
			if err != nil {
				return fmt.Errorf("get request: %w", err)
			}
			if existing != nil {
				if existing.StudentID != actor.UserID || existing.SlotID != in.SlotID {
					return model.ErrForbidden
				}
				created = existing
				return nil
			}
		}

		slot, err := repos.Slots.GetByIDForUpdate(ctx, in.SlotID)
		if err != nil {
			return fmt.Errorf("get slot: %w", err)
		}

		if slot == nil {
			return model.ErrSlotNotFound
		}

		if !slot.HeldBy(actor.UserID) {
			return model.ErrNotSlotHolder
		}

		pending, err := repos.Requests.GetPendingBySlot(ctx, slot.ID)
		if err != nil {
			return fmt.Errorf("get pending request: %w", err)
		}
		if pending != nil {
			return model.ErrRequestPending
		}

		id := in.ID
		if id == uuid.Nil {
			id = uuid.New()
		}

		req := &model.ScheduleRequest{
			ID:            id,
			SlotID:        slot.ID,
			SlotStartTime: slot.StartTime,
			SlotEndTime:   slot.EndTime,
			TeacherID:     slot.TeacherID,
			StudentID:     actor.UserID,
			StudentName:   slot.StudentName,
			Type:          in.Type,
			NewStartTime:  in.NewStartTime,
			NewEndTime:    in.NewEndTime,
			Reason:        reason,
			Status:        model.RequestStatusPending,
			CreatedAt:     now,
		}

		if err := repos.Requests.Create(ctx, req); err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		created = req
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.logger.Info("Modification requested",
			zap.String("request_id", created.ID.String()),
			zap.String("slot_id", created.SlotID.String()),
			zap.String("type", string(created.Type)),
			zap.Int64("student_id", actor.UserID),
		)
		s.publish(ctx, model.NewRequestEvent(model.EventRequestSubmitted, actor, created, now))
	}

	return created, nil
}

// ApproveModification применяет заявку к слоту
func (s *ScheduleService) ApproveModification(ctx context.Context, actor model.Actor, requestID uuid.UUID) (*model.ScheduleRequest, error) {
	if !actor.IsTeacher() {
		return nil, model.ErrNotATeacher
	}

	now := s.now()
	var approved *model.ScheduleRequest

	err := s.store.InTx(ctx, func(ctx context.Context, repos Repos) error {
		req, err := s.pendingRequest(ctx, repos, actor, requestID)
		if err != nil {
			return err
		}

		slot, err := repos.Slots.GetByIDForUpdate(ctx, req.SlotID)
		if err != nil {
			return fmt.Errorf("get slot: %w", err)
		}

		if slot == nil {
			return model.ErrSlotNotFound
		}

		if !slot.HeldBy(req.StudentID) {
			return model.ErrRequestStale
		}

		switch req.Type {
		case model.RequestTypeReschedule:
			start, end := *req.NewStartTime, *req.NewEndTime
			if start.Before(now) {
				return model.ErrSlotInPast
			}
			overlapping, err := repos.Slots.FindOverlapping(ctx, slot.TeacherID, start, end, slot.ID)
			if err != nil {
				return fmt.Errorf("find overlapping: %w", err)
			}
			if len(overlapping) > 0 {
				return model.ErrSlotOverlap
			}
			slot.StartTime = start
			slot.EndTime = end
		case model.RequestTypeCancel:
			slot.Release()
		}

		slot.UpdatedAt = now
		if err := repos.Slots.Update(ctx, slot); err != nil {
			return fmt.Errorf("update slot: %w", err)
		}

		resolve(req, model.RequestStatusApproved, "", actor.UserID, now)
		if err := repos.Requests.Update(ctx, req); err != nil {
			return fmt.Errorf("update request: %w", err)
		}

		approved = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Modification approved",
		zap.String("request_id", requestID.String()),
		zap.String("type", string(approved.Type)),
		zap.Int64("teacher_id", actor.UserID),
	)
	s.publish(ctx, model.NewRequestEvent(model.EventRequestApproved, actor, approved, now))

	return approved, nil
}

// RejectModification отклоняет заявку, слот не меняется
func (s *ScheduleService) RejectModification(ctx context.Context, actor model.Actor, requestID uuid.UUID, reason string) (*model.ScheduleRequest, error) {
	if !actor.IsTeacher() {
		return nil, model.ErrNotATeacher
	}

	now := s.now()
	var rejected *model.ScheduleRequest

	err := s.store.InTx(ctx, func(ctx context.Context, repos Repos) error {
		req, err := s.pendingRequest(ctx, repos, actor, requestID)
		if err != nil {
			return err
		}

		resolve(req, model.RequestStatusRejected, strings.TrimSpace(reason), actor.UserID, now)
		if err := repos.Requests.Update(ctx, req); err != nil {
			return fmt.Errorf("update request: %w", err)
		}

		rejected = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Modification rejected",
		zap.String("request_id", requestID.String()),
		zap.Int64("teacher_id", actor.UserID),
	)
	s.publish(ctx, model.NewRequestEvent(model.EventRequestRejected, actor, rejected, now))

	return rejected, nil
}

// ExpireStaleRequests отклоняет pending заявки, чьё занятие уже началось.
// Возвращает ID учителей, чьи календари изменились.
func (s *ScheduleService) ExpireStaleRequests(ctx context.Context) ([]int64, error) {
	now := s.now()

	stale, err := s.store.Repos().Requests.ListPendingStartedBefore(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list stale requests: %w", err)
	}

	system := model.Actor{Role: model.RoleTeacher}
	seen := make(map[int64]bool)
	var teachers []int64

	for _, candidate := range stale {
		var expired *model.ScheduleRequest
		err := s.store.InTx(ctx, func(ctx context.Context, repos Repos) error {
			req, err := repos.Requests.GetByIDForUpdate(ctx, candidate.ID)
			if err != nil {
				return fmt.Errorf("get request: %w", err)
			}
			if req == nil || !req.IsPending() {
				return nil
			}
			resolve(req, model.RequestStatusRejected, model.ResolutionExpired, 0, now)
			req.ProcessedBy = nil
			if err := repos.Requests.Update(ctx, req); err != nil {
				return fmt.Errorf("update request: %w", err)
			}
			expired = req
			return nil
		})
		if err != nil {
			s.logger.Error("Failed to expire request",
				zap.String("request_id", candidate.ID.String()),
				zap.Error(err))
			continue
		}
		if expired == nil {
			continue
		}

		s.publish(ctx, model.NewRequestEvent(model.EventRequestRejected, system, expired, now))
		if !seen[expired.TeacherID] {
			seen[expired.TeacherID] = true
			teachers = append(teachers, expired.TeacherID)
		}
	}

	if len(teachers) > 0 {
		s.logger.Info("Stale requests expired",
			zap.Int("candidates", len(stale)),
			zap.Int("teachers", len(teachers)),
		)
	}

	return teachers, nil
}

// InitialData возвращает состояние календаря учителя
func (s *ScheduleService) InitialData(ctx context.Context, teacherID int64) (*model.Snapshot, error) {
	slots, err := s.ListSlots(ctx, teacherID)
	if err != nil {
		return nil, err
	}

	requests, err := s.ListPendingRequests(ctx, teacherID)
	if err != nil {
		return nil, err
	}

	return &model.Snapshot{TimeSlots: slots, ScheduleRequests: requests}, nil
}

// ListSlots получает все слоты учителя
func (s *ScheduleService) ListSlots(ctx context.Context, teacherID int64) ([]*model.TimeSlot, error) {
	slots, err := s.store.Repos().Slots.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return slots, nil
}

// ListPendingRequests получает нерассмотренные заявки учителя
func (s *ScheduleService) ListPendingRequests(ctx context.Context, teacherID int64) ([]*model.ScheduleRequest, error) {
	requests, err := s.store.Repos().Requests.ListPendingByTeacher(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	return requests, nil
}

// ProcessedHistory получает рассмотренные заявки, новые первыми
func (s *ScheduleService) ProcessedHistory(ctx context.Context, teacherID int64, limit int) ([]*model.ScheduleRequest, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	requests, err := s.store.Repos().Requests.ListProcessedByTeacher(ctx, teacherID, limit)
	if err != nil {
		return nil, fmt.Errorf("list processed requests: %w", err)
	}
	return requests, nil
}

// GetUser получает пользователя по ID
func (s *ScheduleService) GetUser(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.store.Repos().Users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, model.ErrUserNotFound
	}
	return user, nil
}

// GetSlot получает слот по ID
func (s *ScheduleService) GetSlot(ctx context.Context, id uuid.UUID) (*model.TimeSlot, error) {
	slot, err := s.store.Repos().Slots.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	if slot == nil {
		return nil, model.ErrSlotNotFound
	}
	return slot, nil
}

// Ping проверяет доступность хранилища
func (s *ScheduleService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *ScheduleService) ownedSlot(ctx context.Context, repos Repos, actor model.Actor, slotID uuid.UUID) (*model.TimeSlot, error) {
	slot, err := repos.Slots.GetByIDForUpdate(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}

	if slot == nil {
		return nil, model.ErrSlotNotFound
	}

	if slot.TeacherID != actor.UserID {
		return nil, model.ErrNotSlotOwner
	}

	return slot, nil
}

// pendingRequest блокирует заявку до слота, чтобы решения по ней не пересекались
func (s *ScheduleService) pendingRequest(ctx context.Context, repos Repos, actor model.Actor, requestID uuid.UUID) (*model.ScheduleRequest, error) {
	req, err := repos.Requests.GetByIDForUpdate(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}

	if req == nil {
		return nil, model.ErrRequestNotFound
	}

	if req.TeacherID != actor.UserID {
		return nil, model.ErrForbidden
	}

	if !req.IsPending() {
		return nil, model.ErrRequestResolved
	}

	return req, nil
}

func (s *ScheduleService) publish(ctx context.Context, event model.DomainEvent) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(ctx, event); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("Failed to publish domain event",
			zap.String("type", string(event.Type)),
			zap.Error(err))
	}
}

func resolve(req *model.ScheduleRequest, status model.RequestStatus, resolution string, by int64, at time.Time) {
	processedAt := at
	processedBy := by
	req.Status = status
	req.Resolution = resolution
	req.ProcessedAt = &processedAt
	req.ProcessedBy = &processedBy
}
