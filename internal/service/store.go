package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/scheduler_hub/internal/model"
	"github.com/google/uuid"
)

// SlotStore хранилище временных слотов
// Get* методы возвращают nil, nil если запись не найдена
type SlotStore interface {
	Create(ctx context.Context, slot *model.TimeSlot) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.TimeSlot, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.TimeSlot, error)
	ListByTeacher(ctx context.Context, teacherID int64) ([]*model.TimeSlot, error)
	FindOverlapping(ctx context.Context, teacherID int64, start, end time.Time, exclude uuid.UUID) ([]*model.TimeSlot, error)
	Update(ctx context.Context, slot *model.TimeSlot) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// RequestStore хранилище заявок на изменение
type RequestStore interface {
	Create(ctx context.Context, req *model.ScheduleRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.ScheduleRequest, error)
	// GetByIDForUpdate блокирует строку заявки до конца транзакции
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.ScheduleRequest, error)
	GetPendingBySlot(ctx context.Context, slotID uuid.UUID) (*model.ScheduleRequest, error)
	ListPendingByTeacher(ctx context.Context, teacherID int64) ([]*model.ScheduleRequest, error)
	ListProcessedByTeacher(ctx context.Context, teacherID int64, limit int) ([]*model.ScheduleRequest, error)
	ListPendingStartedBefore(ctx context.Context, t time.Time) ([]*model.ScheduleRequest, error)
	// Update сохраняет решение только для pending заявки, иначе ErrRequestResolved
	Update(ctx context.Context, req *model.ScheduleRequest) error
}

// UserStore хранилище пользователей
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// Repos набор репозиториев, работающих в одном контексте (пул или транзакция)
type Repos struct {
	Slots    SlotStore
	Requests RequestStore
	Users    UserStore
}

// Store источник репозиториев и транзакций
type Store interface {
	Repos() Repos
	// InTx выполняет fn в транзакции; ошибка fn откатывает все изменения
	InTx(ctx context.Context, fn func(ctx context.Context, repos Repos) error) error
	Ping(ctx context.Context) error
}
