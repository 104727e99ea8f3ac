// Package memory is an in-process implementation of service.Store.
// It mirrors the constraints of the PostgreSQL schema so the service
// behaves the same against both backends.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/scheduler_hub/internal/model"
	"github.com/Freeeeeet/scheduler_hub/internal/service"
	"github.com/google/uuid"
)

type data struct {
	slots    map[uuid.UUID]model.TimeSlot
	requests map[uuid.UUID]model.ScheduleRequest
	users    map[int64]model.User
	nextUser int64
}

func (d *data) clone() *data {
	c := &data{
		slots:    make(map[uuid.UUID]model.TimeSlot, len(d.slots)),
		requests: make(map[uuid.UUID]model.ScheduleRequest, len(d.requests)),
		users:    make(map[int64]model.User, len(d.users)),
		nextUser: d.nextUser,
	}
	for k, v := range d.slots {
		c.slots[k] = v
	}
	for k, v := range d.requests {
		c.requests[k] = v
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	return c
}

// Store хранит данные в памяти процесса
type Store struct {
	mu   sync.Mutex
	data *data
}

func NewStore() *Store {
	return &Store{
		data: &data{
			slots:    make(map[uuid.UUID]model.TimeSlot),
			requests: make(map[uuid.UUID]model.ScheduleRequest),
			users:    make(map[int64]model.User),
		},
	}
}

// Repos возвращает репозитории, каждый вызов которых атомарен
func (s *Store) Repos() service.Repos {
	return service.Repos{
		Slots:    lockedSlots{s},
		Requests: lockedRequests{s},
		Users:    lockedUsers{s},
	}
}

// InTx сериализует транзакции; при ошибке fn восстанавливается копия данных
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, repos service.Repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	backup := s.data.clone()
	repos := service.Repos{
		Slots:    slotRepo{s.data},
		Requests: requestRepo{s.data},
		Users:    userRepo{s.data},
	}

	if err := fn(ctx, repos); err != nil {
		s.data = backup
		return err
	}

	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// ============ Слоты ============

type slotRepo struct{ d *data }

func (r slotRepo) Create(_ context.Context, slot *model.TimeSlot) error {
	if _, exists := r.d.slots[slot.ID]; exists {
		return model.ErrSlotConflict
	}
	if len(r.overlapping(slot.TeacherID, slot.StartTime, slot.EndTime, slot.ID)) > 0 {
		return model.ErrSlotOverlap
	}
	r.d.slots[slot.ID] = *slot
	return nil
}

func (r slotRepo) GetByID(_ context.Context, id uuid.UUID) (*model.TimeSlot, error) {
	slot, ok := r.d.slots[id]
	if !ok {
		return nil, nil
	}
	return &slot, nil
}

func (r slotRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.TimeSlot, error) {
	return r.GetByID(ctx, id)
}

func (r slotRepo) ListByTeacher(_ context.Context, teacherID int64) ([]*model.TimeSlot, error) {
	slots := make([]*model.TimeSlot, 0)
	for _, slot := range r.d.slots {
		if slot.TeacherID == teacherID {
			s := slot
			slots = append(slots, &s)
		}
	}
	sortSlots(slots)
	return slots, nil
}

func (r slotRepo) FindOverlapping(_ context.Context, teacherID int64, start, end time.Time, exclude uuid.UUID) ([]*model.TimeSlot, error) {
	return r.overlapping(teacherID, start, end, exclude), nil
}

func (r slotRepo) overlapping(teacherID int64, start, end time.Time, exclude uuid.UUID) []*model.TimeSlot {
	slots := make([]*model.TimeSlot, 0)
	for id, slot := range r.d.slots {
		if id == exclude || slot.TeacherID != teacherID {
			continue
		}
		if slot.Overlaps(start, end) {
			s := slot
			slots = append(slots, &s)
		}
	}
	sortSlots(slots)
	return slots
}

func (r slotRepo) Update(_ context.Context, slot *model.TimeSlot) error {
	if _, ok := r.d.slots[slot.ID]; !ok {
		return model.ErrSlotNotFound
	}
	if len(r.overlapping(slot.TeacherID, slot.StartTime, slot.EndTime, slot.ID)) > 0 {
		return model.ErrSlotOverlap
	}
	r.d.slots[slot.ID] = *slot
	return nil
}

func (r slotRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.d.slots[id]; !ok {
		return model.ErrSlotNotFound
	}
	delete(r.d.slots, id)
	// ON DELETE SET NULL
	for reqID, req := range r.d.requests {
		if req.SlotID == id {
			req.SlotID = uuid.Nil
			r.d.requests[reqID] = req
		}
	}
	return nil
}

func sortSlots(slots []*model.TimeSlot) {
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].StartTime.Equal(slots[j].StartTime) {
			return slots[i].ID.String() < slots[j].ID.String()
		}
		return slots[i].StartTime.Before(slots[j].StartTime)
	})
}

// ============ Заявки ============

type requestRepo struct{ d *data }

func (r requestRepo) Create(_ context.Context, req *model.ScheduleRequest) error {
	if _, exists := r.d.requests[req.ID]; exists {
		return model.ErrRequestPending
	}
	if req.IsPending() {
		for _, existing := range r.d.requests {
			if existing.SlotID == req.SlotID && existing.IsPending() {
				return model.ErrRequestPending
			}
		}
	}
	r.d.requests[req.ID] = *req
	return nil
}

func (r requestRepo) GetByID(_ context.Context, id uuid.UUID) (*model.ScheduleRequest, error) {
	req, ok := r.d.requests[id]
	if !ok {
		return nil, nil
	}
	return &req, nil
}

func (r requestRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.ScheduleRequest, error) {
	return r.GetByID(ctx, id)
}

func (r requestRepo) GetPendingBySlot(_ context.Context, slotID uuid.UUID) (*model.ScheduleRequest, error) {
	for _, req := range r.d.requests {
		if req.SlotID == slotID && req.IsPending() {
			found := req
			return &found, nil
		}
	}
	return nil, nil
}

func (r requestRepo) ListPendingByTeacher(_ context.Context, teacherID int64) ([]*model.ScheduleRequest, error) {
	reqs := r.filter(func(req *model.ScheduleRequest) bool {
		return req.TeacherID == teacherID && req.IsPending()
	})
	sort.Slice(reqs, func(i, j int) bool {
		if reqs[i].CreatedAt.Equal(reqs[j].CreatedAt) {
			return reqs[i].ID.String() < reqs[j].ID.String()
		}
		return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
	})
	return reqs, nil
}

func (r requestRepo) ListProcessedByTeacher(_ context.Context, teacherID int64, limit int) ([]*model.ScheduleRequest, error) {
	reqs := r.filter(func(req *model.ScheduleRequest) bool {
		return req.TeacherID == teacherID && !req.IsPending()
	})
	sort.Slice(reqs, func(i, j int) bool {
		ti, tj := processedAt(reqs[i]), processedAt(reqs[j])
		if ti.Equal(tj) {
			return reqs[i].ID.String() < reqs[j].ID.String()
		}
		return ti.After(tj)
	})
	if limit > 0 && len(reqs) > limit {
		reqs = reqs[:limit]
	}
	return reqs, nil
}

func (r requestRepo) ListPendingStartedBefore(_ context.Context, t time.Time) ([]*model.ScheduleRequest, error) {
	reqs := r.filter(func(req *model.ScheduleRequest) bool {
		if !req.IsPending() {
			return false
		}
		slot, ok := r.d.slots[req.SlotID]
		return ok && !slot.StartTime.After(t)
	})
	sort.Slice(reqs, func(i, j int) bool {
		return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
	})
	return reqs, nil
}

func (r requestRepo) Update(_ context.Context, req *model.ScheduleRequest) error {
	existing, ok := r.d.requests[req.ID]
	if !ok {
		return model.ErrRequestNotFound
	}
	if !existing.IsPending() {
		return model.ErrRequestResolved
	}
	existing.Status = req.Status
	existing.Resolution = req.Resolution
	existing.ProcessedAt = req.ProcessedAt
	existing.ProcessedBy = req.ProcessedBy
	r.d.requests[req.ID] = existing
	return nil
}

func (r requestRepo) filter(keep func(*model.ScheduleRequest) bool) []*model.ScheduleRequest {
	reqs := make([]*model.ScheduleRequest, 0)
	for _, req := range r.d.requests {
		rq := req
		if keep(&rq) {
			reqs = append(reqs, &rq)
		}
	}
	return reqs
}

func processedAt(req *model.ScheduleRequest) time.Time {
	if req.ProcessedAt == nil {
		return time.Time{}
	}
	return *req.ProcessedAt
}

// ============ Пользователи ============

type userRepo struct{ d *data }

func (r userRepo) Create(_ context.Context, user *model.User) error {
	r.d.nextUser++
	user.ID = r.d.nextUser
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	r.d.users[user.ID] = *user
	return nil
}

func (r userRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	user, ok := r.d.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// ============ Блокирующие обёртки для чтения вне транзакции ============

type lockedSlots struct{ s *Store }

func (l lockedSlots) Create(ctx context.Context, slot *model.TimeSlot) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return slotRepo{l.s.data}.Create(ctx, slot)
}

func (l lockedSlots) GetByID(ctx context.Context, id uuid.UUID) (*model.TimeSlot, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return slotRepo{l.s.data}.GetByID(ctx, id)
}

func (l lockedSlots) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.TimeSlot, error) {
	return l.GetByID(ctx, id)
}

func (l lockedSlots) ListByTeacher(ctx context.Context, teacherID int64) ([]*model.TimeSlot, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return slotRepo{l.s.data}.ListByTeacher(ctx, teacherID)
}

func (l lockedSlots) FindOverlapping(ctx context.Context, teacherID int64, start, end time.Time, exclude uuid.UUID) ([]*model.TimeSlot, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return slotRepo{l.s.data}.FindOverlapping(ctx, teacherID, start, end, exclude)
}

func (l lockedSlots) Update(ctx context.Context, slot *model.TimeSlot) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return slotRepo{l.s.data}.Update(ctx, slot)
}

func (l lockedSlots) Delete(ctx context.Context, id uuid.UUID) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return slotRepo{l.s.data}.Delete(ctx, id)
}

type lockedRequests struct{ s *Store }

func (l lockedRequests) Create(ctx context.Context, req *model.ScheduleRequest) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return requestRepo{l.s.data}.Create(ctx, req)
}

func (l lockedRequests) GetByID(ctx context.Context, id uuid.UUID) (*model.ScheduleRequest, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return requestRepo{l.s.data}.GetByID(ctx, id)
}

func (l lockedRequests) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.ScheduleRequest, error) {
	return l.GetByID(ctx, id)
}

func (l lockedRequests) GetPendingBySlot(ctx context.Context, slotID uuid.UUID) (*model.ScheduleRequest, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return requestRepo{l.s.data}.GetPendingBySlot(ctx, slotID)
}

func (l lockedRequests) ListPendingByTeacher(ctx context.Context, teacherID int64) ([]*model.ScheduleRequest, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return requestRepo{l.s.data}.ListPendingByTeacher(ctx, teacherID)
}

func (l lockedRequests) ListProcessedByTeacher(ctx context.Context, teacherID int64, limit int) ([]*model.ScheduleRequest, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return requestRepo{l.s.data}.ListProcessedByTeacher(ctx, teacherID, limit)
}

func (l lockedRequests) ListPendingStartedBefore(ctx context.Context, t time.Time) ([]*model.ScheduleRequest, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return requestRepo{l.s.data}.ListPendingStartedBefore(ctx, t)
}

func (l lockedRequests) Update(ctx context.Context, req *model.ScheduleRequest) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return requestRepo{l.s.data}.Update(ctx, req)
}

type lockedUsers struct{ s *Store }

func (l lockedUsers) Create(ctx context.Context, user *model.User) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return userRepo{l.s.data}.Create(ctx, user)
}

func (l lockedUsers) GetByID(ctx context.Context, id int64) (*model.User, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return userRepo{l.s.data}.GetByID(ctx, id)
}
