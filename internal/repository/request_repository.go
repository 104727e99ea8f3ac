package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/scheduler_hub/internal/model"
	"github.com/Freeeeeet/scheduler_hub/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const requestColumns = `r.id, r.slot_id, r.slot_start_time, r.slot_end_time, r.teacher_id, r.student_id, r.student_name, r.type,
		r.new_start_time, r.new_end_time, r.reason, r.status, r.resolution,
		r.created_at, r.processed_at, r.processed_by`

type RequestRepository struct {
	*base.Repository
}

func NewRequestRepository(db base.DBTX) *RequestRepository {
	return &RequestRepository{Repository: base.NewRepository(db)}
}

// Create создает заявку
func (r *RequestRepository) Create(ctx context.Context, req *model.ScheduleRequest) error {
	query := `
		INSERT INTO schedule_requests (id, slot_id, slot_start_time, slot_end_time, teacher_id,
			student_id, student_name, type, new_start_time, new_end_time, reason, status,
			resolution, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.DB().Exec(
		ctx, query,
		req.ID,
		req.SlotID,
		req.SlotStartTime,
		req.SlotEndTime,
		req.TeacherID,
		req.StudentID,
		req.StudentName,
		req.Type,
		req.NewStartTime,
		req.NewEndTime,
		req.Reason,
		req.Status,
		req.Resolution,
		req.CreatedAt,
	)
	if err != nil {
		if _, ok := base.ConstraintViolation(err, base.CodeUniqueViolation); ok {
			return fmt.Errorf("%w: %v", model.ErrRequestPending, err)
		}
		return fmt.Errorf("create schedule request: %w", err)
	}

	return nil
}

// GetByID получает заявку по ID
func (r *RequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ScheduleRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM schedule_requests r WHERE r.id = $1`

	req, err := scanRequest(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get schedule request: %w", err)
	}

	return req, nil
}

// GetByIDForUpdate получает заявку и блокирует её строку.
// Решения по заявке берут блокировки в порядке: заявка, затем слот.
func (r *RequestRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.ScheduleRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM schedule_requests r WHERE r.id = $1 FOR UPDATE`

	req, err := scanRequest(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get schedule request for update: %w", err)
	}

	return req, nil
}

// GetPendingBySlot получает pending заявку для слота
func (r *RequestRepository) GetPendingBySlot(ctx context.Context, slotID uuid.UUID) (*model.ScheduleRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM schedule_requests r
		WHERE r.slot_id = $1 AND r.status = $2
		LIMIT 1
	`

	req, err := scanRequest(r.QueryRow(ctx, query, slotID, model.RequestStatusPending))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get pending request by slot: %w", err)
	}

	return req, nil
}

// ListPendingByTeacher получает pending заявки учителя в порядке поступления
func (r *RequestRepository) ListPendingByTeacher(ctx context.Context, teacherID int64) ([]*model.ScheduleRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM schedule_requests r
		WHERE r.teacher_id = $1 AND r.status = $2
		ORDER BY r.created_at ASC, r.id
	`

	rows, err := r.Query(ctx, query, teacherID, model.RequestStatusPending)
	if err != nil {
		return nil, fmt.Errorf("get pending requests by teacher: %w", err)
	}
	return collectRequests(rows)
}

// ListProcessedByTeacher получает обработанные заявки, новые первыми
func (r *RequestRepository) ListProcessedByTeacher(ctx context.Context, teacherID int64, limit int) ([]*model.ScheduleRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM schedule_requests r
		WHERE r.teacher_id = $1 AND r.status <> $2
		ORDER BY r.processed_at DESC, r.id
		LIMIT $3
	`

	rows, err := r.Query(ctx, query, teacherID, model.RequestStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("get processed requests by teacher: %w", err)
	}
	return collectRequests(rows)
}

// ListPendingStartedBefore получает pending заявки, чей слот уже начался
func (r *RequestRepository) ListPendingStartedBefore(ctx context.Context, t time.Time) ([]*model.ScheduleRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM schedule_requests r
		JOIN time_slots s ON s.id = r.slot_id
		WHERE r.status = $1 AND s.start_time <= $2
		ORDER BY r.created_at
	`

	rows, err := r.Query(ctx, query, model.RequestStatusPending, t)
	if err != nil {
		return nil, fmt.Errorf("get stale pending requests: %w", err)
	}
	return collectRequests(rows)
}

// Update сохраняет решение по заявке, если она ещё pending
func (r *RequestRepository) Update(ctx context.Context, req *model.ScheduleRequest) error {
	query := `
		UPDATE schedule_requests
		SET status = $2, resolution = $3, processed_at = $4, processed_by = $5
		WHERE id = $1 AND status = $6
	`

	affected, err := r.ExecAffected(ctx, query, req.ID, req.Status, req.Resolution, req.ProcessedAt, req.ProcessedBy,
		model.RequestStatusPending)
	if err != nil {
		return fmt.Errorf("update schedule request: %w", err)
	}

	// Заявку уже решила другая транзакция
	if affected == 0 {
		return model.ErrRequestResolved
	}

	return nil
}

func scanRequest(row pgx.Row) (*model.ScheduleRequest, error) {
	var (
		req    model.ScheduleRequest
		slotID pgtype.UUID
	)
	err := row.Scan(
		&req.ID,
		&slotID,
		&req.SlotStartTime,
		&req.SlotEndTime,
		&req.TeacherID,
		&req.StudentID,
		&req.StudentName,
		&req.Type,
		&req.NewStartTime,
		&req.NewEndTime,
		&req.Reason,
		&req.Status,
		&req.Resolution,
		&req.CreatedAt,
		&req.ProcessedAt,
		&req.ProcessedBy,
	)
	if err != nil {
		return nil, err
	}
	// slot_id обнуляется при удалении слота
	if slotID.Valid {
		req.SlotID = slotID.Bytes
	}
	return &req, nil
}

func collectRequests(rows pgx.Rows) ([]*model.ScheduleRequest, error) {
	defer rows.Close()

	requests := make([]*model.ScheduleRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule request: %w", err)
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedule requests: %w", err)
	}

	return requests, nil
}
