package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/scheduler_hub/internal/model"
	"github.com/Freeeeeet/scheduler_hub/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const slotColumns = `id, teacher_id, start_time, end_time, status, is_confirmed,
		student_id, student_name, course_content, created_at, updated_at`

type SlotRepository struct {
	*base.Repository
}

func NewSlotRepository(db base.DBTX) *SlotRepository {
	return &SlotRepository{Repository: base.NewRepository(db)}
}

// Create создаёт новый слот
func (r *SlotRepository) Create(ctx context.Context, slot *model.TimeSlot) error {
	query := `
		INSERT INTO time_slots (id, teacher_id, start_time, end_time, status, is_confirmed,
			student_id, student_name, course_content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.DB().Exec(
		ctx, query,
		slot.ID,
		slot.TeacherID,
		slot.StartTime,
		slot.EndTime,
		slot.Status,
		slot.IsConfirmed,
		slot.StudentID,
		slot.StudentName,
		slot.CourseContent,
		slot.CreatedAt,
		slot.UpdatedAt,
	)
	if err != nil {
		return mapSlotError(fmt.Errorf("create slot: %w", err))
	}

	return nil
}

// GetByID получает слот по ID
func (r *SlotRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.TimeSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM time_slots WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByIDForUpdate получает слот и блокирует строку до конца транзакции
func (r *SlotRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.TimeSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM time_slots WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

func (r *SlotRepository) getOne(ctx context.Context, query string, id uuid.UUID) (*model.TimeSlot, error) {
	slot, err := scanSlot(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot by id: %w", err)
	}
	return slot, nil
}

// ListByTeacher получает все слоты учителя по возрастанию времени начала
func (r *SlotRepository) ListByTeacher(ctx context.Context, teacherID int64) ([]*model.TimeSlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM time_slots
		WHERE teacher_id = $1
		ORDER BY start_time, id
	`

	rows, err := r.Query(ctx, query, teacherID)
	if err != nil {
		return nil, fmt.Errorf("get slots by teacher: %w", err)
	}
	return collectSlots(rows)
}

// FindOverlapping получает слоты учителя, пересекающиеся с [start, end)
func (r *SlotRepository) FindOverlapping(ctx context.Context, teacherID int64, start, end time.Time, exclude uuid.UUID) ([]*model.TimeSlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM time_slots
		WHERE teacher_id = $1
		  AND start_time < $3
		  AND end_time > $2
		  AND id <> $4
		ORDER BY start_time
	`

	rows, err := r.Query(ctx, query, teacherID, start, end, exclude)
	if err != nil {
		return nil, fmt.Errorf("find overlapping slots: %w", err)
	}
	return collectSlots(rows)
}

// Update сохраняет изменённое состояние слота
func (r *SlotRepository) Update(ctx context.Context, slot *model.TimeSlot) error {
	query := `
		UPDATE time_slots
		SET start_time = $2, end_time = $3, status = $4, is_confirmed = $5,
			student_id = $6, student_name = $7, course_content = $8, updated_at = $9
		WHERE id = $1
	`

	affected, err := r.ExecAffected(
		ctx, query,
		slot.ID,
		slot.StartTime,
		slot.EndTime,
		slot.Status,
		slot.IsConfirmed,
		slot.StudentID,
		slot.StudentName,
		slot.CourseContent,
		slot.UpdatedAt,
	)
	if err != nil {
		return mapSlotError(fmt.Errorf("update slot: %w", err))
	}

	if affected == 0 {
		return model.ErrSlotNotFound
	}

	return nil
}

// Delete удаляет слот
func (r *SlotRepository) Delete(ctx context.Context, id uuid.UUID) error {
	affected, err := r.ExecAffected(ctx, `DELETE FROM time_slots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}

	if affected == 0 {
		return model.ErrSlotNotFound
	}

	return nil
}

func scanSlot(row pgx.Row) (*model.TimeSlot, error) {
	var slot model.TimeSlot
	err := row.Scan(
		&slot.ID,
		&slot.TeacherID,
		&slot.StartTime,
		&slot.EndTime,
		&slot.Status,
		&slot.IsConfirmed,
		&slot.StudentID,
		&slot.StudentName,
		&slot.CourseContent,
		&slot.CreatedAt,
		&slot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

func collectSlots(rows pgx.Rows) ([]*model.TimeSlot, error) {
	defer rows.Close()

	slots := make([]*model.TimeSlot, 0)
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slots: %w", err)
	}

	return slots, nil
}

// mapSlotError переводит нарушения ограничений схемы в доменные ошибки
func mapSlotError(err error) error {
	if _, ok := base.ConstraintViolation(err, base.CodeExclusionViolation); ok {
		return fmt.Errorf("%w: %v", model.ErrSlotOverlap, err)
	}
	if _, ok := base.ConstraintViolation(err, base.CodeUniqueViolation); ok {
		return fmt.Errorf("%w: %v", model.ErrSlotConflict, err)
	}
	return err
}
