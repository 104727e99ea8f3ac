package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Freeeeeet/scheduler_hub/internal/model"
	"github.com/Freeeeeet/scheduler_hub/internal/repository/memory"
	"github.com/Freeeeeet/scheduler_hub/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSlot(teacherID int64, start time.Time) *model.TimeSlot {
	return &model.TimeSlot{
		ID:        uuid.New(),
		TeacherID: teacherID,
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		Status:    model.SlotStatusFree,
	}
}

func TestStore_InTxRollsBackOnError(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	start := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)

	boom := errors.New("boom")
	err := store.InTx(ctx, func(ctx context.Context, repos service.Repos) error {
		require.NoError(t, repos.Slots.Create(ctx, newSlot(1, start)))
		return boom
	})
	require.ErrorIs(t, err, boom)

	slots, err := store.Repos().Slots.ListByTeacher(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestStore_RejectsOverlappingSlots(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	start := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)
	repos := store.Repos()

	require.NoError(t, repos.Slots.Create(ctx, newSlot(1, start)))
	assert.ErrorIs(t, repos.Slots.Create(ctx, newSlot(1, start.Add(30*time.Minute))), model.ErrSlotOverlap)

	// смежные интервалы не пересекаются
	assert.NoError(t, repos.Slots.Create(ctx, newSlot(1, start.Add(time.Hour))))
	// другой учитель
	assert.NoError(t, repos.Slots.Create(ctx, newSlot(2, start)))
}

func TestStore_OnePendingRequestPerSlot(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	repos := store.Repos()
	slotID := uuid.New()

	first := &model.ScheduleRequest{ID: uuid.New(), SlotID: slotID, TeacherID: 1, Status: model.RequestStatusPending}
	second := &model.ScheduleRequest{ID: uuid.New(), SlotID: slotID, TeacherID: 1, Status: model.RequestStatusPending}

	require.NoError(t, repos.Requests.Create(ctx, first))
	assert.ErrorIs(t, repos.Requests.Create(ctx, second), model.ErrRequestPending)

	now := time.Now()
	first.Status = model.RequestStatusApproved
	first.ProcessedAt = &now
	require.NoError(t, repos.Requests.Update(ctx, first))
	assert.NoError(t, repos.Requests.Create(ctx, second))
}

func TestStore_DeleteSlotKeepsRequestHistory(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	repos := store.Repos()
	slot := newSlot(1, time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC))

	require.NoError(t, repos.Slots.Create(ctx, slot))
	req := &model.ScheduleRequest{
		ID:            uuid.New(),
		SlotID:        slot.ID,
		SlotStartTime: slot.StartTime,
		SlotEndTime:   slot.EndTime,
		TeacherID:     1,
		Status:        model.RequestStatusRejected,
	}
	require.NoError(t, repos.Requests.Create(ctx, req))

	require.NoError(t, repos.Slots.Delete(ctx, slot.ID))

	got, err := repos.Requests.GetByID(ctx, req.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.HasSlot())
	assert.True(t, got.SlotStartTime.Equal(slot.StartTime))
}

func TestStore_UpdateResolvedRequestFails(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	repos := store.Repos()
	now := time.Now()

	req := &model.ScheduleRequest{ID: uuid.New(), SlotID: uuid.New(), TeacherID: 1, Status: model.RequestStatusPending}
	require.NoError(t, repos.Requests.Create(ctx, req))

	approved := *req
	approved.Status = model.RequestStatusApproved
	approved.ProcessedAt = &now
	require.NoError(t, repos.Requests.Update(ctx, &approved))

	// решение, принятое по устаревшей копии, не перезаписывает первое
	rejected := *req
	rejected.Status = model.RequestStatusRejected
	rejected.ProcessedAt = &now
	assert.ErrorIs(t, repos.Requests.Update(ctx, &rejected), model.ErrRequestResolved)

	got, err := repos.Requests.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.True(t, got.IsApproved())
}

func TestStore_ProcessedHistoryNewestFirst(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	repos := store.Repos()
	base := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		req := &model.ScheduleRequest{
			ID:          uuid.New(),
			SlotID:      uuid.New(),
			TeacherID:   1,
			Status:      model.RequestStatusRejected,
			ProcessedAt: &at,
		}
		require.NoError(t, repos.Requests.Create(ctx, req))
		ids = append(ids, req.ID)
	}

	history, err := repos.Requests.ListProcessedByTeacher(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, ids[2], history[0].ID)
	assert.Equal(t, ids[1], history[1].ID)
}
