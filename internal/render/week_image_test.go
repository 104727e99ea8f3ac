package render

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/Freeeeeet/scheduler_hub/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slot(start time.Time, d time.Duration, status model.SlotStatus, confirmed bool) *model.TimeSlot {
	s := &model.TimeSlot{
		ID:          uuid.New(),
		TeacherID:   1,
		StartTime:   start,
		EndTime:     start.Add(d),
		Status:      status,
		IsConfirmed: confirmed,
	}
	if status == model.SlotStatusBusy {
		id := int64(2)
		s.StudentID = &id
		s.StudentName = "Иван Иванович Петров-Водкин"
	}
	return s
}

func TestWeekImage_RendersPNG(t *testing.T) {
	r, err := NewRenderer(nil)
	require.NoError(t, err)

	monday := time.Date(2030, time.January, 7, 0, 0, 0, 0, time.UTC)
	slots := []*model.TimeSlot{
		slot(monday.Add(9*time.Hour), time.Hour, model.SlotStatusFree, false),
		slot(monday.Add(33*time.Hour), time.Hour, model.SlotStatusBusy, false),
		slot(monday.Add(58*time.Hour+30*time.Minute), 90*time.Minute, model.SlotStatusBusy, true),
		// Другая неделя не рисуется
		slot(monday.AddDate(0, 0, 8).Add(9*time.Hour), time.Hour, model.SlotStatusFree, false),
	}

	data, err := r.WeekImage(monday.AddDate(0, 0, 3), slots, monday.Add(10*time.Hour))
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, imageWidth, img.Bounds().Dx())
	assert.Equal(t, imageHeight, img.Bounds().Dy())
}

func TestWeekOf(t *testing.T) {
	sunday := time.Date(2030, time.January, 13, 15, 0, 0, 0, time.UTC)
	week := weekOf(sunday)
	assert.Equal(t, time.Date(2030, time.January, 7, 0, 0, 0, 0, time.UTC), week.start)
	assert.Equal(t, time.Date(2030, time.January, 14, 0, 0, 0, 0, time.UTC), week.end)

	monday := time.Date(2030, time.January, 7, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, monday, weekOf(monday).start)
}

func TestCalculateHourRange(t *testing.T) {
	day := time.Date(2030, time.January, 7, 0, 0, 0, 0, time.UTC)

	empty := calculateHourRange(nil)
	assert.Equal(t, defaultMinHour-hourPaddingTop, empty.start)
	assert.Equal(t, defaultMaxHour+hourPaddingBot, empty.end)

	hours := calculateHourRange([]*model.TimeSlot{
		slot(day.Add(1*time.Hour), time.Hour, model.SlotStatusFree, false),
		slot(day.Add(10*time.Hour), 30*time.Minute, model.SlotStatusFree, false),
	})
	assert.Equal(t, 0, hours.start)
	assert.Equal(t, 13, hours.end)
	assert.Equal(t, 14, hours.total)
}

func TestSlotLabel(t *testing.T) {
	day := time.Date(2030, time.January, 7, 9, 0, 0, 0, time.UTC)

	assert.Empty(t, slotLabel(slot(day, time.Hour, model.SlotStatusFree, false)))

	busy := slot(day, time.Hour, model.SlotStatusBusy, false)
	label := slotLabel(busy)
	assert.Equal(t, maxSlotLabelLen, len([]rune(label)))
	assert.Equal(t, "...", label[len(label)-3:])

	busy.StudentName = ""
	busy.CourseContent = "Алгебра"
	assert.Equal(t, "Алгебра", slotLabel(busy))
}

func TestSlotColor(t *testing.T) {
	day := time.Date(2030, time.January, 7, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, slotFreeColor, slotColor(slot(day, time.Hour, model.SlotStatusFree, false)))
	assert.Equal(t, slotPendingColor, slotColor(slot(day, time.Hour, model.SlotStatusBusy, false)))
	assert.Equal(t, slotConfirmedColor, slotColor(slot(day, time.Hour, model.SlotStatusBusy, true)))
}

func TestNewRenderer_BadFont(t *testing.T) {
	_, err := NewRenderer([]byte("not a font"))
	assert.Error(t, err)
}
