package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Freeeeeet/scheduler_hub/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSender struct {
	sent []*bot.SendMessageParams
	err  error
}

func (f *fakeSender) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, params)
	return &models.Message{}, nil
}

type fakeDirectory struct {
	users map[int64]*model.User
}

func (d *fakeDirectory) GetUser(_ context.Context, id int64) (*model.User, error) {
	if u, ok := d.users[id]; ok {
		return u, nil
	}
	return nil, model.ErrUserNotFound
}

func tgID(id int64) *int64 { return &id }

type notifyFixture struct {
	notifier  *TelegramNotifier
	sender    *fakeSender
	directory *fakeDirectory
	teacher   model.Actor
	student   model.Actor
	slot      *model.TimeSlot
}

func newNotifyFixture() *notifyFixture {
	start := time.Date(2030, time.January, 8, 9, 0, 0, 0, time.UTC)
	studentID := int64(2)
	slot := &model.TimeSlot{
		ID:            uuid.New(),
		TeacherID:     1,
		StartTime:     start,
		EndTime:       start.Add(time.Hour),
		Status:        model.SlotStatusBusy,
		StudentID:     &studentID,
		StudentName:   "Иван <script>",
		CourseContent: "Алгебра",
	}

	dir := &fakeDirectory{
		users: map[int64]*model.User{
			1: {ID: 1, Name: "Анна", Role: model.RoleTeacher, TelegramID: tgID(1001)},
			2: {ID: 2, Name: "Иван", Role: model.RoleStudent, TelegramID: tgID(2002)},
			3: {ID: 3, Name: "Мария", Role: model.RoleStudent},
		},
	}
	sender := &fakeSender{}

	return &notifyFixture{
		notifier:  NewTelegramNotifier(sender, dir, time.UTC, zap.NewNop()),
		sender:    sender,
		directory: dir,
		teacher:   model.Actor{UserID: 1, Role: model.RoleTeacher},
		student:   model.Actor{UserID: 2, Role: model.RoleStudent},
		slot:      slot,
	}
}

func (f *notifyFixture) request(status model.RequestStatus, resolution string) *model.ScheduleRequest {
	return &model.ScheduleRequest{
		ID:            uuid.New(),
		SlotID:        f.slot.ID,
		SlotStartTime: f.slot.StartTime,
		SlotEndTime:   f.slot.EndTime,
		TeacherID:     1,
		StudentID:     2,
		StudentName:   "Иван",
		Type:          model.RequestTypeCancel,
		Reason:        "Заболел",
		Status:        status,
		Resolution:    resolution,
	}
}

func TestTelegramNotifier_BookedGoesToTeacher(t *testing.T) {
	f := newNotifyFixture()

	event := model.NewSlotEvent(model.EventSlotBooked, f.student, f.slot, f.slot.StartTime)
	require.NoError(t, f.notifier.Publish(context.Background(), event))

	require.Len(t, f.sender.sent, 1)
	msg := f.sender.sent[0]
	assert.Equal(t, int64(1001), msg.ChatID)
	assert.Equal(t, models.ParseModeHTML, msg.ParseMode)
	assert.Contains(t, msg.Text, "Новая запись")
	assert.Contains(t, msg.Text, "08.01.2030 09:00-10:00")
	assert.Contains(t, msg.Text, "&lt;script&gt;")
}

func TestTelegramNotifier_ConfirmedGoesToStudent(t *testing.T) {
	f := newNotifyFixture()
	f.slot.IsConfirmed = true

	event := model.NewSlotEvent(model.EventBookingConfirmed, f.teacher, f.slot, f.slot.StartTime)
	require.NoError(t, f.notifier.Publish(context.Background(), event))

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, int64(2002), f.sender.sent[0].ChatID)
	assert.Contains(t, f.sender.sent[0].Text, "подтверждено")
}

func TestTelegramNotifier_RequestLifecycle(t *testing.T) {
	f := newNotifyFixture()
	ctx := context.Background()

	submitted := model.NewRequestEvent(model.EventRequestSubmitted, f.student, f.request(model.RequestStatusPending, ""), f.slot.StartTime)
	require.NoError(t, f.notifier.Publish(ctx, submitted))

	rejected := model.NewRequestEvent(model.EventRequestRejected, f.teacher, f.request(model.RequestStatusRejected, "Нельзя"), f.slot.StartTime)
	require.NoError(t, f.notifier.Publish(ctx, rejected))

	expired := model.NewRequestEvent(model.EventRequestRejected, model.Actor{}, f.request(model.RequestStatusRejected, model.ResolutionExpired), f.slot.StartTime)
	require.NoError(t, f.notifier.Publish(ctx, expired))

	require.Len(t, f.sender.sent, 3)
	assert.Equal(t, int64(1001), f.sender.sent[0].ChatID)
	assert.Contains(t, f.sender.sent[0].Text, "отмену")
	assert.Contains(t, f.sender.sent[0].Text, "Заболел")

	assert.Equal(t, int64(2002), f.sender.sent[1].ChatID)
	assert.Contains(t, f.sender.sent[1].Text, "отклонена")
	assert.Contains(t, f.sender.sent[1].Text, "Нельзя")

	assert.Contains(t, f.sender.sent[2].Text, "не рассмотрена")
}

func TestTelegramNotifier_ApprovedAfterSlotDeleted(t *testing.T) {
	f := newNotifyFixture()
	req := f.request(model.RequestStatusApproved, "")
	req.SlotID = uuid.Nil

	event := model.NewRequestEvent(model.EventRequestApproved, f.teacher, req, f.slot.StartTime)
	require.NoError(t, f.notifier.Publish(context.Background(), event))

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, int64(2002), f.sender.sent[0].ChatID)
	assert.Contains(t, f.sender.sent[0].Text, "одобрена")
	assert.Contains(t, f.sender.sent[0].Text, "08.01.2030 09:00-10:00")
}

func TestTelegramNotifier_SkipsWithoutTelegram(t *testing.T) {
	f := newNotifyFixture()
	other := int64(3)
	f.slot.StudentID = &other

	event := model.NewSlotEvent(model.EventBookingConfirmed, f.teacher, f.slot, f.slot.StartTime)
	require.NoError(t, f.notifier.Publish(context.Background(), event))
	assert.Empty(t, f.sender.sent)

	created := model.NewSlotEvent(model.EventSlotCreated, f.teacher, f.slot, f.slot.StartTime)
	require.NoError(t, f.notifier.Publish(context.Background(), created))
	assert.Empty(t, f.sender.sent)
}

func TestTelegramNotifier_SendError(t *testing.T) {
	f := newNotifyFixture()
	f.sender.err = errors.New("telegram unavailable")

	event := model.NewSlotEvent(model.EventSlotBooked, f.student, f.slot, f.slot.StartTime)
	assert.Error(t, f.notifier.Publish(context.Background(), event))
}
