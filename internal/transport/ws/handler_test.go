package ws_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Freeeeeet/scheduler_hub/internal/hub"
	"github.com/Freeeeeet/scheduler_hub/internal/model"
	"github.com/Freeeeeet/scheduler_hub/internal/protocol"
	"github.com/Freeeeeet/scheduler_hub/internal/repository/memory"
	"github.com/Freeeeeet/scheduler_hub/internal/service"
	"github.com/Freeeeeet/scheduler_hub/internal/transport/ws"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2030, time.January, 7, 8, 0, 0, 0, time.UTC)

type env struct {
	server  *httptest.Server
	svc     *service.ScheduleService
	teacher *model.User
	student *model.User
}

func newEnv(t *testing.T, origins ...string) *env {
	t.Helper()

	store := memory.NewStore()
	ctx := context.Background()
	teacher := &model.User{Name: "Анна Петровна", Role: model.RoleTeacher}
	student := &model.User{Name: "Иван", Role: model.RoleStudent}
	require.NoError(t, store.Repos().Users.Create(ctx, teacher))
	require.NoError(t, store.Repos().Users.Create(ctx, student))

	logger := zap.NewNop()
	svc := service.NewScheduleService(store, logger, service.WithClock(func() time.Time { return now }))
	h := hub.NewHub(logger)
	broadcaster := hub.NewLocalBroadcaster(h, svc, logger)

	mux := http.NewServeMux()
	mux.Handle("/ws", ws.NewHandler(svc, h, broadcaster, origins, logger))
	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		h.Close()
		server.Close()
	})

	return &env{server: server, svc: svc, teacher: teacher, student: student}
}

func (e *env) url(query string) string {
	return "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws?" + query
}

func (e *env) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(e.url(query), nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })

	first := readEvent(t, conn, protocol.EventInitialData)
	var snapshot model.Snapshot
	require.NoError(t, json.Unmarshal(first.Data, &snapshot))
	return conn
}

func (e *env) dialTeacher(t *testing.T) *websocket.Conn {
	return e.dial(t, fmt.Sprintf("user_id=%d", e.teacher.ID))
}

func (e *env) dialStudent(t *testing.T) *websocket.Conn {
	return e.dial(t, fmt.Sprintf("user_id=%d&teacher_id=%d", e.student.ID, e.teacher.ID))
}

func send(t *testing.T, conn *websocket.Conn, event, id string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	frame, err := json.Marshal(protocol.Envelope{Event: event, ID: id, Data: raw})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

// readEvent читает кадры, пропуская другие события, пока не встретит нужное
func readEvent(t *testing.T, conn *websocket.Conn, event string) protocol.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, frame, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", event)

		var env protocol.Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		if env.Event == event {
			return env
		}
	}
}

func slotInput(hour int) model.TimeSlotInput {
	start := now.Add(24 * time.Hour).Add(time.Duration(hour) * time.Hour)
	return model.TimeSlotInput{StartTime: start, EndTime: start.Add(time.Hour)}
}

func readSlots(t *testing.T, conn *websocket.Conn) []*model.TimeSlot {
	t.Helper()
	var slots []*model.TimeSlot
	frame := readEvent(t, conn, protocol.EventSlotsUpdated)
	require.NoError(t, json.Unmarshal(frame.Data, &slots))
	return slots
}

func TestWebsocket_BookingFlowReachesEveryClient(t *testing.T) {
	e := newEnv(t)
	teacher := e.dialTeacher(t)
	student := e.dialStudent(t)

	send(t, teacher, protocol.EventAddTimeSlots, "add-1", []model.TimeSlotInput{slotInput(1)})

	ack := readEvent(t, teacher, protocol.EventAck)
	var ackPayload protocol.AckPayload
	require.NoError(t, json.Unmarshal(ack.Data, &ackPayload))
	assert.Equal(t, "add-1", ackPayload.Ref)
	assert.Equal(t, protocol.EventAddTimeSlots, ackPayload.Event)

	require.Len(t, readSlots(t, teacher), 1)
	slots := readSlots(t, student)
	require.Len(t, slots, 1)
	assert.True(t, slots[0].IsFree())

	send(t, student, protocol.EventBookSlot, "", model.BookSlotInput{
		SlotID:        slots[0].ID,
		StudentName:   "Иван",
		CourseContent: "Геометрия",
	})

	slots = readSlots(t, teacher)
	require.Len(t, slots, 1)
	assert.True(t, slots[0].IsPending())
	assert.True(t, slots[0].HeldBy(e.student.ID))
	readSlots(t, student)

	send(t, teacher, protocol.EventConfirmBooking, "confirm-1", slots[0].ID.String())
	readEvent(t, teacher, protocol.EventAck)

	slots = readSlots(t, student)
	require.Len(t, slots, 1)
	assert.True(t, slots[0].IsConfirmed)
}

func TestWebsocket_ErrorFrame(t *testing.T) {
	e := newEnv(t)
	student := e.dialStudent(t)

	send(t, student, protocol.EventAddTimeSlots, "add-1", []model.TimeSlotInput{slotInput(1)})

	frame := readEvent(t, student, protocol.EventError)
	var payload protocol.ErrorPayload
	require.NoError(t, json.Unmarshal(frame.Data, &payload))
	assert.Equal(t, "add-1", payload.Ref)
	assert.Equal(t, protocol.EventAddTimeSlots, payload.Event)
	assert.Equal(t, model.CodeForbidden, payload.Code)
}

func TestWebsocket_UnknownEvent(t *testing.T) {
	e := newEnv(t)
	teacher := e.dialTeacher(t)

	send(t, teacher, "drop-database", "x", nil)

	frame := readEvent(t, teacher, protocol.EventError)
	var payload protocol.ErrorPayload
	require.NoError(t, json.Unmarshal(frame.Data, &payload))
	assert.Equal(t, model.CodeInvalid, payload.Code)
}

func TestWebsocket_RejectModification(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	teacherActor := model.ActorFromUser(e.teacher)
	studentActor := model.ActorFromUser(e.student)

	slots, err := e.svc.AddTimeSlots(ctx, teacherActor, []model.TimeSlotInput{slotInput(2)})
	require.NoError(t, err)
	_, err = e.svc.BookSlot(ctx, studentActor, model.BookSlotInput{SlotID: slots[0].ID})
	require.NoError(t, err)
	req, err := e.svc.SubmitModification(ctx, studentActor, model.ModificationInput{
		SlotID: slots[0].ID,
		Type:   model.RequestTypeCancel,
		Reason: "Заболел",
	})
	require.NoError(t, err)

	teacher := e.dialTeacher(t)
	student := e.dialStudent(t)

	send(t, teacher, protocol.EventRejectModification, "rej-1", protocol.RejectInput{
		RequestID: req.ID.String(),
		Reason:    "Перенос невозможен",
	})

	frame := readEvent(t, teacher, protocol.EventModificationRejected)
	var rejected protocol.RejectedPayload
	require.NoError(t, json.Unmarshal(frame.Data, &rejected))
	assert.True(t, rejected.Success)

	history := readEvent(t, student, protocol.EventProcessedHistory)
	var processed []*model.ScheduleRequest
	require.NoError(t, json.Unmarshal(history.Data, &processed))
	require.Len(t, processed, 1)
	assert.True(t, processed[0].IsRejected())

	// Повторное отклонение уже рассмотренной заявки
	send(t, teacher, protocol.EventRejectModification, "rej-2", req.ID.String())
	frame = readEvent(t, teacher, protocol.EventModificationRejected)
	require.NoError(t, json.Unmarshal(frame.Data, &rejected))
	assert.False(t, rejected.Success)
	assert.NotEmpty(t, rejected.Error)
}

func TestWebsocket_RequestProcessedHistory(t *testing.T) {
	e := newEnv(t)
	teacher := e.dialTeacher(t)

	send(t, teacher, protocol.EventRequestProcessedHistory, "", nil)

	frame := readEvent(t, teacher, protocol.EventProcessedHistory)
	assert.JSONEq(t, `[]`, string(frame.Data))
}

func TestWebsocket_HandshakeRejected(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"missing user", "", http.StatusBadRequest},
		{"unknown user", "user_id=999", http.StatusNotFound},
		{"student without teacher", fmt.Sprintf("user_id=%d", e.student.ID), http.StatusBadRequest},
		{"student joins student room", fmt.Sprintf("user_id=%d&teacher_id=%d", e.student.ID, e.student.ID), http.StatusForbidden},
		{"teacher joins foreign room", fmt.Sprintf("user_id=%d&teacher_id=77", e.teacher.ID), http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(e.url(tt.query), nil)
			require.Error(t, err)
			require.NotNil(t, resp)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestWebsocket_OriginCheck(t *testing.T) {
	e := newEnv(t, "https://app.example.com")
	query := fmt.Sprintf("user_id=%d", e.teacher.ID)

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(e.url(query), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header = http.Header{"Origin": []string{"https://app.example.com"}}
	conn, resp, err := websocket.DefaultDialer.Dial(e.url(query), header)
	require.NoError(t, err)
	resp.Body.Close()
	conn.Close()
}
