package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Freeeeeet/scheduler_hub/internal/model"
	"github.com/Freeeeeet/scheduler_hub/internal/render"
	"github.com/Freeeeeet/scheduler_hub/internal/repository/memory"
	"github.com/Freeeeeet/scheduler_hub/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2030, time.January, 7, 8, 0, 0, 0, time.UTC)

type apiFixture struct {
	server  *httptest.Server
	svc     *service.ScheduleService
	store   *memory.Store
	teacher *model.User
	student *model.User
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	store := memory.NewStore()
	ctx := context.Background()
	teacher := &model.User{Name: "Анна", Role: model.RoleTeacher}
	student := &model.User{Name: "Иван", Role: model.RoleStudent}
	require.NoError(t, store.Repos().Users.Create(ctx, teacher))
	require.NoError(t, store.Repos().Users.Create(ctx, student))

	svc := service.NewScheduleService(store, zap.NewNop(), service.WithClock(func() time.Time { return now }))
	renderer, err := render.NewRenderer(nil)
	require.NoError(t, err)

	ws := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	s := NewServer(svc, ws, renderer, time.UTC, zap.NewNop())
	s.now = func() time.Time { return now }

	server := httptest.NewServer(s.Handler())
	t.Cleanup(server.Close)

	return &apiFixture{server: server, svc: svc, store: store, teacher: teacher, student: student}
}

func (f *apiFixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(f.server.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)
	resp := f.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebsocketRouteMounted(t *testing.T) {
	f := newAPIFixture(t)
	resp := f.get(t, "/ws")
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
}

func TestSnapshot(t *testing.T) {
	f := newAPIFixture(t)
	start := now.Add(24 * time.Hour)
	_, err := f.svc.AddTimeSlots(context.Background(), model.ActorFromUser(f.teacher), []model.TimeSlotInput{
		{StartTime: start, EndTime: start.Add(time.Hour)},
	})
	require.NoError(t, err)

	resp := f.get(t, fmt.Sprintf("/api/teachers/%d/snapshot", f.teacher.ID))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var snapshot model.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snapshot))
	require.Len(t, snapshot.TimeSlots, 1)
	assert.True(t, snapshot.TimeSlots[0].IsFree())
	assert.Empty(t, snapshot.ScheduleRequests)
}

func TestSnapshot_Errors(t *testing.T) {
	f := newAPIFixture(t)

	tests := []struct {
		name   string
		path   string
		status int
		code   model.ErrorCode
	}{
		{"bad id", "/api/teachers/abc/snapshot", http.StatusBadRequest, model.CodeInvalid},
		{"unknown teacher", "/api/teachers/404/snapshot", http.StatusNotFound, model.CodeNotFound},
		{"not a teacher", fmt.Sprintf("/api/teachers/%d/snapshot", f.student.ID), http.StatusForbidden, model.CodeForbidden},
		{"bad limit", fmt.Sprintf("/api/teachers/%d/history?limit=-1", f.teacher.ID), http.StatusBadRequest, model.CodeInvalid},
		{"bad date", fmt.Sprintf("/api/teachers/%d/week.png?date=07.01.2030", f.teacher.ID), http.StatusBadRequest, model.CodeInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.get(t, tt.path)
			assert.Equal(t, tt.status, resp.StatusCode)

			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, string(tt.code), body["code"])
		})
	}
}

func TestHistory(t *testing.T) {
	f := newAPIFixture(t)
	resp := f.get(t, fmt.Sprintf("/api/teachers/%d/history?limit=10", f.teacher.ID))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var history []*model.ScheduleRequest
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	assert.Empty(t, history)
}

func TestWeekImage(t *testing.T) {
	f := newAPIFixture(t)
	resp := f.get(t, fmt.Sprintf("/api/teachers/%d/week.png?date=2030-01-09", f.teacher.ID))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	_, err = png.Decode(&buf)
	require.NoError(t, err)
}

func TestWriteError_HidesInternal(t *testing.T) {
	s := NewServer(nil, nil, nil, nil, zap.NewNop())
	rec := httptest.NewRecorder()

	s.writeError(rec, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"code":"internal","message":"internal error"}`, rec.Body.String())
}
