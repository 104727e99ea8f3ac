// Package httpapi собирает HTTP маршруты сервера: websocket, чтение календаря и картинку недели.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/Freeeeeet/scheduler_hub/internal/model"
	"github.com/Freeeeeet/scheduler_hub/internal/render"
	"go.uber.org/zap"
)

// Service операции чтения календаря
type Service interface {
	InitialData(ctx context.Context, teacherID int64) (*model.Snapshot, error)
	ProcessedHistory(ctx context.Context, teacherID int64, limit int) ([]*model.ScheduleRequest, error)
	ListSlots(ctx context.Context, teacherID int64) ([]*model.TimeSlot, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	Ping(ctx context.Context) error
}

// Server HTTP обработчики
type Server struct {
	svc      Service
	ws       http.Handler
	renderer *render.Renderer
	loc      *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

func NewServer(svc Service, ws http.Handler, renderer *render.Renderer, loc *time.Location, logger *zap.Logger) *Server {
	if loc == nil {
		loc = time.UTC
	}
	return &Server{
		svc:      svc,
		ws:       ws,
		renderer: renderer,
		loc:      loc,
		now:      time.Now,
		logger:   logger,
	}
}

// Handler маршруты сервера
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /ws", s.ws)
	mux.HandleFunc("GET /api/teachers/{id}/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/teachers/{id}/history", s.handleHistory)
	mux.HandleFunc("GET /api/teachers/{id}/week.png", s.handleWeekImage)
	return s.recoverer(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.svc.Ping(ctx); err != nil {
		s.logger.Warn("Health check failed", zap.Error(err))
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	teacherID, err := s.teacherID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	snapshot, err := s.svc.InitialData(r.Context(), teacherID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	teacherID, err := s.teacherID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			s.writeError(w, model.ErrInvalidRequest)
			return
		}
	}

	history, err := s.svc.ProcessedHistory(r.Context(), teacherID, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleWeekImage(w http.ResponseWriter, r *http.Request) {
	teacherID, err := s.teacherID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	now := s.now().In(s.loc)
	day := now
	if raw := r.URL.Query().Get("date"); raw != "" {
		day, err = time.ParseInLocation(time.DateOnly, raw, s.loc)
		if err != nil {
			s.writeError(w, model.ErrInvalidRequest)
			return
		}
	}

	slots, err := s.svc.ListSlots(r.Context(), teacherID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	img, err := s.renderer.WeekImage(day, slots, now)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(img); err != nil {
		s.logger.Debug("Failed to write image", zap.Error(err))
	}
}

// teacherID читает id из пути и проверяет, что это учитель
func (s *Server) teacherID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, model.ErrInvalidRequest
	}

	user, err := s.svc.GetUser(r.Context(), id)
	if err != nil {
		return 0, err
	}
	if !user.IsTeacher() {
		return 0, model.ErrNotATeacher
	}
	return id, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Debug("Failed to write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := model.Code(err)
	message := err.Error()
	if code == model.CodeInternal {
		s.logger.Error("Request failed", zap.Error(err))
		message = "internal error"
	}
	s.writeJSON(w, code.HTTPStatus(), map[string]string{
		"code":    string(code),
		"message": message,
	})
}

// recoverer превращает панику обработчика в 500
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("Handler panic",
					zap.String("path", r.URL.Path),
					zap.Any("panic", rec))
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
