// Package ws serves the real-time calendar protocol over websockets.
package ws

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Freeeeeet/scheduler_hub/internal/hub"
	"github.com/Freeeeeet/scheduler_hub/internal/model"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler принимает websocket подключения и регистрирует клиентов в хабе
type Handler struct {
	svc      Service
	hub      *hub.Hub
	router   *Router
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler создаёт обработчик.
// Пустой allowedOrigins или "*" разрешает любой Origin.
func NewHandler(svc Service, h *hub.Hub, broadcaster hub.Broadcaster, allowedOrigins []string, logger *zap.Logger) *Handler {
	return &Handler{
		svc:    svc,
		hub:    h,
		router: NewRouter(svc, broadcaster, logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if o != "" {
			set[o] = true
		}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// Не браузерные клиенты не присылают Origin
		if origin == "" {
			return true
		}
		return set[strings.TrimRight(origin, "/")]
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actor, room, err := h.identify(r.Context(), r)
	if err != nil {
		h.logger.Info("Websocket handshake rejected",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err))
		http.Error(w, err.Error(), model.Code(err).HTTPStatus())
		return
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	client := hub.NewClient(actor, room, hub.DefaultSendBuffer)
	h.hub.Register(client)

	h.logger.Info("Client connected",
		zap.String("client_id", client.ID.String()),
		zap.Int64("user_id", actor.UserID),
		zap.String("role", string(actor.Role)),
		zap.Int64("room", room))

	c := &conn{
		ws:     wsConn,
		client: client,
		hub:    h.hub,
		router: h.router,
		logger: h.logger,
	}

	ctx := r.Context()
	if err := h.router.SendInitialData(ctx, client); err != nil {
		h.logger.Error("Failed to send initial data",
			zap.String("client_id", client.ID.String()),
			zap.Error(err))
	}

	go c.writePump()
	c.readPump(ctx)

	h.logger.Info("Client disconnected",
		zap.String("client_id", client.ID.String()),
		zap.Int64("user_id", actor.UserID))
}

// identify определяет пользователя и комнату по параметрам рукопожатия.
// Учитель всегда входит в свою комнату, студент в комнату teacher_id.
func (h *Handler) identify(ctx context.Context, r *http.Request) (model.Actor, int64, error) {
	q := r.URL.Query()

	userID, err := parseID(q.Get("user_id"))
	if err != nil {
		return model.Actor{}, 0, fmt.Errorf("user_id: %w", err)
	}

	user, err := h.svc.GetUser(ctx, userID)
	if err != nil {
		return model.Actor{}, 0, err
	}
	actor := model.ActorFromUser(user)

	rawTeacher := q.Get("teacher_id")
	if actor.IsTeacher() {
		if rawTeacher != "" && rawTeacher != strconv.FormatInt(actor.UserID, 10) {
			return model.Actor{}, 0, model.ErrForbidden
		}
		return actor, actor.UserID, nil
	}

	teacherID, err := parseID(rawTeacher)
	if err != nil {
		return model.Actor{}, 0, fmt.Errorf("teacher_id: %w", err)
	}

	teacher, err := h.svc.GetUser(ctx, teacherID)
	if err != nil {
		return model.Actor{}, 0, err
	}
	if !teacher.IsTeacher() {
		return model.Actor{}, 0, model.ErrNotATeacher
	}

	return actor, teacherID, nil
}

func parseID(raw string) (int64, error) {
	if raw == "" {
		return 0, fmt.Errorf("%w: missing id", model.ErrInvalidRequest)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad id %q", model.ErrInvalidRequest, raw)
	}
	return id, nil
}
