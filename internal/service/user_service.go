package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/scheduler_hub/internal/model"
	"go.uber.org/zap"
)

type UserService struct {
	store  Store
	logger *zap.Logger
}

func NewUserService(store Store, logger *zap.Logger) *UserService {
	return &UserService{
		store:  store,
		logger: logger,
	}
}

// RegisterUser регистрирует учителя или студента
func (s *UserService) RegisterUser(ctx context.Context, name string, role model.Role, telegramID *int64) (*model.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", model.ErrInvalidRequest)
	}
	if len([]rune(name)) > maxStudentNameLength {
		return nil, fmt.Errorf("%w: name is too long", model.ErrInvalidRequest)
	}
	if role != model.RoleTeacher && role != model.RoleStudent {
		return nil, fmt.Errorf("%w: unknown role %q", model.ErrInvalidRequest, role)
	}

	user := &model.User{
		Name:       name,
		Role:       role,
		TelegramID: telegramID,
	}

	if err := s.store.Repos().Users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("New user registered",
		zap.Int64("user_id", user.ID),
		zap.String("role", string(role)),
		zap.Bool("telegram", telegramID != nil),
	)

	return user, nil
}
