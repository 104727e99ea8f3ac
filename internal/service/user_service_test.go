package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/Freeeeeet/scheduler_hub/internal/model"
	"github.com/Freeeeeet/scheduler_hub/internal/repository/memory"
	"github.com/Freeeeeet/scheduler_hub/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegisterUser(t *testing.T) {
	store := memory.NewStore()
	users := service.NewUserService(store, zap.NewNop())
	ctx := context.Background()

	tg := int64(5005)
	teacher, err := users.RegisterUser(ctx, "  Анна Петровна ", model.RoleTeacher, &tg)
	require.NoError(t, err)
	assert.NotZero(t, teacher.ID)
	assert.Equal(t, "Анна Петровна", teacher.Name)

	svc := service.NewScheduleService(store, zap.NewNop())
	got, err := svc.GetUser(ctx, teacher.ID)
	require.NoError(t, err)
	assert.True(t, got.IsTeacher())
	require.NotNil(t, got.TelegramID)
	assert.Equal(t, tg, *got.TelegramID)
}

func TestRegisterUser_Invalid(t *testing.T) {
	users := service.NewUserService(memory.NewStore(), zap.NewNop())
	ctx := context.Background()

	_, err := users.RegisterUser(ctx, " ", model.RoleStudent, nil)
	assert.ErrorIs(t, err, model.ErrInvalidRequest)

	_, err = users.RegisterUser(ctx, "Иван", model.Role("admin"), nil)
	assert.ErrorIs(t, err, model.ErrInvalidRequest)

	_, err = users.RegisterUser(ctx, strings.Repeat("я", 101), model.RoleStudent, nil)
	assert.ErrorIs(t, err, model.ErrInvalidRequest)
}
