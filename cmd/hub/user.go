package main

import (
	"fmt"

	"github.com/Freeeeeet/scheduler_hub/internal/app"
	"github.com/Freeeeeet/scheduler_hub/internal/config"
	"github.com/Freeeeeet/scheduler_hub/internal/model"
	"github.com/Freeeeeet/scheduler_hub/internal/repository"
	"github.com/Freeeeeet/scheduler_hub/internal/service"
	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage teachers and students",
}

var (
	userName       string
	userRole       string
	userTelegramID int64
)

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a teacher or a student",
	Long: `Register a user and print its id.

The id is what clients pass as user_id / teacher_id when connecting.

Example:
  hub user add --name "Анна Петровна" --role teacher --telegram-id 123456`,
	RunE: runUserAdd,
}

func init() {
	userAddCmd.Flags().StringVar(&userName, "name", "", "display name")
	userAddCmd.Flags().StringVar(&userRole, "role", string(model.RoleStudent), "teacher or student")
	userAddCmd.Flags().Int64Var(&userTelegramID, "telegram-id", 0, "telegram chat id for notifications")
	_ = userAddCmd.MarkFlagRequired("name")

	userCmd.AddCommand(userAddCmd)
	rootCmd.AddCommand(userCmd)
}

func runUserAdd(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Storage != config.StoragePostgres {
		return fmt.Errorf("user add requires STORAGE=postgres")
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	pool, err := app.OpenPool(cmd.Context(), cfg.DBDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	var telegramID *int64
	if userTelegramID != 0 {
		telegramID = &userTelegramID
	}

	users := service.NewUserService(repository.NewStore(pool), logger)
	user, err := users.RegisterUser(cmd.Context(), userName, model.Role(userRole), telegramID)
	if err != nil {
		return err
	}

	fmt.Printf("✅ %s %q registered with id %d\n", user.Role, user.Name, user.ID)
	return nil
}
