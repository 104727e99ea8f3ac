package main

import (
	"github.com/Freeeeeet/scheduler_hub/internal/app"
	"github.com/Freeeeeet/scheduler_hub/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and websocket server",
	Long: `Start the scheduling server.

Applies pending migrations when STORAGE=postgres, then serves /ws,
/healthz and the read-only /api/teachers endpoints until interrupted.

Example:
  STORAGE=memory hub serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	logger.Info("Starting scheduler hub",
		zap.String("environment", cfg.Environment),
		zap.String("storage", cfg.Storage),
		zap.Bool("redis", cfg.RedisURL != ""),
		zap.Bool("rabbitmq", cfg.AMQPURL != ""),
		zap.Bool("telegram", cfg.TelegramToken != ""))

	a, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		logger.Error("Failed to start", zap.Error(err))
		return err
	}
	defer a.Close()

	return a.Run(cmd.Context())
}
