package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/Freeeeeet/scheduler_hub/internal/config"
	"github.com/Freeeeeet/scheduler_hub/internal/events"
	"github.com/Freeeeeet/scheduler_hub/internal/httpapi"
	"github.com/Freeeeeet/scheduler_hub/internal/hub"
	"github.com/Freeeeeet/scheduler_hub/internal/model"
	"github.com/Freeeeeet/scheduler_hub/internal/notify"
	"github.com/Freeeeeet/scheduler_hub/internal/render"
	"github.com/Freeeeeet/scheduler_hub/internal/repository"
	"github.com/Freeeeeet/scheduler_hub/internal/repository/memory"
	"github.com/Freeeeeet/scheduler_hub/internal/service"
	"github.com/Freeeeeet/scheduler_hub/internal/transport/ws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// App собранный сервер со всеми зависимостями
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	pool   *pgxpool.Pool
	redis  *redis.Client
	rabbit *events.RabbitMQPublisher
	async  *events.AsyncPublisher

	Store    service.Store
	Service  *service.ScheduleService
	Users    *service.UserService
	Hub      *hub.Hub
	Notifier hub.Broadcaster

	relay     *hub.RedisBroadcaster
	scheduler *Scheduler
	server    *http.Server
}

// OpenPool подключается к PostgreSQL
func OpenPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// New собирает приложение по конфигу
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	if err := a.initStore(ctx); err != nil {
		a.Close()
		return nil, err
	}

	// Сервис без публикации событий: справочник для уведомлений
	reader := service.NewScheduleService(a.Store, logger)

	publisher, err := a.initPublisher(reader)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Service = service.NewScheduleService(a.Store, logger, service.WithPublisher(publisher))
	a.Users = service.NewUserService(a.Store, logger)
	a.Hub = hub.NewHub(logger)

	local := hub.NewLocalBroadcaster(a.Hub, a.Service, logger)
	a.Notifier = local
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		a.redis = redis.NewClient(opts)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		a.relay = hub.NewRedisBroadcaster(a.redis, local, hub.DefaultRedisChannel, logger)
		a.Notifier = a.relay
		logger.Info("Redis relay enabled")
	}

	a.scheduler = NewScheduler(a.Service, a.Notifier, cfg.RequestExpiryInterval, logger)

	renderer, err := newRenderer(cfg.WeekFontPath)
	if err != nil {
		a.Close()
		return nil, err
	}

	wsHandler := ws.NewHandler(a.Service, a.Hub, a.Notifier, cfg.AllowedOrigins, logger)
	api := httpapi.NewServer(a.Service, wsHandler, renderer, cfg.Location(), logger)
	a.server = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

func (a *App) initStore(ctx context.Context) error {
	switch a.cfg.Storage {
	case config.StorageMemory:
		store := memory.NewStore()
		if err := seedDemoUsers(ctx, store, a.logger); err != nil {
			return err
		}
		a.Store = store
		a.logger.Warn("Using in-memory storage, data is lost on restart")
		return nil
	default:
		pool, err := OpenPool(ctx, a.cfg.DBDSN)
		if err != nil {
			return err
		}
		a.pool = pool
		a.Store = repository.NewStore(pool)

		migrator, err := NewMigrator(pool, a.logger)
		if err != nil {
			return err
		}
		defer migrator.Close()
		return migrator.Run(ctx)
	}
}

// initPublisher собирает получателей доменных событий
func (a *App) initPublisher(directory notify.Directory) (events.Publisher, error) {
	var publishers []events.Publisher

	if a.cfg.AMQPURL != "" {
		rabbit, err := events.NewRabbitMQPublisher(a.cfg.AMQPURL, a.logger)
		if err != nil {
			return nil, err
		}
		a.rabbit = rabbit
		publishers = append(publishers,
			events.NewBreakerPublisher(rabbit, events.DefaultBreakerConfig("rabbitmq"), a.logger))
	}

	if a.cfg.TelegramToken != "" {
		b, err := notify.NewTelegramBot(a.cfg.TelegramToken)
		if err != nil {
			return nil, err
		}
		notifier := notify.NewTelegramNotifier(b, directory, a.cfg.Location(), a.logger)
		publishers = append(publishers,
			events.NewBreakerPublisher(notifier, events.DefaultBreakerConfig("telegram"), a.logger))
	}

	if len(publishers) == 0 {
		return events.NewNoopPublisher(a.logger), nil
	}
	a.async = events.NewAsyncPublisher(events.NewMultiPublisher(publishers...), events.DefaultAsyncConfig(), a.logger)
	return a.async, nil
}

func newRenderer(fontPath string) (*render.Renderer, error) {
	if fontPath == "" {
		return render.NewRenderer(nil)
	}
	data, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("read week font: %w", err)
	}
	return render.NewRenderer(data)
}

// seedDemoUsers создаёт учителя и студента для режима STORAGE=memory
func seedDemoUsers(ctx context.Context, store *memory.Store, logger *zap.Logger) error {
	users := service.NewUserService(store, logger)
	teacher, err := users.RegisterUser(ctx, "Demo Teacher", model.RoleTeacher, nil)
	if err != nil {
		return err
	}
	student, err := users.RegisterUser(ctx, "Demo Student", model.RoleStudent, nil)
	if err != nil {
		return err
	}

	logger.Info("Demo users created",
		zap.Int64("teacher_id", teacher.ID),
		zap.Int64("student_id", student.ID))
	return nil
}

// Run запускает фоновые задачи и HTTP сервер, блокируется до отмены ctx
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.scheduler.Start(ctx)
	defer a.scheduler.Stop()

	errCh := make(chan error, 2)

	if a.relay != nil {
		go func() {
			if err := a.relay.Run(ctx); err != nil {
				errCh <- fmt.Errorf("redis relay: %w", err)
			}
		}()
	}

	go func() {
		a.logger.Info("HTTP server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutdown requested")
	case runErr = <-errCh:
		a.logger.Error("Server stopped", zap.Error(runErr))
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()

	// Hijacked websocket соединения Shutdown не закрывает
	a.Hub.Close()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}

	return runErr
}

// Close освобождает внешние соединения
func (a *App) Close() {
	if a.async != nil {
		a.async.Close()
	}
	if a.rabbit != nil {
		if err := a.rabbit.Close(); err != nil {
			a.logger.Warn("Failed to close RabbitMQ", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("Failed to close Redis", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
