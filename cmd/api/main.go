package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/tadbeer/helpdesk/internal/api/http"
	"github.com/tadbeer/helpdesk/internal/api/http/handlers"
	"github.com/tadbeer/helpdesk/internal/assist"
	"github.com/tadbeer/helpdesk/internal/assist/llm"
	"github.com/tadbeer/helpdesk/internal/auth"
	"github.com/tadbeer/helpdesk/internal/config"
	"github.com/tadbeer/helpdesk/internal/docsearch"
	"github.com/tadbeer/helpdesk/internal/events"
	"github.com/tadbeer/helpdesk/internal/observability"
	"github.com/tadbeer/helpdesk/internal/persistence"
	"github.com/tadbeer/helpdesk/internal/ratelimit"
	"github.com/tadbeer/helpdesk/internal/repository"
	"github.com/tadbeer/helpdesk/internal/repository/memory"
	"github.com/tadbeer/helpdesk/internal/service"
	"github.com/tadbeer/helpdesk/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var store repository.Store
	if pg != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.Pool, cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		store = repository.NewSQLStore(pg.DB)
	} else {
		logger.Warn("POSTGRES_DSN not set, using in-memory store; data is lost on restart")
		store = memory.New()
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	dispatcher := events.NewInMemoryDispatcher(logger, metrics)
	notificationService := service.NewNotificationService(service.NotificationDependencies{
		Store:   store,
		Sender:  service.NewWebhookSender(cfg.Notification.WebhookURL, cfg.Notification.WebhookTimeout),
		Logger:  logger,
		Metrics: metrics,
	})
	notificationService.RegisterHandlers(dispatcher)

	ticketService := service.NewTicketService(service.TicketDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{UserRepo: store.Users()})
	userService := service.NewUserService(store, cfg.Auth.BcryptCost)
	departmentService := service.NewDepartmentService(store)
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), store.Users())

	docs, err := docsearch.NewBuiltin()
	if err != nil {
		logger.Fatal("failed to index help articles", zap.Error(err))
	}
	assistDeps := assist.Dependencies{
		Tickets: ticketService,
		Docs:    docs,
		Logger:  logger,
		Metrics: metrics,
		Timeout: time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	}
	if client := llm.NewClient(cfg.LLM); client != nil {
		assistDeps.Provider = client
	} else {
		logger.Info("LLM_API_KEY not set, AI assist disabled")
	}
	var healthRedis handlers.Pinger
	if redis != nil {
		assistDeps.Limiter = ratelimit.NewFixedWindow(ratelimit.NewRedisCounter(redis.Client), "ai",
			cfg.RateLimit.AIRequestsPerMinute, time.Minute, logger)
		healthRedis = redis
	}
	assistant := assist.New(assistDeps)

	overdue := worker.NewOverdueWorker(worker.OverdueDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    metrics,
		Interval:   cfg.Worker.OverdueScanInterval,
		BatchSize:  cfg.Worker.OverdueBatchSize,
	})
	go overdue.Run(ctx)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, httptransport.MiddlewareConfig{
		Logger:      logger,
		Metrics:     metrics,
		Timeout:     cfg.App.RequestTimeout(),
		Production:  cfg.App.Production(),
		CORSOrigins: cfg.App.CORSOrigins,
		RateLimit:   float64(cfg.RateLimit.RequestsPerSecond),
		Burst:       cfg.RateLimit.Burst,
	})

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, store, healthRedis),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Notifications:  handlers.NewNotificationsHandler(notificationService),
		Users:          handlers.NewUsersHandler(userService),
		Departments:    handlers.NewDepartmentsHandler(departmentService),
		Assist:         handlers.NewAssistHandler(assistant),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
