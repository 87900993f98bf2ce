package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ayman-boop/ub-chat/internal/api"
	"github.com/ayman-boop/ub-chat/internal/auth"
	"github.com/ayman-boop/ub-chat/internal/config"
	"github.com/ayman-boop/ub-chat/internal/db"
	"github.com/ayman-boop/ub-chat/internal/moderation"
	"github.com/ayman-boop/ub-chat/internal/observ"
	"github.com/ayman-boop/ub-chat/internal/realtime"
	"github.com/ayman-boop/ub-chat/internal/repository"
	"github.com/ayman-boop/ub-chat/internal/repository/memory"
	"github.com/ayman-boop/ub-chat/internal/repository/postgres"
	"github.com/ayman-boop/ub-chat/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type stores struct {
	threads  repository.ThreadRepository
	messages repository.MessageRepository
	users    repository.UserRepository
	health   repository.HealthChecker
	close    func()
}

func run() error {
	// ---------------------------------------------------------------
	// 1. Config and logger
	// ---------------------------------------------------------------
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Cancelled on SIGINT/SIGTERM; every background loop below stops with it.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------------------------------------------------------------
	// 2. Storage
	// ---------------------------------------------------------------
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	// ---------------------------------------------------------------
	// 3. Real-time fan-out
	//
	// The hub only knows local sessions. With REDIS_URL set, every
	// instance publishes to Redis and forwards what it receives to its
	// own hub, so a message written anywhere reaches viewers everywhere.
	// ---------------------------------------------------------------
	hub := realtime.NewHub(cfg.WSOutboundBuffer, logger.Named("realtime"))

	var bus realtime.Bus = realtime.NewLocalBus()
	healthChecks := map[string]repository.HealthChecker{"store": st.health}
	if cfg.RedisURL != "" {
		redisBus, err := realtime.NewRedisBus(ctx, cfg.RedisURL, cfg.RedisChannel, logger)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		bus = redisBus
		healthChecks["redis"] = redisBus
	}
	defer bus.Close()

	if err := bus.StartForwarder(ctx, func(ev realtime.Event) { hub.Publish(ev) }); err != nil {
		return fmt.Errorf("start event forwarder: %w", err)
	}
	notifier := realtime.NewNotifier(bus, cfg.NotifyQueueSize, logger)

	// ---------------------------------------------------------------
	// 4. Services
	// ---------------------------------------------------------------
	digester, err := auth.NewEmailDigester(cfg.EmailDigestKey)
	if err != nil {
		return fmt.Errorf("email digester: %w", err)
	}

	threadSvc := service.NewThreadService(st.threads, logger.Named("threads"))
	querySvc := service.NewQueryService(st.threads, st.messages, logger.Named("queries"))
	messageSvc := service.NewMessageService(st.threads, st.messages, moderation.NewDefault(), logger.Named("messages"),
		service.WithNotifier(notifier),
		service.WithMaxContentLength(cfg.MaxContentLength),
	)
	authSvc := service.NewAuthService(st.users, digester, service.AuthConfig{
		Domain:    cfg.CampusEmailDomain,
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  cfg.TokenTTL,
	}, logger.Named("auth"))

	// ---------------------------------------------------------------
	// 5. HTTP server
	// ---------------------------------------------------------------
	router := api.NewRouter(api.RouterConfig{
		Threads:      threadSvc,
		Queries:      querySvc,
		Messages:     messageSvc,
		Auth:         authSvc,
		Hub:          hub,
		HealthChecks: healthChecks,
		JWTSecret:    cfg.JWTSecret,
		CORSOrigins:  cfg.CORSOrigins,
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ---------------------------------------------------------------
	// 6. Run until signalled
	// ---------------------------------------------------------------
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		notifier.Run(gctx)
		return nil
	})
	g.Go(func() error {
		messageSvc.RunReconciler(gctx, cfg.ReconcileInterval)
		return nil
	})
	g.Go(func() error {
		logger.Info("starting ub-chat",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
			zap.String("store", cfg.Store),
			zap.Bool("redis", cfg.RedisURL != ""),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	if cfg.Store == config.StoreMemory {
		logger.Warn("using in-memory store; data is lost on restart")
		mem := memory.New()
		return &stores{
			threads:  mem.Threads(),
			messages: mem.Messages(),
			users:    mem.Users(),
			health:   mem,
			close:    func() {},
		}, nil
	}

	database, err := db.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	pool := database.Pool()
	return &stores{
		threads:  postgres.NewThreadStore(pool),
		messages: postgres.NewMessageStore(pool),
		users:    postgres.NewUserStore(pool),
		health:   database,
		close:    database.Close,
	}, nil
}
