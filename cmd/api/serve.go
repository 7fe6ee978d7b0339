package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/realty-service/internal/api/http"
	"github.com/spec-kit/realty-service/internal/api/http/handlers"
	"github.com/spec-kit/realty-service/internal/auth"
	"github.com/spec-kit/realty-service/internal/config"
	"github.com/spec-kit/realty-service/internal/events"
	"github.com/spec-kit/realty-service/internal/mailer"
	"github.com/spec-kit/realty-service/internal/observability"
	"github.com/spec-kit/realty-service/internal/payment"
	"github.com/spec-kit/realty-service/internal/persistence"
	"github.com/spec-kit/realty-service/internal/repository"
	"github.com/spec-kit/realty-service/internal/repository/memory"
	"github.com/spec-kit/realty-service/internal/service"
	"github.com/spec-kit/realty-service/internal/worker"
)

// stores groups the repositories behind one backend.
type stores struct {
	accounts    repository.AccountRepository
	pending     repository.PendingRegistrationRepository
	buyers      repository.BuyerRepository
	connections repository.ConnectionRepository
	db          handlers.Pinger
}

func newStores(pg *persistence.Postgres) stores {
	pool := pg.PoolHandle()
	if pool == nil {
		mem := memory.NewStore()
		return stores{
			accounts:    mem.Accounts(),
			pending:     mem.Pending(),
			buyers:      mem.Buyers(),
			connections: mem.Connections(),
			db:          mem,
		}
	}
	return stores{
		accounts:    repository.NewAccountRepository(pool),
		pending:     repository.NewPendingRegistrationRepository(pool),
		buyers:      repository.NewBuyerRepository(pool),
		connections: repository.NewConnectionRepository(pool),
		db:          pg,
	}
}

func newPaymentProvider(cfg config.PaymentConfig) payment.Provider {
	if cfg.Provider == "stripe" {
		return payment.NewStripeProvider(cfg.StripeSecretKey)
	}
	return payment.NewSandboxProvider(true)
}

func newDispatcher(cfg config.NATSConfig, logger *zap.Logger) (events.Dispatcher, func(), error) {
	local := events.NewInMemoryDispatcher(logger)
	if cfg.URL == "" {
		return local, func() {}, nil
	}
	js, err := events.NewNATSDispatcher(cfg.URL, cfg.Stream, cfg.SubjectPrefix, local, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect nats: %w", err)
	}
	logger.Info("mirroring events to jetstream", zap.String("stream", cfg.Stream))
	return js, js.Close, nil
}

func serve(ctx context.Context) error {
	cfg, logger, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	shutdownTracing, err := observability.InitTracing(ctx, cfg.App.Name, cfg.App.Version, cfg.Tracing, logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations && pg.PoolHandle() != nil {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close() //nolint:errcheck

	pricing, err := config.LoadPricing(cfg.Payment.PricingFile)
	if err != nil {
		return err
	}

	dispatcher, closeDispatcher, err := newDispatcher(cfg.NATS, logger)
	if err != nil {
		return err
	}
	defer closeDispatcher()

	st := newStores(pg)
	metrics := observability.NewMetrics()
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes).WithRefreshTTL(cfg.Auth.RefreshTokenTTL())
	payments := newPaymentProvider(cfg.Payment)
	mail := mailer.New(cfg.Notification, logger)

	materializer := service.NewMaterializer(service.MaterializerDependencies{
		AccountRepo: st.accounts,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
	})
	finalizer, err := service.NewActivationFinalizer(cfg.Activation.Mode, service.FinalizerDependencies{
		Materializer: materializer,
		Tokens:       tokens,
		PendingRepo:  st.pending,
		Payments:     payments,
		Pricing:      pricing,
		URLs:         cfg.Payment,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	activation := service.NewActivationService(*cfg, service.ActivationDependencies{
		PendingRepo:  st.pending,
		AccountRepo:  st.accounts,
		Mailer:       mail,
		Finalizer:    finalizer,
		Materializer: materializer,
		Payments:     payments,
		Tokens:       tokens,
		Logger:       logger,
	})
	entitlements := service.NewEntitlementService(*cfg, service.EntitlementDependencies{
		BuyerRepo:  st.buyers,
		Payments:   payments,
		Pricing:    pricing,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	connections := service.NewConnectionService(service.ConnectionDependencies{
		ConnectionRepo: st.connections,
		AccountRepo:    st.accounts,
		BuyerRepo:      st.buyers,
		Dispatcher:     dispatcher,
		Metrics:        metrics,
		Logger:         logger,
	})
	billing := service.NewBillingService(service.BillingDependencies{
		Payments: payments,
		URLs:     cfg.Payment,
		Logger:   logger,
	})
	authService := service.NewAuthService(service.AuthDependencies{
		AccountRepo: st.accounts,
		Tokens:      tokens,
		Logger:      logger,
	})

	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, st.accounts, mail, logger))

	sweeper := worker.NewPendingSweeper(st.pending, cfg.Activation.PendingRetention, cfg.Activation.SweepInterval, metrics, logger)
	go sweeper.Run(ctx)

	var limiterStorage fiber.Storage
	if err := redis.Ping(ctx); err == nil {
		limiterStorage = redis
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, cfg.App, logger, metrics)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"database": st.db,
			"redis":    redis,
		}),
		Signup:         handlers.NewSignupHandler(activation, authService, cfg.Payment.SignupCancelURL),
		Entitlements:   handlers.NewEntitlementHandler(entitlements, cfg.Payment.DashboardURL),
		Billing:        handlers.NewBillingHandler(billing),
		Connections:    handlers.NewConnectionHandler(connections),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, st.accounts),
		Metrics:        metrics,
		RateLimiter:    httptransport.NewRateLimiter(cfg.RateLimit, limiterStorage),
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening",
			zap.String("addr", cfg.App.Addr()),
			zap.String("activation_mode", activation.Mode()),
		)
		listenErr <- app.Listen(cfg.App.Addr())
	}()

	select {
	case err := <-listenErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("fiber listen: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	return app.ShutdownWithTimeout(10 * time.Second)
}
