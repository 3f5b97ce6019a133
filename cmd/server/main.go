package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"booking-api/internal/booking"
	"booking-api/internal/cache"
	"booking-api/internal/catalog"
	"booking-api/internal/config"
	"booking-api/internal/handler"
	"booking-api/internal/identity"
	"booking-api/internal/mailer"
	"booking-api/internal/middleware"
	"booking-api/internal/oauth"
	"booking-api/internal/opsrpc"
	"booking-api/internal/reminder"
	"booking-api/internal/sentry"
	"booking-api/internal/store"
	"booking-api/internal/store/memstore"
)

// repository is satisfied by both store backends.
type repository interface {
	identity.Repository
	catalog.Repository
	booking.Repository
	Ping(ctx context.Context) error
}

func main() {
	_ = godotenv.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// storage
	var repo repository
	switch cfg.StoreDriver {
	case "memory":
		logger.Warn("using in-memory store, data is lost on exit")
		repo = memstore.New()
	default:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("db: %w", err)
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("db ping: %w", err)
		}
		st := store.New(pool)
		if err := st.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("connected to postgres, migrations applied")
		repo = st
	}

	// redis is optional: without it the catalog is uncached and the sweep
	// lock only covers this process
	var (
		servicesCache catalog.Cache
		sweepLock     reminder.Locker
	)
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			return err
		}
		defer rdb.Close()
		servicesCache = cache.NewServices(rdb, cfg.CatalogCacheTTL, logger)
		sweepLock = cache.NewLock(rdb, cache.SweepLockKey, 30*time.Minute, logger)
		logger.Info("connected to redis", "addr", cfg.RedisAddr)
	}

	report, err := sentry.New(sentry.Config{DSN: cfg.SentryDSN, Environment: cfg.SentryEnvironment})
	if err != nil {
		return fmt.Errorf("sentry: %w", err)
	}
	defer report.Close()

	mail := mailer.New(mailer.Config{
		APIURL:    cfg.MailtrapAPIURL,
		APIKey:    cfg.MailtrapAPIKey,
		FromEmail: cfg.MailtrapFromEmail,
		FromName:  cfg.MailtrapFromName,
		Location:  cfg.Location,
	}, logger)

	providers := oauth.NewRegistry(
		oauth.NewGoogle(cfg.GoogleUserinfoURL),
		oauth.NewFacebook(cfg.FacebookGraphURL),
	)

	ids := identity.New(repo, mail, providers, identity.Config{
		Secret:      cfg.JWTSecret,
		TokenTTL:    cfg.JWTExpiresIn,
		RememberTTL: cfg.RememberTTL,
		FrontendURL: cfg.FrontendURL,
	}, logger)
	if cfg.AdminEmail != "" {
		if err := ids.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
	}
	cat := catalog.New(repo, servicesCache, logger)
	bk := booking.New(repo, mail, logger, booking.WithLocation(cfg.Location))
	runner := reminder.NewRunner(bk, sweepLock, report, logger)

	sched, err := reminder.NewScheduler(runner, cfg.ReminderCron, cfg.Location, 30*time.Minute, logger)
	if err != nil {
		return err
	}
	sched.Start()

	// login/register/forgot limiter and the ops limiter
	authLimiter := middleware.NewRateLimiter(5, 10)
	opsLimiter := middleware.NewRateLimiter(1, 5)
	go authLimiter.Cleanup(ctx)
	go opsLimiter.Cleanup(ctx)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{cfg.FrontendURL}
	}
	h := handler.New(ids, cat, bk, runner, repo, report, authLimiter, logger, handler.Config{
		CronSecret:     cfg.CronSecret,
		CookieSecure:   cfg.CookieSecure,
		CORSOrigins:    origins,
		TrustedProxies: cfg.TrustedProxies,
	})
	routes, err := h.Routes()
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      routes,
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	grpcSrv := opsrpc.NewServer(runner, cfg.CronSecret, opsLimiter, logger)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	var wg sync.WaitGroup
	wg.Go(func() {
		logger.Info("http server starting", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "error", err)
			stop()
		}
	})
	wg.Go(func() {
		logger.Info("grpc ops server starting", "addr", lis.Addr().String())
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Error("grpc server", "error", err)
			stop()
		}
	})

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	sched.Stop(shutdownCtx)
	grpcSrv.GracefulStop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	wg.Wait()
	logger.Info("shutdown complete")
	return nil
}
