package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/winchzone/dashboard/internal/access"
	"github.com/winchzone/dashboard/internal/auth"
	"github.com/winchzone/dashboard/internal/busy"
	"github.com/winchzone/dashboard/internal/config"
	"github.com/winchzone/dashboard/internal/customer"
	"github.com/winchzone/dashboard/internal/db"
	"github.com/winchzone/dashboard/internal/directory"
	"github.com/winchzone/dashboard/internal/events"
	internalhttp "github.com/winchzone/dashboard/internal/http"
	"github.com/winchzone/dashboard/internal/identity"
	"github.com/winchzone/dashboard/internal/idle"
	"github.com/winchzone/dashboard/internal/lookup"
	"github.com/winchzone/dashboard/internal/metrics"
	"github.com/winchzone/dashboard/internal/storage"
	"github.com/winchzone/dashboard/internal/trip"
)

const roleCacheTTL = time.Minute

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("api stopped with error")
	}
}

func run() error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis parse: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	publisher, closeEvents, err := events.Connect(cfg.NATSURL, log.Logger)
	if err != nil {
		return fmt.Errorf("events: %w", err)
	}
	defer closeEvents()

	uploader, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	hub := identity.NewHub(redisClient, log.Logger)
	go hub.Run(ctx)

	var mailer identity.Mailer = identity.NewLogMailer(log.Logger)
	if cfg.MailWebhookURL != "" {
		mailer = identity.NewWebhookMailer(cfg.MailWebhookURL)
	}
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTTL)
	provider := identity.NewLocal(identity.NewPGUserStore(pool), redisClient, jwtManager, identity.Options{
		RefreshTTL: cfg.JWTRefreshTTL,
		Flow:       cfg.AuthFlow,
		APIURL:     cfg.APIURL,
		Mailer:     mailer,
		Hub:        hub,
		Logger:     log.Logger,
	})

	roles := access.NewCachedResolver(access.NewResolver(access.NewRepository(pool), log.Logger), roleCacheTTL)
	unsubscribe := hub.Subscribe(roles.Listen)
	defer unsubscribe()

	lookups := lookup.NewService(lookup.NewRepository(pool), log.Logger)

	handler := internalhttp.NewRouter(internalhttp.Deps{
		Config:    cfg,
		DB:        pool,
		Redis:     redisClient,
		Auth:      provider,
		Roles:     roles,
		Activity:  idle.NewRedisStore(redisClient, cfg.JWTRefreshTTL),
		Busy:      busy.New(redisClient, cfg.BusyTTL),
		Customers: customer.NewService(customer.NewRepository(pool), uploader, publisher, log.Logger),
		Trips:     trip.NewService(trip.NewRepository(pool), uploader, publisher, log.Logger),
		Lookups:   lookups,
		Users:     directory.NewService(directory.NewRepository(pool), hub, publisher, log.Logger),
		Metrics:   metrics.New(),
		Logger:    log.Logger,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("API listening on :%d", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down...")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}
