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

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/api"
	"github.com/99minutos/identity-service/internal/api/handler"
	"github.com/99minutos/identity-service/internal/core/ports"
	"github.com/99minutos/identity-service/internal/core/service"
	"github.com/99minutos/identity-service/internal/infrastructure/db/mongo"
	"github.com/99minutos/identity-service/internal/infrastructure/db/postgres"
	redisstore "github.com/99minutos/identity-service/internal/infrastructure/db/redis"
	"github.com/99minutos/identity-service/internal/pkg/config"
	"github.com/99minutos/identity-service/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// @title                       Identity Service API
// @version                     1.0
// @description                 Signup, signin, token refresh and password change.
// @BasePath                    /api/v1
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Access token, optionally prefixed with "Bearer ".
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "identity-service: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "identity-service",
	})

	users, storePinger, closeStore, err := openUserStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	rdb, err := redisstore.Connect(ctx, redisstore.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	defer rdb.Close()

	tokens, err := service.NewTokenService(service.TokenConfig{
		AccessSecret:  cfg.JWT.Secret,
		AccessTTL:     cfg.JWT.ExpiresIn,
		RefreshSecret: cfg.JWT.RefreshSecret,
		RefreshTTL:    cfg.JWT.RefreshExpiresIn,
	})
	if err != nil {
		return err
	}

	creds := service.NewCredentialManager(users, cfg.JWT.BcryptCost)
	replay := redisstore.NewSignupReplayStore(rdb, cfg.Redis.IdempotencyTTL)
	authService := service.NewAuthService(creds, tokens, users, replay, log.With().Str("component", "auth").Logger())

	e := api.NewRouter(api.Deps{
		AuthService: authService,
		Verifier:    tokens,
		Cookie: handler.CookieOptions{
			Secure: cfg.JWT.RefreshCookieSecure,
			MaxAge: cfg.JWT.RefreshExpiresIn,
		},
		Readiness: map[string]handler.Pinger{
			cfg.StoreDriver: storePinger,
			"redis": handler.PingFunc(func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			}),
		},
		Log: log,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}
	log.Info().Msg("graceful shutdown completed")
	return nil
}

// openUserStore connects the user store selected by STORE_DRIVER and
// prepares its schema.
func openUserStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (ports.UserRepository, handler.Pinger, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := postgres.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		log.Info().Msg("postgres user store ready")
		return postgres.NewUserRepository(db.Pool), db, db.Close, nil

	default:
		store, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, nil, nil, err
		}
		repo := mongo.NewUserRepository(store.Database())
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = store.Close(context.Background())
			return nil, nil, nil, err
		}
		log.Info().Msg("mongo user store ready")
		closeFn := func() {
			cctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := store.Close(cctx); err != nil {
				log.Error().Err(err).Msg("mongo disconnect failed")
			}
		}
		return repo, store, closeFn, nil
	}
}
