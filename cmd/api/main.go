package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cleanstreet/api/internal/app"
	"cleanstreet/api/internal/config"
	"cleanstreet/api/internal/email"
	"cleanstreet/api/internal/media"
	"cleanstreet/api/internal/search"
	"cleanstreet/api/internal/session"
	"cleanstreet/api/internal/store"

	"github.com/urfave/cli/v2"
)

func main() {
	cliApp := cli.App{
		Name:  "cleanstreet-api",
		Usage: "CleanStreet civic complaint API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log verbosity (error, warn, info, debug); overrides LOG_LEVEL",
			},
		},
	}
	cliApp.Commands = []*cli.Command{
		&cli.Command{
			Name:   "serve",
			Usage:  "run the HTTP API",
			Action: runServe,
		},
		&cli.Command{
			Name:  "migrate",
			Usage: "apply database migrations and exit",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "down",
					Usage: "revert every applied migration instead",
				},
			},
			Action: runMigrate,
		},
	}
	cliApp.DefaultCommand = "serve"
	cliApp.RunAndExitOnError()
}

func configLogger(cctx *cli.Context, cfg config.Config, writer io.Writer) *slog.Logger {
	name := cfg.LogLevel
	if cctx.IsSet("log-level") {
		name = cctx.String("log-level")
	}
	logger := newLogger(name, writer)
	slog.SetDefault(logger)
	return logger
}

func newLogger(levelName string, writer io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(strings.TrimSpace(levelName)) {
	case "error":
		level = slog.LevelError
	case "warn":
		level = slog.LevelWarn
	case "debug":
		level = slog.LevelDebug
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level: level,
	}))
}

// warnDevSecret reports whether tokens are signed with the built-in secret.
func warnDevSecret(logger *slog.Logger, cfg config.Config) bool {
	if cfg.JWTSecret != config.DefaultJWTSecret {
		return false
	}
	logger.Warn("JWT_SECRET not set, signing tokens with the built-in development secret")
	return true
}

func runMigrate(cctx *cli.Context) error {
	cfg := config.Load()
	logger := configLogger(cctx, cfg, os.Stdout)
	ctx := cctx.Context

	db, err := store.Open(ctx, cfg.DatabaseURL, cfg.DBMaxOpenConns)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if cctx.Bool("down") {
		if err := store.RevertMigrations(ctx, db, cfg.MigrationsDir); err != nil {
			return fmt.Errorf("revert migrations: %w", err)
		}
		logger.Info("migrations reverted", "dir", cfg.MigrationsDir)
		return nil
	}
	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	logger.Info("migrations applied", "dir", cfg.MigrationsDir)
	return nil
}

func runServe(cctx *cli.Context) error {
	cfg := config.Load()
	logger := configLogger(cctx, cfg, os.Stdout)
	ctx := cctx.Context

	db, err := store.Open(ctx, cfg.DatabaseURL, cfg.DBMaxOpenConns)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}

	warnDevSecret(logger, cfg)

	opts := []app.Option{app.WithLogger(logger)}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		defer redisStore.Close()
		logger.Info("using redis for token revocation")
		opts = append(opts, app.WithRevocationStore(redisStore))
	} else {
		logger.Warn("REDIS_URL not set, token revocation is kept in memory")
		opts = append(opts, app.WithRevocationStore(session.NewMemoryStore()))
	}

	photos, err := media.NewStore(media.Options{
		Endpoint:  cfg.StorageEndpoint,
		AccessKey: cfg.StorageAccessKey,
		SecretKey: cfg.StorageSecretKey,
		Bucket:    cfg.StorageBucket,
		UseSSL:    cfg.StorageUseSSL,
		PublicURL: cfg.StoragePublicURL,
	})
	switch {
	case errors.Is(err, media.ErrNotConfigured):
		logger.Warn("STORAGE_ENDPOINT not set, photo uploads are disabled")
	case err != nil:
		return fmt.Errorf("object storage: %w", err)
	default:
		if err := photos.EnsureBucket(ctx); err != nil {
			logger.Warn("object storage bucket check failed", "bucket", cfg.StorageBucket, "error", err)
		}
		opts = append(opts, app.WithPhotoStore(photos))
	}

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if mailer.IsConfigured() {
		opts = append(opts, app.WithNotifier(mailer))
	} else {
		logger.Info("SMTP not configured, status notifications are disabled")
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewPgFallback(db))
	go searchService.ReindexAll(context.Background())
	opts = append(opts, app.WithSearchIndex(searchService))

	service := app.New(cfg, store.NewPostgresStore(db), opts...)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, cfg.AuthRatePerMin)
	if err := httpServer.TrustProxies(cfg.TrustedProxies); err != nil {
		return fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("CleanStreet API listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	return nil
}
