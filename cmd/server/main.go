// Command server runs the loyalty HTTP API.
//
// @title                      Loyalty API
// @version                    1.0
// @description                Visit ledger and bonus program for a single venue.
// @BasePath                   /api
// @securityDefinitions.apikey AdminToken
// @in                         header
// @name                       Authorization
// @description                Bearer token from /admin/login, sent as "Bearer <token>".
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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-loyalty-backend/internal/config"
	httpapi "github.com/tbourn/go-loyalty-backend/internal/http"
	"github.com/tbourn/go-loyalty-backend/internal/observability"
	"github.com/tbourn/go-loyalty-backend/internal/repo"
	"github.com/tbourn/go-loyalty-backend/internal/storage"
	"github.com/tbourn/go-loyalty-backend/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, os.Stderr)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version, observability.DeploymentAttributes(cfg)...)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn().Err(err).Msg("close store")
		}
	}()

	photos, err := openPhotos(cfg.Photos)
	if err != nil {
		return fmt.Errorf("photos: %w", err)
	}

	if cfg.Admin.Password == "" {
		log.Warn().Msg("ADMIN_PASSWORD is empty; admin login is disabled")
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	if err := httpapi.RegisterRoutes(r, httpapi.Deps{Store: store, Photos: photos}, cfg); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("store", cfg.Store.Driver).
			Str("photos", cfg.Photos.Store).
			Str("timezone", cfg.Venue.TimeZone).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}

// openStore builds the storage adapter named by STORE_DRIVER. The returned
// close function releases the database pool, if any.
func openStore(cfg config.Config) (httpapi.Store, func() error, error) {
	opts := repo.Options{Tracing: cfg.OTEL.Enabled, Silent: cfg.GinMode == gin.ReleaseMode}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Store.Driver {
	case config.DriverMemory:
		log.Warn().Msg("using in-memory store; data is lost on restart")
		return repo.NewMemoryStore(), func() error { return nil }, nil
	case config.DriverPostgres:
		db, err = repo.OpenPostgres(cfg.Store.DatabaseURL, opts)
	case config.DriverSQLite:
		db, err = repo.OpenSQLite(cfg.Store.DBPath, opts)
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	if err := repo.AutoMigrate(db); err != nil {
		_ = closeDB()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return repo.NewGormStore(db), closeDB, nil
}

// openPhotos builds the staff photo store named by PHOTO_STORE.
func openPhotos(cfg config.PhotoConfig) (storage.PhotoStore, error) {
	switch cfg.Store {
	case config.PhotoS3:
		s3, err := storage.NewS3Store(storage.S3Config{
			Endpoint:      cfg.S3.Endpoint,
			Bucket:        cfg.S3.Bucket,
			Region:        cfg.S3.Region,
			AccessKey:     cfg.S3.AccessKey,
			SecretKey:     cfg.S3.SecretKey,
			PublicBaseURL: cfg.S3.PublicBaseURL,
		})
		if err != nil {
			return nil, err
		}
		return s3, nil
	case config.PhotoLocal:
		local, err := storage.NewLocalStore(cfg.Dir, cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		return local, nil
	default:
		return nil, fmt.Errorf("unknown photo store %q", cfg.Store)
	}
}
