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

	"github.com/diewo77/taskflow/auth"
	"github.com/diewo77/taskflow/internal/ai"
	"github.com/diewo77/taskflow/internal/config"
	"github.com/diewo77/taskflow/internal/db"
	"github.com/diewo77/taskflow/internal/logger"
	"github.com/diewo77/taskflow/internal/metrics"
	"github.com/diewo77/taskflow/internal/server"
	"github.com/diewo77/taskflow/internal/services"
	"github.com/diewo77/taskflow/internal/storage"
	"github.com/diewo77/taskflow/view"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

// bootstrap loads config, builds the logger and opens the database.
func bootstrap() (*config.Config, *zap.Logger, *gorm.DB, error) {
	cfg := config.Load()
	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Environment: cfg.App.Env,
		ServiceName: "taskflow",
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	conn, err := db.Open(cfg.Database, log)
	if err != nil {
		_ = log.Sync()
		return nil, nil, nil, err
	}
	return cfg, log, conn, nil
}

func serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, log, conn, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.App.Migrations {
		if err := db.Migrate(conn); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info("migrations applied")
	}

	auth.Configure(cfg.Session.Secret, cfg.Session.SessionTTL(), cfg.Session.Secure)
	if cfg.Session.Secret == "" {
		log.Warn("SESSION_SECRET is not set; using the development secret")
	}
	view.SetReload(cfg.App.Dev)

	store, err := storage.New(ctx, cfg.Storage, log.Named("storage"))
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	m := metrics.New("taskflow")
	svc := services.New(conn, log, services.Options{
		Store:          store,
		Metrics:        m,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
		Location:       cfg.App.Location(),
	})
	assistant := ai.NewAssistant(ai.NewClient(cfg.AI, log.Named("ai"), m), svc.Gate)

	handler := server.New(server.Config{
		DB:                 conn,
		Log:                log,
		Services:           svc,
		Metrics:            m,
		Assistant:          assistant,
		Location:           cfg.App.Location(),
		LoginRatePerMinute: cfg.Server.LoginRatePerMinute,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("port", cfg.Server.Port), zap.Bool("dev", cfg.App.Dev),
			zap.String("db_driver", cfg.Database.Driver), zap.String("storage_driver", cfg.Storage.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-quit:
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("error during shutdown", zap.Error(err))
		return err
	}
	log.Info("server stopped gracefully")
	return nil
}
