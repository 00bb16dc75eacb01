package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"expense-ledger/internal/auth"
	"expense-ledger/internal/config"
	"expense-ledger/internal/expense"
	"expense-ledger/internal/handlers"
	"expense-ledger/internal/logging"
	"expense-ledger/internal/storage/stores"
	"expense-ledger/web"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	logger := cfg.NewLogger()
	if envErr != nil {
		logger.Debug("no .env file found; relying on existing environment")
	}
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
	store, err := stores.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	authSvc := auth.NewService(store, logger, cfg.SessionTTL)
	expenses := expense.NewService(store, logger)
	h := handlers.NewHandlers(authSvc, expenses, web.FS, logger, cfg.SecureCookie)

	sweeper, err := startSweeper(ctx, authSvc, cfg.SessionSweep, logger)
	if err != nil {
		return err
	}
	defer func() { <-sweeper.Stop().Done() }()

	srv := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           setupRouter(h, web.FS, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithFields(logrus.Fields{"addr": srv.Addr, "driver": cfg.DBDriver}).Info("server listening")
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
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// startSweeper removes expired sessions on the given cron schedule.
func startSweeper(ctx context.Context, authSvc *auth.Service, schedule string, logger logrus.FieldLogger) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := authSvc.Sweep(ctx); err != nil {
			logger.WithError(err).Error("session sweep failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule session sweep %q: %w", schedule, err)
	}
	c.Start()
	return c, nil
}

// setupRouter wires the static assets and application routes behind the
// request logging middleware.
func setupRouter(h *handlers.Handlers, static fs.FS, logger logrus.FieldLogger) http.Handler {
	r := mux.NewRouter()
	r.PathPrefix("/static/").Handler(http.FileServerFS(static)).Methods(http.MethodGet, http.MethodHead)
	h.Routes(r)
	return logging.Middleware(logger)(r)
}
