// Package main запускает HTTP-сервер сервиса оптимального кэшбэка.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/team089/optimal-cashback/internal/backend"
	"github.com/team089/optimal-cashback/internal/config"
	"github.com/team089/optimal-cashback/internal/handler"
	"github.com/team089/optimal-cashback/internal/middleware"
	"github.com/team089/optimal-cashback/internal/session"
	"github.com/team089/optimal-cashback/internal/storage"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	store := storage.Open(cfg.DatabaseURI, cfg.StoragePath, logger)
	defer store.Close()

	var backendClient session.Backend
	if cfg.BackendAddress != "" {
		backendClient = backend.NewClient(cfg.BackendAddress, logger)
	}

	manager := session.NewManager(store, backendClient, logger, cfg.AnalysisDuration)
	defer manager.Close()

	authMiddleware := middleware.NewAuthMiddleware("optimal-cashback-secret")
	h := handler.NewHandler(manager, logger, authMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск фонового обновления статусов согласий
	g.Go(func() error {
		manager.StartConsentUpdates(ctx)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting optimal cashback server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
