// Package main запускает HTTP-сервер магазина.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/adirebymkz/shop-backend/internal/alerts"
	"github.com/adirebymkz/shop-backend/internal/cache"
	"github.com/adirebymkz/shop-backend/internal/config"
	"github.com/adirebymkz/shop-backend/internal/handler"
	"github.com/adirebymkz/shop-backend/internal/paystack"
	"github.com/adirebymkz/shop-backend/internal/repository"
	"github.com/adirebymkz/shop-backend/internal/service"
	"github.com/adirebymkz/shop-backend/internal/signature"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	var gateway service.Gateway
	if cfg.PaystackSecretKey != "" {
		gateway = paystack.NewClient(cfg.PaystackAPIAddress, cfg.PaystackSecretKey, cfg.PaystackCallbackURL)
	}

	var events *cache.Events
	if cfg.RedisAddr != "" {
		events = cache.NewEvents(cfg.RedisAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var alertProducer *alerts.Producer
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		alertProducer = alerts.NewProducer(brokers, logger)
		alertProducer.Start(ctx)
	}

	svc := service.NewService(repo, gateway, alertProducer, events)
	defer svc.Close()

	verifier := signature.NewVerifier(cfg.PaystackSecretKey)
	h := handler.NewHandler(svc, logger, verifier)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting shop server", "addr", cfg.RunAddress)
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

		alertProducer.WaitClosed()

		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
