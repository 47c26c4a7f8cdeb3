package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leonardcser/storefront/internal/api"
	"github.com/leonardcser/storefront/internal/app"
	"github.com/leonardcser/storefront/internal/config"
	"github.com/leonardcser/storefront/internal/logger"
)

func main() {
	if err := logger.InitFromEnv(); err != nil {
		panic(err)
	}
	defer logger.Close()

	cfg, err := config.Load()
	if err != nil {
		logger.L().Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.L().Fatal().Err(err).Msg("startup failed")
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warnf("shutdown: %v", err)
		}
	}()

	if bus := a.ConnectEvents("storefront-api"); bus != nil {
		go func() {
			if err := bus.Consume(ctx, a.Catalog); err != nil {
				logger.Errorf("event consumer stopped: %v", err)
			}
		}()
	}
	a.ConnectAudit(ctx)

	srv := api.NewServer(api.Deps{
		Catalog:    a.Catalog,
		Documents:  a.Documents,
		Pricing:    a.Woo,
		Events:     a.Events,
		Audit:      a.Audit,
		AdminToken: cfg.AdminToken,
	})
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("storefront listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Errorf("http server: %v", err)
		}
	case <-ctx.Done():
		logger.Infof("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
}
