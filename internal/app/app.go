// Package app assembles the storefront's services from configuration.
package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/leonardcser/storefront/internal/audit"
	"github.com/leonardcser/storefront/internal/cache"
	"github.com/leonardcser/storefront/internal/catalog"
	"github.com/leonardcser/storefront/internal/coa"
	"github.com/leonardcser/storefront/internal/config"
	"github.com/leonardcser/storefront/internal/events"
	"github.com/leonardcser/storefront/internal/logger"
	"github.com/leonardcser/storefront/internal/woo"
)

// App holds the wired services of one process.
type App struct {
	Config    config.Config
	Memo      *cache.Memo
	Woo       *woo.Client
	Catalog   *catalog.Service
	Documents *coa.Library
	Events    events.Publisher
	Audit     audit.Recorder

	closers []func() error
}

// New builds the cache, upstream clients and services. An unreachable
// second cache tier is logged and skipped.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{Config: cfg, Events: events.Nop{}, Audit: audit.Nop{}}

	tier, err := a.openTier(ctx)
	if err != nil {
		logger.Warnf("cache tier disabled: %v", err)
		tier = nil
	}
	a.Memo = cache.NewMemo(cache.MemoOptions{MaxEntries: cfg.CacheMaxEntries, Tier: tier})
	a.Woo = woo.NewClient(cfg.Woo, cfg.UpstreamTimeout)
	a.Catalog = catalog.NewService(a.Woo, a.Memo)
	a.Documents = coa.NewLibrary(coa.NewStorage(cfg.Storage, cfg.UpstreamTimeout), a.Memo, cfg.Storage)

	if missing := cfg.Woo.Missing(); len(missing) > 0 {
		logger.Warnf("WooCommerce not configured, catalog requests will fail: missing %v", missing)
	}
	return a, nil
}

// openTier prefers a shared redis tier and falls back to a local bbolt file.
func (a *App) openTier(ctx context.Context) (cache.KV, error) {
	cfg := a.Config
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			logger.Infof("cache tier: redis at %s", cfg.RedisAddr)
			a.closers = append(a.closers, client.Close)
			return cache.NewRedisStore(client, ""), nil
		}
		_ = client.Close()
		logger.Warnf("redis at %s unreachable: %v", cfg.RedisAddr, err)
	}
	if cfg.CacheDB != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.CacheDB), 0o755); err != nil {
			return nil, err
		}
		store, err := cache.Open(cfg.CacheDB, cache.Options{DefaultTTL: config.ListingTTL})
		if err != nil {
			return nil, err
		}
		logger.Infof("cache tier: bbolt at %s", cfg.CacheDB)
		a.closers = append(a.closers, store.Close)
		return store, nil
	}
	return nil, nil
}

// ConnectEvents dials RabbitMQ when RABBITMQ_URL is set. On failure events
// stay disabled.
func (a *App) ConnectEvents(name string) *events.Bus {
	if a.Config.RabbitURL == "" {
		return nil
	}
	bus, err := events.Dial(a.Config.RabbitURL, name)
	if err != nil {
		logger.Warnf("events disabled: %v", err)
		return nil
	}
	logger.Infof("connected to rabbitmq, exchange %s", events.Exchange)
	a.Events = bus
	a.closers = append(a.closers, bus.Close)
	return bus
}

// ConnectAudit connects to MongoDB when MONGO_URI is set. On failure audit
// records are dropped.
func (a *App) ConnectAudit(ctx context.Context) {
	if a.Config.MongoURI == "" {
		return
	}
	client, err := audit.Connect(ctx, a.Config.MongoURI)
	if err != nil {
		logger.Warnf("audit disabled: %v", err)
		return
	}
	logger.Infof("connected to mongodb, database %s", a.Config.MongoDB)
	a.Audit = audit.NewRepository(client, a.Config.MongoDB)
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return client.Disconnect(ctx)
	})
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
