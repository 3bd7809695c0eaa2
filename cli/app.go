// ABOUTME: Wires configuration into a running sync service
// ABOUTME: Builds the logger, store, broker client, locker and event publisher shared by commands
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/harperreed/cellsync/composio"
	"github.com/harperreed/cellsync/config"
	"github.com/harperreed/cellsync/crm"
	"github.com/harperreed/cellsync/db"
	"github.com/harperreed/cellsync/events"
	"github.com/harperreed/cellsync/lock"
	"github.com/harperreed/cellsync/logging"
	"github.com/harperreed/cellsync/sync"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const serviceName = "cellsync"

// App holds the long-lived dependencies of a command.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Store  *db.Store
	Syncer *sync.Syncer

	closers []func() error
}

// NewApp opens every configured backend. Redis and Kafka are optional.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Logger: logger}
	app.closers = append(app.closers, func() error {
		_ = logger.Sync()
		return nil
	})

	store, err := db.Open(ctx, cfg.Database.DriverName(), cfg.Database.DSN)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Store = store
	app.closers = append(app.closers, store.Close)

	var broker sync.Broker
	if cfg.Composio.APIKey != "" {
		broker = composio.NewClient(composio.Options{
			BaseURL: cfg.Composio.BaseURL,
			APIKey:  cfg.Composio.APIKey,
			Timeout: cfg.Composio.Timeout,
		}, logger.Named("composio"))
	} else {
		logger.Warn("composio api key not set, CRM fetches are disabled")
	}

	locker, err := app.newLocker(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		producer := events.NewProducer(events.ProducerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		}, logger.Named("events"))
		publisher = producer
		app.closers = append(app.closers, producer.Close)
	}

	app.Syncer = sync.NewSyncer(store, broker, crm.NewRegistry(logger.Named("crm")), locker, publisher, logger.Named("sync"), sync.Options{
		FetchTimeout: cfg.Sync.FetchTimeout,
	})
	return app, nil
}

func (a *App) newLocker(ctx context.Context) (lock.Locker, error) {
	opts := lock.Options{TTL: a.Config.Sync.LockTTL, Wait: a.Config.Sync.LockWait}
	if a.Config.Redis.Addr == "" {
		return lock.NewLocalLocker(opts), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     a.Config.Redis.Addr,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.closers = append(a.closers, rdb.Close)
	return lock.NewRedisLocker(rdb, serviceName+":lock:", opts, a.Logger.Named("lock")), nil
}

// Close releases resources in reverse order of acquisition.
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
