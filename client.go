package qda

import (
	"context"
	"errors"

	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/emrgen/qda/internal/cache"
	"github.com/emrgen/qda/internal/coding"
	"github.com/emrgen/qda/internal/compress"
	"github.com/emrgen/qda/internal/config"
	"github.com/emrgen/qda/internal/jobs"
	"github.com/emrgen/qda/internal/queue"
	"github.com/emrgen/qda/internal/service"
	"github.com/emrgen/qda/internal/store"
)

// Client wires the coding service to the configured database, cache and
// event queue.
type Client struct {
	*service.CodingService

	cfg      *config.Config
	db       *gorm.DB
	store    store.Store
	redis    *redis.Client
	segments cache.SegmentCache
	queue    queue.EventQueue
}

// NewClient opens every backend named by cfg. Redis and kafka are optional.
func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	db, err := config.GetDb(cfg)
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:      cfg,
		db:       db,
		store:    store.NewGormStore(db),
		segments: cache.NopSegmentCache{},
	}

	if cfg.Redis.Enabled() {
		codec, err := compress.New(cfg.Redis.Compression)
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		c.redis, err = cache.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		c.segments = cache.NewRedisSegmentCache(c.redis, codec, cfg.Redis.TTL)
	}

	var observers []coding.Observer
	if cfg.Kafka.Enabled() {
		c.queue, err = queue.NewKafkaQueue(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		observers = append(observers, queue.Sink(context.Background(), c.queue))
	}

	c.CodingService = service.NewCodingService(store.NewDefaultProvider(c.store), c.segments, observers...)

	return c, nil
}

// Migrate creates or updates the tables.
func (c *Client) Migrate() error {
	return c.store.Migrate()
}

// Jobs returns the background jobs of the client.
func (c *Client) Jobs() []jobs.CronJob {
	return []jobs.CronJob{
		jobs.NewOrphanSweeper(c.store, c.segments, c.cfg.Jobs.OrphanSweepSchedule),
		jobs.NewSessionReaper(c.CodingService, c.cfg.Jobs.SessionIdleTTL),
	}
}

func (c *Client) Close() error {
	var errs []error
	if c.queue != nil {
		errs = append(errs, c.queue.Close())
	}
	if c.redis != nil {
		errs = append(errs, c.redis.Close())
	}
	if c.db != nil {
		if sqlDB, err := c.db.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		logrus.Warnf("closing client: %v", err)
	}
	return err
}
