package main

import (
	"context"
	"fmt"

	appconfig "github.com/fyerfyer/doc2pdf/config"
	"github.com/fyerfyer/doc2pdf/internal/cache"
	"github.com/fyerfyer/doc2pdf/internal/converter"
	"github.com/fyerfyer/doc2pdf/internal/database"
	"github.com/fyerfyer/doc2pdf/internal/repository"
	"github.com/fyerfyer/doc2pdf/internal/services"
	"github.com/fyerfyer/doc2pdf/pkg/storage"
	"github.com/fyerfyer/doc2pdf/pkg/taskqueue"
	"github.com/sirupsen/logrus"
)

// app 服务和工作者共用的组件
type app struct {
	service *services.ConversionService
	queue   *taskqueue.RedisQueue
	closers []func() error
}

// Close 按创建的相反顺序释放资源
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

// setupApp 根据配置装配数据库、存储、缓存、队列和转换服务
// withQueue为true时连接任务队列，服务以异步方式提交转换
func setupApp(ctx context.Context, cfg *appconfig.Config, logger *logrus.Logger, withQueue bool) (*app, error) {
	a := &app{}

	if err := database.Setup(&cfg.Database, logger); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.closers = append(a.closers, database.Close)

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	opts := []services.ConversionOption{
		services.WithRepository(repository.NewConversionRepository()),
		services.WithTimeout(cfg.Queue.Timeout),
		services.WithLogger(logger),
	}

	if cfg.Cache.Enable {
		c, err := cache.NewCache(cfg.Cache.Config)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize cache: %w", err)
		}
		if closer, ok := c.(interface{ Close() error }); ok {
			a.closers = append(a.closers, closer.Close)
		}
		opts = append(opts, services.WithCache(c, cfg.Cache.TTL))
	}

	if withQueue {
		queue, err := taskqueue.NewRedisQueueWithLogger(&cfg.Queue, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize task queue: %w", err)
		}
		a.queue = queue
		a.closers = append(a.closers, queue.Close)
		opts = append(opts, services.WithTaskQueue(queue), services.WithAsyncProcessing(true))

		logger.WithFields(logrus.Fields{
			"redis_addr":  cfg.Queue.RedisAddr,
			"concurrency": cfg.Queue.Concurrency,
			"retry_limit": cfg.Queue.RetryLimit,
		}).Info("Task queue initialized")
	}

	conv := converter.New(
		converter.WithPDFConfig(cfg.PDF),
		converter.WithLogger(logger),
	)
	a.service = services.NewConversionService(store, conv, opts...)
	if err := a.service.Init(); err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}
