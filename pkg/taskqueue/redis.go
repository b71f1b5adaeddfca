package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisQueue 基于asynq的任务队列实现
type RedisQueue struct {
	client    *asynq.Client    // 用于添加任务
	inspector *asynq.Inspector // 用于检查任务状态
	cfg       *Config          // 队列配置
	logger    *logrus.Logger   // 日志记录器
}

// redisOpt 由配置生成asynq的Redis连接参数
func redisOpt(cfg *Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

// NewRedisQueue 创建Redis任务队列实例
func NewRedisQueue(cfg *Config) (Queue, error) {
	return NewRedisQueueWithLogger(cfg, nil)
}

// NewRedisQueueWithLogger 使用指定日志记录器创建Redis任务队列
func NewRedisQueueWithLogger(cfg *Config, logger *logrus.Logger) (*RedisQueue, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Queue == "" {
		cfg.Queue = "default"
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	// 测试Redis连接
	ping := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer ping.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ping.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisQueue{
		client:    asynq.NewClient(redisOpt(cfg)),
		inspector: asynq.NewInspector(redisOpt(cfg)),
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// EnqueueConversion 将转换任务加入队列
func (q *RedisQueue) EnqueueConversion(ctx context.Context, conversionID string) (string, error) {
	if conversionID == "" {
		return "", fmt.Errorf("%w: empty conversion id", ErrInvalidPayload)
	}

	payload, err := MarshalPayload(ConversionPayload{ConversionID: conversionID})
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	opts := []asynq.Option{
		asynq.Queue(q.cfg.Queue),
		asynq.MaxRetry(q.cfg.RetryLimit),
	}
	if q.cfg.Timeout > 0 {
		opts = append(opts, asynq.Timeout(q.cfg.Timeout))
	}

	info, err := q.client.EnqueueContext(ctx, asynq.NewTask(string(TaskConversionProcess), payload), opts...)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}

	q.logger.WithFields(logrus.Fields{
		"task_id":       info.ID,
		"task_type":     TaskConversionProcess,
		"conversion_id": conversionID,
		"queue":         info.Queue,
	}).Info("Task enqueued successfully")

	return info.ID, nil
}

// GetTaskInfo 查询任务状态
func (q *RedisQueue) GetTaskInfo(_ context.Context, taskID string) (*TaskInfo, error) {
	info, err := q.inspector.GetTaskInfo(q.cfg.Queue, taskID)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task info: %w", err)
	}

	return &TaskInfo{
		ID:    info.ID,
		Type:  TaskType(info.Type),
		Queue: info.Queue,
		State: info.State.String(),
	}, nil
}

// Close 关闭队列连接
func (q *RedisQueue) Close() error {
	if err := q.inspector.Close(); err != nil {
		q.logger.WithError(err).Warn("Failed to close task inspector")
	}
	return q.client.Close()
}

// 注册Redis队列工厂函数
func init() {
	RegisterQueueFactory("redis", func(cfg *Config) (Queue, error) {
		return NewRedisQueue(cfg)
	})
}
