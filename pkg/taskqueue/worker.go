package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// Worker 运行asynq服务器处理转换任务
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor Processor
	permanent []error
	logger    *logrus.Logger
}

// WorkerOption 工作者配置选项
type WorkerOption func(*Worker)

// WithPermanentErrors 匹配这些错误的任务不再重试
func WithPermanentErrors(errs ...error) WorkerOption {
	return func(w *Worker) {
		w.permanent = append(w.permanent, errs...)
	}
}

// WithWorkerLogger 设置日志记录器
func WithWorkerLogger(logger *logrus.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWorker 创建工作者
func NewWorker(cfg *Config, processor Processor, opts ...WorkerOption) *Worker {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	w := &Worker{
		mux:       asynq.NewServeMux(),
		processor: processor,
		permanent: []error{ErrInvalidPayload},
		logger:    logrus.New(),
	}
	for _, opt := range opts {
		opt(w)
	}

	queues := cfg.Queues
	if len(queues) == 0 {
		queues = map[string]int{cfg.Queue: 1}
	}

	retryDelay := cfg.RetryDelay
	w.server = asynq.NewServer(redisOpt(cfg), asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      queues,
		RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
			if retryDelay > 0 {
				return retryDelay
			}
			return asynq.DefaultRetryDelayFunc(n, err, task)
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			w.logger.WithFields(logrus.Fields{
				"task_type": task.Type(),
				"retried":   retried,
				"max_retry": maxRetry,
			}).WithError(err).Error("Task processing failed")
		}),
		Logger: w.logger,
	})

	w.mux.HandleFunc(string(TaskConversionProcess), w.handleConversion)
	return w
}

// handleConversion 解析载荷并调用处理器
func (w *Worker) handleConversion(ctx context.Context, task *asynq.Task) error {
	var payload ConversionPayload
	if err := UnmarshalPayload(task.Payload(), &payload); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if payload.ConversionID == "" {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, ErrInvalidPayload)
	}

	taskID, _ := asynq.GetTaskID(ctx)
	log := w.logger.WithFields(logrus.Fields{
		"task_id":       taskID,
		"conversion_id": payload.ConversionID,
	})
	log.Info("Processing conversion task")

	if retried, ok := asynq.GetRetryCount(ctx); ok {
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		ctx = WithAttempt(ctx, retried, maxRetry)
	}

	start := time.Now()
	if err := w.processor.Process(ctx, payload.ConversionID); err != nil {
		for _, p := range w.permanent {
			if errors.Is(err, p) {
				return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
			}
		}
		return err
	}

	log.WithField("elapsed", time.Since(start).String()).Info("Conversion task completed")
	return nil
}

type attemptKey struct{}

type attempt struct {
	retried  int
	maxRetry int
}

// WithAttempt 在ctx中记录本次投递已重试的次数和允许的最大重试次数
func WithAttempt(ctx context.Context, retried, maxRetry int) context.Context {
	return context.WithValue(ctx, attemptKey{}, attempt{retried: retried, maxRetry: maxRetry})
}

// IsFinalAttempt 本次失败后队列是否不会再重试
// ctx中没有投递信息（同步调用）时视为最后一次
func IsFinalAttempt(ctx context.Context) bool {
	a, ok := ctx.Value(attemptKey{}).(attempt)
	if !ok {
		return true
	}
	return a.retried >= a.maxRetry
}

// Start 启动工作者，不阻塞
func (w *Worker) Start() error {
	return w.server.Start(w.mux)
}

// Run 启动工作者并阻塞，直到收到退出信号
func (w *Worker) Run() error {
	return w.server.Run(w.mux)
}

// Stop 停止工作者，等待进行中的任务结束
func (w *Worker) Stop() {
	w.server.Shutdown()
}
