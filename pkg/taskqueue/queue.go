package taskqueue

import (
	"context"
	"fmt"
	"time"
)

// Queue 定义任务队列的接口
type Queue interface {
	// EnqueueConversion 把转换任务加入队列，返回任务ID
	EnqueueConversion(ctx context.Context, conversionID string) (string, error)

	// GetTaskInfo 查询任务状态
	GetTaskInfo(ctx context.Context, taskID string) (*TaskInfo, error)

	// Close 关闭队列连接
	Close() error
}

// Processor 执行转换任务的处理器
type Processor interface {
	// Process 处理指定的转换
	Process(ctx context.Context, conversionID string) error
}

// ProcessorFunc 允许普通函数作为Processor使用
type ProcessorFunc func(ctx context.Context, conversionID string) error

// Process 调用f
func (f ProcessorFunc) Process(ctx context.Context, conversionID string) error {
	return f(ctx, conversionID)
}

// Config 队列配置
type Config struct {
	Enable        bool           `mapstructure:"enable"`         // 是否异步处理转换
	RedisAddr     string         `mapstructure:"redis_addr"`     // Redis地址
	RedisPassword string         `mapstructure:"redis_password"` // Redis密码
	RedisDB       int            `mapstructure:"redis_db"`       // Redis数据库
	Concurrency   int            `mapstructure:"concurrency"`    // 并发处理任务数
	RetryLimit    int            `mapstructure:"retry_limit"`    // 最大重试次数
	RetryDelay    time.Duration  `mapstructure:"retry_delay"`    // 重试延迟
	Timeout       time.Duration  `mapstructure:"timeout"`        // 单个任务超时时间
	Queue         string         `mapstructure:"queue"`          // 转换任务所在队列
	Queues        map[string]int `mapstructure:"queues"`         // 队列名称到优先级的映射
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		RedisAddr:   "localhost:6379",
		RedisDB:     0,
		Concurrency: 10,
		RetryLimit:  3,
		RetryDelay:  time.Minute,
		Timeout:     5 * time.Minute,
		Queue:       "default",
		Queues: map[string]int{
			"critical": 6, // 关键任务
			"default":  3, // 默认任务
			"low":      1, // 低优先级任务
		},
	}
}

// Factory 队列工厂函数类型
type Factory func(cfg *Config) (Queue, error)

// 队列工厂函数映射
var queueFactories = make(map[string]Factory)

// RegisterQueueFactory 注册队列工厂函数
func RegisterQueueFactory(name string, factory Factory) {
	queueFactories[name] = factory
}

// NewQueue 根据名称创建队列实例
func NewQueue(name string, cfg *Config) (Queue, error) {
	factory, exists := queueFactories[name]
	if !exists {
		return nil, fmt.Errorf("unknown queue implementation: %s", name)
	}
	return factory(cfg)
}
