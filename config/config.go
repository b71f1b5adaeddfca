package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strings"
	"time"

	"github.com/fyerfyer/doc2pdf/internal/cache"
	"github.com/fyerfyer/doc2pdf/internal/database"
	"github.com/fyerfyer/doc2pdf/internal/pdf"
	"github.com/fyerfyer/doc2pdf/pkg/storage"
	"github.com/fyerfyer/doc2pdf/pkg/taskqueue"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，如 DOC2PDF_SERVER_PORT
const EnvPrefix = "DOC2PDF"

// Config 应用程序配置结构体
type Config struct {
	Server   ServerConfig     `mapstructure:"server"`
	Log      LogConfig        `mapstructure:"log"`
	PDF      pdf.Config       `mapstructure:"pdf"`
	Storage  storage.Config   `mapstructure:"storage"`
	Database database.Config  `mapstructure:"database"`
	Cache    CacheConfig      `mapstructure:"cache"`
	Queue    taskqueue.Config `mapstructure:"queue"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`                                           // 服务器主机
	Port         int           `mapstructure:"port" validate:"min=1,max=65535"`                // 服务器端口
	Mode         string        `mapstructure:"mode" validate:"oneof=debug release test"`       // gin运行模式
	MaxUploadMB  int64         `mapstructure:"max_upload_mb" validate:"gt=0"`                  // 上传文件大小上限(MB)
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`                                   // 读超时
	WriteTimeout time.Duration `mapstructure:"write_timeout"`                                  // 写超时
}

// Addr 监听地址
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=trace debug info warn warning error fatal panic"` // 日志级别
	File       string `mapstructure:"file"`                                                                  // 日志文件，为空时只输出到标准输出
	MaxSizeMB  int    `mapstructure:"max_size_mb"`                                                           // 单个文件最大大小(MB)
	MaxBackups int    `mapstructure:"max_backups"`                                                           // 保留的旧文件数量
	MaxAgeDays int    `mapstructure:"max_age_days"`                                                          // 旧文件保留天数
}

// CacheConfig 缓存配置
type CacheConfig struct {
	cache.Config `mapstructure:",squash"`
	Enable       bool          `mapstructure:"enable"` // 是否启用去重缓存
	TTL          time.Duration `mapstructure:"ttl"`    // 去重索引的过期时间
}

// Load 从文件和环境变量加载配置
// 配置文件不存在时使用默认值
func Load(configPath string) (*Config, error) {
	var config Config

	if configPath == "" {
		configPath = "config.yaml"
	}

	loadDotEnv()

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			log.Printf("Warning: Config file not found at %s, using defaults", configPath)
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		log.Printf("Using config file: %s", v.ConfigFileUsed())
	}

	// 支持环境变量覆盖
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	expandEnvValues(v)

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate 校验配置取值
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// loadDotEnv 读取当前目录下的.env文件，不覆盖已有环境变量
func loadDotEnv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: failed to load .env: %v", err)
	}
}

// expandEnvValues 把配置中 ${VAR} 形式的字符串替换为环境变量的值
func expandEnvValues(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val, ok := v.Get(key).(string)
		if !ok || !strings.Contains(val, "${") {
			continue
		}
		v.Set(key, os.ExpandEnv(val))
	}
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.max_upload_mb", 32)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m")

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)

	// PDF版式默认配置
	pdfDefaults := pdf.DefaultConfig()
	v.SetDefault("pdf.orientation", pdfDefaults.Orientation)
	v.SetDefault("pdf.unit", pdfDefaults.Unit)
	v.SetDefault("pdf.page_size", pdfDefaults.PageSize)
	v.SetDefault("pdf.font_family", pdfDefaults.FontFamily)
	v.SetDefault("pdf.font_style", pdfDefaults.FontStyle)
	v.SetDefault("pdf.font_size", pdfDefaults.FontSize)
	v.SetDefault("pdf.line_height", pdfDefaults.LineHeight)
	v.SetDefault("pdf.margin", pdfDefaults.Margin)
	v.SetDefault("pdf.font_file", "")
	v.SetDefault("pdf.compress", pdfDefaults.Compress)

	// 存储默认配置
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local.path", "./data/objects")
	v.SetDefault("storage.minio.endpoint", "localhost:9000")
	v.SetDefault("storage.minio.access_key", "")
	v.SetDefault("storage.minio.secret_key", "")
	v.SetDefault("storage.minio.bucket", "doc2pdf")
	v.SetDefault("storage.minio.use_ssl", false)

	// 数据库默认配置
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "data/doc2pdf.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_lifetime", "1h")

	// 缓存默认配置
	v.SetDefault("cache.enable", true)
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.prefix", "doc2pdf")
	v.SetDefault("cache.default_ttl", "24h")
	v.SetDefault("cache.cleanup_interval", "10m")
	v.SetDefault("cache.ttl", "168h")

	// 队列默认配置
	v.SetDefault("queue.enable", false)
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_password", "")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.retry_limit", 3)
	v.SetDefault("queue.retry_delay", "1m")
	v.SetDefault("queue.timeout", "5m")
	v.SetDefault("queue.queue", "default")
	v.SetDefault("queue.queues", map[string]int{"critical": 6, "default": 3, "low": 1})
}
