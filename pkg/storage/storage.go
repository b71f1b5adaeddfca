package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
)

// ErrNotFound 对象不存在
var ErrNotFound = errors.New("object not found")

// 对象键的命名空间
const (
	SourcePrefix = "sources"
	ResultPrefix = "results"
)

// FileInfo 对象元数据结构
type FileInfo struct {
	Key      string // 对象键，如 sources/<id>.docx
	Size     int64  // 大小(字节)
	MimeType string // MIME类型
	Path     string // 内部存储路径(实现相关)
}

// Storage 对象存储接口
// 源文档和生成的PDF都按键存取，可以有不同实现(本地文件系统、MinIO等)
type Storage interface {
	// Put 写入对象，size未知时传-1
	Put(ctx context.Context, key string, reader io.Reader, size int64) (FileInfo, error)

	// Get 读取对象内容，对象不存在时返回ErrNotFound
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Stat 获取对象元数据
	Stat(ctx context.Context, key string) (FileInfo, error)

	// Delete 删除对象，对象不存在时不报错
	Delete(ctx context.Context, key string) error

	// List 列出指定前缀下的对象
	List(ctx context.Context, prefix string) ([]FileInfo, error)

	// Exists 检查对象是否存在
	Exists(ctx context.Context, key string) (bool, error)
}

// Config 存储配置
type Config struct {
	Type  string      `mapstructure:"type"` // local 或 minio
	Local LocalConfig `mapstructure:"local"`
	Minio MinioConfig `mapstructure:"minio"`
}

// DefaultConfig 返回默认存储配置
func DefaultConfig() Config {
	return Config{
		Type:  "local",
		Local: LocalConfig{Path: "data/objects"},
		Minio: MinioConfig{Bucket: "doc2pdf"},
	}
}

// New 根据配置创建存储实现
func New(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocalStorage(cfg.Local)
	case "minio":
		return NewMinioStorage(ctx, cfg.Minio)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// SourceKey 源文档的对象键，保留原始扩展名
func SourceKey(id, filename string) string {
	return path.Join(SourcePrefix, id+strings.ToLower(filepath.Ext(filename)))
}

// ResultKey 生成PDF的对象键
func ResultKey(id string) string {
	return path.Join(ResultPrefix, id+".pdf")
}

// cleanKey 规范化对象键，拒绝跳出存储根目录的键
func cleanKey(key string) (string, error) {
	if key == "" {
		return "", errors.New("empty object key")
	}
	cleaned := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	if cleaned != strings.TrimPrefix(strings.ReplaceAll(key, "\\", "/"), "/") {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	return cleaned, nil
}

// getMimeType 简单根据文件扩展名判断MIME类型
func getMimeType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".md", ".markdown":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".odt":
		return "application/vnd.oasis.opendocument.text"
	default:
		return "application/octet-stream"
	}
}
