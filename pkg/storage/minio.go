package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorage MinIO存储实现
type MinioStorage struct {
	client     *minio.Client // MinIO客户端
	bucketName string        // 存储桶名称
}

// MinioConfig MinIO存储配置
type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"`   // MinIO服务端点
	AccessKey string `mapstructure:"access_key"` // 访问密钥ID
	SecretKey string `mapstructure:"secret_key"` // 秘密访问密钥
	UseSSL    bool   `mapstructure:"use_ssl"`    // 是否使用SSL
	Bucket    string `mapstructure:"bucket"`     // 存储桶名称
}

// NewMinioStorage 创建MinIO存储实例，存储桶不存在时自动创建
func NewMinioStorage(ctx context.Context, cfg MinioConfig) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinioStorage{
		client:     client,
		bucketName: cfg.Bucket,
	}, nil
}

// Put 上传对象，size为-1时使用分片流式上传
func (s *MinioStorage) Put(ctx context.Context, key string, reader io.Reader, size int64) (FileInfo, error) {
	objectName, err := cleanKey(key)
	if err != nil {
		return FileInfo{}, err
	}

	contentType := getMimeType(objectName)
	info, err := s.client.PutObject(ctx, s.bucketName, objectName, reader, size,
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to upload object: %w", err)
	}

	return FileInfo{
		Key:      objectName,
		Size:     info.Size,
		MimeType: contentType,
		Path:     s.bucketName + "/" + objectName,
	}, nil
}

// Get 获取对象内容
// GetObject是惰性的，先Stat一次以便把不存在的对象映射为ErrNotFound
func (s *MinioStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	objectName, err := cleanKey(key)
	if err != nil {
		return nil, err
	}

	if _, err := s.Stat(ctx, objectName); err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, s.bucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}

	return obj, nil
}

// Stat 获取对象元数据
func (s *MinioStorage) Stat(ctx context.Context, key string) (FileInfo, error) {
	objectName, err := cleanKey(key)
	if err != nil {
		return FileInfo{}, err
	}

	info, err := s.client.StatObject(ctx, s.bucketName, objectName, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return FileInfo{}, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return FileInfo{}, fmt.Errorf("failed to stat object: %w", err)
	}

	return FileInfo{
		Key:      objectName,
		Size:     info.Size,
		MimeType: info.ContentType,
		Path:     s.bucketName + "/" + objectName,
	}, nil
}

// Delete 删除对象
func (s *MinioStorage) Delete(ctx context.Context, key string) error {
	objectName, err := cleanKey(key)
	if err != nil {
		return err
	}

	err = s.client.RemoveObject(ctx, s.bucketName, objectName, minio.RemoveObjectOptions{})
	if err != nil && !isNoSuchKey(err) {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}

// List 列出前缀下的所有对象
func (s *MinioStorage) List(ctx context.Context, prefix string) ([]FileInfo, error) {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var files []FileInfo
	objectCh := s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("error listing objects: %w", object.Err)
		}

		files = append(files, FileInfo{
			Key:      object.Key,
			Size:     object.Size,
			MimeType: getMimeType(object.Key),
			Path:     s.bucketName + "/" + object.Key,
		})
	}

	return files, nil
}

// Exists 检查对象是否存在
func (s *MinioStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Stat(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// isNoSuchKey 判断MinIO错误是否表示对象不存在
func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}
