package cache

import (
	"context"
	"time"
)

const sha256Namespace = "sha256"

// ConversionIndex 源文档哈希到已完成转换ID的索引
// 同一内容再次提交时可以直接复用之前的PDF
type ConversionIndex struct {
	cache Cache
	ttl   time.Duration
}

// NewConversionIndex 创建转换索引，ttl为0时使用缓存的默认过期时间
func NewConversionIndex(c Cache, ttl time.Duration) *ConversionIndex {
	return &ConversionIndex{cache: c, ttl: ttl}
}

// Lookup 查找内容哈希对应的转换ID
func (i *ConversionIndex) Lookup(ctx context.Context, sum string) (string, bool, error) {
	return i.cache.Get(ctx, GenerateCacheKey(sha256Namespace, sum))
}

// Remember 记录内容哈希对应的转换ID
func (i *ConversionIndex) Remember(ctx context.Context, sum, conversionID string) error {
	return i.cache.Set(ctx, GenerateCacheKey(sha256Namespace, sum), conversionID, i.ttl)
}

// Forget 删除内容哈希的记录
func (i *ConversionIndex) Forget(ctx context.Context, sum string) error {
	return i.cache.Delete(ctx, GenerateCacheKey(sha256Namespace, sum))
}
