package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fyerfyer/doc2pdf/internal/cache"
	"github.com/fyerfyer/doc2pdf/internal/converter"
	"github.com/fyerfyer/doc2pdf/internal/document"
	"github.com/fyerfyer/doc2pdf/internal/models"
	"github.com/fyerfyer/doc2pdf/internal/pdf"
	"github.com/fyerfyer/doc2pdf/internal/repository"
	"github.com/fyerfyer/doc2pdf/pkg/storage"
	"github.com/fyerfyer/doc2pdf/pkg/taskqueue"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PermanentErrors 重试也无法成功的错误，匹配时直接标记失败
var PermanentErrors = []error{
	models.ErrConversionNotFound,
	converter.ErrSourceUnreadable,
	document.ErrUnsupportedFormat,
	pdf.ErrUnsupportedCharacter,
}

// IsPermanent 判断错误是否属于PermanentErrors
func IsPermanent(err error) bool {
	for _, target := range PermanentErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ConversionService 转换服务
// 负责保存上传的源文档、调度转换并管理生成的PDF
type ConversionService struct {
	storage       storage.Storage                 // 对象存储
	converter     *converter.Converter            // 文档转换器
	repo          repository.ConversionRepository // 转换记录存储
	statusManager *ConversionStatusManager        // 转换状态管理器
	index         *cache.ConversionIndex          // 内容哈希索引，用于去重
	taskQueue     taskqueue.Queue                 // 任务队列
	asyncEnabled  bool                            // 是否启用异步处理
	timeout       time.Duration                   // 单次转换超时时间
	staleAfter    time.Duration                   // processing超过该时长未更新视为已被放弃
	logger        *logrus.Logger                  // 日志记录器
}

// ConversionOption 转换服务配置选项
type ConversionOption func(*ConversionService)

// NewConversionService 创建一个新的转换服务
func NewConversionService(store storage.Storage, conv *converter.Converter, opts ...ConversionOption) *ConversionService {
	srv := &ConversionService{
		storage:   store,
		converter: conv,
		timeout:   time.Minute * 5, // 默认超时时间
		logger:    logrus.New(),    // 默认日志记录器
	}

	for _, opt := range opts {
		opt(srv)
	}

	if srv.staleAfter <= 0 {
		srv.staleAfter = 2 * srv.timeout
	}
	if srv.converter == nil {
		srv.converter = converter.New(converter.WithLogger(srv.logger))
	}

	return srv
}

// WithRepository 设置转换记录仓储
func WithRepository(repo repository.ConversionRepository) ConversionOption {
	return func(s *ConversionService) {
		s.repo = repo
	}
}

// WithStatusManager 设置状态管理器
func WithStatusManager(manager *ConversionStatusManager) ConversionOption {
	return func(s *ConversionService) {
		s.statusManager = manager
	}
}

// WithCache 设置去重缓存
func WithCache(c cache.Cache, ttl time.Duration) ConversionOption {
	return func(s *ConversionService) {
		if c != nil {
			s.index = cache.NewConversionIndex(c, ttl)
		}
	}
}

// WithTaskQueue 设置任务队列，同时启用异步处理
func WithTaskQueue(queue taskqueue.Queue) ConversionOption {
	return func(s *ConversionService) {
		s.taskQueue = queue
		s.asyncEnabled = queue != nil
	}
}

// WithAsyncProcessing 设置是否启用异步处理
func WithAsyncProcessing(enabled bool) ConversionOption {
	return func(s *ConversionService) {
		s.asyncEnabled = enabled
	}
}

// WithTimeout 设置单次转换超时时间
func WithTimeout(timeout time.Duration) ConversionOption {
	return func(s *ConversionService) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithStaleAfter 设置processing记录被视为已放弃的时长，默认为超时时间的两倍
func WithStaleAfter(d time.Duration) ConversionOption {
	return func(s *ConversionService) {
		if d > 0 {
			s.staleAfter = d
		}
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) ConversionOption {
	return func(s *ConversionService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Init 初始化转换服务
// 确保必要的依赖都已设置
func (s *ConversionService) Init() error {
	if s.storage == nil {
		return errors.New("conversion service requires a storage backend")
	}

	// 如果没有设置仓储，使用全局数据库连接
	if s.repo == nil {
		s.repo = repository.NewConversionRepository()
	}

	if s.statusManager == nil {
		s.statusManager = NewConversionStatusManager(s.repo, s.logger)
	}

	if s.asyncEnabled && s.taskQueue == nil {
		return errors.New("async processing enabled without a task queue")
	}

	return nil
}

// Submit 保存上传的源文档并创建转换
// 相同内容已有完成的转换时直接返回那条记录
func (s *ConversionService) Submit(ctx context.Context, filename string, r io.Reader) (*models.Conversion, error) {
	filename = filepath.Base(filename)
	format := document.DetectFormat(filename)
	if format == document.Unknown {
		return nil, fmt.Errorf("%w: %s", document.ErrUnsupportedFormat, filepath.Ext(filename))
	}

	id := uuid.New().String()
	sourceKey := storage.SourceKey(id, filename)

	// 写入存储的同时计算内容哈希
	h := sha256.New()
	info, err := s.storage.Put(ctx, sourceKey, io.TeeReader(r, h), -1)
	if err != nil {
		return nil, fmt.Errorf("failed to store source document: %w", err)
	}
	sum := hex.EncodeToString(h.Sum(nil))

	log := s.logger.WithFields(logrus.Fields{
		"conversion_id": id,
		"filename":      filename,
		"sha256":        sum,
	})

	if existing := s.findCompleted(ctx, sum); existing != nil {
		if err := s.storage.Delete(ctx, sourceKey); err != nil {
			log.WithError(err).Warn("Failed to remove duplicate source document")
		}
		log.WithField("existing_id", existing.ID).Info("Reusing completed conversion")
		return existing, nil
	}

	conv := &models.Conversion{
		ID:           id,
		FileName:     filename,
		Format:       string(format),
		SourcePath:   sourceKey,
		SourceSize:   info.Size,
		SourceSHA256: sum,
	}
	if err := s.statusManager.MarkAsPending(ctx, conv); err != nil {
		s.removeObject(ctx, sourceKey)
		return nil, fmt.Errorf("failed to create conversion record: %w", err)
	}

	if err := s.dispatch(ctx, conv); err != nil {
		return nil, err
	}

	return s.repo.GetByID(id)
}

// dispatch 把待转换的记录放入队列或直接转换
func (s *ConversionService) dispatch(ctx context.Context, conv *models.Conversion) error {
	if !s.asyncEnabled {
		return s.Process(ctx, conv.ID)
	}

	taskID, err := s.taskQueue.EnqueueConversion(ctx, conv.ID)
	if err != nil {
		if markErr := s.statusManager.MarkAsFailed(ctx, conv.ID, err.Error()); markErr != nil {
			s.logger.WithError(markErr).WithField("conversion_id", conv.ID).Error("Failed to mark conversion as failed")
		}
		return fmt.Errorf("failed to enqueue conversion: %w", err)
	}

	current, err := s.repo.GetByID(conv.ID)
	if err != nil {
		return err
	}
	current.TaskID = taskID
	return s.repo.Update(current)
}

// Process 执行一次转换
// 记录已被其他处理者领取或完成时直接返回，队列重复投递不会重复转换
// 可重试的失败会把记录放回pending并返回错误，交给队列重试
func (s *ConversionService) Process(ctx context.Context, id string) error {
	if err := s.claim(ctx, id); err != nil {
		if IsAlreadyHandled(err) {
			s.logger.WithField("conversion_id", id).Info("Conversion already handled, skipping")
			return nil
		}
		return err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	result, err := s.convert(ctx, id)
	if err != nil {
		s.settleFailure(ctx, id, err)
		return err
	}

	if err := s.statusManager.MarkAsCompleted(ctx, id, *result); err != nil {
		return fmt.Errorf("failed to complete conversion: %w", err)
	}

	conv, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if s.index != nil {
		if err := s.index.Remember(ctx, conv.SourceSHA256, conv.ID); err != nil {
			s.logger.WithError(err).WithField("conversion_id", id).Warn("Failed to cache conversion hash")
		}
	}

	return nil
}

// claim 领取待转换的记录，停在processing超时的记录会先被收回
func (s *ConversionService) claim(ctx context.Context, id string) error {
	err := s.statusManager.MarkAsProcessing(ctx, id)
	if err == nil || !IsAlreadyHandled(err) {
		return err
	}
	if s.statusManager.Reclaim(ctx, id, s.staleAfter) != nil {
		return err
	}
	return s.statusManager.MarkAsProcessing(ctx, id)
}

// settleFailure 永久错误或队列的最后一次尝试标记为失败，其余放回pending等待重试
func (s *ConversionService) settleFailure(ctx context.Context, id string, cause error) {
	log := s.logger.WithError(cause).WithField("conversion_id", id)

	if IsPermanent(cause) || taskqueue.IsFinalAttempt(ctx) {
		if err := s.statusManager.MarkAsFailed(ctx, id, cause.Error()); err != nil {
			log.WithField("mark_error", err).Error("Failed to mark conversion as failed")
		}
		return
	}

	if err := s.statusManager.Release(ctx, id, cause.Error()); err != nil {
		log.WithField("release_error", err).Error("Failed to release conversion for retry")
	}
}

// convert 读取源文档、生成PDF并写回存储
func (s *ConversionService) convert(ctx context.Context, id string) (*CompletedResult, error) {
	conv, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	rc, err := s.storage.Get(ctx, conv.SourcePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", converter.ErrSourceUnreadable, err)
		}
		return nil, fmt.Errorf("failed to read source document: %w", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read source document: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 创建时间取记录的创建时间，重新转换得到相同的PDF
	var out bytes.Buffer
	res, err := s.converter.ConvertReader(bytes.NewReader(data), int64(len(data)),
		document.Format(conv.Format), &out, conv.CreatedAt)
	if err != nil {
		return nil, err
	}

	resultKey := storage.ResultKey(id)
	if _, err := s.storage.Put(ctx, resultKey, bytes.NewReader(out.Bytes()), int64(out.Len())); err != nil {
		return nil, fmt.Errorf("%w: %w", converter.ErrDestinationUnwritable, err)
	}

	meta, err := json.Marshal(res.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}

	return &CompletedResult{
		ResultPath: resultKey,
		Paragraphs: res.Paragraphs,
		Pages:      res.Pages,
		ResultSize: res.Bytes,
		Metadata:   meta,
	}, nil
}

// findCompleted 按内容哈希查找已完成的转换，先查缓存再查数据库
func (s *ConversionService) findCompleted(ctx context.Context, sum string) *models.Conversion {
	if s.index != nil {
		if id, found, err := s.index.Lookup(ctx, sum); err == nil && found {
			if conv, err := s.repo.GetByID(id); err == nil && conv.Status == models.ConversionCompleted {
				return conv
			}
			// 缓存指向的记录已删除或状态变化
			_ = s.index.Forget(ctx, sum)
		}
	}

	conv, err := s.repo.FindCompletedBySHA256(sum)
	if err != nil {
		return nil
	}
	if s.index != nil {
		_ = s.index.Remember(ctx, sum, conv.ID)
	}
	return conv
}

// Retry 重新转换失败的记录，停在processing超时的记录也可以重试
func (s *ConversionService) Retry(ctx context.Context, id string) (*models.Conversion, error) {
	if err := s.statusManager.Requeue(ctx, id); err != nil {
		if !IsAlreadyHandled(err) || s.statusManager.Reclaim(ctx, id, s.staleAfter) != nil {
			return nil, err
		}
	}

	conv, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if err := s.dispatch(ctx, conv); err != nil {
		return nil, err
	}
	return s.repo.GetByID(id)
}

// Get 获取转换记录
func (s *ConversionService) Get(ctx context.Context, id string) (*models.Conversion, error) {
	return s.repo.GetByID(id)
}

// List 分页列出转换记录，status为空表示不过滤
func (s *ConversionService) List(ctx context.Context, offset, limit int, status string) ([]*models.Conversion, int64, error) {
	filters := map[string]interface{}{}
	if status != "" {
		st := models.ConversionStatus(status)
		if !st.Valid() {
			return nil, 0, fmt.Errorf("%w: %q", models.ErrInvalidConversionStatus, status)
		}
		filters["status"] = st
	}
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(offset, limit, filters)
}

// OpenResult 打开转换生成的PDF
// 调用者负责关闭返回的ReadCloser
func (s *ConversionService) OpenResult(ctx context.Context, id string) (io.ReadCloser, *models.Conversion, error) {
	conv, err := s.repo.GetByID(id)
	if err != nil {
		return nil, nil, err
	}
	if conv.Status != models.ConversionCompleted {
		return nil, conv, fmt.Errorf("%w: conversion %s is %s", models.ErrConversionNotReady, id, conv.Status)
	}

	rc, err := s.storage.Get(ctx, conv.ResultPath)
	if err != nil {
		return nil, conv, fmt.Errorf("failed to open conversion result: %w", err)
	}
	return rc, conv, nil
}

// Delete 删除转换记录及其源文档和PDF
func (s *ConversionService) Delete(ctx context.Context, id string) error {
	conv, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if conv.Status == models.ConversionProcessing && time.Since(conv.UpdatedAt) < s.staleAfter {
		return fmt.Errorf("%w: conversion %s is still processing", models.ErrInvalidConversionStatus, id)
	}

	s.removeObject(ctx, conv.SourcePath)
	s.removeObject(ctx, conv.ResultPath)

	if s.index != nil && conv.SourceSHA256 != "" {
		if cached, found, err := s.index.Lookup(ctx, conv.SourceSHA256); err == nil && found && cached == id {
			_ = s.index.Forget(ctx, conv.SourceSHA256)
		}
	}

	if err := s.repo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete conversion record: %w", err)
	}

	s.logger.WithField("conversion_id", id).Info("Conversion deleted")
	return nil
}

// Stats 按状态统计转换数量
func (s *ConversionService) Stats(ctx context.Context) (map[models.ConversionStatus]int64, error) {
	return s.repo.CountByStatus()
}

// removeObject 删除存储对象，失败只记录日志
func (s *ConversionService) removeObject(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.storage.Delete(ctx, key); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Failed to delete stored object")
	}
}
