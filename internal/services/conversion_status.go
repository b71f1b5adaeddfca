package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyerfyer/doc2pdf/internal/document"
	"github.com/fyerfyer/doc2pdf/internal/models"
	"github.com/fyerfyer/doc2pdf/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// ConversionStatusManager 转换状态管理器
// 负责转换记录的生命周期：pending -> processing -> completed | failed
type ConversionStatusManager struct {
	repo   repository.ConversionRepository // 转换记录仓储
	logger *logrus.Logger                  // 日志记录器
}

// NewConversionStatusManager 创建转换状态管理器
func NewConversionStatusManager(repo repository.ConversionRepository, logger *logrus.Logger) *ConversionStatusManager {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.InfoLevel)
	}

	return &ConversionStatusManager{
		repo:   repo,
		logger: logger,
	}
}

// CompletedResult 转换完成时写入记录的结果
type CompletedResult struct {
	ResultPath string
	Paragraphs int
	Pages      int
	ResultSize int64
	Metadata   datatypes.JSON
}

// MarkAsPending 创建一条待转换的记录
func (m *ConversionStatusManager) MarkAsPending(ctx context.Context, conv *models.Conversion) error {
	conv.Status = models.ConversionPending
	if conv.Format == "" {
		conv.Format = formatOf(conv.FileName)
	}

	m.logger.WithFields(logrus.Fields{
		"conversion_id": conv.ID,
		"filename":      conv.FileName,
	}).Info("Marking conversion as pending")

	return m.repo.Create(conv)
}

// MarkAsProcessing 抢占一条待转换的记录
// 同一记录只有一个调用者能成功
func (m *ConversionStatusManager) MarkAsProcessing(ctx context.Context, id string) error {
	if err := m.repo.TransitionStatus(id, models.ConversionPending, models.ConversionProcessing, ""); err != nil {
		return err
	}

	m.logger.WithField("conversion_id", id).Info("Marking conversion as processing")
	return nil
}

// MarkAsCompleted 写入转换结果并把记录标记为完成
func (m *ConversionStatusManager) MarkAsCompleted(ctx context.Context, id string, result CompletedResult) error {
	conv, err := m.repo.GetByID(id)
	if err != nil {
		return fmt.Errorf("failed to get conversion: %w", err)
	}
	if conv.Status != models.ConversionProcessing {
		return fmt.Errorf("%w: conversion %s is %s, expected %s",
			models.ErrInvalidConversionStatus, id, conv.Status, models.ConversionProcessing)
	}

	conv.ResultPath = result.ResultPath
	conv.Paragraphs = result.Paragraphs
	conv.Pages = result.Pages
	conv.ResultSize = result.ResultSize
	conv.Metadata = result.Metadata
	if err := m.repo.Update(conv); err != nil {
		return fmt.Errorf("failed to save conversion result: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"conversion_id": id,
		"pages":         result.Pages,
		"paragraphs":    result.Paragraphs,
	}).Info("Marking conversion as completed")

	return m.repo.TransitionStatus(id, models.ConversionProcessing, models.ConversionCompleted, "")
}

// MarkAsFailed 把记录标记为失败
func (m *ConversionStatusManager) MarkAsFailed(ctx context.Context, id string, errorMsg string) error {
	conv, err := m.repo.GetByID(id)
	if err != nil {
		return fmt.Errorf("failed to get conversion: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"conversion_id": id,
		"error":         errorMsg,
	}).Error("Marking conversion as failed")

	return m.repo.TransitionStatus(id, conv.Status, models.ConversionFailed, errorMsg)
}

// Requeue 把失败的记录放回待转换状态
func (m *ConversionStatusManager) Requeue(ctx context.Context, id string) error {
	if err := m.repo.TransitionStatus(id, models.ConversionFailed, models.ConversionPending, ""); err != nil {
		return err
	}

	m.logger.WithField("conversion_id", id).Info("Requeueing failed conversion")
	return nil
}

// Release 可重试的失败后把记录放回待转换状态，保留本次错误信息
func (m *ConversionStatusManager) Release(ctx context.Context, id string, errorMsg string) error {
	if err := m.repo.TransitionStatus(id, models.ConversionProcessing, models.ConversionPending, errorMsg); err != nil {
		return err
	}

	m.logger.WithFields(logrus.Fields{
		"conversion_id": id,
		"error":         errorMsg,
	}).Warn("Releasing conversion for retry")
	return nil
}

// Reclaim 收回超过staleAfter仍处于processing的记录，放回待转换状态
// 处理者崩溃或超时后记录不会永远停在processing
func (m *ConversionStatusManager) Reclaim(ctx context.Context, id string, staleAfter time.Duration) error {
	conv, err := m.repo.GetByID(id)
	if err != nil {
		return err
	}
	if conv.Status != models.ConversionProcessing {
		return fmt.Errorf("%w: conversion %s is %s, expected %s",
			models.ErrInvalidConversionStatus, id, conv.Status, models.ConversionProcessing)
	}
	if idle := time.Since(conv.UpdatedAt); idle < staleAfter {
		return fmt.Errorf("%w: conversion %s is still processing (idle %s)",
			models.ErrInvalidConversionStatus, id, idle.Round(time.Second))
	}

	if err := m.repo.TransitionStatus(id, models.ConversionProcessing, models.ConversionPending, "processing abandoned"); err != nil {
		return err
	}

	m.logger.WithFields(logrus.Fields{
		"conversion_id": id,
		"updated_at":    conv.UpdatedAt,
	}).Warn("Reclaimed stale conversion")
	return nil
}

// GetStatus 获取转换当前状态
func (m *ConversionStatusManager) GetStatus(ctx context.Context, id string) (models.ConversionStatus, error) {
	conv, err := m.repo.GetByID(id)
	if err != nil {
		return "", fmt.Errorf("failed to get conversion status: %w", err)
	}
	return conv.Status, nil
}

// IsAlreadyHandled 判断错误是否表示记录已被其他处理者推进
func IsAlreadyHandled(err error) bool {
	return errors.Is(err, models.ErrInvalidConversionStatus)
}

// formatOf 根据文件名获取格式名
func formatOf(fileName string) string {
	return string(document.DetectFormat(fileName))
}
