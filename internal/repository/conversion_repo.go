package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyerfyer/doc2pdf/internal/database"
	"github.com/fyerfyer/doc2pdf/internal/models"
	"gorm.io/gorm"
)

// convRepository 转换记录仓储实现
type convRepository struct {
	db *gorm.DB // 数据库连接
}

// NewConversionRepository 使用全局数据库连接创建仓储实例
func NewConversionRepository() ConversionRepository {
	return &convRepository{db: database.DB}
}

// NewConversionRepositoryWithDB 使用指定的数据库连接创建仓储实例
func NewConversionRepositoryWithDB(db *gorm.DB) ConversionRepository {
	if db == nil {
		db = database.DB
	}
	return &convRepository{db: db}
}

// Create 创建转换记录
func (r *convRepository) Create(conv *models.Conversion) error {
	if conv.ID == "" {
		return errors.New("conversion ID cannot be empty")
	}
	if !conv.Status.Valid() {
		return fmt.Errorf("%w: %q", models.ErrInvalidConversionStatus, conv.Status)
	}

	return r.db.Create(conv).Error
}

// Update 更新转换记录
func (r *convRepository) Update(conv *models.Conversion) error {
	if conv.ID == "" {
		return errors.New("conversion ID cannot be empty")
	}

	return r.db.Save(conv).Error
}

// GetByID 根据ID获取转换记录
func (r *convRepository) GetByID(id string) (*models.Conversion, error) {
	var conv models.Conversion
	err := r.db.Where("id = ?", id).First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrConversionNotFound, id)
		}
		return nil, err
	}
	return &conv, nil
}

// FindCompletedBySHA256 查找最近完成的同内容转换
func (r *convRepository) FindCompletedBySHA256(sum string) (*models.Conversion, error) {
	var conv models.Conversion
	err := r.db.Where("source_sha256 = ? AND status = ?", sum, models.ConversionCompleted).
		Order("completed_at DESC").
		First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: sha256 %s", models.ErrConversionNotFound, sum)
		}
		return nil, err
	}
	return &conv, nil
}

// List 列出转换记录，按创建时间倒序
func (r *convRepository) List(offset, limit int, filters map[string]interface{}) ([]*models.Conversion, int64, error) {
	var convs []*models.Conversion
	var total int64

	query := r.db.Model(&models.Conversion{})

	if filters != nil {
		// 状态过滤
		switch s := filters["status"].(type) {
		case models.ConversionStatus:
			if s != "" {
				query = query.Where("status = ?", string(s))
			}
		case string:
			if s != "" {
				query = query.Where("status = ?", s)
			}
		}

		// 格式过滤
		if format, ok := filters["format"].(string); ok && format != "" {
			query = query.Where("format = ?", format)
		}

		// 文件名过滤
		if fileName, ok := filters["file_name"].(string); ok && fileName != "" {
			query = query.Where("file_name LIKE ?", "%"+fileName+"%")
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&convs).Error
	if err != nil {
		return nil, 0, err
	}

	return convs, total, nil
}

// Delete 删除转换记录
func (r *convRepository) Delete(id string) error {
	res := r.db.Where("id = ?", id).Delete(&models.Conversion{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", models.ErrConversionNotFound, id)
	}
	return nil
}

// TransitionStatus 带条件地更新状态
// 两个worker同时处理同一转换时只有一个能把pending改成processing
func (r *convRepository) TransitionStatus(id string, from, to models.ConversionStatus, errorMsg string) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidConversionStatus, from, to)
	}

	updates := map[string]interface{}{
		"status":     to,
		"error":      errorMsg,
		"updated_at": time.Now(),
	}
	if to == models.ConversionCompleted {
		now := time.Now()
		updates["completed_at"] = &now
	}

	res := r.db.Model(&models.Conversion{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		current, err := r.GetByID(id)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: expected %s, got %s", models.ErrInvalidConversionStatus, from, current.Status)
	}
	return nil
}

// CountByStatus 按状态统计转换数量
func (r *convRepository) CountByStatus() (map[models.ConversionStatus]int64, error) {
	var rows []struct {
		Status models.ConversionStatus
		Count  int64
	}
	err := r.db.Model(&models.Conversion{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.ConversionStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
