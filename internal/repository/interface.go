package repository

import "github.com/fyerfyer/doc2pdf/internal/models"

// ConversionRepository 转换记录仓储接口
// 负责转换记录的存储和检索
type ConversionRepository interface {
	// Create 创建转换记录
	Create(conv *models.Conversion) error

	// Update 更新转换记录
	Update(conv *models.Conversion) error

	// GetByID 根据ID获取转换记录
	GetByID(id string) (*models.Conversion, error)

	// FindCompletedBySHA256 查找源文档哈希相同且已完成的转换
	FindCompletedBySHA256(sum string) (*models.Conversion, error)

	// List 列出转换记录，支持分页和筛选
	List(offset, limit int, filters map[string]interface{}) ([]*models.Conversion, int64, error)

	// Delete 删除转换记录
	Delete(id string) error

	// TransitionStatus 仅当当前状态为from时把状态改为to
	TransitionStatus(id string, from, to models.ConversionStatus, errorMsg string) error

	// CountByStatus 按状态统计转换数量
	CountByStatus() (map[models.ConversionStatus]int64, error)
}
