package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ConversionStatus 转换状态类型
type ConversionStatus string

const (
	// ConversionPending 已提交，等待转换
	ConversionPending ConversionStatus = "pending"
	// ConversionProcessing 转换中
	ConversionProcessing ConversionStatus = "processing"
	// ConversionCompleted 转换完成
	ConversionCompleted ConversionStatus = "completed"
	// ConversionFailed 转换失败
	ConversionFailed ConversionStatus = "failed"
)

// Valid 判断状态值是否合法
func (s ConversionStatus) Valid() bool {
	switch s {
	case ConversionPending, ConversionProcessing, ConversionCompleted, ConversionFailed:
		return true
	}
	return false
}

// CanTransitionTo 判断是否允许从当前状态转到next
// pending -> processing -> completed | failed
// 失败的转换可以重新排队；processing在可重试的失败或超时后回到pending
func (s ConversionStatus) CanTransitionTo(next ConversionStatus) bool {
	switch s {
	case ConversionPending:
		return next == ConversionProcessing || next == ConversionFailed
	case ConversionProcessing:
		return next == ConversionCompleted || next == ConversionFailed || next == ConversionPending
	case ConversionFailed:
		return next == ConversionPending
	}
	return false
}

// Conversion 转换记录数据模型
// 记录一次源文档到PDF的转换及其结果
type Conversion struct {
	ID           string           `gorm:"primaryKey"`         // 转换ID，主键
	FileName     string           `gorm:"not null"`           // 原始文件名
	Format       string           `gorm:"not null;size:20"`   // 源文档格式
	SourcePath   string           `gorm:"not null"`           // 源文档存储路径
	SourceSize   int64            `gorm:"not null"`           // 源文档大小（字节）
	SourceSHA256 string           `gorm:"size:64;index"`      // 源文档内容哈希
	ResultPath   string           `gorm:""`                   // PDF存储路径
	Status       ConversionStatus `gorm:"not null;index"`     // 转换状态
	Paragraphs   int              `gorm:"not null;default:0"` // 写入的段落数
	Pages        int              `gorm:"not null;default:0"` // PDF页数
	ResultSize   int64            `gorm:"not null;default:0"` // PDF大小（字节）
	Error        string           `gorm:"type:text"`          // 错误信息
	Metadata     datatypes.JSON   `gorm:"type:json"`          // 源文档元数据，JSON格式
	TaskID       string           `gorm:"size:64"`            // 异步任务ID
	CreatedAt    time.Time        `gorm:"not null;index"`     // 创建时间
	UpdatedAt    time.Time        `gorm:"not null"`           // 更新时间
	CompletedAt  *time.Time       `gorm:"index"`              // 完成时间
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (c *Conversion) BeforeCreate(tx *gorm.DB) (err error) {
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	return nil
}

// BeforeUpdate GORM的钩子函数，更新记录前自动设置更新时间
func (c *Conversion) BeforeUpdate(tx *gorm.DB) (err error) {
	c.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (Conversion) TableName() string {
	return "conversions"
}
