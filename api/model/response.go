package model

import (
	"encoding/json"
	"time"

	"github.com/fyerfyer/doc2pdf/internal/models"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Details string      `json:"details,omitempty"`  // 错误详情
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// ConversionInfo 转换信息
type ConversionInfo struct {
	ID          string                 `json:"id"`                     // 转换ID
	FileName    string                 `json:"filename"`               // 原始文件名
	Format      string                 `json:"format"`                 // 源文档格式
	Status      string                 `json:"status"`                 // pending、processing、completed、failed
	SourceSize  int64                  `json:"source_size"`            // 源文档大小
	SHA256      string                 `json:"sha256"`                 // 源文档哈希
	Paragraphs  int                    `json:"paragraphs"`             // 写入的段落数
	Pages       int                    `json:"pages"`                  // PDF页数
	ResultSize  int64                  `json:"result_size"`            // PDF大小
	Error       string                 `json:"error,omitempty"`        // 失败原因
	Metadata    map[string]interface{} `json:"metadata,omitempty"`     // 源文档元数据
	CreatedAt   time.Time              `json:"created_at"`             // 创建时间
	UpdatedAt   time.Time              `json:"updated_at"`             // 更新时间
	CompletedAt *time.Time             `json:"completed_at,omitempty"` // 完成时间
	DownloadURL string                 `json:"download_url,omitempty"` // PDF下载地址，完成后才有
}

// NewConversionInfo 由转换记录构造响应
func NewConversionInfo(conv *models.Conversion) ConversionInfo {
	info := ConversionInfo{
		ID:          conv.ID,
		FileName:    conv.FileName,
		Format:      conv.Format,
		Status:      string(conv.Status),
		SourceSize:  conv.SourceSize,
		SHA256:      conv.SourceSHA256,
		Paragraphs:  conv.Paragraphs,
		Pages:       conv.Pages,
		ResultSize:  conv.ResultSize,
		Error:       conv.Error,
		CreatedAt:   conv.CreatedAt,
		UpdatedAt:   conv.UpdatedAt,
		CompletedAt: conv.CompletedAt,
	}

	if len(conv.Metadata) > 0 {
		var meta map[string]interface{}
		if err := json.Unmarshal(conv.Metadata, &meta); err == nil {
			info.Metadata = meta
		}
	}
	if conv.Status == models.ConversionCompleted {
		info.DownloadURL = "/api/conversions/" + conv.ID + "/download"
	}
	return info
}

// ConversionListResponse 转换列表响应
type ConversionListResponse struct {
	Total       int64            `json:"total"`       // 总数量
	Page        int              `json:"page"`        // 当前页码
	PageSize    int              `json:"page_size"`   // 每页大小
	Conversions []ConversionInfo `json:"conversions"` // 转换列表
}

// ConversionDeleteResponse 转换删除响应
type ConversionDeleteResponse struct {
	Success bool   `json:"success"` // 是否成功
	ID      string `json:"id"`      // 转换ID
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status      string           `json:"status"`      // ok 或 degraded
	Conversions map[string]int64 `json:"conversions"` // 各状态转换数量
}
