package taskqueue

import (
	"encoding/json"
	"fmt"
)

// TaskType 任务类型
type TaskType string

const (
	// TaskConversionProcess 转换源文档为PDF
	TaskConversionProcess TaskType = "conversion:process"
)

// ConversionPayload 转换任务载荷
type ConversionPayload struct {
	ConversionID string `json:"conversion_id"` // 转换记录ID
}

// TaskInfo 入队后任务的简要信息
type TaskInfo struct {
	ID    string   `json:"id"`    // 任务ID
	Type  TaskType `json:"type"`  // 任务类型
	Queue string   `json:"queue"` // 所在队列
	State string   `json:"state"` // 任务状态：pending、active、retry、archived等
}

// ErrTaskNotFound 任务未找到错误
var ErrTaskNotFound = TaskError("task not found")

// ErrInvalidPayload 无效的任务载荷错误
var ErrInvalidPayload = TaskError("invalid task payload")

// TaskError 任务错误类型
type TaskError string

// Error 实现error接口
func (e TaskError) Error() string {
	return string(e)
}

// MarshalPayload 将任务载荷序列化为JSON
func MarshalPayload(payload interface{}) (json.RawMessage, error) {
	if payload == nil {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(payload)
}

// UnmarshalPayload 将JSON反序列化为任务载荷
func UnmarshalPayload(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return ErrInvalidPayload
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}
