package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/fyerfyer/doc2pdf/api/model"
	"github.com/fyerfyer/doc2pdf/internal/converter"
	"github.com/fyerfyer/doc2pdf/internal/document"
	"github.com/fyerfyer/doc2pdf/internal/models"
	"github.com/fyerfyer/doc2pdf/internal/pdf"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// 定义应用中的错误类型常量
const (
	ErrorTypeValidation  = "VALIDATION_ERROR"  // 输入验证错误
	ErrorTypeNotFound    = "NOT_FOUND_ERROR"   // 资源不存在错误
	ErrorTypeConflict    = "CONFLICT_ERROR"    // 资源状态冲突
	ErrorTypeUnsupported = "UNSUPPORTED_ERROR" // 不支持的文档类型
	ErrorTypeUnreadable  = "UNREADABLE_ERROR"  // 文档无法解析
	ErrorTypeInternal    = "INTERNAL_ERROR"    // 内部服务器错误
)

// AppError 应用错误结构体
type AppError struct {
	Type    string // 错误类型
	Message string // 错误消息
	Details string // 详细错误信息
	Code    int    // HTTP状态码
}

// Error 实现error接口的方法
func (e AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewValidationError 创建输入验证错误
func NewValidationError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeValidation,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusBadRequest,
	}
}

// NewNotFoundError 创建资源不存在错误
func NewNotFoundError(message string) AppError {
	return AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
		Code:    http.StatusNotFound,
	}
}

// NewConflictError 创建状态冲突错误
func NewConflictError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeConflict,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusConflict,
	}
}

// NewInternalError 创建内部服务器错误
func NewInternalError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusInternalServerError,
	}
}

// FromError 把服务层返回的错误映射为AppError
func FromError(err error) AppError {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, document.ErrUnsupportedFormat):
		return AppError{
			Type:    ErrorTypeUnsupported,
			Message: "unsupported document type",
			Details: err.Error(),
			Code:    http.StatusUnsupportedMediaType,
		}
	case errors.Is(err, converter.ErrSourceUnreadable):
		return AppError{
			Type:    ErrorTypeUnreadable,
			Message: "source document unreadable",
			Details: err.Error(),
			Code:    http.StatusUnprocessableEntity,
		}
	case errors.Is(err, pdf.ErrUnsupportedCharacter):
		return AppError{
			Type:    ErrorTypeUnreadable,
			Message: "document text not supported by the configured font",
			Details: err.Error(),
			Code:    http.StatusUnprocessableEntity,
		}
	case errors.Is(err, models.ErrConversionNotFound):
		return NewNotFoundError("conversion not found")
	case errors.Is(err, models.ErrConversionNotReady):
		return NewConflictError("conversion not completed", err.Error())
	case errors.Is(err, models.ErrInvalidConversionStatus):
		return NewConflictError("invalid conversion status", err.Error())
	}

	return NewInternalError("internal server error", err.Error())
}

// ErrorMiddleware 统一错误处理中间件
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(logrus.Fields{
					FieldError: r,
					"stack":    string(debug.Stack()),
					FieldPath:  c.Request.URL.Path,
				}).Error("Panic recovered in API request")

				errorResponse := model.NewErrorResponse(
					http.StatusInternalServerError,
					"An unexpected error occurred",
				)
				if gin.Mode() == gin.DebugMode {
					errorResponse.Message = fmt.Sprintf("Panic: %v", r)
				}
				errorResponse.TraceID = c.GetString(TraceIDKey)

				c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse)
			}
		}()

		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		traceID := c.GetString(TraceIDKey)
		appErr := FromError(c.Errors.Last().Err)

		entry := log.WithFields(logrus.Fields{
			"error_type":  appErr.Type,
			FieldTraceID: traceID,
			FieldPath:    c.Request.URL.Path,
		})
		if appErr.Details != "" {
			entry = entry.WithField("details", appErr.Details)
		}
		if appErr.Code >= http.StatusInternalServerError {
			entry.Error(appErr.Message)
		} else {
			entry.Warn(appErr.Message)
		}

		errResp := model.NewErrorResponse(appErr.Code, appErr.Message)
		errResp.TraceID = traceID
		if appErr.Code < http.StatusInternalServerError || gin.Mode() == gin.DebugMode {
			errResp.Details = appErr.Details
		}

		c.AbortWithStatusJSON(appErr.Code, errResp)
	}
}

// HandleError 在处理器中使用的错误处理辅助函数
func HandleError(c *gin.Context, err error) {
	_ = c.Error(err)
}
