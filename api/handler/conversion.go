package handler

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fyerfyer/doc2pdf/api/middleware"
	"github.com/fyerfyer/doc2pdf/api/model"
	"github.com/fyerfyer/doc2pdf/internal/document"
	"github.com/fyerfyer/doc2pdf/internal/models"
	"github.com/fyerfyer/doc2pdf/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ConversionHandler 处理转换相关的API请求
type ConversionHandler struct {
	service *services.ConversionService // 转换服务
	logger  *logrus.Logger              // 日志记录器
}

// NewConversionHandler 创建新的转换处理器
func NewConversionHandler(service *services.ConversionService) *ConversionHandler {
	return &ConversionHandler{
		service: service,
		logger:  middleware.GetLogger(),
	}
}

// CreateConversion 上传源文档并提交转换
// POST /api/conversions
func (h *ConversionHandler) CreateConversion(c *gin.Context) {
	var req model.ConversionCreateRequest
	if err := c.ShouldBind(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("missing upload file", err.Error()))
		return
	}

	filename := filepath.Base(req.File.Filename)
	if !document.IsSupported(filename) {
		middleware.HandleError(c, fmt.Errorf("%w: %s", document.ErrUnsupportedFormat, filepath.Ext(filename)))
		return
	}

	file, err := req.File.Open()
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":    err.Error(),
			"filename": filename,
		}).Error("Failed to open uploaded file")
		middleware.HandleError(c, middleware.NewInternalError("failed to open uploaded file"))
		return
	}
	defer file.Close()

	conv, err := h.service.Submit(c.Request.Context(), filename, file)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"conversion_id": conv.ID,
		"filename":      filename,
		"status":        conv.Status,
	}).Info("Conversion submitted")

	status := http.StatusOK
	if conv.Status == models.ConversionPending || conv.Status == models.ConversionProcessing {
		status = http.StatusAccepted
	}
	c.JSON(status, model.NewSuccessResponse(model.NewConversionInfo(conv)))
}

// GetConversion 获取转换信息
// GET /api/conversions/:id
func (h *ConversionHandler) GetConversion(c *gin.Context) {
	var req model.ConversionIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid conversion id", err.Error()))
		return
	}

	conv, err := h.service.Get(c.Request.Context(), req.ID)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewConversionInfo(conv)))
}

// ListConversions 获取转换列表
// GET /api/conversions
func (h *ConversionHandler) ListConversions(c *gin.Context) {
	var req model.ConversionListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid query parameters", err.Error()))
		return
	}

	convs, total, err := h.service.List(c.Request.Context(), req.Offset(), req.GetPageSize(), req.Status)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	infos := make([]model.ConversionInfo, 0, len(convs))
	for _, conv := range convs {
		infos = append(infos, model.NewConversionInfo(conv))
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.ConversionListResponse{
		Total:       total,
		Page:        req.GetPage(),
		PageSize:    req.GetPageSize(),
		Conversions: infos,
	}))
}

// DownloadConversion 下载转换生成的PDF
// GET /api/conversions/:id/download
func (h *ConversionHandler) DownloadConversion(c *gin.Context) {
	var req model.ConversionIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid conversion id", err.Error()))
		return
	}

	rc, conv, err := h.service.OpenResult(c.Request.Context(), req.ID)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": pdfName(conv.FileName),
	}))
	c.Header("Content-Length", strconv.FormatInt(conv.ResultSize, 10))
	c.Header("Content-Type", "application/pdf")
	c.Status(http.StatusOK)

	if _, err := io.Copy(c.Writer, rc); err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":         err.Error(),
			"conversion_id": conv.ID,
		}).Error("Failed to stream conversion result")
	}
}

// RetryConversion 重新转换失败的记录
// POST /api/conversions/:id/retry
func (h *ConversionHandler) RetryConversion(c *gin.Context) {
	var req model.ConversionIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid conversion id", err.Error()))
		return
	}

	conv, err := h.service.Retry(c.Request.Context(), req.ID)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	status := http.StatusOK
	if conv.Status == models.ConversionPending || conv.Status == models.ConversionProcessing {
		status = http.StatusAccepted
	}
	c.JSON(status, model.NewSuccessResponse(model.NewConversionInfo(conv)))
}

// DeleteConversion 删除转换记录及其文件
// DELETE /api/conversions/:id
func (h *ConversionHandler) DeleteConversion(c *gin.Context) {
	var req model.ConversionIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid conversion id", err.Error()))
		return
	}

	if err := h.service.Delete(c.Request.Context(), req.ID); err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.ConversionDeleteResponse{
		Success: true,
		ID:      req.ID,
	}))
}

// Health 健康检查，附带各状态的转换数量
// GET /api/health
func (h *ConversionHandler) Health(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Warn("Health check failed to read conversion stats")
		c.JSON(http.StatusServiceUnavailable, model.NewSuccessResponse(model.HealthResponse{
			Status: "degraded",
		}))
		return
	}

	counts := make(map[string]int64, len(stats))
	for status, n := range stats {
		counts[string(status)] = n
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(model.HealthResponse{
		Status:      "ok",
		Conversions: counts,
	}))
}

// pdfName 把源文件名的扩展名换成.pdf
func pdfName(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + ".pdf"
}
