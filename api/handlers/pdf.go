package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/pdf-toolkit/internal/models"
	"github.com/feichai0017/pdf-toolkit/internal/service/document"
	"github.com/feichai0017/pdf-toolkit/pkg/logger"
)

// PDFHandler serves the synchronous conversion routes.
type PDFHandler struct {
	service document.DocumentProcessor
	logger  logger.Logger
}

func NewPDFHandler(service document.DocumentProcessor, logger logger.Logger) *PDFHandler {
	return &PDFHandler{
		service: service,
		logger:  logger,
	}
}

// ImagesToPDF 图片转 PDF
func (h *PDFHandler) ImagesToPDF(c *gin.Context) { h.convert(c, models.OpImagesToPDF) }

// PDFToImages PDF 页面转 PNG 压缩包
func (h *PDFHandler) PDFToImages(c *gin.Context) { h.convert(c, models.OpPDFToImages) }

// MergePDF 合并 PDF
func (h *PDFHandler) MergePDF(c *gin.Context) { h.convert(c, models.OpMergePDF) }

// SplitPDF 提取页码范围
func (h *PDFHandler) SplitPDF(c *gin.Context) { h.convert(c, models.OpSplitPDF) }

// CompressPDF 压缩 PDF
func (h *PDFHandler) CompressPDF(c *gin.Context) { h.convert(c, models.OpCompressPDF) }

func (h *PDFHandler) convert(c *gin.Context, op models.Operation) {
	files, err := uploadedFiles(c, op)
	if err != nil {
		status, message := statusFor(err)
		handleError(c, h.logger, status, message, err)
		return
	}

	artifact, err := h.service.Convert(c.Request.Context(), convertRequest(c, op, files))
	if err != nil {
		// 页码范围错误只返回纯文本, 不改状态码
		if errors.Is(err, models.ErrInvalidPageRange) {
			h.logger.Warn("Invalid page range",
				logger.String("path", c.Request.URL.Path),
				logger.Error(err),
			)
			c.String(http.StatusOK, models.InvalidPageRangeMessage)
			return
		}
		status, message := statusFor(err)
		handleError(c, h.logger, status, message, err)
		return
	}

	c.FileAttachment(artifact.Path, artifact.Name)
}

// PDFInfo 返回 PDF 元数据
func (h *PDFHandler) PDFInfo(c *gin.Context) {
	header, err := c.FormFile(models.OpPDFInfo.UploadField())
	if err != nil {
		handleError(c, h.logger, http.StatusBadRequest, "Invalid file upload", err)
		return
	}

	metadata, err := h.service.Inspect(c.Request.Context(), header)
	if err != nil {
		status, message := statusFor(err)
		handleError(c, h.logger, status, message, err)
		return
	}

	c.JSON(http.StatusOK, metadata)
}
