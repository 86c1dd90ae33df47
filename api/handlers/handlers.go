package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/pdf-toolkit/internal/models"
	"github.com/feichai0017/pdf-toolkit/internal/service/document"
	"github.com/feichai0017/pdf-toolkit/pkg/logger"
)

type Handlers struct {
	PDF   *PDFHandler
	Jobs  *JobHandler
	Pages *PageHandler
}

// NewHandlers 创建所有 handler; 未启用异步任务时 Jobs 为 nil
func NewHandlers(
	documentService document.DocumentProcessor,
	baseURL string,
	log logger.Logger,
) (*Handlers, error) {
	pages, err := NewPageHandler(baseURL, log.Named("pages"))
	if err != nil {
		return nil, err
	}

	h := &Handlers{
		PDF:   NewPDFHandler(documentService, log.Named("pdf")),
		Pages: pages,
	}
	if documentService.AsyncEnabled() {
		h.Jobs = NewJobHandler(documentService, log.Named("jobs"))
	}
	return h, nil
}

// ErrorResponse 定义错误响应结构
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// handleError 统一错误处理
func handleError(c *gin.Context, log logger.Logger, status int, message string, err error) {
	fields := []logger.Field{
		logger.String("path", c.Request.URL.Path),
		logger.String("requestId", logger.RequestIDFromContext(c.Request.Context())),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	if status >= http.StatusInternalServerError {
		log.Error(message, fields...)
	} else {
		log.Warn(message, fields...)
	}

	response := ErrorResponse{
		Message: message,
	}
	if err != nil {
		response.Error = err.Error()
	}

	c.JSON(status, response)
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "Upload too large"
	case errors.Is(err, models.ErrNoInput), errors.Is(err, models.ErrUnsupportedFile):
		return http.StatusBadRequest, "Invalid file upload"
	case errors.Is(err, models.ErrInvalidPageRange):
		return http.StatusBadRequest, models.InvalidPageRangeMessage
	case errors.Is(err, models.ErrUnknownOperation):
		return http.StatusNotFound, "Unknown operation"
	case errors.Is(err, models.ErrJobNotFound):
		return http.StatusNotFound, "Job not found"
	case errors.Is(err, models.ErrJobNotCompleted), errors.Is(err, document.ErrJobFinished):
		return http.StatusConflict, "Job is not in a suitable state"
	}
	return http.StatusInternalServerError, "Failed to process file"
}

// uploadedFiles returns the files of the operation's upload field.
func uploadedFiles(c *gin.Context, op models.Operation) ([]*multipart.FileHeader, error) {
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", models.ErrNoInput, err)
	}

	field := op.UploadField()
	files := form.File[field]
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: missing %q field", models.ErrNoInput, field)
	}
	if !op.MultiUpload() {
		files = files[:1]
	}
	return files, nil
}

// convertRequest reads the form values of op. start/end are accepted as
// aliases of start_page/end_page.
func convertRequest(c *gin.Context, op models.Operation, files []*multipart.FileHeader) *document.ConvertRequest {
	return &document.ConvertRequest{
		RequestID: logger.RequestIDFromContext(c.Request.Context()),
		Operation: op,
		Files:     files,
		StartPage: formValue(c, "start_page", "start"),
		EndPage:   formValue(c, "end_page", "end"),
		Level:     c.PostForm("level"),
	}
}

func formValue(c *gin.Context, keys ...string) string {
	for _, key := range keys {
		if v, ok := c.GetPostForm(key); ok {
			return v
		}
	}
	return ""
}
