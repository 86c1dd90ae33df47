package validator

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/feichai0017/pdf-toolkit/internal/models"
	"github.com/feichai0017/pdf-toolkit/pkg/logger"
)

// FileKind 上传文件类别
type FileKind string

const (
	KindPDF   FileKind = "pdf"
	KindImage FileKind = "image"
)

// KindFor returns the upload kind an operation expects.
func KindFor(op models.Operation) FileKind {
	if op == models.OpImagesToPDF {
		return KindImage
	}
	return KindPDF
}

// ContentChecker decides whether sniffed content can be processed by op.
type ContentChecker interface {
	Accepts(op models.Operation, mimeType string) bool
}

// DocumentValidator 文档验证器
type DocumentValidator struct {
	logger  logger.Logger
	checker ContentChecker
	config  *ValidatorConfig
}

// ValidatorConfig 验证器配置
type ValidatorConfig struct {
	MaxFileSize int64                 // 最大文件大小（字节）
	Extensions  map[FileKind][]string // 类别 -> 允许的扩展名；无扩展名时只看内容
}

// ValidationResult 验证结果
type ValidationResult struct {
	IsValid  bool              `json:"isValid"`
	Errors   []ValidationError `json:"errors,omitempty"`
	FileInfo FileInfo          `json:"fileInfo"`
}

// ValidationError 验证错误
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// FileInfo 文件信息
type FileInfo struct {
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	MimeType  string `json:"mimeType"`
	Extension string `json:"extension"`
}

// DefaultConfig 默认配置
func DefaultConfig() *ValidatorConfig {
	return &ValidatorConfig{
		MaxFileSize: 50 * 1024 * 1024, // 50MB
		Extensions: map[FileKind][]string{
			KindPDF:   {".pdf"},
			KindImage: {".jpg", ".jpeg", ".png", ".tif", ".tiff", ".gif", ".bmp", ".webp"},
		},
	}
}

// NewDocumentValidator 创建新的文档验证器
func NewDocumentValidator(logger logger.Logger, checker ContentChecker, config *ValidatorConfig) *DocumentValidator {
	if config == nil {
		config = DefaultConfig()
	}

	return &DocumentValidator{
		logger:  logger,
		checker: checker,
		config:  config,
	}
}

// ValidateFile 验证单个文件
func (v *DocumentValidator) ValidateFile(file *multipart.FileHeader, op models.Operation) (*ValidationResult, error) {
	result := &ValidationResult{
		IsValid: true,
		Errors:  make([]ValidationError, 0),
		FileInfo: FileInfo{
			Filename:  file.Filename,
			Size:      file.Size,
			Extension: strings.ToLower(filepath.Ext(file.Filename)),
		},
	}

	f, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	mime, err := mimetype.DetectReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to detect mime type: %w", err)
	}
	result.FileInfo.MimeType = mime.String()

	if errs := v.performBasicValidation(result.FileInfo, KindFor(op)); len(errs) > 0 {
		result.IsValid = false
		result.Errors = append(result.Errors, errs...)
	}

	if errs := v.validateContent(mime, result.FileInfo, op); len(errs) > 0 {
		result.IsValid = false
		result.Errors = append(result.Errors, errs...)
	}

	return result, nil
}

// ValidateFiles validates every upload and returns an error wrapping
// models.ErrUnsupportedFile for the first rejected one.
func (v *DocumentValidator) ValidateFiles(files []*multipart.FileHeader, op models.Operation) error {
	if len(files) == 0 {
		return models.ErrNoInput
	}

	for _, file := range files {
		result, err := v.ValidateFile(file, op)
		if err != nil {
			return err
		}
		if !result.IsValid {
			v.logger.Warn("Upload rejected",
				logger.String("filename", file.Filename),
				logger.String("operation", string(op)),
				logger.String("mimeType", result.FileInfo.MimeType),
				logger.Any("errors", result.Errors),
			)
			return fmt.Errorf("%w: %s: %s", models.ErrUnsupportedFile, file.Filename, result.Errors[0].Message)
		}
	}
	return nil
}

// 基本验证
func (v *DocumentValidator) performBasicValidation(fileInfo FileInfo, kind FileKind) []ValidationError {
	var errors []ValidationError

	if v.config.MaxFileSize > 0 && fileInfo.Size > v.config.MaxFileSize {
		errors = append(errors, ValidationError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("file size exceeds maximum limit of %d bytes", v.config.MaxFileSize),
			Field:   "size",
		})
	}

	// 没有扩展名的上传由内容决定
	if fileInfo.Extension != "" && !slices.Contains(v.config.Extensions[kind], fileInfo.Extension) {
		errors = append(errors, ValidationError{
			Code:    "INVALID_FILE_TYPE",
			Message: fmt.Sprintf("file type %q is not allowed", fileInfo.Extension),
			Field:   "extension",
		})
	}

	return errors
}

// 内容验证：由处理器判断探测到的 MIME 类型
func (v *DocumentValidator) validateContent(mime *mimetype.MIME, fileInfo FileInfo, op models.Operation) []ValidationError {
	for m := mime; m != nil; m = m.Parent() {
		if v.checker.Accepts(op, m.String()) {
			return nil
		}
	}

	return []ValidationError{{
		Code:    "INVALID_MIME_TYPE",
		Message: fmt.Sprintf("content %s cannot be processed by %s", fileInfo.MimeType, op),
		Field:   "mimeType",
	}}
}
