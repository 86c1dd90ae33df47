package models

import "errors"

var (
	// ErrInvalidPageRange is surfaced to clients as the plain-text "Invalid page range".
	ErrInvalidPageRange = errors.New("invalid page range")
	ErrNoInput          = errors.New("no input files")
	ErrUnsupportedFile  = errors.New("unsupported file")
	ErrUnknownOperation = errors.New("unknown operation")
	ErrJobNotFound      = errors.New("job not found")
	ErrJobNotCompleted  = errors.New("job not completed")
)

// InvalidPageRangeMessage 页码范围错误时返回的文本
const InvalidPageRangeMessage = "Invalid page range"
