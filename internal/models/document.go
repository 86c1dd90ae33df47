package models

import (
	"time"
)

// UploadedFile 已保存到临时目录的上传文件
type UploadedFile struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
}

// ConversionJob 一次转换请求的参数
type ConversionJob struct {
	ID        string           `json:"id"`
	Operation Operation        `json:"operation"`
	Inputs    []UploadedFile   `json:"inputs"`
	Range     *PageRange       `json:"range,omitempty"`
	Level     CompressionLevel `json:"level,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// InputPaths 输入文件路径
func (j *ConversionJob) InputPaths() []string {
	paths := make([]string, len(j.Inputs))
	for i, in := range j.Inputs {
		paths[i] = in.Path
	}
	return paths
}

// Artifact 输出文件
type Artifact struct {
	Name        string `json:"name"`
	Path        string `json:"-"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	Pages       int    `json:"pages"`
	StorageKey  string `json:"storageKey,omitempty"`
}

// DocumentMetadata 文档元数据
type DocumentMetadata struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Producer string `json:"producer,omitempty"`
	Pages    int    `json:"pages"`
	FileSize int64  `json:"fileSize"`
	MimeType string `json:"mimeType"`
	Hash     string `json:"hash"`
}

type ProcessingTask struct {
	ID        string           `json:"id"`
	Status    ProcessingStatus `json:"status"`
	Operation Operation        `json:"operation"`
	Progress  float64          `json:"progress"`
	Error     string           `json:"error,omitempty"`
	Artifact  *Artifact        `json:"artifact,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt,omitempty"`
}

type ProcessingStatus string

const (
	StatusPending   ProcessingStatus = "pending"
	StatusRunning   ProcessingStatus = "running"
	StatusCompleted ProcessingStatus = "completed"
	StatusFailed    ProcessingStatus = "failed"
	StatusCancelled ProcessingStatus = "cancelled"
)

// Terminal reports whether a job in this status can no longer change.
func (s ProcessingStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}
