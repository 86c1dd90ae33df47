package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/pdf-toolkit/internal/models"
	"github.com/feichai0017/pdf-toolkit/internal/service/document"
	"github.com/feichai0017/pdf-toolkit/pkg/logger"
)

// JobHandler serves the asynchronous job API.
type JobHandler struct {
	service document.DocumentProcessor
	logger  logger.Logger
}

// JobResponse 定义任务响应结构
type JobResponse struct {
	JobID     string                  `json:"jobId"`
	Status    models.ProcessingStatus `json:"status"`
	Operation models.Operation        `json:"operation"`
	Progress  float64                 `json:"progress"`
	Error     string                  `json:"error,omitempty"`
	Artifact  *models.Artifact        `json:"artifact,omitempty"`
	CreatedAt string                  `json:"createdAt"`
	UpdatedAt string                  `json:"updatedAt,omitempty"`
}

func NewJobHandler(service document.DocumentProcessor, logger logger.Logger) *JobHandler {
	return &JobHandler{
		service: service,
		logger:  logger,
	}
}

func jobResponse(task *models.ProcessingTask) JobResponse {
	resp := JobResponse{
		JobID:     task.ID,
		Status:    task.Status,
		Operation: task.Operation,
		Progress:  task.Progress,
		Error:     task.Error,
		Artifact:  task.Artifact,
		CreatedAt: task.CreatedAt.Format(time.RFC3339),
	}
	if !task.UpdatedAt.IsZero() {
		resp.UpdatedAt = task.UpdatedAt.Format(time.RFC3339)
	}
	return resp
}

// Submit 创建异步任务
func (h *JobHandler) Submit(c *gin.Context) {
	op, err := models.ParseOperation(c.Param("operation"))
	if err != nil {
		handleError(c, h.logger, http.StatusNotFound, "Unknown operation", err)
		return
	}

	files, err := uploadedFiles(c, op)
	if err != nil {
		status, message := statusFor(err)
		handleError(c, h.logger, status, message, err)
		return
	}

	task, err := h.service.SubmitJob(c.Request.Context(), convertRequest(c, op, files))
	if err != nil {
		status, message := statusFor(err)
		handleError(c, h.logger, status, message, err)
		return
	}

	c.Header("Location", fmt.Sprintf("/api/v1/jobs/%s", task.ID))
	c.JSON(http.StatusAccepted, jobResponse(task))
}

// Status 获取任务状态
func (h *JobHandler) Status(c *gin.Context) {
	task, err := h.service.GetJobStatus(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		status, message := statusFor(err)
		handleError(c, h.logger, status, message, err)
		return
	}

	c.JSON(http.StatusOK, jobResponse(task))
}

// Download 下载任务输出
func (h *JobHandler) Download(c *gin.Context) {
	artifact, reader, err := h.service.OpenJobArtifact(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		status, message := statusFor(err)
		handleError(c, h.logger, status, message, err)
		return
	}
	defer reader.Close()

	c.DataFromReader(http.StatusOK, artifact.Size, artifact.ContentType, reader, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, artifact.Name),
	})
}

// Cancel 取消任务
func (h *JobHandler) Cancel(c *gin.Context) {
	jobID := c.Param("jobId")
	if err := h.service.CancelJob(c.Request.Context(), jobID); err != nil {
		status, message := statusFor(err)
		handleError(c, h.logger, status, message, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Job cancelled successfully",
		"jobId":   jobID,
	})
}
