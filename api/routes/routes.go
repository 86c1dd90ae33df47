package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/feichai0017/pdf-toolkit/api/handlers"
	"github.com/feichai0017/pdf-toolkit/api/middleware"
	"github.com/feichai0017/pdf-toolkit/pkg/logger"
	"github.com/feichai0017/pdf-toolkit/web"
)

// Options 路由配置
type Options struct {
	MaxUploadBytes int64
}

// SetupRoutes 配置所有路由
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, log logger.Logger, opts Options) {
	// 全局中间件
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(log.Named("http")))
	r.Use(middleware.CORS())

	// 静态页面
	for _, page := range web.Pages {
		r.GET(page.Path, h.Pages.Page(page))
	}
	r.GET("/sitemap.xml", h.Pages.Sitemap)
	r.GET("/robots.txt", h.Pages.Robots)
	r.GET("/health", h.Pages.Health)

	// 上传路由
	uploads := r.Group("/")
	uploads.Use(middleware.MaxBodySize(opts.MaxUploadBytes))
	{
		uploads.POST("/img_to_pdf", h.PDF.ImagesToPDF)
		uploads.POST("/pdf_to_img", h.PDF.PDFToImages)
		uploads.POST("/merge_pdf", h.PDF.MergePDF)
		uploads.POST("/split_pdf", h.PDF.SplitPDF)
		uploads.POST("/compress_pdf", h.PDF.CompressPDF)
		uploads.POST("/pdf_info", h.PDF.PDFInfo)
	}

	if h.Jobs == nil {
		return
	}

	// API 版本组
	v1 := r.Group("/api/v1")
	jobs := v1.Group("/jobs")
	{
		jobs.POST("/:operation", middleware.MaxBodySize(opts.MaxUploadBytes), h.Jobs.Submit)
		jobs.GET("/:jobId", h.Jobs.Status)
		jobs.GET("/:jobId/download", h.Jobs.Download)
		jobs.DELETE("/:jobId", h.Jobs.Cancel)
	}
}
