package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/pdf-toolkit/api/handlers"
	"github.com/feichai0017/pdf-toolkit/api/routes"
	"github.com/feichai0017/pdf-toolkit/internal/agent"
	"github.com/feichai0017/pdf-toolkit/internal/models"
	"github.com/feichai0017/pdf-toolkit/internal/service/document"
	"github.com/feichai0017/pdf-toolkit/internal/testutil"
	"github.com/feichai0017/pdf-toolkit/internal/utils/validator"
	"github.com/feichai0017/pdf-toolkit/pkg/logger"
	"github.com/feichai0017/pdf-toolkit/pkg/storage/local"
)

const baseURL = "https://pdf.example.com"

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T, svc document.DocumentProcessor) *gin.Engine {
	t.Helper()

	log := logger.NewTestLogger()
	h, err := handlers.NewHandlers(svc, baseURL, log)
	require.NoError(t, err)

	r := gin.New()
	routes.SetupRoutes(r, h, log, routes.Options{MaxUploadBytes: 32 << 20})
	return r
}

func newService(t *testing.T) *document.DocumentService {
	t.Helper()

	root := t.TempDir()
	log := logger.NewTestLogger()

	toolkit, err := agent.NewToolkit(log, &agent.Options{RenderDPI: 72, MaxWorkers: 2})
	require.NoError(t, err)
	outputs, err := local.NewLocalStorage(filepath.Join(root, "outputs"), log)
	require.NoError(t, err)

	svc := document.NewService(toolkit, validator.NewDocumentValidator(log, toolkit, nil), nil, nil, outputs, log, &document.ServiceConfig{
		UploadDir: filepath.Join(root, "uploads"),
		OutputDir: filepath.Join(root, "outputs"),
	})
	t.Cleanup(func() { svc.Close() })
	return svc
}

func post(t *testing.T, r http.Handler, path string, fields map[string]string, uploads ...testutil.Upload) *httptest.ResponseRecorder {
	t.Helper()

	body, contentType := testutil.MultipartBody(t, fields, uploads...)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func pdfPart(t *testing.T, field, name string, widths ...int) testutil.Upload {
	return testutil.Upload{Field: field, Name: name, Data: testutil.PDFBytes(t, widths...)}
}

// saveBody writes the response body to a file so PDF readers can open it.
func saveBody(t *testing.T, w *httptest.ResponseRecorder, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, w.Body.Bytes(), 0o644))
	return path
}

func attachmentName(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	disposition := w.Header().Get("Content-Disposition")
	require.True(t, strings.HasPrefix(disposition, "attachment"), disposition)
	_, params, err := mime.ParseMediaType(disposition)
	require.NoError(t, err)
	return params["filename"]
}

func TestStaticPages(t *testing.T) {
	r := newRouter(t, newService(t))

	for _, path := range []string{"/", "/about", "/privacy", "/contact", "/terms"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/html", path)
		assert.Contains(t, w.Body.String(), `<link rel="canonical" href="`+baseURL+path+`">`, path)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	for _, action := range []string{"/img_to_pdf", "/pdf_to_img", "/merge_pdf", "/split_pdf", "/compress_pdf"} {
		assert.Contains(t, w.Body.String(), `action="`+action+`"`)
	}
}

func TestSitemapAndRobots(t *testing.T) {
	r := newRouter(t, newService(t))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sitemap.xml", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/xml")
	assert.True(t, strings.HasPrefix(w.Body.String(), "<?xml"))
	assert.Equal(t, 5, strings.Count(w.Body.String(), "<loc>"))
	assert.Contains(t, w.Body.String(), "<loc>"+baseURL+"/terms</loc>")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/robots.txt", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Sitemap: "+baseURL+"/sitemap.xml")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, "OK", w.Body.String())
}

func TestImagesToPDFRoute(t *testing.T) {
	r := newRouter(t, newService(t))

	w := post(t, r, "/img_to_pdf", nil,
		testutil.Upload{Field: "images", Name: "a.png", Data: testutil.PNGBytes(t, 100, 60, false)},
		testutil.Upload{Field: "images", Name: "b.png", Data: testutil.PNGBytes(t, 200, 60, false)},
		testutil.Upload{Field: "images", Name: "c.png", Data: testutil.PNGBytes(t, 300, 60, true)},
	)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	name := attachmentName(t, w)
	assert.True(t, strings.HasPrefix(name, "images_to_pdf_"), name)
	assert.Equal(t, 3, testutil.PageCount(t, saveBody(t, w, name)))
}

func TestMergePDFRoute(t *testing.T) {
	r := newRouter(t, newService(t))

	w := post(t, r, "/merge_pdf", nil,
		pdfPart(t, "pdfs", "first.pdf", 100),
		pdfPart(t, "pdfs", "second.pdf", 200, 300),
	)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	name := attachmentName(t, w)
	assert.True(t, strings.HasPrefix(name, "merged_"), name)
	assert.Equal(t, []int{100, 200, 300}, testutil.PageWidths(t, saveBody(t, w, name)))
}

func TestSplitPDFRoute(t *testing.T) {
	r := newRouter(t, newService(t))

	w := post(t, r, "/split_pdf", map[string]string{"start_page": "2", "end_page": "3"},
		pdfPart(t, "pdf", "src.pdf", 100, 150, 200, 250),
	)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	name := attachmentName(t, w)
	assert.Equal(t, []int{150, 200}, testutil.PageWidths(t, saveBody(t, w, name)))

	// start/end aliases
	w = post(t, r, "/split_pdf", map[string]string{"start": "4", "end": "4"},
		pdfPart(t, "pdf", "src.pdf", 100, 150, 200, 250),
	)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []int{250}, testutil.PageWidths(t, saveBody(t, w, attachmentName(t, w))))
}

func TestPDFToImagesRoute(t *testing.T) {
	r := newRouter(t, newService(t))

	w := post(t, r, "/pdf_to_img", map[string]string{"start_page": "2", "end_page": "3"},
		pdfPart(t, "pdf", "src.pdf", 100, 150, 200),
	)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, strings.HasPrefix(attachmentName(t, w), "pdf_images_"))

	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"page_2.png", "page_3.png"}, names)
}

func TestInvalidPageRangeIsPlainText(t *testing.T) {
	r := newRouter(t, newService(t))

	tests := []struct {
		name   string
		path   string
		fields map[string]string
	}{
		{"split start below one", "/split_pdf", map[string]string{"start_page": "0", "end_page": "1"}},
		{"split end past count", "/split_pdf", map[string]string{"start_page": "1", "end_page": "3"}},
		{"split reversed", "/split_pdf", map[string]string{"start_page": "2", "end_page": "1"}},
		{"split missing", "/split_pdf", nil},
		{"images start below one", "/pdf_to_img", map[string]string{"start_page": "0", "end_page": "1"}},
		{"images end past count", "/pdf_to_img", map[string]string{"start_page": "1", "end_page": "9"}},
		{"images not numeric", "/pdf_to_img", map[string]string{"start_page": "first", "end_page": "2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, r, tt.path, tt.fields, pdfPart(t, "pdf", "src.pdf", 100, 200))
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "Invalid page range", w.Body.String())
			assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
			assert.Empty(t, w.Header().Get("Content-Disposition"))
		})
	}
}

func TestCompressPDFRoute(t *testing.T) {
	r := newRouter(t, newService(t))

	for _, level := range []string{"low", "medium", "high", ""} {
		w := post(t, r, "/compress_pdf", map[string]string{"level": level}, pdfPart(t, "pdf", "src.pdf", 100, 200))
		require.Equal(t, http.StatusOK, w.Code, level)
		name := attachmentName(t, w)
		assert.True(t, strings.HasPrefix(name, "compressed_"), name)
		assert.Equal(t, 2, testutil.PageCount(t, saveBody(t, w, name)))
	}
}

func TestUploadWithoutExtension(t *testing.T) {
	r := newRouter(t, newService(t))

	w := post(t, r, "/compress_pdf", map[string]string{"level": "low"}, pdfPart(t, "pdf", "scan", 100, 200))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 2, testutil.PageCount(t, saveBody(t, w, attachmentName(t, w))))
}

func TestUploadErrors(t *testing.T) {
	r := newRouter(t, newService(t))

	w := post(t, r, "/merge_pdf", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp handlers.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Invalid file upload", resp.Message)
	assert.Contains(t, resp.Error, "pdfs")

	// wrong field name
	w = post(t, r, "/compress_pdf", nil, pdfPart(t, "file", "src.pdf", 100))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// not a pdf
	w = post(t, r, "/split_pdf", map[string]string{"start_page": "1", "end_page": "1"},
		testutil.Upload{Field: "pdf", Name: "photo.png", Data: testutil.PNGBytes(t, 10, 10, false)},
	)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "photo.png")
}

func TestPDFInfoRoute(t *testing.T) {
	r := newRouter(t, newService(t))

	w := post(t, r, "/pdf_info", nil, pdfPart(t, "pdf", "src.pdf", 100, 200, 300))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var meta models.DocumentMetadata
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &meta))
	assert.Equal(t, 3, meta.Pages)
	assert.NotEmpty(t, meta.Hash)
}

func TestJobRoutesDisabled(t *testing.T) {
	r := newRouter(t, newService(t))

	w := post(t, r, "/api/v1/jobs/merge_pdf", nil, pdfPart(t, "pdfs", "a.pdf", 100))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// stubService drives the job routes without redis.
type stubService struct {
	*document.DocumentService
	task     *models.ProcessingTask
	err      error
	artifact []byte
	req      *document.ConvertRequest
}

func (s *stubService) AsyncEnabled() bool { return true }

func (s *stubService) SubmitJob(ctx context.Context, req *document.ConvertRequest) (*models.ProcessingTask, error) {
	s.req = req
	return s.task, s.err
}

func (s *stubService) GetJobStatus(ctx context.Context, jobID string) (*models.ProcessingTask, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.task, nil
}

func (s *stubService) OpenJobArtifact(ctx context.Context, jobID string) (*models.Artifact, io.ReadCloser, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.task.Artifact, io.NopCloser(bytes.NewReader(s.artifact)), nil
}

func (s *stubService) CancelJob(ctx context.Context, jobID string) error {
	return s.err
}

func TestJobRoutes(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	stub := &stubService{
		DocumentService: newService(t),
		task: &models.ProcessingTask{
			ID:        "3b241101-e2bb-4255-8caf-4136c566a962",
			Status:    models.StatusPending,
			Operation: models.OpSplitPDF,
			CreatedAt: created,
		},
	}
	r := newRouter(t, stub)

	w := post(t, r, "/api/v1/jobs/split_pdf", map[string]string{"start": "1", "end": "2"}, pdfPart(t, "pdf", "src.pdf", 100, 200))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, "/api/v1/jobs/"+stub.task.ID, w.Header().Get("Location"))
	var resp handlers.JobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, stub.task.ID, resp.JobID)
	assert.Equal(t, models.StatusPending, resp.Status)
	assert.Equal(t, "1", stub.req.StartPage)
	assert.Equal(t, "2", stub.req.EndPage)

	w = post(t, r, "/api/v1/jobs/rotate_pdf", nil, pdfPart(t, "pdf", "src.pdf", 100))
	assert.Equal(t, http.StatusNotFound, w.Code)

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	w = get("/api/v1/jobs/" + stub.task.ID)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, created.Format(time.RFC3339), resp.CreatedAt)

	stub.err = models.ErrJobNotCompleted
	assert.Equal(t, http.StatusConflict, get("/api/v1/jobs/"+stub.task.ID+"/download").Code)

	stub.err = models.ErrJobNotFound
	assert.Equal(t, http.StatusNotFound, get("/api/v1/jobs/missing").Code)

	stub.err = nil
	stub.task.Status = models.StatusCompleted
	stub.task.Artifact = &models.Artifact{Name: "split_1714557600.pdf", ContentType: "application/pdf", Size: 4}
	stub.artifact = []byte("%PDF")
	w = get("/api/v1/jobs/" + stub.task.ID + "/download")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "%PDF", w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "split_1714557600.pdf", attachmentName(t, w))

	del := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/jobs/"+stub.task.ID, nil))
		return w
	}
	assert.Equal(t, http.StatusOK, del().Code)
	stub.err = document.ErrJobFinished
	assert.Equal(t, http.StatusConflict, del().Code)
}
