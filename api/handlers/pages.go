package handlers

import (
	"encoding/xml"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"

	"github.com/feichai0017/pdf-toolkit/pkg/logger"
	"github.com/feichai0017/pdf-toolkit/web"
)

// PageHandler serves the informational pages and crawler metadata.
type PageHandler struct {
	templates map[string]*template.Template
	baseURL   string
	sitemap   []byte
	robots    string
	logger    logger.Logger
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

func NewPageHandler(baseURL string, log logger.Logger) (*PageHandler, error) {
	templates, err := web.LoadTemplates()
	if err != nil {
		return nil, err
	}

	sitemap, err := buildSitemap(baseURL, web.Pages)
	if err != nil {
		return nil, err
	}

	return &PageHandler{
		templates: templates,
		baseURL:   baseURL,
		sitemap:   sitemap,
		robots:    fmt.Sprintf("User-agent: *\nAllow: /\n\nSitemap: %s/sitemap.xml\n", baseURL),
		logger:    log,
	}, nil
}

func buildSitemap(baseURL string, pages []web.Page) ([]byte, error) {
	set := urlSet{XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	for _, p := range pages {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        baseURL + p.Path,
			ChangeFreq: p.ChangeFreq,
			Priority:   strconv.FormatFloat(p.Priority, 'f', 1, 64),
		})
	}

	body, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to build sitemap: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// Page 渲染静态页面
func (h *PageHandler) Page(page web.Page) gin.HandlerFunc {
	tmpl := h.templates[page.Name]
	return func(c *gin.Context) {
		c.Render(http.StatusOK, render.HTML{
			Template: tmpl,
			Name:     "layout",
			Data: gin.H{
				"Page":    page,
				"BaseURL": h.baseURL,
				"Year":    time.Now().Year(),
			},
		})
	}
}

// Sitemap 返回 sitemap.xml
func (h *PageHandler) Sitemap(c *gin.Context) {
	c.Data(http.StatusOK, "application/xml; charset=utf-8", h.sitemap)
}

// Robots 返回 robots.txt
func (h *PageHandler) Robots(c *gin.Context) {
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(h.robots))
}

// Health 健康检查
func (h *PageHandler) Health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}
