// Package web embeds the HTML templates of the informational pages.
package web

import (
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var files embed.FS

// Page is one informational page, also listed in the sitemap.
type Page struct {
	Path        string
	Name        string
	Title       string
	Description string
	ChangeFreq  string
	Priority    float64
}

// Pages 所有静态页面, 按导航顺序
var Pages = []Page{
	{Path: "/", Name: "index", Title: "Free Online PDF Tools", Description: "Convert images to PDF, PDF to images, merge, split and compress PDF files.", ChangeFreq: "weekly", Priority: 1.0},
	{Path: "/about", Name: "about", Title: "About", Description: "About the PDF toolkit.", ChangeFreq: "monthly", Priority: 0.5},
	{Path: "/privacy", Name: "privacy", Title: "Privacy Policy", Description: "How uploaded files are handled.", ChangeFreq: "yearly", Priority: 0.3},
	{Path: "/contact", Name: "contact", Title: "Contact", Description: "Get in touch.", ChangeFreq: "yearly", Priority: 0.3},
	{Path: "/terms", Name: "terms", Title: "Terms of Service", Description: "Terms of using the PDF toolkit.", ChangeFreq: "yearly", Priority: 0.3},
}

// LoadTemplates parses one template set per page, each combining the shared
// layout with the page body.
func LoadTemplates() (map[string]*template.Template, error) {
	set := make(map[string]*template.Template, len(Pages))
	for _, p := range Pages {
		t, err := template.ParseFS(files, "templates/layout.html", "templates/"+p.Name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", p.Name, err)
		}
		set[p.Name] = t
	}
	return set, nil
}
