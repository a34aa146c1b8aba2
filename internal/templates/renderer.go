package templates

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"sync"
	texttemplate "text/template"

	"github.com/yuin/goldmark"
)

//go:embed mail
var mailFS embed.FS

// Body is the rendered message content.
type Body struct {
	HTML string
	Text string // processed markdown, before HTML conversion
}

// BodyRenderer turns a template id and its data context into message content.
type BodyRenderer interface {
	RenderBody(templateID string, data map[string]any) (Body, error)
}

// MarkdownRenderer renders markdown text templates and wraps the resulting
// HTML in a layout.
type MarkdownRenderer struct {
	fs     fs.FS
	md     goldmark.Markdown
	funcs  texttemplate.FuncMap
	layout string

	templateCache map[string]*texttemplate.Template
	layoutCache   *template.Template

	mu sync.RWMutex
}

// NewMarkdownRenderer reads "<id>.md" templates and "layouts/base.html"
// from filesystem.
func NewMarkdownRenderer(filesystem fs.FS, funcs texttemplate.FuncMap) *MarkdownRenderer {
	return &MarkdownRenderer{
		fs:            filesystem,
		md:            goldmark.New(),
		funcs:         funcs,
		layout:        "layouts/base.html",
		templateCache: make(map[string]*texttemplate.Template),
	}
}

// NewDefaultRenderer renders the mail templates compiled into the binary.
func NewDefaultRenderer(site Site) *MarkdownRenderer {
	sub, err := fs.Sub(mailFS, "mail")
	if err != nil {
		panic(err)
	}
	return NewMarkdownRenderer(sub, Funcs(site))
}

func (r *MarkdownRenderer) RenderBody(templateID string, data map[string]any) (Body, error) {
	tmpl, err := r.getTemplate(templateID)
	if err != nil {
		return Body{}, err
	}

	var markdown bytes.Buffer
	if err := tmpl.Execute(&markdown, data); err != nil {
		return Body{}, fmt.Errorf("execute template: %w", err)
	}

	var content bytes.Buffer
	if err := r.md.Convert(markdown.Bytes(), &content); err != nil {
		return Body{}, fmt.Errorf("convert markdown: %w", err)
	}

	layout, err := r.getLayout()
	if err != nil {
		return Body{}, err
	}

	site, _ := data["site"].(Site)

	var html bytes.Buffer
	if err := layout.Execute(&html, map[string]any{
		"Content": template.HTML(content.String()),
		"Site":    site,
	}); err != nil {
		return Body{}, fmt.Errorf("execute layout: %w", err)
	}

	return Body{HTML: html.String(), Text: markdown.String()}, nil
}

func (r *MarkdownRenderer) getTemplate(id string) (*texttemplate.Template, error) {
	r.mu.RLock()
	if cached, ok := r.templateCache[id]; ok {
		r.mu.RUnlock()
		return cached, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.templateCache[id]; ok {
		return cached, nil
	}

	content, err := fs.ReadFile(r.fs, id+".md")
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", id, err)
	}

	tmpl, err := texttemplate.New(path.Base(id)).
		Option("missingkey=error").
		Funcs(r.funcs).
		Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", id, err)
	}

	r.templateCache[id] = tmpl
	return tmpl, nil
}

func (r *MarkdownRenderer) getLayout() (*template.Template, error) {
	r.mu.RLock()
	if r.layoutCache != nil {
		defer r.mu.RUnlock()
		return r.layoutCache, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.layoutCache != nil {
		return r.layoutCache, nil
	}

	content, err := fs.ReadFile(r.fs, r.layout)
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}

	layout, err := template.New("layout").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	r.layoutCache = layout
	return layout, nil
}
