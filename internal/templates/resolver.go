package templates

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"
	"text/template"

	"ShopPulse/internal/models"
)

// Rendered is a fully resolved subject and body.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

// Resolver validates template data and renders subjects and bodies. It
// holds no mutable state and is safe for concurrent use.
type Resolver struct {
	registry Registry
	subjects map[string]*template.Template
	renderer BodyRenderer
	site     Site
}

func NewResolver(registry Registry, renderer BodyRenderer, site Site) (*Resolver, error) {
	subjects := make(map[string]*template.Template, len(registry))
	for name, cfg := range registry {
		tmpl, err := template.New(name).Parse(cfg.Subject)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: subject: %v", ErrInvalidRegistry, name, err)
		}
		subjects[name] = tmpl
	}

	return &Resolver{
		registry: registry,
		subjects: subjects,
		renderer: renderer,
		site:     site,
	}, nil
}

func (r *Resolver) Config(name string) (Config, error) {
	cfg, ok := r.registry[name]
	if !ok {
		return Config{}, fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	return cfg, nil
}

// Render checks every required field, resolves the subject and renders the
// body. All missing fields are reported together.
func (r *Resolver) Render(name string, data map[string]any) (Rendered, error) {
	cfg, err := r.Config(name)
	if err != nil {
		return Rendered{}, err
	}

	if missing := missingFields(cfg.Required, data); len(missing) > 0 {
		return Rendered{}, &MissingFieldsError{Template: name, Fields: missing}
	}

	subject, err := r.subject(name, data)
	if err != nil {
		return Rendered{}, fmt.Errorf("%w: %s: subject: %v", ErrTemplateRender, cfg.TemplateID, err)
	}

	ctx := make(map[string]any, len(data)+1)
	for k, v := range data {
		ctx[k] = v
	}
	ctx["site"] = r.site

	body, err := r.renderer.RenderBody(cfg.TemplateID, ctx)
	if err != nil {
		return Rendered{}, fmt.Errorf("%w: %s: %v", ErrTemplateRender, cfg.TemplateID, err)
	}

	return Rendered{Subject: subject, HTML: body.HTML, Text: body.Text}, nil
}

type subjectFields struct {
	OrderNumber string
	UserName    string
	SiteName    string
}

func (r *Resolver) subject(name string, data map[string]any) (string, error) {
	var buf bytes.Buffer
	err := r.subjects[name].Execute(&buf, subjectFields{
		OrderNumber: orderNumber(data["order"]),
		UserName:    userName(data["user"]),
		SiteName:    r.site.Name,
	})
	if err != nil {
		return "", err
	}

	subject := strings.TrimSpace(buf.String())
	if r.site.Name != "" && !strings.Contains(subject, r.site.Name) {
		subject = r.site.Name + " - " + subject
	}
	return subject, nil
}

func orderNumber(v any) string {
	switch o := v.(type) {
	case *models.Order:
		return o.Reference()
	case models.Order:
		return o.Reference()
	case map[string]any:
		if n, ok := o["orderNumber"].(string); ok && n != "" {
			return n
		}
		id, _ := o["id"].(string)
		return (&models.Order{ID: id}).Reference()
	}
	return ""
}

func userName(v any) string {
	switch u := v.(type) {
	case *models.User:
		if u != nil {
			return u.Name
		}
	case models.User:
		return u.Name
	case map[string]any:
		name, _ := u["name"].(string)
		return name
	}
	return ""
}

func missingFields(required []string, data map[string]any) []string {
	var missing []string
	for _, field := range required {
		if isNil(data[field]) {
			missing = append(missing, field)
		}
	}
	return missing
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
