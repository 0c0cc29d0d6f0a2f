package daily

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/gosimple/slug"
	"github.com/ncruces/go-strftime"

	"github.com/starford/notevault/internal/apperr"
	"github.com/starford/notevault/internal/vaultpath"
)

// TemplateRenderer renders text/template files. Relative template paths are
// resolved inside the vault; absolute ones are used as configured.
type TemplateRenderer struct {
	root vaultpath.Root
}

// NewTemplateRenderer returns a renderer for templates in root.
func NewTemplateRenderer(root vaultpath.Root) *TemplateRenderer {
	return &TemplateRenderer{root: root}
}

var funcs = template.FuncMap{
	"strftime": func(layout string, t time.Time) string { return strftime.Format(layout, t) },
	"slug":     slug.Make,
	"addDays":  func(n int, t time.Time) time.Time { return t.AddDate(0, 0, n) },
}

// Render implements Renderer.
func (r *TemplateRenderer) Render(ctx context.Context, templatePath string, data Data) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	file, err := r.locate(templatePath)
	if err != nil {
		return "", err
	}
	src, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: template %s: %w", apperr.ErrTemplate, templatePath, fs.ErrNotExist)
		}
		var pe *fs.PathError
		if errors.As(err, &pe) {
			err = pe.Err
		}
		return "", fmt.Errorf("%w: read %s: %v", apperr.ErrTemplate, templatePath, err)
	}

	tmpl, err := template.New(filepath.Base(templatePath)).
		Funcs(funcs).
		Option("missingkey=error").
		Parse(string(src))
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrTemplate, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrTemplate, err)
	}
	return buf.String(), nil
}

func (r *TemplateRenderer) locate(templatePath string) (string, error) {
	if filepath.IsAbs(templatePath) {
		return templatePath, nil
	}
	p, err := r.root.Resolve(templatePath)
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperr.ErrTemplate, err)
	}
	return p.Abs(), nil
}
