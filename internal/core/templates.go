package core

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/valter-silva-au/spec-workflow/internal/workflowpath"
	"github.com/valter-silva-au/spec-workflow/pkg/models"
)

//go:embed templates
var templateFS embed.FS

// TemplateProvider returns document templates.
type TemplateProvider interface {
	// DefaultTemplate returns the built-in template for a document type.
	DefaultTemplate(doc models.DocumentType) (string, error)
	// Template returns the project's copy under templates/ when present and
	// the built-in default otherwise.
	Template(doc models.DocumentType) (string, error)
}

type templateProvider struct {
	projectRoot string
}

// NewTemplateProvider creates a TemplateProvider for the project. An empty
// projectRoot only serves built-in defaults.
func NewTemplateProvider(projectRoot string) TemplateProvider {
	return &templateProvider{projectRoot: projectRoot}
}

// TemplateDocuments lists every document type that has a template, spec
// documents first.
func TemplateDocuments() []models.DocumentType {
	docs := make([]models.DocumentType, 0, len(models.SpecDocuments)+len(models.SteeringDocuments))
	docs = append(docs, models.SpecDocuments...)
	docs = append(docs, models.SteeringDocuments...)
	return docs
}

func (p *templateProvider) DefaultTemplate(doc models.DocumentType) (string, error) {
	data, err := templateFS.ReadFile("templates/" + string(doc) + ".md")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("template for %q: %w", doc, ErrNotFound)
		}
		return "", fmt.Errorf("reading %s template: %w", doc, err)
	}
	return string(data), nil
}

func (p *templateProvider) Template(doc models.DocumentType) (string, error) {
	if p.projectRoot != "" {
		data, err := os.ReadFile(workflowpath.TemplatePath(p.projectRoot, string(doc)))
		if err == nil {
			return string(data), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("reading project %s template: %w", doc, err)
		}
	}
	return p.DefaultTemplate(doc)
}
