package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/valter-silva-au/spec-workflow/internal/workflowpath"
	"github.com/valter-silva-au/spec-workflow/pkg/models"
)

// SpecManager catalogues the specs of a project and reads and writes their
// documents.
type SpecManager interface {
	List(includeArchived bool) ([]models.SpecInfo, error)
	Status(name string) (*models.SpecInfo, error)
	WriteDocument(ctx context.Context, name string, doc models.DocumentType, content string) (string, error)
	ReadDocument(name string, doc models.DocumentType) (string, error)
	Archive(name string) error
	Unarchive(name string) error
	SteeringStatus() ([]models.DocumentInfo, error)
}

type specManager struct {
	projectRoot string
	locker      *DocLocker
	writer      *FileWriter
	events      EventLogger
}

// NewSpecManager creates a SpecManager for the project. events may be nil.
func NewSpecManager(projectRoot string, locker *DocLocker, writer *FileWriter, events EventLogger) SpecManager {
	return &specManager{
		projectRoot: projectRoot,
		locker:      locker,
		writer:      writer,
		events:      events,
	}
}

func (m *specManager) logEvent(eventType string, data map[string]any) {
	if m.events != nil {
		_ = m.events.LogEvent(eventType, data)
	}
}

// List returns every active spec sorted by name, followed by the archived
// ones when includeArchived is set.
func (m *specManager) List(includeArchived bool) ([]models.SpecInfo, error) {
	specs, err := m.listDir(workflowpath.SpecsDir(m.projectRoot), false)
	if err != nil {
		return nil, err
	}
	if includeArchived {
		archived, err := m.listDir(workflowpath.ArchiveSpecsDir(m.projectRoot), true)
		if err != nil {
			return nil, err
		}
		specs = append(specs, archived...)
	}
	return specs, nil
}

func (m *specManager) listDir(dir string, archived bool) ([]models.SpecInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing specs in %s: %w", dir, err)
	}
	var out []models.SpecInfo
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := m.describe(e.Name(), archived)
		if err != nil {
			return nil, err
		}
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Status describes one spec, looking in the archive when it is not active.
func (m *specManager) Status(name string) (*models.SpecInfo, error) {
	if err := ValidateSpecName(name); err != nil {
		return nil, err
	}
	if isDir(workflowpath.SpecDir(m.projectRoot, name)) {
		return m.describe(name, false)
	}
	if isDir(workflowpath.ArchivedSpecDir(m.projectRoot, name)) {
		return m.describe(name, true)
	}
	return nil, fmt.Errorf("spec %q: %w", name, ErrNotFound)
}

func (m *specManager) specDir(name string, archived bool) string {
	if archived {
		return workflowpath.ArchivedSpecDir(m.projectRoot, name)
	}
	return workflowpath.SpecDir(m.projectRoot, name)
}

func (m *specManager) describe(name string, archived bool) (*models.SpecInfo, error) {
	dir := m.specDir(name, archived)
	info := &models.SpecInfo{Name: name, Archived: archived}

	if st, err := os.Stat(dir); err == nil {
		info.LastModified = st.ModTime()
	}

	for _, doc := range models.SpecDocuments {
		path := filepath.Join(dir, string(doc)+".md")
		di := documentInfo(m.projectRoot, doc, path)
		if di.LastModified != nil && di.LastModified.After(info.LastModified) {
			info.LastModified = *di.LastModified
		}
		info.Documents = append(info.Documents, di)

		if doc == models.DocTasks && di.Exists {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("reading tasks for spec %q: %w", name, err)
			}
			summary := ParseTaskDocument(string(data)).Summary
			info.TaskSummary = &summary
		}
	}

	info.Phase = specPhase(info)
	return info, nil
}

func documentInfo(projectRoot string, doc models.DocumentType, path string) models.DocumentInfo {
	di := models.DocumentInfo{Type: doc, Path: workflowpath.RelativeToProject(projectRoot, path)}
	if st, err := os.Stat(path); err == nil && !st.IsDir() {
		mod := st.ModTime()
		di.Exists = true
		di.LastModified = &mod
	}
	return di
}

// specPhase derives the phase from the first missing document, then from the
// task summary once all three exist.
func specPhase(info *models.SpecInfo) models.SpecPhase {
	switch {
	case !info.HasDocument(models.DocRequirements):
		return models.PhaseRequirements
	case !info.HasDocument(models.DocDesign):
		return models.PhaseDesign
	case !info.HasDocument(models.DocTasks):
		return models.PhaseTasks
	}
	if s := info.TaskSummary; s != nil && s.Total > 0 && s.Completed == s.Total {
		return models.PhaseCompleted
	}
	return models.PhaseImplementation
}

func (m *specManager) documentPath(name string, doc models.DocumentType) (string, error) {
	if doc.IsSteering() {
		return workflowpath.SteeringDocPath(m.projectRoot, string(doc)), nil
	}
	switch doc {
	case models.DocRequirements, models.DocDesign, models.DocTasks:
	default:
		return "", fmt.Errorf("unknown document type %q: %w", doc, ErrValidation)
	}
	if err := ValidateSpecName(name); err != nil {
		return "", err
	}
	return workflowpath.SpecDocPath(m.projectRoot, name, string(doc)), nil
}

// WriteDocument atomically replaces a spec or steering document and returns
// its path. Steering documents ignore name. The spec directory is created on
// first write.
func (m *specManager) WriteDocument(ctx context.Context, name string, doc models.DocumentType, content string) (string, error) {
	path, err := m.documentPath(name, doc)
	if err != nil {
		return "", err
	}
	if !doc.IsSteering() && isDir(workflowpath.ArchivedSpecDir(m.projectRoot, name)) {
		return "", fmt.Errorf("spec %q is archived; unarchive it first: %w", name, ErrValidation)
	}

	unlock, err := m.locker.Lock(path)
	if err != nil {
		return "", err
	}
	defer unlock()

	dir := workflowpath.SteeringDir(m.projectRoot)
	if !doc.IsSteering() {
		dir = workflowpath.SpecDir(m.projectRoot, name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	if err := m.writer.WriteFile(ctx, path, []byte(content), 0o644); err != nil {
		return "", err
	}

	m.logEvent("spec.document_written", map[string]any{
		"spec":  name,
		"type":  string(doc),
		"path":  workflowpath.RelativeToProject(m.projectRoot, path),
		"bytes": len(content),
	})
	return path, nil
}

func (m *specManager) ReadDocument(name string, doc models.DocumentType) (string, error) {
	path, err := m.documentPath(name, doc)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%s document for %q: %w", doc, name, ErrNotFound)
		}
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

// Archive moves specs/<name> to archive/specs/<name>.
func (m *specManager) Archive(name string) error {
	if err := ValidateSpecName(name); err != nil {
		return err
	}
	if err := m.move(workflowpath.SpecDir(m.projectRoot, name), workflowpath.ArchivedSpecDir(m.projectRoot, name), name); err != nil {
		return fmt.Errorf("archiving spec: %w", err)
	}
	m.logEvent("spec.archived", map[string]any{"spec": name})
	return nil
}

// Unarchive moves archive/specs/<name> back to specs/<name>.
func (m *specManager) Unarchive(name string) error {
	if err := ValidateSpecName(name); err != nil {
		return err
	}
	if err := m.move(workflowpath.ArchivedSpecDir(m.projectRoot, name), workflowpath.SpecDir(m.projectRoot, name), name); err != nil {
		return fmt.Errorf("unarchiving spec: %w", err)
	}
	m.logEvent("spec.unarchived", map[string]any{"spec": name})
	return nil
}

func (m *specManager) move(from, to, name string) error {
	if !isDir(from) {
		return fmt.Errorf("spec %q: %w", name, ErrNotFound)
	}
	if _, err := os.Stat(to); err == nil {
		return fmt.Errorf("%s already exists: %w", workflowpath.RelativeToProject(m.projectRoot, to), ErrValidation)
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return err
	}
	return os.Rename(from, to)
}

// SteeringStatus reports which steering documents exist.
func (m *specManager) SteeringStatus() ([]models.DocumentInfo, error) {
	out := make([]models.DocumentInfo, 0, len(models.SteeringDocuments))
	for _, doc := range models.SteeringDocuments {
		out = append(out, documentInfo(m.projectRoot, doc, workflowpath.SteeringDocPath(m.projectRoot, string(doc))))
	}
	return out, nil
}

func isDir(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}
