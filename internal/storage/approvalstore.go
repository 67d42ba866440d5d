package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/valter-silva-au/spec-workflow/internal/workflowpath"
	"github.com/valter-silva-au/spec-workflow/pkg/models"
)

// WriteFunc replaces the file at path with data. The retrying atomic writer
// in core satisfies it; a nil WriteFunc falls back to os.WriteFile.
type WriteFunc func(ctx context.Context, path string, data []byte, perm os.FileMode) error

// ApprovalStore persists approval requests as one JSON document per record at
// approvals/<spec>/<id>.json. It performs no locking or state validation.
// List and ListAll skip records that cannot be read or parsed.
type ApprovalStore interface {
	Save(ctx context.Context, req *models.ApprovalRequest) error
	// Get returns an error wrapping fs.ErrNotExist when the record is absent.
	Get(specName, id string) (*models.ApprovalRequest, error)
	List(specName string) ([]models.ApprovalRequest, error)
	ListAll() ([]models.ApprovalRequest, error)
	Delete(specName, id string) error
	Path(specName, id string) string
}

type fileApprovalStore struct {
	projectRoot string
	write       WriteFunc
}

// NewApprovalStore creates an ApprovalStore rooted at the project's workflow
// directory.
func NewApprovalStore(projectRoot string, write WriteFunc) ApprovalStore {
	if write == nil {
		write = func(_ context.Context, path string, data []byte, perm os.FileMode) error {
			return os.WriteFile(path, data, perm)
		}
	}
	return &fileApprovalStore{projectRoot: projectRoot, write: write}
}

func (s *fileApprovalStore) Path(specName, id string) string {
	return workflowpath.ApprovalPath(s.projectRoot, specName, id)
}

func (s *fileApprovalStore) Save(ctx context.Context, req *models.ApprovalRequest) error {
	if req.ID == "" || req.SpecName == "" {
		return fmt.Errorf("saving approval: id and spec name must not be empty")
	}
	if err := os.MkdirAll(workflowpath.ApprovalSpecDir(s.projectRoot, req.SpecName), 0o755); err != nil {
		return fmt.Errorf("saving approval %s: creating directory: %w", req.ID, err)
	}
	if req.Comments == nil {
		req.Comments = []models.ApprovalComment{}
	}
	data, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return fmt.Errorf("saving approval %s: marshalling: %w", req.ID, err)
	}
	data = append(data, '\n')
	if err := s.write(ctx, s.Path(req.SpecName, req.ID), data, 0o644); err != nil {
		return fmt.Errorf("saving approval %s: %w", req.ID, err)
	}
	return nil
}

func (s *fileApprovalStore) Get(specName, id string) (*models.ApprovalRequest, error) {
	return readApproval(s.Path(specName, id))
}

func readApproval(path string) (*models.ApprovalRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading approval %s: %w", path, err)
	}
	var req models.ApprovalRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("parsing approval %s: %w", path, err)
	}
	if req.Comments == nil {
		req.Comments = []models.ApprovalComment{}
	}
	return &req, nil
}

func (s *fileApprovalStore) List(specName string) ([]models.ApprovalRequest, error) {
	out, err := s.listDir(workflowpath.ApprovalSpecDir(s.projectRoot, specName))
	if err != nil {
		return nil, err
	}
	sortApprovals(out)
	return out, nil
}

func (s *fileApprovalStore) ListAll() ([]models.ApprovalRequest, error) {
	entries, err := os.ReadDir(workflowpath.ApprovalsDir(s.projectRoot))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing approvals: %w", err)
	}
	var out []models.ApprovalRequest
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		recs, err := s.listDir(filepath.Join(workflowpath.ApprovalsDir(s.projectRoot), e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	sortApprovals(out)
	return out, nil
}

func (s *fileApprovalStore) listDir(dir string) ([]models.ApprovalRequest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing approvals in %s: %w", dir, err)
	}
	var out []models.ApprovalRequest
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			continue
		}
		path := filepath.Join(dir, name)
		req, err := readApproval(path)
		if err != nil {
			// One unreadable record must not hide the rest; Get still reports it.
			slog.Warn("skipping unreadable approval record", "path", path, "error", err)
			continue
		}
		out = append(out, *req)
	}
	return out, nil
}

func (s *fileApprovalStore) Delete(specName, id string) error {
	if err := os.Remove(s.Path(specName, id)); err != nil {
		return fmt.Errorf("deleting approval %s: %w", id, err)
	}
	// Drop the per-spec directory once it is empty; a failure just leaves it.
	_ = os.Remove(workflowpath.ApprovalSpecDir(s.projectRoot, specName))
	return nil
}

// sortApprovals orders records oldest first, by id within the same instant.
func sortApprovals(reqs []models.ApprovalRequest) {
	sort.Slice(reqs, func(i, j int) bool {
		if !reqs[i].CreatedAt.Equal(reqs[j].CreatedAt) {
			return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
		}
		return reqs[i].ID < reqs[j].ID
	})
}
