package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/valter-silva-au/spec-workflow/internal/workflowpath"
)

// Action reports what a bootstrap step did.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionSkipped Action = "skipped"
	ActionFailed  Action = "failed"
)

// IgnoreResult describes the outcome of the ignore-file step.
type IgnoreResult struct {
	Action  Action `json:"action"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// PathsResult lists paths that were created and paths that already existed.
type PathsResult struct {
	Created []string `json:"created,omitempty"`
	Skipped []string `json:"skipped,omitempty"`
}

// BootstrapResult holds the outcome of every bootstrap step.
type BootstrapResult struct {
	Directories PathsResult  `json:"directories"`
	Templates   PathsResult  `json:"templates"`
	Ignore      IgnoreResult `json:"ignore"`
}

// Changed reports whether the call created or modified anything on disk.
func (r *BootstrapResult) Changed() bool {
	return len(r.Directories.Created) > 0 || len(r.Templates.Created) > 0 ||
		r.Ignore.Action == ActionCreated || r.Ignore.Action == ActionUpdated
}

// EnsuredRoots remembers which project roots already had their ignore file
// checked. Its lifetime is the caller's session: create one per App (or per
// test) and pass it to NewBootstrapper.
type EnsuredRoots struct {
	mu    sync.Mutex
	roots map[string]bool
}

// NewEnsuredRoots creates an empty cache.
func NewEnsuredRoots() *EnsuredRoots {
	return &EnsuredRoots{roots: make(map[string]bool)}
}

// Contains reports whether root was already ensured.
func (e *EnsuredRoots) Contains(root string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.roots[lockKey(root)]
}

// Mark records root as ensured.
func (e *EnsuredRoots) Mark(root string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.roots[lockKey(root)] = true
}

// Reset forgets every root.
func (e *EnsuredRoots) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.roots = make(map[string]bool)
}

// BootstrapOptions configures a Bootstrapper.
type BootstrapOptions struct {
	// ManageIgnore enables the ignore-file step.
	ManageIgnore bool
	// CreateIgnore allows creating .gitignore when the repository has none.
	CreateIgnore bool
	// HomeDir bounds the upward search for the repository root. Defaults to
	// the user's home directory.
	HomeDir string
}

// Bootstrapper idempotently creates the workflow directory layout, copies
// the default templates and ensures the ignore-file entry.
type Bootstrapper interface {
	Bootstrap(ctx context.Context, projectRoot string) (*BootstrapResult, error)
}

type bootstrapper struct {
	opts    BootstrapOptions
	ensured *EnsuredRoots
	writer  *FileWriter
	tmpl    TemplateProvider
	events  EventLogger
}

// NewBootstrapper creates a Bootstrapper. ensured must be non-nil; tmpl and
// events may be nil.
func NewBootstrapper(opts BootstrapOptions, ensured *EnsuredRoots, writer *FileWriter, tmpl TemplateProvider, events EventLogger) Bootstrapper {
	if opts.HomeDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			opts.HomeDir = home
		}
	}
	return &bootstrapper{
		opts:    opts,
		ensured: ensured,
		writer:  writer,
		tmpl:    tmpl,
		events:  events,
	}
}

// Bootstrap brings projectRoot to the canonical layout. Calling it again
// converges to the same state and reports the satisfied parts as skipped.
// Only failures to create directories or templates are returned as errors;
// an ignore-file problem is reported in the result.
func (b *bootstrapper) Bootstrap(ctx context.Context, projectRoot string) (*BootstrapResult, error) {
	result := &BootstrapResult{}

	for _, dir := range workflowpath.RequiredDirs(projectRoot) {
		created, err := ensureDir(dir)
		if err != nil {
			return nil, fmt.Errorf("bootstrapping workflow: creating directory %s: %w", dir, err)
		}
		if created {
			result.Directories.Created = append(result.Directories.Created, dir)
		} else {
			result.Directories.Skipped = append(result.Directories.Skipped, dir)
		}
	}

	if b.tmpl != nil {
		if err := b.copyTemplates(ctx, projectRoot, &result.Templates); err != nil {
			return nil, err
		}
	}

	result.Ignore = b.ensureIgnore(ctx, projectRoot)

	if b.events != nil && result.Changed() {
		_ = b.events.LogEvent("workflow.bootstrapped", map[string]any{
			"project":           projectRoot,
			"directories_added": len(result.Directories.Created),
			"templates_added":   len(result.Templates.Created),
			"ignore_action":     string(result.Ignore.Action),
		})
	}

	return result, nil
}

func (b *bootstrapper) copyTemplates(ctx context.Context, projectRoot string, res *PathsResult) error {
	for _, doc := range TemplateDocuments() {
		target := workflowpath.TemplatePath(projectRoot, string(doc))
		if _, err := os.Stat(target); err == nil {
			res.Skipped = append(res.Skipped, target)
			continue
		}
		content, err := b.tmpl.DefaultTemplate(doc)
		if err != nil {
			return fmt.Errorf("bootstrapping workflow: %w", err)
		}
		if err := b.writer.WriteFile(ctx, target, []byte(content), 0o644); err != nil {
			return fmt.Errorf("bootstrapping workflow: %w", err)
		}
		res.Created = append(res.Created, target)
	}
	return nil
}

func (b *bootstrapper) ensureIgnore(ctx context.Context, projectRoot string) IgnoreResult {
	if !b.opts.ManageIgnore {
		return IgnoreResult{Action: ActionSkipped, Message: "ignore-file management disabled"}
	}
	if b.ensured.Contains(projectRoot) {
		return IgnoreResult{Action: ActionSkipped, Message: "ignore file already ensured in this session"}
	}

	res := b.updateIgnoreFile(ctx, projectRoot)
	if res.Action != ActionFailed {
		b.ensured.Mark(projectRoot)
	}
	return res
}

func (b *bootstrapper) updateIgnoreFile(ctx context.Context, projectRoot string) IgnoreResult {
	vcsRoot, ok := findVCSRoot(projectRoot, b.opts.HomeDir)
	if !ok {
		return IgnoreResult{Action: ActionSkipped, Message: "no git repository found; ignore file not managed"}
	}
	path := filepath.Join(vcsRoot, ".gitignore")

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return IgnoreResult{Action: ActionFailed, Path: path, Message: fmt.Sprintf("reading %s: %v", path, err)}
		}
		if !b.opts.CreateIgnore {
			return IgnoreResult{Action: ActionSkipped, Path: path, Message: ".gitignore does not exist and creation is disabled"}
		}
		if err := b.writer.WriteFile(ctx, path, []byte(ignoreBlock("\n")), 0o644); err != nil {
			return IgnoreResult{Action: ActionFailed, Path: path, Message: err.Error()}
		}
		return IgnoreResult{Action: ActionCreated, Path: path, Message: "created .gitignore with " + IgnorePattern}
	}

	content := string(data)
	if HasIgnoreEntry(content) {
		return IgnoreResult{Action: ActionSkipped, Path: path, Message: IgnorePattern + " already present in .gitignore"}
	}
	if err := b.writer.WriteFile(ctx, path, []byte(AppendIgnoreEntry(content)), 0o644); err != nil {
		return IgnoreResult{Action: ActionFailed, Path: path, Message: err.Error()}
	}
	return IgnoreResult{Action: ActionUpdated, Path: path, Message: "added " + IgnorePattern + " to .gitignore"}
}

// findVCSRoot walks up from start looking for a .git entry (a directory, or
// a file in worktrees). The walk stops before home and after the filesystem
// root.
func findVCSRoot(start, home string) (string, bool) {
	dir := filepath.Clean(start)
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	if home != "" {
		home = filepath.Clean(home)
	}
	for {
		if home != "" && dir == home {
			return "", false
		}
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// ensureDir creates a directory if it does not exist. Returns true if created.
func ensureDir(path string) (bool, error) {
	if info, err := os.Stat(path); err == nil {
		if !info.IsDir() {
			return false, fmt.Errorf("%s exists and is not a directory", path)
		}
		return false, nil
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return false, err
	}
	return true, nil
}
