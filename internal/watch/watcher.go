package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/valter-silva-au/spec-workflow/internal/workflowpath"
)

// Watcher turns fsnotify events under the workflow root into ChangeEvents
// published on a Hub. Events for the same path are coalesced for the
// debounce interval. Dot-files and dot-directories (lock files, temp files
// from atomic writes, the event log) are ignored.
type Watcher struct {
	projectRoot string
	root        string
	hub         *Hub
	debounce    time.Duration
	logger      *slog.Logger

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*pendingChange
}

type pendingChange struct {
	op    Op
	timer *time.Timer
}

// NewWatcher creates a Watcher for the project's workflow directory. A nil
// logger uses slog.Default().
func NewWatcher(projectRoot string, hub *Hub, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	return &Watcher{
		projectRoot: projectRoot,
		root:        workflowpath.WorkflowRoot(projectRoot),
		hub:         hub,
		debounce:    debounce,
		logger:      logger,
		fsw:         fsw,
		pending:     make(map[string]*pendingChange),
	}, nil
}

// Run watches until ctx is cancelled. The workflow root must exist.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stop()

	if err := w.addRecursive(w.root); err != nil {
		return fmt.Errorf("watching %s: %w", w.root, err)
	}
	w.logger.Debug("watching workflow directory", "root", w.root)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) stop() {
	_ = w.fsw.Close()
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, p := range w.pending {
		p.timer.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil || rel == "." || ignored(rel) {
		return
	}

	var op Op
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreate
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn("watching new directory", "path", event.Name, "error", err)
			}
		}
	case event.Has(fsnotify.Write):
		op = OpModify
	case event.Has(fsnotify.Remove):
		op = OpDelete
	case event.Has(fsnotify.Rename):
		op = OpRename
	default:
		return
	}

	w.schedule(event.Name, op)
}

// schedule coalesces events per path. A create followed by writes is
// reported as a create.
func (w *Watcher) schedule(path string, op Op) {
	if w.debounce <= 0 {
		w.publish(path, op)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if p, ok := w.pending[path]; ok {
		if !(p.op == OpCreate && op == OpModify) {
			p.op = op
		}
		p.timer.Reset(w.debounce)
		return
	}
	p := &pendingChange{op: op}
	p.timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		cur, ok := w.pending[path]
		if ok {
			delete(w.pending, path)
		}
		w.mu.Unlock()
		if ok {
			w.publish(path, cur.op)
		}
	})
	w.pending[path] = p
}

func (w *Watcher) publish(path string, op Op) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return
	}
	ev := Classify(filepath.ToSlash(rel))
	ev.Op = op
	ev.Path = workflowpath.RelativeToProject(w.projectRoot, path)
	ev.Time = time.Now()
	w.logger.Debug("workflow change", "kind", ev.Kind, "op", ev.Op, "path", ev.Path)
	w.hub.Publish(ev)
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// ignored reports whether any element of the root-relative path is hidden.
func ignored(rel string) bool {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

// Classify maps a slash-separated path relative to the workflow root to the
// kind of change it represents. Op, Path and Time are left unset.
func Classify(rel string) ChangeEvent {
	parts := strings.Split(strings.Trim(rel, "/"), "/")
	ev := ChangeEvent{Kind: KindOther}

	switch parts[0] {
	case workflowpath.SpecsDirName:
		ev.Kind = KindSpec
		if len(parts) > 1 {
			ev.SpecName = parts[1]
		}
		if len(parts) > 2 {
			ev.Document = strings.TrimSuffix(parts[len(parts)-1], ".md")
		}
	case workflowpath.ApprovalsDirName:
		ev.Kind = KindApproval
		if len(parts) > 1 {
			ev.SpecName = parts[1]
		}
		if len(parts) > 2 {
			ev.Document = strings.TrimSuffix(parts[len(parts)-1], ".json")
		}
	case workflowpath.SteeringDirName:
		ev.Kind = KindSteering
		if len(parts) > 1 {
			ev.Document = strings.TrimSuffix(parts[1], ".md")
		}
	case workflowpath.TemplatesDirName:
		ev.Kind = KindTemplate
		if len(parts) > 1 {
			ev.Document = strings.TrimSuffix(parts[1], "-template.md")
		}
	case workflowpath.ArchiveDirName:
		ev.Kind = KindArchive
		if len(parts) > 2 && parts[1] == workflowpath.SpecsDirName {
			ev.SpecName = parts[2]
		}
	}
	return ev
}
