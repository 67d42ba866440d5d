package core

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/valter-silva-au/spec-workflow/internal/workflowpath"
	"github.com/valter-silva-au/spec-workflow/pkg/models"
)

// recordingLogger is an EventLogger that keeps every event in memory.
type recordingLogger struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	Type string
	Data map[string]any
}

func (l *recordingLogger) LogEvent(eventType string, data map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, recordedEvent{Type: eventType, Data: data})
	return nil
}

func (l *recordingLogger) ofType(eventType string) []recordedEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []recordedEvent
	for _, e := range l.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func fastWriter() *FileWriter {
	return NewFileWriter(models.WriteConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond})
}

func testLocker(root string) *DocLocker {
	return NewDocLocker(workflowpath.LocksDir(root))
}

// writeSpecDoc writes a spec document, creating the spec directory.
func writeSpecDoc(t *testing.T, root, spec string, doc models.DocumentType, content string) string {
	t.Helper()
	path := workflowpath.SpecDocPath(root, spec, string(doc))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating spec dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}
