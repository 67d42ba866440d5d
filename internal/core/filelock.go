package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
)

// DocLocker serializes read-modify-write sequences on a single document.
// Within the process it uses one mutex per cleaned absolute path; across
// processes it holds an advisory flock on a sidecar file in lockDir. The
// sidecar lives outside the document's directory because documents are
// replaced by rename, which would orphan a lock held on the old inode.
type DocLocker struct {
	lockDir string

	mu    sync.Mutex
	paths map[string]*sync.Mutex
}

// NewDocLocker creates a DocLocker whose sidecar lock files live in lockDir.
// An empty lockDir disables the cross-process lock.
func NewDocLocker(lockDir string) *DocLocker {
	return &DocLocker{
		lockDir: lockDir,
		paths:   make(map[string]*sync.Mutex),
	}
}

// Lock acquires the exclusive region for path and returns the function that
// releases it. The unlock function must be called exactly once.
func (l *DocLocker) Lock(path string) (unlock func(), err error) {
	key := lockKey(path)

	l.mu.Lock()
	m, ok := l.paths[key]
	if !ok {
		m = &sync.Mutex{}
		l.paths[key] = m
	}
	l.mu.Unlock()

	m.Lock()

	if l.lockDir == "" {
		return m.Unlock, nil
	}

	if err := os.MkdirAll(l.lockDir, 0o750); err != nil {
		m.Unlock()
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	fl := flock.New(filepath.Join(l.lockDir, sidecarName(key)))
	if err := fl.Lock(); err != nil {
		m.Unlock()
		return nil, fmt.Errorf("acquiring file lock for %s: %w", path, err)
	}

	return func() {
		_ = fl.Unlock()
		m.Unlock()
	}, nil
}

func lockKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// sidecarName derives a stable, length-bounded file name from a lock key.
func sidecarName(key string) string {
	sum := sha256.Sum256([]byte(key))
	base := strings.TrimPrefix(filepath.Base(key), ".")
	return fmt.Sprintf("%s-%s.lock", base, hex.EncodeToString(sum[:8]))
}
