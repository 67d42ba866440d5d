package cli

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/valter-silva-au/spec-workflow/internal/core"
	"github.com/valter-silva-au/spec-workflow/internal/observability"
	"github.com/valter-silva-au/spec-workflow/internal/storage"
	"github.com/valter-silva-au/spec-workflow/internal/watch"
	"github.com/valter-silva-au/spec-workflow/internal/workflowpath"
	"github.com/valter-silva-au/spec-workflow/pkg/models"
)

const testTasksDoc = `# Tasks

- [ ] 1 Authentication
  - [x] 1.1 Add login form
  - [ ] 1.2 Add session store
    - _Requirements: 1.1, 2.3_
    - _Leverage: internal/storage_
  - [-] 1.3 Add logout
`

// captureStdout captures stdout output during fn execution.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("creating pipe: %v", err)
	}
	os.Stdout = w
	// Restored even if fn stops the test with t.Fatal.
	defer func() { os.Stdout = origStdout }()

	fn()

	w.Close()
	os.Stdout = origStdout

	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading pipe: %v", err)
	}
	return string(out)
}

// useProject points the package-level services at a fresh project in a temp
// directory and restores the previous values when the test ends.
func useProject(t *testing.T) string {
	t.Helper()

	origRoot, origConfig, origConfigMgr := ProjectRoot, Config, ConfigMgr
	origBoot, origTmpl := Bootstrapper, Templates
	origSpecs, origTasks, origApprovals, origHub := Specs, Tasks, Approvals, ChangeHub
	origLog, origAlerts, origMetrics, origNotifier := EventLog, AlertEngine, MetricsCalc, Notifier
	t.Cleanup(func() {
		ProjectRoot, Config, ConfigMgr = origRoot, origConfig, origConfigMgr
		Bootstrapper, Templates = origBoot, origTmpl
		Specs, Tasks, Approvals, ChangeHub = origSpecs, origTasks, origApprovals, origHub
		EventLog, AlertEngine, MetricsCalc, Notifier = origLog, origAlerts, origMetrics, origNotifier
	})

	root := t.TempDir()
	locker := core.NewDocLocker(workflowpath.LocksDir(root))
	writer := core.NewFileWriter(models.WriteConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond})

	ProjectRoot = root
	Config = core.DefaultConfig()
	ConfigMgr = core.NewConfigurationManager(root)
	Templates = core.NewTemplateProvider(root)
	Bootstrapper = core.NewBootstrapper(core.BootstrapOptions{
		ManageIgnore: true,
		CreateIgnore: true,
		HomeDir:      filepath.Dir(root),
	}, core.NewEnsuredRoots(), writer, Templates, nil)
	Specs = core.NewSpecManager(root, locker, writer, nil)
	Tasks = core.NewTaskService(root, locker, writer, nil)
	Approvals = core.NewApprovalManager(storage.NewApprovalStore(root, writer.WriteFile), locker, nil)
	ChangeHub = watch.NewHub(8)

	EventLog = nil
	AlertEngine = nil
	MetricsCalc = nil
	Notifier = nil
	return root
}

// writeSpecDoc writes a spec document under the project root.
func writeSpecDoc(t *testing.T, root, spec string, doc models.DocumentType, content string) string {
	t.Helper()
	path := workflowpath.SpecDocPath(root, spec, string(doc))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// metricsMock implements observability.MetricsCalculator for tests.
type metricsMock struct {
	calcFn func(since time.Time) (*observability.Metrics, error)
}

func (m *metricsMock) Calculate(since time.Time) (*observability.Metrics, error) {
	return m.calcFn(since)
}

// alertsMock implements observability.AlertEngine for tests.
type alertsMock struct {
	alerts []observability.Alert
	err    error
}

func (m *alertsMock) Evaluate() ([]observability.Alert, error) {
	return m.alerts, m.err
}
