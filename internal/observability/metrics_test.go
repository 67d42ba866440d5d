package observability

import (
	"path/filepath"
	"testing"
	"time"
)

// newTestLog creates an event log in a temp dir and writes events to it.
func newTestLog(t *testing.T, events ...Event) EventLog {
	t.Helper()
	el, err := NewJSONLEventLog(filepath.Join(t.TempDir(), "events.jsonl"))
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	t.Cleanup(func() { _ = el.Close() })
	for _, e := range events {
		if err := el.Write(e); err != nil {
			t.Fatalf("writing event: %v", err)
		}
	}
	return el
}

func TestMetrics_CountsWorkflowEvents(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	el := newTestLog(t,
		Event{Time: base, Level: "INFO", Type: "workflow.bootstrapped"},
		Event{Time: base.Add(1 * time.Minute), Level: "INFO", Type: "spec.document_written", Data: map[string]any{"spec": "auth", "type": "requirements"}},
		Event{Time: base.Add(2 * time.Minute), Level: "INFO", Type: "approval.created", Data: map[string]any{"spec": "auth", "id": "a1", "type": "requirements"}},
		Event{Time: base.Add(3 * time.Minute), Level: "INFO", Type: "approval.responded", Data: map[string]any{"spec": "auth", "id": "a1", "to": "needs-revision"}},
		Event{Time: base.Add(4 * time.Minute), Level: "INFO", Type: "approval.responded", Data: map[string]any{"spec": "auth", "id": "a1", "to": "approved"}},
		Event{Time: base.Add(5 * time.Minute), Level: "INFO", Type: "approval.created", Data: map[string]any{"spec": "auth", "id": "a2", "type": "design"}},
		Event{Time: base.Add(6 * time.Minute), Level: "WARN", Type: "approval.duplicate_active", Data: map[string]any{"spec": "auth", "existing_id": "a2", "type": "design"}},
		Event{Time: base.Add(7 * time.Minute), Level: "INFO", Type: "approval.responded", Data: map[string]any{"spec": "auth", "id": "a2", "to": "rejected"}},
		Event{Time: base.Add(8 * time.Minute), Level: "INFO", Type: "approval.deleted", Data: map[string]any{"spec": "auth", "id": "a2"}},
		Event{Time: base.Add(9 * time.Minute), Level: "INFO", Type: "task.status_changed", Data: map[string]any{"spec": "auth", "task_id": "1", "new_status": "in-progress"}},
		Event{Time: base.Add(10 * time.Minute), Level: "INFO", Type: "task.status_changed", Data: map[string]any{"spec": "auth", "task_id": "1", "new_status": "completed"}},
		Event{Time: base.Add(11 * time.Minute), Level: "INFO", Type: "spec.archived", Data: map[string]any{"spec": "auth"}},
	)

	m, err := NewMetricsCalculator(el).Calculate(base.Add(-time.Hour))
	if err != nil {
		t.Fatalf("calculating metrics: %v", err)
	}

	checks := []struct {
		name      string
		got, want int
	}{
		{"Bootstraps", m.Bootstraps, 1},
		{"DocumentsWritten", m.DocumentsWritten, 1},
		{"ApprovalsCreated", m.ApprovalsCreated, 2},
		{"ApprovalsApproved", m.ApprovalsApproved, 1},
		{"ApprovalsRejected", m.ApprovalsRejected, 1},
		{"RevisionRequests", m.RevisionRequests, 1},
		{"ApprovalsDeleted", m.ApprovalsDeleted, 1},
		{"DuplicateRequests", m.DuplicateRequests, 1},
		{"TaskTransitions", m.TaskTransitions, 2},
		{"SpecsArchived", m.SpecsArchived, 1},
		{"EventCount", m.EventCount, 12},
		{"ApprovalsByType[design]", m.ApprovalsByType["design"], 1},
		{"TasksByStatus[completed]", m.TasksByStatus["completed"], 1},
		{"DocumentsByType[requirements]", m.DocumentsByType["requirements"], 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %d, want %d", c.name, c.got, c.want)
		}
	}

	if m.OldestEvent == nil || !m.OldestEvent.Equal(base) {
		t.Errorf("OldestEvent = %v, want %v", m.OldestEvent, base)
	}
	if m.NewestEvent == nil || !m.NewestEvent.Equal(base.Add(11*time.Minute)) {
		t.Errorf("NewestEvent = %v", m.NewestEvent)
	}
}

func TestMetrics_SinceExcludesOlderEvents(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	el := newTestLog(t,
		Event{Time: base, Level: "INFO", Type: "approval.created", Data: map[string]any{"id": "old"}},
		Event{Time: base.Add(48 * time.Hour), Level: "INFO", Type: "approval.created", Data: map[string]any{"id": "new"}},
	)

	m, err := NewMetricsCalculator(el).Calculate(base.Add(24 * time.Hour))
	if err != nil {
		t.Fatalf("calculating metrics: %v", err)
	}
	if m.ApprovalsCreated != 1 || m.EventCount != 1 {
		t.Errorf("expected only the newer event, got %+v", m)
	}
}

func TestMetrics_EmptyLog(t *testing.T) {
	m, err := NewMetricsCalculator(newTestLog(t)).Calculate(time.Time{})
	if err != nil {
		t.Fatalf("calculating metrics: %v", err)
	}
	if m.EventCount != 0 || m.OldestEvent != nil || m.NewestEvent != nil {
		t.Errorf("expected empty metrics, got %+v", m)
	}
	if m.TasksByStatus == nil || m.ApprovalsByType == nil || m.DocumentsByType == nil {
		t.Error("maps should be initialised for JSON output")
	}
}
