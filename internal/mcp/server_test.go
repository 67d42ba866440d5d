package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/valter-silva-au/spec-workflow/internal/core"
	"github.com/valter-silva-au/spec-workflow/internal/observability"
	"github.com/valter-silva-au/spec-workflow/internal/storage"
	"github.com/valter-silva-au/spec-workflow/internal/workflowpath"
	"github.com/valter-silva-au/spec-workflow/pkg/models"
)

type fakeMetricsCalculator struct {
	metrics *observability.Metrics
}

func (f *fakeMetricsCalculator) Calculate(_ time.Time) (*observability.Metrics, error) {
	return f.metrics, nil
}

type fakeAlertEngine struct {
	alerts []observability.Alert
}

func (f *fakeAlertEngine) Evaluate() ([]observability.Alert, error) {
	return f.alerts, nil
}

// newTestServer wires real services over a temp project.
func newTestServer(t *testing.T) (*Server, Services, string) {
	t.Helper()
	root := t.TempDir()
	locker := core.NewDocLocker(workflowpath.LocksDir(root))
	writer := core.NewFileWriter(models.WriteConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond})
	svc := Services{
		Specs:     core.NewSpecManager(root, locker, writer, nil),
		Tasks:     core.NewTaskService(root, locker, writer, nil),
		Approvals: core.NewApprovalManager(storage.NewApprovalStore(root, writer.WriteFile), locker, nil),
		Templates: core.NewTemplateProvider(root),
	}
	return NewServer(svc, "test"), svc, root
}

// callTool is a helper that connects a client to the server and calls a tool.
func callTool(t *testing.T, srv *Server, toolName string, args map[string]any) *gomcp.CallToolResult {
	t.Helper()

	ctx := context.Background()
	client := gomcp.NewClient(&gomcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)

	t1, t2 := gomcp.NewInMemoryTransports()

	// Connect server (non-blocking).
	go func() {
		_ = srv.MCPServer().Run(ctx, t1)
	}()

	session, err := client.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer session.Close()

	result, err := session.CallTool(ctx, &gomcp.CallToolParams{
		Name:      toolName,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("call tool %s: %v", toolName, err)
	}

	return result
}

// callToolAllowError is like callTool but returns nil instead of failing when
// the tool call returns an error (e.g. schema validation failure).
func callToolAllowError(t *testing.T, srv *Server, toolName string, args map[string]any) *gomcp.CallToolResult {
	t.Helper()

	ctx := context.Background()
	client := gomcp.NewClient(&gomcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)

	t1, t2 := gomcp.NewInMemoryTransports()

	go func() {
		_ = srv.MCPServer().Run(ctx, t1)
	}()

	session, err := client.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer session.Close()

	result, err := session.CallTool(ctx, &gomcp.CallToolParams{
		Name:      toolName,
		Arguments: args,
	})
	if err != nil {
		// Protocol-level error (e.g. schema validation) -- return nil.
		return nil
	}

	return result
}

// decodeResult unmarshals the tool result, with Data decoded into data.
func decodeResult(t *testing.T, result *gomcp.CallToolResult, data any) toolResult {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}

	raw := []byte(extractText(result))
	if result.StructuredContent != nil {
		raw, _ = json.Marshal(result.StructuredContent)
	}
	var envelope struct {
		toolResult
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		t.Fatalf("unmarshalling result: %v (raw: %s)", err, raw)
	}
	if data != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, data); err != nil {
			t.Fatalf("unmarshalling data: %v (raw: %s)", err, envelope.Data)
		}
	}
	return envelope.toolResult
}

func writeTasks(t *testing.T, root, spec, content string) {
	t.Helper()
	path := workflowpath.SpecDocPath(root, spec, string(models.DocTasks))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// --- Tests ---

func TestSpecListEmpty(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var specs []models.SpecInfo
	out := decodeResult(t, callTool(t, srv, "spec_list", map[string]any{}), &specs)
	if !out.Success || len(specs) != 0 {
		t.Errorf("out = %+v, specs = %+v", out, specs)
	}
	if len(out.NextSteps) == 0 {
		t.Error("expected guidance for an empty project")
	}
}

func TestCreateSpecDocAndStatus(t *testing.T) {
	srv, _, root := newTestServer(t)

	result := callTool(t, srv, "create_spec_doc", map[string]any{
		"spec_name": "user-auth",
		"document":  "requirements",
		"content":   "# Requirements\n",
	})
	out := decodeResult(t, result, nil)
	if !out.Success || !strings.Contains(out.NextSteps[0], "request_approval") {
		t.Errorf("out = %+v", out)
	}
	if _, err := os.Stat(workflowpath.SpecDocPath(root, "user-auth", "requirements")); err != nil {
		t.Fatalf("document not written: %v", err)
	}

	var status specStatusData
	out = decodeResult(t, callTool(t, srv, "spec_status", map[string]any{"spec_name": "user-auth"}), &status)
	if status.Spec == nil || status.Spec.Phase != models.PhaseDesign {
		t.Errorf("status = %+v", status)
	}
	if !strings.Contains(out.Message, "design") {
		t.Errorf("message = %q", out.Message)
	}
}

func TestCreateSpecDocErrors(t *testing.T) {
	srv, _, _ := newTestServer(t)

	tests := []struct {
		name string
		args map[string]any
	}{
		{"unknown document", map[string]any{"spec_name": "a", "document": "notes", "content": "x"}},
		{"bad spec name", map[string]any{"spec_name": "../evil", "document": "design", "content": "x"}},
		{"empty content", map[string]any{"spec_name": "a", "document": "design", "content": ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := callTool(t, srv, "create_spec_doc", tt.args)
			if !result.IsError || extractText(result) == "" {
				t.Errorf("expected an error result, got %+v", result)
			}
		})
	}
}

func TestGetTemplate(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var data map[string]string
	decodeResult(t, callTool(t, srv, "get_template", map[string]any{"document": "tasks"}), &data)
	if !strings.Contains(data["content"], "- [ ]") {
		t.Errorf("tasks template should contain a checkbox, got %q", data["content"])
	}
}

func TestManageTasks(t *testing.T) {
	srv, _, root := newTestServer(t)
	writeTasks(t, root, "auth", "- [x] 1 Schema\n- [ ] 2 Handlers\n  - [ ] 2.1 Login\n")

	var doc models.TaskDocument
	decodeResult(t, callTool(t, srv, "manage_tasks", map[string]any{"spec_name": "auth", "action": "list"}), &doc)
	if doc.Summary.Total != 2 || doc.Summary.Completed != 1 {
		t.Errorf("summary = %+v", doc.Summary)
	}

	var next core.NextTaskResult
	decodeResult(t, callTool(t, srv, "manage_tasks", map[string]any{"spec_name": "auth", "action": "next"}), &next)
	if next.Task == nil || next.Task.ID != "2.1" {
		t.Fatalf("next = %+v", next)
	}

	var task models.Task
	decodeResult(t, callTool(t, srv, "manage_tasks", map[string]any{
		"spec_name": "auth", "action": "set_status", "task_id": "2.1", "status": "in-progress",
	}), &task)
	if task.Status != models.TaskInProgress {
		t.Errorf("task = %+v", task)
	}

	decodeResult(t, callTool(t, srv, "manage_tasks", map[string]any{"spec_name": "auth", "action": "get", "task_id": "2.1"}), &task)
	if task.Description != "Login" || task.Status != models.TaskInProgress {
		t.Errorf("task = %+v", task)
	}

	for name, args := range map[string]map[string]any{
		"unknown action": {"spec_name": "auth", "action": "drop"},
		"unknown task":   {"spec_name": "auth", "action": "get", "task_id": "9"},
		"bad status":     {"spec_name": "auth", "action": "set_status", "task_id": "1", "status": "blocked"},
		"missing id":     {"spec_name": "auth", "action": "set_status", "status": "completed"},
	} {
		t.Run(name, func(t *testing.T) {
			if result := callTool(t, srv, "manage_tasks", args); !result.IsError {
				t.Errorf("expected an error result")
			}
		})
	}
}

func TestApprovalLifecycle(t *testing.T) {
	srv, svc, _ := newTestServer(t)

	var req models.ApprovalRequest
	out := decodeResult(t, callTool(t, srv, "request_approval", map[string]any{
		"spec_name": "auth",
		"type":      "design",
		"title":     "Auth design",
	}), &req)
	if req.Status != models.ApprovalPending || req.FilePath != ".spec-workflow/specs/auth/design.md" {
		t.Fatalf("req = %+v", req)
	}
	if len(out.NextSteps) == 0 {
		t.Error("expected next steps")
	}

	// A pending request cannot be deleted.
	result := callTool(t, srv, "delete_approval", map[string]any{"spec_name": "auth", "approval_id": req.ID})
	if !result.IsError || !strings.Contains(extractText(result), "pending") {
		t.Fatalf("expected refusal, got %s", extractText(result))
	}

	_, err := svc.Approvals.Respond(context.Background(), "auth", req.ID, core.ApprovalResponse{
		Status: models.ApprovalNeedsRevision,
		Comments: []models.ApprovalComment{
			{Type: models.CommentSelection, SelectedText: "uses sessions", Comment: "Use tokens instead"},
		},
	})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}

	var status approvalStatusData
	decodeResult(t, callTool(t, srv, "get_approval_status", map[string]any{"approval_id": req.ID}), &status)
	if status.Approval == nil || status.Approval.Status != models.ApprovalNeedsRevision {
		t.Fatalf("status = %+v", status)
	}
	if !strings.Contains(status.RevisionPrompt, "> uses sessions") || !strings.Contains(status.RevisionPrompt, "Use tokens instead") {
		t.Errorf("revision prompt missing feedback:\n%s", status.RevisionPrompt)
	}

	if _, err := svc.Approvals.Respond(context.Background(), "auth", req.ID, core.ApprovalResponse{Status: models.ApprovalApproved}); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	status = approvalStatusData{}
	decodeResult(t, callTool(t, srv, "get_approval_status", map[string]any{"spec_name": "auth", "approval_id": req.ID}), &status)
	if status.RevisionPrompt != "" {
		t.Error("approved requests carry no revision prompt")
	}

	out = decodeResult(t, callTool(t, srv, "delete_approval", map[string]any{"spec_name": "auth", "approval_id": req.ID}), nil)
	if !out.Success {
		t.Errorf("delete = %+v", out)
	}
	if result := callTool(t, srv, "get_approval_status", map[string]any{"approval_id": req.ID}); !result.IsError {
		t.Error("deleted approval should not be found")
	}
}

func TestRequestApprovalValidation(t *testing.T) {
	srv, _, _ := newTestServer(t)
	result := callTool(t, srv, "request_approval", map[string]any{
		"spec_name": "auth",
		"type":      "notes",
		"title":     "x",
	})
	if !result.IsError || !strings.Contains(extractText(result), "Fix the arguments") {
		t.Errorf("expected a validation error with guidance, got %s", extractText(result))
	}
}

func TestSpecStatusMissingName(t *testing.T) {
	srv, _, _ := newTestServer(t)

	// The SDK validates required fields at the schema level, so calling
	// spec_status without spec_name produces a protocol-level validation error.
	result := callToolAllowError(t, srv, "spec_status", map[string]any{})
	if result == nil {
		return
	}
	if !result.IsError {
		t.Fatal("expected error result for missing spec_name")
	}
}

func TestGetMetricsAndAlerts(t *testing.T) {
	srv, svc, _ := newTestServer(t)

	result := callTool(t, srv, "get_metrics", map[string]any{})
	if !result.IsError {
		t.Error("metrics without an event log should report an error")
	}

	svc.Metrics = &fakeMetricsCalculator{metrics: &observability.Metrics{ApprovalsCreated: 3, EventCount: 5}}
	svc.Alerts = &fakeAlertEngine{alerts: []observability.Alert{{ID: "pending-a1", Severity: observability.SeverityHigh}}}
	srv = NewServer(svc, "test")

	var metrics observability.Metrics
	decodeResult(t, callTool(t, srv, "get_metrics", map[string]any{"since": "30d"}), &metrics)
	if metrics.ApprovalsCreated != 3 || metrics.EventCount != 5 {
		t.Errorf("metrics = %+v", metrics)
	}

	if result := callTool(t, srv, "get_metrics", map[string]any{"since": "3w"}); !result.IsError {
		t.Error("unsupported suffix should be rejected")
	}

	var alerts []observability.Alert
	out := decodeResult(t, callTool(t, srv, "get_alerts", map[string]any{}), &alerts)
	if len(alerts) != 1 || !strings.Contains(out.Message, "1 active") {
		t.Errorf("alerts = %+v, out = %+v", alerts, out)
	}
}

func TestParseSince(t *testing.T) {
	for _, s := range []string{"7d", "24h", "0d"} {
		if _, err := parseSince(s); err != nil {
			t.Errorf("parseSince(%q): %v", s, err)
		}
	}
	for _, s := range []string{"", "d", "xd", "5m"} {
		if _, err := parseSince(s); err == nil {
			t.Errorf("parseSince(%q) should fail", s)
		}
	}
}

func extractText(result *gomcp.CallToolResult) string {
	for _, c := range result.Content {
		if tc, ok := c.(*gomcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}
