// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the spec workflow as tools for AI coding assistants.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/valter-silva-au/spec-workflow/internal/core"
	"github.com/valter-silva-au/spec-workflow/internal/observability"
	"github.com/valter-silva-au/spec-workflow/pkg/models"
)

// Services are the workflow services the tools call into. Metrics and Alerts
// may be nil if the event log is disabled.
type Services struct {
	Specs     core.SpecManager
	Tasks     core.TaskService
	Approvals core.ApprovalManager
	Templates core.TemplateProvider
	Metrics   observability.MetricsCalculator
	Alerts    observability.AlertEngine
}

// Server wraps the workflow services and exposes them as MCP tools.
type Server struct {
	server *gomcp.Server
	svc    Services
}

// NewServer creates a new MCP server with the given service dependencies.
func NewServer(svc Services, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{svc: svc}
	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "swf", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run starts the MCP server on stdio, blocking until the client disconnects
// or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// toolResult is the common shape of every successful tool response.
type toolResult struct {
	Success   bool     `json:"success"`
	Message   string   `json:"message"`
	Data      any      `json:"data,omitempty"`
	NextSteps []string `json:"next_steps,omitempty"`
}

// --- Tool input types ---

type specListInput struct {
	IncludeArchived bool `json:"include_archived,omitempty" jsonschema:"also list archived specs"`
}

type specStatusInput struct {
	SpecName string `json:"spec_name" jsonschema:"the spec directory name, e.g. user-auth"`
}

type createSpecDocInput struct {
	SpecName string `json:"spec_name,omitempty" jsonschema:"the spec name; ignored for steering documents (product, tech, structure)"`
	Document string `json:"document" jsonschema:"one of requirements, design, tasks, product, tech, structure"`
	Content  string `json:"content" jsonschema:"the full markdown content of the document"`
}

type getTemplateInput struct {
	Document string `json:"document" jsonschema:"one of requirements, design, tasks, product, tech, structure"`
}

type manageTasksInput struct {
	SpecName string `json:"spec_name" jsonschema:"the spec whose tasks.md is used"`
	Action   string `json:"action" jsonschema:"one of list, get, next, set_status"`
	TaskID   string `json:"task_id,omitempty" jsonschema:"task id such as 1 or 2.3, required for get and set_status"`
	Status   string `json:"status,omitempty" jsonschema:"pending, in-progress or completed, required for set_status"`
}

type requestApprovalInput struct {
	SpecName string `json:"spec_name" jsonschema:"the spec the document belongs to"`
	Type     string `json:"type" jsonschema:"the document type: requirements, design, tasks, product, tech or structure"`
	Title    string `json:"title" jsonschema:"short title shown to the reviewer"`
	FilePath string `json:"file_path,omitempty" jsonschema:"project-relative document path; defaults to the document's standard location"`
}

type approvalRefInput struct {
	SpecName   string `json:"spec_name,omitempty" jsonschema:"the spec of the approval; searched across specs when omitted"`
	ApprovalID string `json:"approval_id" jsonschema:"the id returned by request_approval"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type getAlertsInput struct{}

// approvalStatusData is the data payload of get_approval_status.
type approvalStatusData struct {
	Approval       *models.ApprovalRequest `json:"approval"`
	RevisionPrompt string                  `json:"revision_prompt,omitempty"`
}

// specStatusData is the data payload of spec_status.
type specStatusData struct {
	Spec      *models.SpecInfo         `json:"spec"`
	Approvals []models.ApprovalRequest `json:"approvals,omitempty"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "spec_list",
		Description: "List specs with their phase, documents and task progress.",
	}, s.handleSpecList)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "spec_status",
		Description: "Show one spec: which documents exist, its phase, task progress and approval requests.",
	}, s.handleSpecStatus)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "create_spec_doc",
		Description: "Create or replace a spec document (requirements, design, tasks) or a steering document (product, tech, structure). The write is atomic.",
	}, s.handleCreateSpecDoc)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_template",
		Description: "Return the template for a document type. Project templates in .spec-workflow/templates take precedence over the built-in ones.",
	}, s.handleGetTemplate)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "manage_tasks",
		Description: "Read or update the task list of a spec. Actions: list, get, next (first pending task), set_status.",
	}, s.handleManageTasks)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "request_approval",
		Description: "Ask a human reviewer to approve a document. Do not continue to the next phase until the request is approved.",
	}, s.handleRequestApproval)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_approval_status",
		Description: "Check an approval request. When the reviewer asked for changes the response includes a revision prompt.",
	}, s.handleGetApprovalStatus)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "delete_approval",
		Description: "Delete an approval request once it has been approved or rejected.",
	}, s.handleDeleteApproval)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get aggregated workflow metrics from the event log: approvals, revisions, task transitions and document writes.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate and return active alerts (approvals pending too long, too many revision rounds, duplicate requests).",
	}, s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleSpecList(_ context.Context, _ *gomcp.CallToolRequest, input specListInput) (*gomcp.CallToolResult, toolResult, error) {
	specs, err := s.svc.Specs.List(input.IncludeArchived)
	if err != nil {
		return failure("listing specs", err), toolResult{}, nil
	}
	if specs == nil {
		specs = []models.SpecInfo{}
	}

	out := toolResult{
		Success: true,
		Message: fmt.Sprintf("found %d spec(s)", len(specs)),
		Data:    specs,
	}
	if len(specs) == 0 {
		out.NextSteps = []string{"Create a spec by writing its requirements with create_spec_doc"}
	} else {
		out.NextSteps = []string{"Use spec_status for details on one spec"}
	}
	return nil, out, nil
}

func (s *Server) handleSpecStatus(_ context.Context, _ *gomcp.CallToolRequest, input specStatusInput) (*gomcp.CallToolResult, toolResult, error) {
	info, err := s.svc.Specs.Status(input.SpecName)
	if err != nil {
		return failure(fmt.Sprintf("getting status of spec %q", input.SpecName), err), toolResult{}, nil
	}
	approvals, err := s.svc.Approvals.List(core.ApprovalFilter{SpecName: input.SpecName})
	if err != nil {
		return failure("listing approvals", err), toolResult{}, nil
	}

	out := toolResult{
		Success:   true,
		Message:   fmt.Sprintf("spec %s is in the %s phase", info.Name, info.Phase),
		Data:      specStatusData{Spec: info, Approvals: approvals},
		NextSteps: phaseNextSteps(info),
	}
	return nil, out, nil
}

func (s *Server) handleCreateSpecDoc(ctx context.Context, _ *gomcp.CallToolRequest, input createSpecDocInput) (*gomcp.CallToolResult, toolResult, error) {
	doc := models.DocumentType(input.Document)
	if input.Content == "" {
		return errorResult("content is required; use get_template for a starting point"), toolResult{}, nil
	}

	path, err := s.svc.Specs.WriteDocument(ctx, input.SpecName, doc, input.Content)
	if err != nil {
		return failure(fmt.Sprintf("writing %s document", input.Document), err), toolResult{}, nil
	}

	target := input.SpecName
	if doc.IsSteering() {
		target = "steering"
	}
	out := toolResult{
		Success: true,
		Message: fmt.Sprintf("wrote %s document for %s", doc, target),
		Data:    map[string]string{"path": path},
		NextSteps: []string{
			fmt.Sprintf("Call request_approval with type %q so a reviewer can check the document", doc),
			"Wait for approval before moving on to the next document",
		},
	}
	return nil, out, nil
}

func (s *Server) handleGetTemplate(_ context.Context, _ *gomcp.CallToolRequest, input getTemplateInput) (*gomcp.CallToolResult, toolResult, error) {
	if s.svc.Templates == nil {
		return errorResult("templates are not available"), toolResult{}, nil
	}
	content, err := s.svc.Templates.Template(models.DocumentType(input.Document))
	if err != nil {
		return failure(fmt.Sprintf("loading %s template", input.Document), err), toolResult{}, nil
	}
	out := toolResult{
		Success:   true,
		Message:   fmt.Sprintf("%s template", input.Document),
		Data:      map[string]string{"content": content},
		NextSteps: []string{"Fill in the template and save it with create_spec_doc"},
	}
	return nil, out, nil
}

func (s *Server) handleManageTasks(ctx context.Context, _ *gomcp.CallToolRequest, input manageTasksInput) (*gomcp.CallToolResult, toolResult, error) {
	switch input.Action {
	case "list":
		doc, err := s.svc.Tasks.Load(input.SpecName)
		if err != nil {
			return failure("loading tasks", err), toolResult{}, nil
		}
		return nil, toolResult{
			Success: true,
			Message: fmt.Sprintf("%d of %d tasks completed, %d in progress", doc.Summary.Completed, doc.Summary.Total, doc.Summary.InProgress),
			Data:    doc,
		}, nil

	case "get":
		if input.TaskID == "" {
			return errorResult("task_id is required for action get"), toolResult{}, nil
		}
		task, err := s.svc.Tasks.GetTask(input.SpecName, input.TaskID)
		if err != nil {
			return failure(fmt.Sprintf("getting task %s", input.TaskID), err), toolResult{}, nil
		}
		return nil, toolResult{Success: true, Message: fmt.Sprintf("task %s is %s", task.ID, task.Status), Data: task}, nil

	case "next":
		next, err := s.svc.Tasks.Next(input.SpecName)
		if err != nil {
			return failure("finding next task", err), toolResult{}, nil
		}
		out := toolResult{Success: true, Data: next}
		switch {
		case next.AllCompleted:
			out.Message = "all tasks are completed"
			out.NextSteps = []string{"Review the implementation and archive the spec when it ships"}
		case next.Task == nil:
			out.Message = "no pending tasks; some are still in progress"
			out.NextSteps = []string{"Finish the in-progress tasks and mark them completed"}
		default:
			out.Message = fmt.Sprintf("next task is %s: %s", next.Task.ID, next.Task.Description)
			out.NextSteps = []string{
				fmt.Sprintf("Mark task %s in-progress with manage_tasks set_status before starting", next.Task.ID),
				"Mark it completed when the work is done",
			}
		}
		return nil, out, nil

	case "set_status":
		if input.TaskID == "" || input.Status == "" {
			return errorResult("task_id and status are required for action set_status"), toolResult{}, nil
		}
		status, ok := models.ParseTaskStatus(input.Status)
		if !ok {
			return errorResult(fmt.Sprintf("invalid status %q: must be one of pending, in-progress, completed", input.Status)), toolResult{}, nil
		}
		task, err := s.svc.Tasks.SetStatus(ctx, input.SpecName, input.TaskID, status)
		if err != nil {
			return failure(fmt.Sprintf("updating task %s", input.TaskID), err), toolResult{}, nil
		}
		out := toolResult{
			Success: true,
			Message: fmt.Sprintf("task %s is now %s", task.ID, task.Status),
			Data:    task,
		}
		if status == models.TaskCompleted {
			out.NextSteps = []string{"Use manage_tasks next to pick up the following task"}
		}
		return nil, out, nil
	}

	return errorResult(fmt.Sprintf("unknown action %q: must be one of list, get, next, set_status", input.Action)), toolResult{}, nil
}

func (s *Server) handleRequestApproval(ctx context.Context, _ *gomcp.CallToolRequest, input requestApprovalInput) (*gomcp.CallToolResult, toolResult, error) {
	req, err := s.svc.Approvals.Create(ctx, core.ApprovalInput{
		SpecName: input.SpecName,
		Type:     models.DocumentType(input.Type),
		Title:    input.Title,
		FilePath: input.FilePath,
	})
	if err != nil {
		return failure("requesting approval", err), toolResult{}, nil
	}

	out := toolResult{
		Success: true,
		Message: fmt.Sprintf("approval %s requested for %s", req.ID, req.FilePath),
		Data:    req,
		NextSteps: []string{
			"Ask the user to review the document in the dashboard or with 'swf approvals respond'",
			fmt.Sprintf("Poll get_approval_status with approval_id %q; do not proceed until it is approved", req.ID),
		},
	}
	return nil, out, nil
}

func (s *Server) handleGetApprovalStatus(_ context.Context, _ *gomcp.CallToolRequest, input approvalRefInput) (*gomcp.CallToolResult, toolResult, error) {
	req, err := s.lookupApproval(input)
	if err != nil {
		return failure(fmt.Sprintf("getting approval %s", input.ApprovalID), err), toolResult{}, nil
	}

	data := approvalStatusData{Approval: req}
	out := toolResult{Success: true, Message: fmt.Sprintf("approval %s is %s", req.ID, req.Status)}
	switch req.Status {
	case models.ApprovalPending:
		out.NextSteps = []string{"Wait for the reviewer and check again; do not proceed yet"}
	case models.ApprovalApproved:
		out.NextSteps = []string{
			"Delete the request with delete_approval",
			"Continue with the next document or task",
		}
	case models.ApprovalRejected:
		out.NextSteps = []string{
			"Discuss the rejection with the user before rewriting the document",
			"Delete the request with delete_approval",
		}
	case models.ApprovalNeedsRevision:
		data.RevisionPrompt = s.svc.Approvals.RevisionPrompt(req, "")
		out.NextSteps = []string{
			"Revise the document following revision_prompt",
			"Save it with create_spec_doc and request a new approval",
		}
	}
	out.Data = data
	return nil, out, nil
}

func (s *Server) handleDeleteApproval(_ context.Context, _ *gomcp.CallToolRequest, input approvalRefInput) (*gomcp.CallToolResult, toolResult, error) {
	req, err := s.lookupApproval(input)
	if err != nil {
		return failure(fmt.Sprintf("getting approval %s", input.ApprovalID), err), toolResult{}, nil
	}
	if !req.Status.IsTerminal() {
		return errorResult(fmt.Sprintf("approval %s is still %s; only approved or rejected requests can be deleted. Check it again with get_approval_status", req.ID, req.Status)), toolResult{}, nil
	}
	if err := s.svc.Approvals.Delete(req.SpecName, req.ID); err != nil {
		return failure(fmt.Sprintf("deleting approval %s", req.ID), err), toolResult{}, nil
	}
	return nil, toolResult{Success: true, Message: fmt.Sprintf("deleted %s approval %s", req.Status, req.ID)}, nil
}

func (s *Server) lookupApproval(input approvalRefInput) (*models.ApprovalRequest, error) {
	if input.SpecName == "" {
		return s.svc.Approvals.Find(input.ApprovalID)
	}
	return s.svc.Approvals.Get(input.SpecName, input.ApprovalID)
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, toolResult, error) {
	if s.svc.Metrics == nil {
		return errorResult("metrics calculator not available (the event log may be disabled)"), toolResult{}, nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}
	sinceTime, err := parseSince(sinceStr)
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), toolResult{}, nil
	}

	metrics, err := s.svc.Metrics.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), toolResult{}, nil
	}
	return nil, toolResult{
		Success: true,
		Message: fmt.Sprintf("%d events since %s", metrics.EventCount, sinceTime.Format(time.RFC3339)),
		Data:    metrics,
	}, nil
}

func (s *Server) handleGetAlerts(_ context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, toolResult, error) {
	if s.svc.Alerts == nil {
		return errorResult("alert engine not available (the event log may be disabled)"), toolResult{}, nil
	}

	alerts, err := s.svc.Alerts.Evaluate()
	if err != nil {
		return errorResult(fmt.Sprintf("evaluating alerts: %s", err)), toolResult{}, nil
	}
	if alerts == nil {
		alerts = []observability.Alert{}
	}
	return nil, toolResult{
		Success: true,
		Message: fmt.Sprintf("%d active alert(s)", len(alerts)),
		Data:    alerts,
	}, nil
}

// --- Helpers ---

// phaseNextSteps suggests what to do in the spec's current phase.
func phaseNextSteps(info *models.SpecInfo) []string {
	if info.Archived {
		return []string{"Unarchive the spec with 'swf specs unarchive' before changing it"}
	}
	switch info.Phase {
	case models.PhaseRequirements:
		return []string{"Write requirements.md with create_spec_doc", "Request approval for the requirements"}
	case models.PhaseDesign:
		return []string{"Write design.md with create_spec_doc once the requirements are approved"}
	case models.PhaseTasks:
		return []string{"Break the design into tasks.md with create_spec_doc"}
	case models.PhaseImplementation:
		return []string{"Use manage_tasks next to pick up the next task"}
	case models.PhaseCompleted:
		return []string{"All tasks are done; archive the spec when it ships"}
	}
	return nil
}

// failure turns a service error into an error result with guidance for the
// caller.
func failure(action string, err error) *gomcp.CallToolResult {
	msg := fmt.Sprintf("%s: %s", action, err)
	switch {
	case errors.Is(err, core.ErrNotFound):
		msg += "\nCheck the name or id with spec_list or spec_status."
	case errors.Is(err, core.ErrValidation):
		msg += "\nFix the arguments and try again."
	case errors.Is(err, core.ErrInvalidTransition):
		msg += "\nThe request has already been decided; create a new approval request instead."
	}
	return errorResult(msg)
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// parseSince parses a human-friendly duration string like "7d", "30d", or "24h"
// into the corresponding time in the past.
func parseSince(s string) (time.Time, error) {
	now := time.Now().UTC()

	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]
	var num int
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
