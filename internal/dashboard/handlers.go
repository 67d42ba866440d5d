package dashboard

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/valter-silva-au/spec-workflow/internal/core"
	"github.com/valter-silva-au/spec-workflow/pkg/models"
)

// specDetail is the payload of GET /api/specs/{name}.
type specDetail struct {
	Spec      *models.SpecInfo         `json:"spec"`
	Tasks     *models.TaskDocument     `json:"tasks,omitempty"`
	Approvals []models.ApprovalRequest `json:"approvals"`
}

// taskStatusRequest is the body of POST /api/specs/{name}/tasks/{id}/status.
type taskStatusRequest struct {
	Status string `json:"status"`
}

// handleSpecs lists specs; ?archived=true includes archived ones
func (s *Server) handleSpecs(w http.ResponseWriter, r *http.Request) {
	specs, err := s.specs.List(r.URL.Query().Get("archived") == "true")
	if err != nil {
		writeError(w, err)
		return
	}
	if specs == nil {
		specs = []models.SpecInfo{}
	}
	jsonResponse(w, specs)
}

// handleSpec returns one spec with its parsed tasks and approvals
func (s *Server) handleSpec(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	info, err := s.specs.Status(name)
	if err != nil {
		writeError(w, err)
		return
	}

	detail := specDetail{Spec: info, Approvals: []models.ApprovalRequest{}}
	if !info.Archived && info.HasDocument(models.DocTasks) {
		doc, err := s.tasks.Load(name)
		if err != nil {
			writeError(w, err)
			return
		}
		detail.Tasks = doc
	}
	approvals, err := s.approvals.List(core.ApprovalFilter{SpecName: name})
	if err != nil {
		writeError(w, err)
		return
	}
	if approvals != nil {
		detail.Approvals = approvals
	}
	jsonResponse(w, detail)
}

// handleTaskStatus updates the checkbox of one task
func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	var body taskStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	status, ok := models.ParseTaskStatus(body.Status)
	if !ok {
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}

	name, id := r.PathValue("name"), r.PathValue("id")
	task, err := s.tasks.SetStatus(r.Context(), name, id, status)
	if err != nil {
		writeError(w, err)
		return
	}
	s.Broadcast("task_updated", map[string]any{"spec": name, "task": task})
	jsonResponse(w, task)
}

// handleSteering returns the steering documents
func (s *Server) handleSteering(w http.ResponseWriter, r *http.Request) {
	docs, err := s.specs.SteeringStatus()
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, docs)
}

// handleApprovals lists approvals with optional ?spec= and ?status= filters.
// status accepts a comma-separated list.
func (s *Server) handleApprovals(w http.ResponseWriter, r *http.Request) {
	filter := core.ApprovalFilter{SpecName: r.URL.Query().Get("spec")}
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, st := range strings.Split(raw, ",") {
			status := models.ApprovalStatus(strings.TrimSpace(st))
			switch status {
			case models.ApprovalPending, models.ApprovalApproved, models.ApprovalRejected, models.ApprovalNeedsRevision:
				filter.Status = append(filter.Status, status)
			default:
				http.Error(w, "invalid status", http.StatusBadRequest)
				return
			}
		}
	}

	approvals, err := s.approvals.List(filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if approvals == nil {
		approvals = []models.ApprovalRequest{}
	}
	jsonResponse(w, approvals)
}

// handleApproval returns a single approval request
func (s *Server) handleApproval(w http.ResponseWriter, r *http.Request) {
	req, err := s.approvals.Get(r.PathValue("spec"), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, req)
}

// handleRespond records a reviewer decision
func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	var body core.ApprovalResponse
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	req, err := s.approvals.Respond(r.Context(), r.PathValue("spec"), r.PathValue("id"), body)
	if err != nil {
		writeError(w, err)
		return
	}
	s.Broadcast("approval_updated", req)
	jsonResponse(w, req)
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrInvalidTransition):
		status = http.StatusConflict
	}
	http.Error(w, err.Error(), status)
}

func jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}
