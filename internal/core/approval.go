package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/google/uuid"
	"github.com/valter-silva-au/spec-workflow/internal/workflowpath"
	"github.com/valter-silva-au/spec-workflow/pkg/models"
)

// ApprovalRecordStore persists approval requests.
// This interface is defined locally in core to avoid importing storage.
// Get must return an error wrapping fs.ErrNotExist for a missing record.
type ApprovalRecordStore interface {
	Save(ctx context.Context, req *models.ApprovalRequest) error
	Get(specName, id string) (*models.ApprovalRequest, error)
	List(specName string) ([]models.ApprovalRequest, error)
	ListAll() ([]models.ApprovalRequest, error)
	Delete(specName, id string) error
	Path(specName, id string) string
}

// ApprovalInput describes a new approval request.
type ApprovalInput struct {
	SpecName string              `json:"specName" validate:"required,specname"`
	Type     models.DocumentType `json:"type" validate:"required,oneof=requirements design tasks product tech structure"`
	Title    string              `json:"title" validate:"required"`
	// FilePath defaults to the project-relative path of the document.
	FilePath string `json:"filePath,omitempty"`
}

// ApprovalResponse is a reviewer's decision on a request.
type ApprovalResponse struct {
	Status      models.ApprovalStatus    `json:"status" validate:"required,oneof=approved rejected needs-revision"`
	Response    string                   `json:"response,omitempty"`
	Annotations string                   `json:"annotations,omitempty"`
	Comments    []models.ApprovalComment `json:"comments,omitempty" validate:"dive"`
}

// ApprovalFilter narrows List results. Zero values match everything.
type ApprovalFilter struct {
	SpecName string
	Status   []models.ApprovalStatus
}

// ApprovalManager owns the approval lifecycle: pending, then approved,
// rejected or needs-revision; needs-revision may be answered again any number
// of times; approved and rejected are final.
type ApprovalManager interface {
	Create(ctx context.Context, in ApprovalInput) (*models.ApprovalRequest, error)
	Respond(ctx context.Context, specName, id string, resp ApprovalResponse) (*models.ApprovalRequest, error)
	Get(specName, id string) (*models.ApprovalRequest, error)
	Find(id string) (*models.ApprovalRequest, error)
	List(filter ApprovalFilter) ([]models.ApprovalRequest, error)
	Delete(specName, id string) error
	RevisionPrompt(req *models.ApprovalRequest, feedback string) string
}

// approvalTransitions lists the statuses reachable from each non-terminal one.
var approvalTransitions = map[models.ApprovalStatus][]models.ApprovalStatus{
	models.ApprovalPending:       {models.ApprovalApproved, models.ApprovalRejected, models.ApprovalNeedsRevision},
	models.ApprovalNeedsRevision: {models.ApprovalApproved, models.ApprovalRejected, models.ApprovalNeedsRevision},
}

// CanTransition reports whether an approval may move from one status to another.
func CanTransition(from, to models.ApprovalStatus) bool {
	for _, s := range approvalTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type approvalManager struct {
	store  ApprovalRecordStore
	locker *DocLocker
	events EventLogger
	now    func() time.Time
	newID  func() string
}

// NewApprovalManager creates an ApprovalManager. events may be nil.
func NewApprovalManager(store ApprovalRecordStore, locker *DocLocker, events EventLogger) ApprovalManager {
	return &approvalManager{
		store:  store,
		locker: locker,
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

func (m *approvalManager) logEvent(eventType string, data map[string]any) {
	if m.events != nil {
		_ = m.events.LogEvent(eventType, data)
	}
}

// Create stores a new pending request. Another active request for the same
// document is reported as an approval.duplicate_active event but does not
// prevent creation.
func (m *approvalManager) Create(ctx context.Context, in ApprovalInput) (*models.ApprovalRequest, error) {
	if err := validateStruct(in); err != nil {
		return nil, fmt.Errorf("creating approval: %w", err)
	}

	category := models.CategorySpec
	filePath := in.FilePath
	if in.Type.IsSteering() {
		category = models.CategorySteering
		if filePath == "" {
			filePath = workflowpath.ToCanonical(workflowpath.SteeringDocPath("", string(in.Type)))
		}
	} else if filePath == "" {
		filePath = workflowpath.ToCanonical(workflowpath.SpecDocPath("", in.SpecName, string(in.Type)))
	}

	existing, err := m.store.List(in.SpecName)
	if err != nil {
		return nil, fmt.Errorf("creating approval: %w", err)
	}
	for _, r := range existing {
		if r.Type == in.Type && r.Status.IsActive() {
			m.logEvent("approval.duplicate_active", map[string]any{
				"spec":        in.SpecName,
				"type":        string(in.Type),
				"existing_id": r.ID,
			})
			break
		}
	}

	req := &models.ApprovalRequest{
		ID:        m.newID(),
		SpecName:  in.SpecName,
		Type:      in.Type,
		Title:     in.Title,
		FilePath:  filePath,
		Category:  category,
		Status:    models.ApprovalPending,
		CreatedAt: m.now(),
		Comments:  []models.ApprovalComment{},
	}

	unlock, err := m.locker.Lock(m.store.Path(req.SpecName, req.ID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := m.store.Save(ctx, req); err != nil {
		return nil, fmt.Errorf("creating approval: %w", err)
	}

	m.logEvent("approval.created", map[string]any{
		"spec":     req.SpecName,
		"id":       req.ID,
		"type":     string(req.Type),
		"category": string(req.Category),
	})
	return req, nil
}

// Respond applies a reviewer decision. New comments are appended after the
// existing ones; RespondedAt is set by the first response only.
func (m *approvalManager) Respond(ctx context.Context, specName, id string, resp ApprovalResponse) (*models.ApprovalRequest, error) {
	if err := validateStruct(resp); err != nil {
		return nil, fmt.Errorf("responding to approval %s: %w", id, err)
	}
	if err := ValidateSpecName(specName); err != nil {
		return nil, err
	}
	if err := ValidateApprovalID(id); err != nil {
		return nil, err
	}

	unlock, err := m.locker.Lock(m.store.Path(specName, id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	req, err := m.get(specName, id)
	if err != nil {
		return nil, err
	}

	from := req.Status
	if !CanTransition(from, resp.Status) {
		if from.IsTerminal() {
			return nil, fmt.Errorf("approval %s is already %s: %w", id, from, ErrInvalidTransition)
		}
		return nil, fmt.Errorf("approval %s cannot move from %s to %s: %w", id, from, resp.Status, ErrInvalidTransition)
	}

	now := m.now()
	req.Status = resp.Status
	if req.RespondedAt == nil {
		req.RespondedAt = &now
	}
	if resp.Response != "" {
		req.Response = resp.Response
	}
	if resp.Annotations != "" {
		req.Annotations = resp.Annotations
	}
	for _, c := range resp.Comments {
		if c.ID == "" {
			c.ID = m.newID()
		}
		if c.Timestamp.IsZero() {
			c.Timestamp = now
		}
		req.Comments = append(req.Comments, c)
	}

	if err := m.store.Save(ctx, req); err != nil {
		return nil, fmt.Errorf("responding to approval %s: %w", id, err)
	}

	m.logEvent("approval.responded", map[string]any{
		"spec":     specName,
		"id":       id,
		"type":     string(req.Type),
		"from":     string(from),
		"to":       string(resp.Status),
		"comments": len(resp.Comments),
	})
	return req, nil
}

func (m *approvalManager) get(specName, id string) (*models.ApprovalRequest, error) {
	req, err := m.store.Get(specName, id)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("approval %s for spec %q: %w", id, specName, ErrNotFound)
		}
		return nil, err
	}
	return req, nil
}

func (m *approvalManager) Get(specName, id string) (*models.ApprovalRequest, error) {
	if err := ValidateSpecName(specName); err != nil {
		return nil, err
	}
	if err := ValidateApprovalID(id); err != nil {
		return nil, err
	}
	return m.get(specName, id)
}

// Find looks an id up across every spec.
func (m *approvalManager) Find(id string) (*models.ApprovalRequest, error) {
	if err := ValidateApprovalID(id); err != nil {
		return nil, err
	}
	all, err := m.store.ListAll()
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("approval %s: %w", id, ErrNotFound)
}

func (m *approvalManager) List(filter ApprovalFilter) ([]models.ApprovalRequest, error) {
	var (
		all []models.ApprovalRequest
		err error
	)
	if filter.SpecName != "" {
		if err := ValidateSpecName(filter.SpecName); err != nil {
			return nil, err
		}
		all, err = m.store.List(filter.SpecName)
	} else {
		all, err = m.store.ListAll()
	}
	if err != nil {
		return nil, err
	}
	if len(filter.Status) == 0 {
		return all, nil
	}
	var out []models.ApprovalRequest
	for _, r := range all {
		for _, s := range filter.Status {
			if r.Status == s {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}

// Delete removes a record regardless of its status. Callers decide whether a
// pending request may be discarded.
func (m *approvalManager) Delete(specName, id string) error {
	if err := ValidateSpecName(specName); err != nil {
		return err
	}
	if err := ValidateApprovalID(id); err != nil {
		return err
	}
	unlock, err := m.locker.Lock(m.store.Path(specName, id))
	if err != nil {
		return err
	}
	defer unlock()

	req, err := m.get(specName, id)
	if err != nil {
		return err
	}
	if err := m.store.Delete(specName, id); err != nil {
		return err
	}
	m.logEvent("approval.deleted", map[string]any{
		"spec":   specName,
		"id":     id,
		"status": string(req.Status),
	})
	return nil
}

// RevisionPrompt derives the revision prompt for req. An empty feedback falls
// back to the reviewer's response text.
func (m *approvalManager) RevisionPrompt(req *models.ApprovalRequest, feedback string) string {
	if feedback == "" {
		feedback = req.Response
	}
	return BuildRevisionPrompt(req.Title, req.Comments, feedback)
}
