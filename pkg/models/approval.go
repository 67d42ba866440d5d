package models

import "time"

// ApprovalStatus is the lifecycle state of an approval request.
type ApprovalStatus string

const (
	ApprovalPending       ApprovalStatus = "pending"
	ApprovalApproved      ApprovalStatus = "approved"
	ApprovalRejected      ApprovalStatus = "rejected"
	ApprovalNeedsRevision ApprovalStatus = "needs-revision"
)

// IsTerminal reports whether no further transition is allowed.
func (s ApprovalStatus) IsTerminal() bool {
	return s == ApprovalApproved || s == ApprovalRejected
}

// IsActive reports whether the request still awaits a final decision.
func (s ApprovalStatus) IsActive() bool {
	return s == ApprovalPending || s == ApprovalNeedsRevision
}

// DocumentType names the document an approval request reviews.
type DocumentType string

const (
	DocRequirements DocumentType = "requirements"
	DocDesign       DocumentType = "design"
	DocTasks        DocumentType = "tasks"
	DocProduct      DocumentType = "product"
	DocTech         DocumentType = "tech"
	DocStructure    DocumentType = "structure"
)

// SpecDocuments are the document types that live under specs/<name>/.
var SpecDocuments = []DocumentType{DocRequirements, DocDesign, DocTasks}

// SteeringDocuments are the document types that live under steering/.
var SteeringDocuments = []DocumentType{DocProduct, DocTech, DocStructure}

// IsSteering reports whether the document belongs to the steering set.
func (d DocumentType) IsSteering() bool {
	return d == DocProduct || d == DocTech || d == DocStructure
}

// ApprovalCategory distinguishes spec documents from steering documents.
type ApprovalCategory string

const (
	CategorySpec     ApprovalCategory = "spec"
	CategorySteering ApprovalCategory = "steering"
)

// CommentType distinguishes anchored from general feedback.
type CommentType string

const (
	CommentSelection CommentType = "selection"
	CommentGeneral   CommentType = "general"
)

// ApprovalComment is one piece of reviewer feedback. Comments are append-only.
type ApprovalComment struct {
	ID             string      `json:"id"`
	Type           CommentType `json:"type" validate:"required,oneof=selection general"`
	Comment        string      `json:"comment" validate:"required"`
	SelectedText   string      `json:"selectedText,omitempty" validate:"required_if=Type selection"`
	HighlightColor string      `json:"highlightColor,omitempty"`
	Timestamp      time.Time   `json:"timestamp"`
}

// ApprovalRequest is one reviewable unit tied to a single document.
type ApprovalRequest struct {
	ID          string            `json:"id"`
	SpecName    string            `json:"specName"`
	Type        DocumentType      `json:"type"`
	Title       string            `json:"title"`
	FilePath    string            `json:"filePath,omitempty"`
	Category    ApprovalCategory  `json:"category"`
	Status      ApprovalStatus    `json:"status"`
	CreatedAt   time.Time         `json:"createdAt"`
	RespondedAt *time.Time        `json:"respondedAt,omitempty"`
	Response    string            `json:"response,omitempty"`
	Annotations string            `json:"annotations,omitempty"`
	Comments    []ApprovalComment `json:"comments"`
}

// SelectionComments returns the anchored comments in call order.
func (r *ApprovalRequest) SelectionComments() []ApprovalComment {
	var out []ApprovalComment
	for _, c := range r.Comments {
		if c.Type == CommentSelection {
			out = append(out, c)
		}
	}
	return out
}
