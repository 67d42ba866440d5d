package models

import "time"

// SpecPhase is the workflow phase a spec has reached, derived from which
// documents exist and the state of its task list.
type SpecPhase string

const (
	PhaseRequirements   SpecPhase = "requirements"
	PhaseDesign         SpecPhase = "design"
	PhaseTasks          SpecPhase = "tasks"
	PhaseImplementation SpecPhase = "implementation"
	PhaseCompleted      SpecPhase = "completed"
)

// DocumentInfo describes one spec or steering document on disk.
type DocumentInfo struct {
	Type         DocumentType `json:"type"`
	Path         string       `json:"path"`
	Exists       bool         `json:"exists"`
	LastModified *time.Time   `json:"last_modified,omitempty"`
}

// SpecInfo summarizes a spec directory.
type SpecInfo struct {
	Name         string         `json:"name"`
	Archived     bool           `json:"archived"`
	Phase        SpecPhase      `json:"phase"`
	Documents    []DocumentInfo `json:"documents"`
	TaskSummary  *TaskSummary   `json:"task_summary,omitempty"`
	LastModified time.Time      `json:"last_modified"`
}

// HasDocument reports whether the given document exists for the spec.
func (s *SpecInfo) HasDocument(doc DocumentType) bool {
	for _, d := range s.Documents {
		if d.Type == doc {
			return d.Exists
		}
	}
	return false
}
