package models

// TaskStatus is the state of a single task line, encoded in the document by a
// one-character checkbox marker.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in-progress"
	TaskCompleted  TaskStatus = "completed"
)

// Checkbox markers as they appear between the brackets of a task line.
const (
	MarkerPending    byte = ' '
	MarkerInProgress byte = '-'
	MarkerCompleted  byte = 'x'
)

// MarkerFor returns the checkbox marker for a status. ok is false for
// unknown statuses.
func MarkerFor(status TaskStatus) (marker byte, ok bool) {
	switch status {
	case TaskPending:
		return MarkerPending, true
	case TaskInProgress:
		return MarkerInProgress, true
	case TaskCompleted:
		return MarkerCompleted, true
	}
	return 0, false
}

// StatusForMarker maps a checkbox marker back to its status.
func StatusForMarker(marker byte) (TaskStatus, bool) {
	switch marker {
	case MarkerPending:
		return TaskPending, true
	case MarkerInProgress:
		return TaskInProgress, true
	case MarkerCompleted:
		return TaskCompleted, true
	}
	return "", false
}

// ParseTaskStatus accepts the canonical status names plus a few common
// spellings used by callers ("in_progress", "done").
func ParseTaskStatus(s string) (TaskStatus, bool) {
	switch s {
	case "pending", "todo":
		return TaskPending, true
	case "in-progress", "in_progress", "inprogress":
		return TaskInProgress, true
	case "completed", "done", "complete":
		return TaskCompleted, true
	}
	return "", false
}

// Task is one task line of a task document together with the metadata
// sub-bullets attached to it. Tasks are a view derived by parsing; the
// document text remains the source of truth.
type Task struct {
	ID                    string     `json:"id" yaml:"id"`
	Description           string     `json:"description" yaml:"description"`
	Status                TaskStatus `json:"status" yaml:"status"`
	IsHeader              bool       `json:"is_header" yaml:"is_header"`
	Requirements          []string   `json:"requirements,omitempty" yaml:"requirements,omitempty"`
	Leverage              string     `json:"leverage,omitempty" yaml:"leverage,omitempty"`
	ImplementationDetails []string   `json:"implementation_details,omitempty" yaml:"implementation_details,omitempty"`
	Files                 []string   `json:"files,omitempty" yaml:"files,omitempty"`
	Purpose               string     `json:"purpose,omitempty" yaml:"purpose,omitempty"`
	Prompt                string     `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	ParentID              string     `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	// Line is the 1-based line number of the task line.
	Line   int `json:"line" yaml:"line"`
	Indent int `json:"indent" yaml:"indent"`
}

// TaskSummary counts non-header tasks by status.
type TaskSummary struct {
	Total      int `json:"total" yaml:"total"`
	Completed  int `json:"completed" yaml:"completed"`
	InProgress int `json:"in_progress" yaml:"in_progress"`
	Pending    int `json:"pending" yaml:"pending"`
}

// TaskDocument is the structured view of a parsed task list.
type TaskDocument struct {
	Tasks   []Task      `json:"tasks" yaml:"tasks"`
	Summary TaskSummary `json:"summary" yaml:"summary"`
}
