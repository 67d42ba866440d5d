package observability

import (
	"fmt"
	"time"
)

// Metrics holds calculated metrics derived from the event log.
type Metrics struct {
	ApprovalsCreated  int            `json:"approvals_created"`
	ApprovalsApproved int            `json:"approvals_approved"`
	ApprovalsRejected int            `json:"approvals_rejected"`
	RevisionRequests  int            `json:"revision_requests"`
	ApprovalsDeleted  int            `json:"approvals_deleted"`
	DuplicateRequests int            `json:"duplicate_requests"`
	ApprovalsByType   map[string]int `json:"approvals_by_type"`
	TaskTransitions   int            `json:"task_transitions"`
	TasksByStatus     map[string]int `json:"tasks_by_status"`
	DocumentsWritten  int            `json:"documents_written"`
	DocumentsByType   map[string]int `json:"documents_by_type"`
	SpecsArchived     int            `json:"specs_archived"`
	Bootstraps        int            `json:"bootstraps"`
	EventCount        int            `json:"event_count"`
	OldestEvent       *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent       *time.Time     `json:"newest_event,omitempty"`
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

// metricsCalculator implements MetricsCalculator by reading from an EventLog.
type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a new MetricsCalculator that reads from the given EventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate reads all events since the given time and aggregates them into metrics.
// TasksByStatus counts transitions into each status, not the current state of
// the task documents.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		ApprovalsByType: make(map[string]int),
		TasksByStatus:   make(map[string]int),
		DocumentsByType: make(map[string]int),
	}

	m.EventCount = len(events)

	for i, event := range events {
		if i == 0 {
			t := event.Time
			m.OldestEvent = &t
		}
		t := event.Time
		m.NewestEvent = &t

		switch event.Type {
		case "approval.created":
			m.ApprovalsCreated++
			if docType, ok := event.Data["type"].(string); ok {
				m.ApprovalsByType[docType]++
			}
		case "approval.responded":
			switch event.Data["to"] {
			case "approved":
				m.ApprovalsApproved++
			case "rejected":
				m.ApprovalsRejected++
			case "needs-revision":
				m.RevisionRequests++
			}
		case "approval.deleted":
			m.ApprovalsDeleted++
		case "approval.duplicate_active":
			m.DuplicateRequests++
		case "task.status_changed":
			m.TaskTransitions++
			if status, ok := event.Data["new_status"].(string); ok {
				m.TasksByStatus[status]++
			}
		case "spec.document_written":
			m.DocumentsWritten++
			if docType, ok := event.Data["type"].(string); ok {
				m.DocumentsByType[docType]++
			}
		case "spec.archived":
			m.SpecsArchived++
		case "workflow.bootstrapped":
			m.Bootstraps++
		}
	}

	return m, nil
}
