package observability

import (
	"fmt"
	"sort"
	"time"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert represents a triggered alert condition.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	Message     string        `json:"message"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertThresholds configures when alerts should fire.
type AlertThresholds struct {
	PendingHours   int `yaml:"pending_approval_hours" json:"pending_approval_hours"`
	RevisionRounds int `yaml:"revision_rounds" json:"revision_rounds"`
}

// DefaultAlertThresholds returns sensible defaults for alert thresholds.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		PendingHours:   24,
		RevisionRounds: 3,
	}
}

// AlertEngine evaluates alert conditions against the event log.
type AlertEngine interface {
	Evaluate() ([]Alert, error)
}

// alertEngine implements AlertEngine by reading events and checking thresholds.
type alertEngine struct {
	eventLog   EventLog
	thresholds AlertThresholds
	now        func() time.Time
}

// NewAlertEngine creates a new AlertEngine with the given EventLog and thresholds.
func NewAlertEngine(eventLog EventLog, thresholds AlertThresholds) AlertEngine {
	return &alertEngine{
		eventLog:   eventLog,
		thresholds: thresholds,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// approvalState is the state of one approval request replayed from events.
type approvalState struct {
	spec      string
	id        string
	docType   string
	status    string
	changedAt time.Time
	revisions int
	duplicate bool
}

// Evaluate replays approval events and checks all alert conditions, returning
// any triggered alerts ordered by approval.
func (ae *alertEngine) Evaluate() ([]Alert, error) {
	now := ae.now()

	states, err := ae.replayApprovals()
	if err != nil {
		return nil, fmt.Errorf("replaying approval events: %w", err)
	}

	var alerts []Alert
	alerts = append(alerts, ae.checkPendingApprovals(states, now)...)
	alerts = append(alerts, ae.checkRevisionRounds(states, now)...)
	alerts = append(alerts, ae.checkDuplicates(states, now)...)
	return alerts, nil
}

// replayApprovals folds approval events into the latest known state per
// approval. Deleted approvals are dropped.
func (ae *alertEngine) replayApprovals() ([]*approvalState, error) {
	events, err := ae.eventLog.Read(EventFilter{})
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]*approvalState)
	for _, event := range events {
		spec, _ := event.Data["spec"].(string)
		switch event.Type {
		case "approval.created":
			id, _ := event.Data["id"].(string)
			if id == "" {
				continue
			}
			docType, _ := event.Data["type"].(string)
			byKey[spec+"/"+id] = &approvalState{
				spec:      spec,
				id:        id,
				docType:   docType,
				status:    "pending",
				changedAt: event.Time,
			}
		case "approval.responded":
			id, _ := event.Data["id"].(string)
			state, ok := byKey[spec+"/"+id]
			if !ok {
				continue
			}
			to, _ := event.Data["to"].(string)
			if to == "" {
				continue
			}
			if to == "needs-revision" {
				state.revisions++
			}
			state.status = to
			state.changedAt = event.Time
		case "approval.deleted":
			id, _ := event.Data["id"].(string)
			delete(byKey, spec+"/"+id)
		case "approval.duplicate_active":
			id, _ := event.Data["existing_id"].(string)
			if state, ok := byKey[spec+"/"+id]; ok {
				state.duplicate = true
			}
		}
	}

	states := make([]*approvalState, 0, len(byKey))
	for _, s := range byKey {
		states = append(states, s)
	}
	sort.Slice(states, func(i, j int) bool {
		if states[i].spec != states[j].spec {
			return states[i].spec < states[j].spec
		}
		return states[i].id < states[j].id
	})
	return states, nil
}

// checkPendingApprovals looks for requests awaiting a decision longer than the threshold.
func (ae *alertEngine) checkPendingApprovals(states []*approvalState, now time.Time) []Alert {
	threshold := time.Duration(ae.thresholds.PendingHours) * time.Hour
	var alerts []Alert
	for _, s := range states {
		if s.status == "pending" && now.Sub(s.changedAt) > threshold {
			alerts = append(alerts, Alert{
				ID:          fmt.Sprintf("pending-%s", s.id),
				Condition:   "approval_pending_too_long",
				Severity:    SeverityHigh,
				Message:     fmt.Sprintf("%s approval %s for spec %s has been pending for more than %d hours", s.docType, s.id, s.spec, ae.thresholds.PendingHours),
				TriggeredAt: now,
			})
		}
	}
	return alerts
}

// checkRevisionRounds looks for requests that went back for revision at
// least as many times as the threshold and are not yet approved or rejected.
func (ae *alertEngine) checkRevisionRounds(states []*approvalState, now time.Time) []Alert {
	if ae.thresholds.RevisionRounds <= 0 {
		return nil
	}
	var alerts []Alert
	for _, s := range states {
		if s.status == "approved" || s.status == "rejected" {
			continue
		}
		if s.revisions >= ae.thresholds.RevisionRounds {
			alerts = append(alerts, Alert{
				ID:          fmt.Sprintf("revisions-%s", s.id),
				Condition:   "too_many_revision_rounds",
				Severity:    SeverityMedium,
				Message:     fmt.Sprintf("%s approval %s for spec %s has gone through %d revision rounds", s.docType, s.id, s.spec, s.revisions),
				TriggeredAt: now,
			})
		}
	}
	return alerts
}

// checkDuplicates reports active requests that another request for the same
// document was raised against.
func (ae *alertEngine) checkDuplicates(states []*approvalState, now time.Time) []Alert {
	var alerts []Alert
	for _, s := range states {
		if !s.duplicate || (s.status != "pending" && s.status != "needs-revision") {
			continue
		}
		alerts = append(alerts, Alert{
			ID:          fmt.Sprintf("duplicate-%s", s.id),
			Condition:   "duplicate_active_approval",
			Severity:    SeverityLow,
			Message:     fmt.Sprintf("spec %s has more than one active %s approval (including %s)", s.spec, s.docType, s.id),
			TriggeredAt: now,
		})
	}
	return alerts
}
