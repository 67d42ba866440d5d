package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/valter-silva-au/spec-workflow/internal/observability"
)

func TestParseSinceDuration(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		// approxDuration is the expected approximate duration back from now.
		approxDuration time.Duration
	}{
		{"empty defaults to 7d", "", false, 7 * 24 * time.Hour},
		{"7 days", "7d", false, 7 * 24 * time.Hour},
		{"30 days", "30d", false, 30 * 24 * time.Hour},
		{"24 hours", "24h", false, 24 * time.Hour},
		{"whitespace trimmed", "  3d  ", false, 3 * 24 * time.Hour},
		{"invalid day number", "xd", true, 0},
		{"invalid hour number", "yh", true, 0},
		{"unsupported suffix", "5w", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSinceDuration(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			diff := time.Since(got) - tt.approxDuration
			if diff < -time.Minute || diff > time.Minute {
				t.Errorf("parseSinceDuration(%q) is %v away from expected", tt.input, diff)
			}
		})
	}
}

func TestMetricsCmd_NilCalculator(t *testing.T) {
	orig := MetricsCalc
	defer func() { MetricsCalc = orig }()
	MetricsCalc = nil

	err := metricsCmd.RunE(metricsCmd, []string{})
	if err == nil {
		t.Fatal("expected error when MetricsCalc is nil")
	}
	if !strings.Contains(err.Error(), "not initialized") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMetricsCmd_InvalidSinceFormat(t *testing.T) {
	orig := MetricsCalc
	origSince := metricsSince
	defer func() {
		MetricsCalc = orig
		metricsSince = origSince
	}()

	MetricsCalc = &metricsMock{
		calcFn: func(since time.Time) (*observability.Metrics, error) {
			return &observability.Metrics{}, nil
		},
	}

	tests := []struct {
		name   string
		since  string
		errMsg string
	}{
		{"invalid suffix", "abc", "unsupported duration format"},
		{"invalid day number", "xd", "invalid day duration"},
		{"invalid hour number", "yh", "invalid hour duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metricsSince = tt.since
			err := metricsCmd.RunE(metricsCmd, []string{})
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error %q should contain %q", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestMetricsCmd_Success_TableFormat(t *testing.T) {
	orig := MetricsCalc
	origSince := metricsSince
	origJSON := metricsJSON
	defer func() {
		MetricsCalc = orig
		metricsSince = origSince
		metricsJSON = origJSON
	}()

	metricsSince = "7d"
	metricsJSON = false

	MetricsCalc = &metricsMock{
		calcFn: func(since time.Time) (*observability.Metrics, error) {
			return &observability.Metrics{
				ApprovalsCreated:  5,
				ApprovalsApproved: 3,
				RevisionRequests:  2,
				EventCount:        42,
				ApprovalsByType:   map[string]int{"design": 3, "requirements": 2},
				TasksByStatus:     map[string]int{"completed": 4},
			}, nil
		},
	}

	var err error
	out := captureStdout(t, func() { err = metricsCmd.RunE(metricsCmd, []string{}) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"Events recorded:", "42", "Approvals requested:", "Revisions requested:", "design:", "completed:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	// Map entries are printed in sorted order.
	if strings.Index(out, "design:") > strings.Index(out, "requirements:") {
		t.Errorf("approvals by document not sorted:\n%s", out)
	}
}

func TestMetricsCmd_Success_JSONFormat(t *testing.T) {
	orig := MetricsCalc
	origSince := metricsSince
	origJSON := metricsJSON
	defer func() {
		MetricsCalc = orig
		metricsSince = origSince
		metricsJSON = origJSON
	}()

	metricsSince = "7d"
	metricsJSON = true

	MetricsCalc = &metricsMock{
		calcFn: func(since time.Time) (*observability.Metrics, error) {
			return &observability.Metrics{
				ApprovalsCreated: 2,
				EventCount:       10,
			}, nil
		},
	}

	var err error
	out := captureStdout(t, func() { err = metricsCmd.RunE(metricsCmd, []string{}) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var m observability.Metrics
	if err := json.Unmarshal([]byte(out), &m); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if m.ApprovalsCreated != 2 || m.EventCount != 10 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestMetricsCmd_CalculateError(t *testing.T) {
	orig := MetricsCalc
	origSince := metricsSince
	defer func() {
		MetricsCalc = orig
		metricsSince = origSince
	}()

	metricsSince = "7d"

	MetricsCalc = &metricsMock{
		calcFn: func(since time.Time) (*observability.Metrics, error) {
			return nil, fmt.Errorf("event log corrupted")
		},
	}

	err := metricsCmd.RunE(metricsCmd, []string{})
	if err == nil {
		t.Fatal("expected error from Calculate")
	}
	if !strings.Contains(err.Error(), "calculating metrics") {
		t.Errorf("unexpected error: %v", err)
	}
}
