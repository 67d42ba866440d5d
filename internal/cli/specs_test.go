package cli

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/valter-silva-au/spec-workflow/internal/core"
	"github.com/valter-silva-au/spec-workflow/pkg/models"
)

func withSpecsFormat(t *testing.T, format string) {
	t.Helper()
	orig := specsFormat
	specsFormat = format
	t.Cleanup(func() { specsFormat = orig })
}

func TestSpecsListCmd_NilManager(t *testing.T) {
	useProject(t)
	Specs = nil
	if err := specsListCmd.RunE(specsListCmd, nil); err == nil {
		t.Fatal("expected error when Specs is nil")
	}
}

func TestSpecsListCmd_Empty(t *testing.T) {
	useProject(t)
	withSpecsFormat(t, formatTable)

	out := captureStdout(t, func() {
		if err := specsListCmd.RunE(specsListCmd, nil); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
	if !strings.Contains(out, "No specs found.") {
		t.Errorf("output = %q", out)
	}
}

func TestSpecsListCmd_Table(t *testing.T) {
	root := useProject(t)
	withSpecsFormat(t, formatTable)
	writeSpecDoc(t, root, "auth", models.DocRequirements, "# Requirements\n")
	writeSpecDoc(t, root, "auth", models.DocDesign, "# Design\n")
	writeSpecDoc(t, root, "auth", models.DocTasks, testTasksDoc)
	writeSpecDoc(t, root, "billing", models.DocRequirements, "# Requirements\n")

	out := captureStdout(t, func() {
		if err := specsListCmd.RunE(specsListCmd, nil); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
	for _, want := range []string{"auth", "Implementation", "1/3 (1 active)", "billing", "Design"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSpecsListCmd_JSON(t *testing.T) {
	root := useProject(t)
	withSpecsFormat(t, formatJSON)
	writeSpecDoc(t, root, "auth", models.DocRequirements, "# Requirements\n")

	out := captureStdout(t, func() {
		if err := specsListCmd.RunE(specsListCmd, nil); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
	var specs []models.SpecInfo
	if err := json.Unmarshal([]byte(out), &specs); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if len(specs) != 1 || specs[0].Name != "auth" || specs[0].Phase != models.PhaseDesign {
		t.Errorf("specs = %+v", specs)
	}
}

func TestSpecsListCmd_InvalidFormat(t *testing.T) {
	useProject(t)
	withSpecsFormat(t, "xml")
	err := specsListCmd.RunE(specsListCmd, nil)
	if err == nil || !strings.Contains(err.Error(), "unsupported format") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSpecsStatusCmd(t *testing.T) {
	root := useProject(t)
	withSpecsFormat(t, formatTable)
	writeSpecDoc(t, root, "auth", models.DocRequirements, "# Requirements\n")
	if _, err := Approvals.Create(context.Background(), core.ApprovalInput{
		SpecName: "auth", Type: models.DocRequirements, Title: "Auth requirements",
	}); err != nil {
		t.Fatal(err)
	}

	out := captureStdout(t, func() {
		if err := specsStatusCmd.RunE(specsStatusCmd, []string{"auth"}); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
	for _, want := range []string{"Spec: auth", "Design", "requirements", "present", "missing", "Auth requirements", "Pending"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	err := specsStatusCmd.RunE(specsStatusCmd, []string{"ghost"})
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown spec, got %v", err)
	}
}

func TestSpecsArchiveAndUnarchive(t *testing.T) {
	root := useProject(t)
	writeSpecDoc(t, root, "auth", models.DocRequirements, "# Requirements\n")

	captureStdout(t, func() {
		if err := specsArchiveCmd.RunE(specsArchiveCmd, []string{"auth"}); err != nil {
			t.Fatalf("archive: %v", err)
		}
	})
	active, err := Specs.List(false)
	if err != nil || len(active) != 0 {
		t.Fatalf("active specs after archive = %+v, %v", active, err)
	}

	captureStdout(t, func() {
		if err := specsUnarchiveCmd.RunE(specsUnarchiveCmd, []string{"auth"}); err != nil {
			t.Fatalf("unarchive: %v", err)
		}
	})
	active, err = Specs.List(false)
	if err != nil || len(active) != 1 {
		t.Errorf("active specs after unarchive = %+v, %v", active, err)
	}
}

func TestTaskProgress(t *testing.T) {
	if got := taskProgress(nil); got != "-" {
		t.Errorf("nil summary = %q", got)
	}
	if got := taskProgress(&models.TaskSummary{Total: 4, Completed: 2}); got != "2/4" {
		t.Errorf("got %q", got)
	}
	if got := taskProgress(&models.TaskSummary{Total: 4, Completed: 2, InProgress: 1}); got != "2/4 (1 active)" {
		t.Errorf("got %q", got)
	}
}
