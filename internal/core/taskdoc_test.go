package core

import (
	"reflect"
	"testing"

	"github.com/valter-silva-au/spec-workflow/pkg/models"
)

const parentChildDoc = "- [ ] 1 Parent\n  - [ ] 1.1 Child A\n  - [x] 1.2 Child B\n"

func TestParseTaskDocument_ParentIsHeader(t *testing.T) {
	doc := ParseTaskDocument(parentChildDoc)

	if len(doc.Tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(doc.Tasks))
	}
	want := models.TaskSummary{Total: 2, Completed: 1, InProgress: 0, Pending: 1}
	if doc.Summary != want {
		t.Errorf("summary = %+v, want %+v", doc.Summary, want)
	}
	if !doc.Tasks[0].IsHeader {
		t.Error("task 1 should be a header")
	}
	if doc.Tasks[1].IsHeader || doc.Tasks[2].IsHeader {
		t.Error("leaf tasks must not be headers")
	}
	if doc.Tasks[1].ParentID != "1" || doc.Tasks[2].ParentID != "1" {
		t.Errorf("children should point at parent 1, got %q and %q", doc.Tasks[1].ParentID, doc.Tasks[2].ParentID)
	}
	if doc.Tasks[1].Description != "Child A" {
		t.Errorf("description = %q, want %q", doc.Tasks[1].Description, "Child A")
	}
	if doc.Tasks[2].Line != 3 || doc.Tasks[2].Indent != 2 {
		t.Errorf("line/indent = %d/%d, want 3/2", doc.Tasks[2].Line, doc.Tasks[2].Indent)
	}
}

func TestSetTaskStatus_ChangesOnlyMarker(t *testing.T) {
	got := SetTaskStatus(parentChildDoc, "1.1", models.TaskCompleted)
	want := "- [ ] 1 Parent\n  - [x] 1.1 Child A\n  - [x] 1.2 Child B\n"
	if got != want {
		t.Errorf("SetTaskStatus =\n%q\nwant\n%q", got, want)
	}
}

func TestSetTaskStatus_Unchanged(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		status models.TaskStatus
	}{
		{"unknown id", "9.9", models.TaskCompleted},
		{"id prefix only", "1.", models.TaskCompleted},
		{"unknown status", "1.1", models.TaskStatus("done-ish")},
		{"same status", "1.2", models.TaskCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SetTaskStatus(parentChildDoc, tt.id, tt.status); got != parentChildDoc {
				t.Errorf("expected document unchanged, got %q", got)
			}
		})
	}
}

func TestSetTaskStatus_PreservesCRLF(t *testing.T) {
	doc := "# Tasks\r\n\r\n- [ ] 1. First\r\n- [-] 2. Second\r\n"
	got := SetTaskStatus(doc, "2", models.TaskPending)
	want := "# Tasks\r\n\r\n- [ ] 1. First\r\n- [ ] 2. Second\r\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	parsed := ParseTaskDocument(got)
	if len(parsed.Tasks) != 2 || parsed.Tasks[1].Description != "Second" {
		t.Errorf("CRLF document parsed incorrectly: %+v", parsed.Tasks)
	}
}

func TestSetTaskStatus_FirstMatchOnly(t *testing.T) {
	doc := "- [ ] 1 One\n- [ ] 1 Duplicate\n"
	got := SetTaskStatus(doc, "1", models.TaskInProgress)
	want := "- [-] 1 One\n- [ ] 1 Duplicate\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		line     string
		kind     LineKind
		id       string
		marker   byte
		metaKind MetadataKind
		value    string
	}{
		{line: "- [ ] 1. Set up", kind: LineTask, id: "1", marker: ' '},
		{line: "  - [-] 2.3 Wire it", kind: LineTask, id: "2.3", marker: '-'},
		{line: "* [x] 10.2.1 Done thing", kind: LineTask, id: "10.2.1", marker: 'x'},
		{line: "- [X] 1 Capital marker", kind: LineProse},
		{line: "- [ ] no id here", kind: LineProse},
		{line: "- [ ]1 missing space", kind: LineProse},
		{line: "  - _Requirements: 1.1, 2.2_", kind: LineMetadata, metaKind: MetaRequirements, value: "1.1, 2.2"},
		{line: "  - **Leverage:** internal/core", kind: LineMetadata, metaKind: MetaLeverage, value: "internal/core"},
		{line: "  - File: cmd/swf/main.go", kind: LineMetadata, metaKind: MetaFiles, value: "cmd/swf/main.go"},
		{line: "  - _Prompt: Role: dev | Task: build_", kind: LineMetadata, metaKind: MetaPrompt, value: "Role: dev | Task: build"},
		{line: "  - Purpose: keep state", kind: LineMetadata, metaKind: MetaPurpose, value: "keep state"},
		{line: "  - Add the parser", kind: LineMetadata, metaKind: MetaDetail, value: "Add the parser"},
		{line: "Plain prose", kind: LineProse},
		{line: "", kind: LineProse},
		{line: "## Heading", kind: LineProse},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got := ClassifyLine(tt.line)
			if got.Kind != tt.kind {
				t.Fatalf("kind = %s, want %s", got.Kind, tt.kind)
			}
			switch tt.kind {
			case LineTask:
				if got.ID != tt.id || got.Marker != tt.marker {
					t.Errorf("id/marker = %q/%q, want %q/%q", got.ID, got.Marker, tt.id, tt.marker)
				}
				if tt.line[got.MarkerOffset] != tt.marker {
					t.Errorf("MarkerOffset %d does not point at the marker", got.MarkerOffset)
				}
			case LineMetadata:
				if got.MetaKind != tt.metaKind || got.MetaValue != tt.value {
					t.Errorf("meta = %s %q, want %s %q", got.MetaKind, got.MetaValue, tt.metaKind, tt.value)
				}
			}
		})
	}
}

func TestParseTaskDocument_Metadata(t *testing.T) {
	doc := `# Tasks Document

- [ ] 1. Build parser
  - File: internal/core/taskdoc.go, internal/core/taskdoc_test.go
  - Classify every line
  - _Requirements: 1.1, 2.3_
  - _Leverage: internal/core/filewriter.go_

  - _Prompt: Role: Go developer | Task: parse_
  - Purpose: parse tasks

Some prose closes the task.
  - stray bullet
- [x] 2. Ship
`
	parsed := ParseTaskDocument(doc)
	if len(parsed.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(parsed.Tasks))
	}
	task := parsed.Tasks[0]

	if want := []string{"internal/core/taskdoc.go", "internal/core/taskdoc_test.go"}; !reflect.DeepEqual(task.Files, want) {
		t.Errorf("Files = %v, want %v", task.Files, want)
	}
	if want := []string{"1.1", "2.3"}; !reflect.DeepEqual(task.Requirements, want) {
		t.Errorf("Requirements = %v, want %v", task.Requirements, want)
	}
	if task.Leverage != "internal/core/filewriter.go" {
		t.Errorf("Leverage = %q", task.Leverage)
	}
	if task.Prompt != "Role: Go developer | Task: parse" {
		t.Errorf("Prompt = %q", task.Prompt)
	}
	if task.Purpose != "parse tasks" {
		t.Errorf("Purpose = %q", task.Purpose)
	}
	if want := []string{"Classify every line"}; !reflect.DeepEqual(task.ImplementationDetails, want) {
		t.Errorf("ImplementationDetails = %v, want %v", task.ImplementationDetails, want)
	}
	if len(parsed.Tasks[1].ImplementationDetails) != 0 {
		t.Errorf("stray bullet after prose must not attach, got %v", parsed.Tasks[1].ImplementationDetails)
	}
}

func TestParseTaskDocument_SiblingBulletNotAttached(t *testing.T) {
	doc := "- [ ] 1 Task\n- note at the same level\n"
	parsed := ParseTaskDocument(doc)
	if len(parsed.Tasks[0].ImplementationDetails) != 0 {
		t.Errorf("same-indent bullet must not attach, got %v", parsed.Tasks[0].ImplementationDetails)
	}
}

func TestParseTaskDocument_Empty(t *testing.T) {
	for _, doc := range []string{"", "# Nothing here\n\nJust prose.\n"} {
		parsed := ParseTaskDocument(doc)
		if len(parsed.Tasks) != 0 {
			t.Errorf("expected no tasks for %q, got %d", doc, len(parsed.Tasks))
		}
		if parsed.Summary != (models.TaskSummary{}) {
			t.Errorf("expected zero summary, got %+v", parsed.Summary)
		}
	}
}

func TestParseTaskDocument_DeepHierarchy(t *testing.T) {
	doc := "- [ ] 1 A\n  - [ ] 1.2.1 Orphan grandchild\n- [ ] 2 B\n"
	parsed := ParseTaskDocument(doc)
	if !parsed.Tasks[0].IsHeader {
		t.Error("1 should be a header because 1.2.1 descends from it")
	}
	if parsed.Tasks[1].ParentID != "1" {
		t.Errorf("ParentID = %q, want nearest existing ancestor 1", parsed.Tasks[1].ParentID)
	}
	if parsed.Tasks[2].IsHeader {
		t.Error("2 has no descendants")
	}
}

func TestFindNextPending_DocumentOrder(t *testing.T) {
	doc := "- [x] 3 Done\n- [ ] 10 Tenth\n- [ ] 2 Second\n"
	res := FindNextPending(ParseTaskDocument(doc).Tasks)
	if res.Task == nil || res.Task.ID != "10" {
		t.Fatalf("expected task 10 (first in document order), got %+v", res.Task)
	}
	if res.AllCompleted {
		t.Error("AllCompleted should be false")
	}
}

func TestFindNextPending_SkipsHeaders(t *testing.T) {
	res := FindNextPending(ParseTaskDocument(parentChildDoc).Tasks)
	if res.Task == nil || res.Task.ID != "1.1" {
		t.Fatalf("expected 1.1, got %+v", res.Task)
	}
}

func TestFindNextPending_InProgressOnly(t *testing.T) {
	doc := "- [-] 1 Working\n- [x] 2 Done\n"
	res := FindNextPending(ParseTaskDocument(doc).Tasks)
	if res.Task != nil {
		t.Fatalf("expected no pending task, got %s", res.Task.ID)
	}
	if len(res.InProgress) != 1 || res.InProgress[0].ID != "1" {
		t.Errorf("InProgress = %+v", res.InProgress)
	}
	if res.AllCompleted {
		t.Error("AllCompleted must be false while a task is in progress")
	}
}

func TestFindNextPending_AllCompleted(t *testing.T) {
	res := FindNextPending(ParseTaskDocument("- [x] 1 A\n- [x] 2 B\n").Tasks)
	if res.Task != nil || !res.AllCompleted {
		t.Errorf("expected all completed, got %+v", res)
	}
	if empty := FindNextPending(nil); empty.AllCompleted {
		t.Error("an empty document is not all completed")
	}
}

func TestGetTaskByID(t *testing.T) {
	tasks := ParseTaskDocument(parentChildDoc).Tasks
	task, ok := GetTaskByID(tasks, "1.2")
	if !ok || task.Status != models.TaskCompleted {
		t.Fatalf("expected completed task 1.2, got %+v %v", task, ok)
	}
	if _, ok := GetTaskByID(tasks, "1.3"); ok {
		t.Error("1.3 should not be found")
	}
}
