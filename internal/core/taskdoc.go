package core

import (
	"regexp"
	"strings"

	"github.com/valter-silva-au/spec-workflow/pkg/models"
)

// LineKind tags the result of classifying one line of a task document.
type LineKind int

const (
	// LineProse is any line that carries no task structure.
	LineProse LineKind = iota
	// LineTask is a checkbox line with a recognized marker and a dotted id.
	LineTask
	// LineMetadata is a bullet or field line that may belong to the task above
	// it. Whether it does depends on indentation, decided by the builder.
	LineMetadata
)

func (k LineKind) String() string {
	switch k {
	case LineTask:
		return "task"
	case LineMetadata:
		return "metadata"
	default:
		return "prose"
	}
}

// MetadataKind identifies what a metadata line contributes to its task.
type MetadataKind string

const (
	MetaRequirements MetadataKind = "requirements"
	MetaLeverage     MetadataKind = "leverage"
	MetaFiles        MetadataKind = "files"
	MetaPurpose      MetadataKind = "purpose"
	MetaPrompt       MetadataKind = "prompt"
	MetaDetail       MetadataKind = "detail"
)

// ClassifiedLine is the tagged result of ClassifyLine. Only the fields that
// belong to Kind are set.
type ClassifiedLine struct {
	Kind   LineKind
	Indent int

	// Task lines.
	Marker       byte
	MarkerOffset int
	ID           string
	Description  string

	// Metadata lines.
	MetaKind  MetadataKind
	MetaValue string
}

var (
	// checkboxPattern matches any bullet followed by a one-character checkbox.
	// Whether the marker is one we recognize is checked separately so that
	// "- [X] 1 foo" is classified as prose rather than as a bullet.
	checkboxPattern = regexp.MustCompile(`^([ \t]*)[-*+] \[(.)\]`)

	// taskRestPattern matches what follows the checkbox of a task line.
	taskRestPattern = regexp.MustCompile(`^ +(\d+(?:\.\d+)*)\.?\s+(.*\S)\s*$`)

	fieldPattern = regexp.MustCompile(`(?i)^[ \t]*(?:[-*+][ \t]+)?(_|\*\*)?(requirements|leverage|files?|purpose|prompt)[ \t]*:(?:\*\*)?[ \t]*(.*)$`)

	bulletPattern = regexp.MustCompile(`^[ \t]*[-*+][ \t]+(.*\S)\s*$`)
)

// ClassifyLine classifies a single line with its line terminator removed.
func ClassifyLine(line string) ClassifiedLine {
	indent := indentWidth(line)

	if m := checkboxPattern.FindStringSubmatchIndex(line); m != nil {
		markerOffset := m[4]
		marker := line[markerOffset]
		if _, ok := models.StatusForMarker(marker); !ok || m[5]-m[4] != 1 {
			return ClassifiedLine{Kind: LineProse, Indent: indent}
		}
		rest := taskRestPattern.FindStringSubmatch(line[m[1]:])
		if rest == nil {
			return ClassifiedLine{Kind: LineProse, Indent: indent}
		}
		return ClassifiedLine{
			Kind:         LineTask,
			Indent:       indent,
			Marker:       marker,
			MarkerOffset: markerOffset,
			ID:           rest[1],
			Description:  rest[2],
		}
	}

	if m := fieldPattern.FindStringSubmatch(line); m != nil {
		value := strings.TrimSpace(m[3])
		switch m[1] {
		case "_":
			value = strings.TrimSpace(strings.TrimSuffix(value, "_"))
		case "**":
			value = strings.TrimSpace(strings.TrimSuffix(value, "**"))
		}
		return ClassifiedLine{
			Kind:      LineMetadata,
			Indent:    indent,
			MetaKind:  fieldKind(m[2]),
			MetaValue: value,
		}
	}

	if m := bulletPattern.FindStringSubmatch(line); m != nil {
		return ClassifiedLine{
			Kind:      LineMetadata,
			Indent:    indent,
			MetaKind:  MetaDetail,
			MetaValue: m[1],
		}
	}

	return ClassifiedLine{Kind: LineProse, Indent: indent}
}

func fieldKind(key string) MetadataKind {
	switch strings.ToLower(key) {
	case "requirements":
		return MetaRequirements
	case "leverage":
		return MetaLeverage
	case "file", "files":
		return MetaFiles
	case "purpose":
		return MetaPurpose
	default:
		return MetaPrompt
	}
}

// indentWidth counts leading whitespace, a tab counting as four columns.
func indentWidth(line string) int {
	width := 0
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case ' ':
			width++
		case '\t':
			width += 4
		default:
			return width
		}
	}
	return width
}

// splitLines splits text into lines keeping their terminators, so that the
// concatenation of the result is text.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.SplitAfter(text, "\n")
}

func trimEOL(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}

// ParseTaskDocument builds the task view of a document in a single pass over
// its lines. Unrecognized lines are skipped; a document without tasks yields
// an empty result.
func ParseTaskDocument(text string) models.TaskDocument {
	var tasks []models.Task
	current := -1

	for i, raw := range splitLines(text) {
		line := trimEOL(raw)
		cl := ClassifyLine(line)

		switch cl.Kind {
		case LineTask:
			status, _ := models.StatusForMarker(cl.Marker)
			tasks = append(tasks, models.Task{
				ID:          cl.ID,
				Description: cl.Description,
				Status:      status,
				Line:        i + 1,
				Indent:      cl.Indent,
			})
			current = len(tasks) - 1
		case LineMetadata:
			if current >= 0 && cl.Indent > tasks[current].Indent {
				attachMetadata(&tasks[current], cl)
				continue
			}
			current = -1
		default:
			if strings.TrimSpace(line) == "" {
				continue
			}
			current = -1
		}
	}

	linkHierarchy(tasks)

	return models.TaskDocument{
		Tasks:   tasks,
		Summary: summarize(tasks),
	}
}

func attachMetadata(t *models.Task, cl ClassifiedLine) {
	switch cl.MetaKind {
	case MetaRequirements:
		t.Requirements = append(t.Requirements, splitList(cl.MetaValue)...)
	case MetaFiles:
		t.Files = append(t.Files, splitList(cl.MetaValue)...)
	case MetaLeverage:
		t.Leverage = joinField(t.Leverage, cl.MetaValue)
	case MetaPurpose:
		t.Purpose = joinField(t.Purpose, cl.MetaValue)
	case MetaPrompt:
		t.Prompt = joinField(t.Prompt, cl.MetaValue)
	default:
		t.ImplementationDetails = append(t.ImplementationDetails, cl.MetaValue)
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinField(existing, value string) string {
	if existing == "" {
		return value
	}
	if value == "" {
		return existing
	}
	return existing + " " + value
}

// linkHierarchy marks every task whose id prefixes another id as a header and
// records the nearest ancestor present in the document as ParentID.
func linkHierarchy(tasks []models.Task) {
	ids := make(map[string]bool, len(tasks))
	hasDescendant := make(map[string]bool)
	for _, t := range tasks {
		ids[t.ID] = true
		for _, p := range idPrefixes(t.ID) {
			hasDescendant[p] = true
		}
	}
	for i := range tasks {
		tasks[i].IsHeader = hasDescendant[tasks[i].ID]
		prefixes := idPrefixes(tasks[i].ID)
		for j := len(prefixes) - 1; j >= 0; j-- {
			if ids[prefixes[j]] {
				tasks[i].ParentID = prefixes[j]
				break
			}
		}
	}
}

// idPrefixes returns the proper dotted prefixes of id, shortest first:
// "1.2.3" yields ["1", "1.2"].
func idPrefixes(id string) []string {
	var out []string
	for i := 0; i < len(id); i++ {
		if id[i] == '.' {
			out = append(out, id[:i])
		}
	}
	return out
}

func summarize(tasks []models.Task) models.TaskSummary {
	var s models.TaskSummary
	for _, t := range tasks {
		if t.IsHeader {
			continue
		}
		s.Total++
		switch t.Status {
		case models.TaskCompleted:
			s.Completed++
		case models.TaskInProgress:
			s.InProgress++
		default:
			s.Pending++
		}
	}
	return s
}

// GetTaskByID returns the first task with exactly the given id.
func GetTaskByID(tasks []models.Task, id string) (*models.Task, bool) {
	for i := range tasks {
		if tasks[i].ID == id {
			return &tasks[i], true
		}
	}
	return nil, false
}

// NextTaskResult is the answer to "what should be worked on next".
// When Task is nil, InProgress lists the tasks still underway; AllCompleted is
// true only when there is at least one task and none is pending or in progress.
type NextTaskResult struct {
	Task         *models.Task  `json:"task,omitempty" yaml:"task,omitempty"`
	InProgress   []models.Task `json:"in_progress,omitempty" yaml:"in_progress,omitempty"`
	AllCompleted bool          `json:"all_completed" yaml:"all_completed"`
}

// FindNextPending returns the first non-header pending task in document
// order. Numeric id order is not consulted.
func FindNextPending(tasks []models.Task) NextTaskResult {
	var res NextTaskResult
	for i := range tasks {
		t := tasks[i]
		if t.IsHeader {
			continue
		}
		switch t.Status {
		case models.TaskPending:
			if res.Task == nil {
				res.Task = &tasks[i]
			}
		case models.TaskInProgress:
			res.InProgress = append(res.InProgress, t)
		}
	}
	if res.Task == nil && len(res.InProgress) == 0 {
		res.AllCompleted = summarize(tasks).Total > 0
	}
	return res
}

// SetTaskStatus returns text with the marker of the first task line whose id
// equals id replaced by the marker for status. Every other byte is kept. If no
// line matches, or status is unknown, text is returned unchanged.
func SetTaskStatus(text, id string, status models.TaskStatus) string {
	marker, ok := models.MarkerFor(status)
	if !ok {
		return text
	}
	offset := 0
	for _, raw := range splitLines(text) {
		cl := ClassifyLine(trimEOL(raw))
		if cl.Kind == LineTask && cl.ID == id {
			pos := offset + cl.MarkerOffset
			if text[pos] == marker {
				return text
			}
			return text[:pos] + string(marker) + text[pos+1:]
		}
		offset += len(raw)
	}
	return text
}
