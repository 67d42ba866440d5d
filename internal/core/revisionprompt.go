package core

import (
	"fmt"
	"strings"

	"github.com/valter-silva-au/spec-workflow/pkg/models"
)

var revisionInstructions = []string{
	"Address every requested change listed above.",
	"Locate each quoted selection in the document and revise that passage.",
	"Leave sections that received no feedback unchanged.",
	"Keep the document's structure and formatting intact.",
	"Request a new approval once the revisions are complete.",
}

// BuildRevisionPrompt turns reviewer feedback into a structured revision
// request. The result depends only on its arguments.
func BuildRevisionPrompt(title string, comments []models.ApprovalComment, feedback string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Revision Request: %s\n", title)

	if fb := strings.TrimSpace(feedback); fb != "" {
		b.WriteString("\n## General Feedback\n\n")
		b.WriteString(fb)
		b.WriteString("\n")
	}

	var general []models.ApprovalComment
	n := 0
	for _, c := range comments {
		if c.Type != models.CommentSelection {
			general = append(general, c)
			continue
		}
		if n == 0 {
			b.WriteString("\n## Requested Changes\n")
		}
		n++
		fmt.Fprintf(&b, "\n### Change %d\n\nSelected text:\n", n)
		for _, line := range strings.Split(c.SelectedText, "\n") {
			b.WriteString("> ")
			b.WriteString(line)
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "\nFeedback: %s\n", strings.TrimSpace(c.Comment))
	}

	if len(general) > 0 {
		b.WriteString("\n## Additional Comments\n\n")
		for i, c := range general {
			fmt.Fprintf(&b, "%d. %s\n", i+1, strings.TrimSpace(c.Comment))
		}
	}

	b.WriteString("\n## Revision Instructions\n\n")
	for i, line := range revisionInstructions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, line)
	}
	return b.String()
}
