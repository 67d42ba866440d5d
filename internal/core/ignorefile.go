package core

import (
	"strings"

	"github.com/valter-silva-au/spec-workflow/internal/workflowpath"
)

// IgnorePattern is the canonical ignore rule for the workflow directory.
const IgnorePattern = "**/" + workflowpath.DirName + "/"

// IgnoreComment precedes IgnorePattern when the bootstrapper writes it.
const IgnoreComment = "# Spec workflow state (managed by swf)"

// HasIgnoreEntry reports whether content already ignores the workflow
// directory under any of its equivalent spellings: with or without a leading
// "**/" or "/", with or without a trailing slash. Comments and negations do
// not count.
func HasIgnoreEntry(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		if normalizeIgnorePattern(line) == workflowpath.DirName {
			return true
		}
	}
	return false
}

func normalizeIgnorePattern(line string) string {
	p := strings.TrimSpace(line)
	if p == "" || strings.HasPrefix(p, "#") || strings.HasPrefix(p, "!") {
		return ""
	}
	p = strings.TrimPrefix(p, "**/")
	p = strings.TrimPrefix(p, "/")
	p = strings.TrimSuffix(p, "/")
	return p
}

// AppendIgnoreEntry appends the comment and canonical pattern to content,
// separated from existing rules by exactly one blank line. The file's line
// ending style is kept.
func AppendIgnoreEntry(content string) string {
	nl := "\n"
	if strings.Contains(content, "\r\n") {
		nl = "\r\n"
	}
	trimmed := strings.TrimRight(content, "\r\n")
	if strings.TrimSpace(trimmed) == "" {
		return ignoreBlock(nl)
	}
	return trimmed + nl + nl + ignoreBlock(nl)
}

func ignoreBlock(nl string) string {
	return IgnoreComment + nl + IgnorePattern + nl
}
