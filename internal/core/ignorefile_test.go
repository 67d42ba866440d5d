package core

import (
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestHasIgnoreEntry(t *testing.T) {
	tests := []struct {
		content string
		want    bool
	}{
		{".spec-workflow\n", true},
		{".spec-workflow/\n", true},
		{"**/.spec-workflow\n", true},
		{"**/.spec-workflow/\n", true},
		{"/.spec-workflow\n", true},
		{"/.spec-workflow/\n", true},
		{"  .spec-workflow/  \r\n", true},
		{"node_modules/\n# .spec-workflow/\n", false},
		{"!.spec-workflow/\n", false},
		{".spec-workflow-old/\n", false},
		{"docs/.spec-workflow/\n", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := HasIgnoreEntry(tt.content); got != tt.want {
			t.Errorf("HasIgnoreEntry(%q) = %v, want %v", tt.content, got, tt.want)
		}
	}
}

func TestAppendIgnoreEntry(t *testing.T) {
	block := IgnoreComment + "\n" + IgnorePattern + "\n"
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"empty", "", block},
		{"only newlines", "\n\n", block},
		{"no trailing newline", "dist", "dist\n\n" + block},
		{"trailing newline", "dist\n", "dist\n\n" + block},
		{"many trailing blanks", "dist\n\n\n\n", "dist\n\n" + block},
		{"crlf", "dist\r\nbin\r\n", "dist\r\nbin\r\n\r\n" + IgnoreComment + "\r\n" + IgnorePattern + "\r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AppendIgnoreEntry(tt.content); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

// Property: appending to any ignore file yields a file that already has the
// entry, and appending is only ever needed once.
func TestProperty_IgnoreAppendConverges(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		lines := rapid.SliceOfN(rapid.StringMatching(`[a-z_*/.]{0,12}`), 0, 8).Draw(rt, "lines")
		content := strings.Join(lines, "\n")
		if HasIgnoreEntry(content) {
			rt.Skip("already ignored")
		}
		once := AppendIgnoreEntry(content)
		if !HasIgnoreEntry(once) {
			rt.Fatalf("appended content lacks the entry: %q", once)
		}
		if strings.Count(once, IgnorePattern) != 1 {
			rt.Fatalf("pattern should appear once in %q", once)
		}
		if !strings.HasPrefix(once, strings.TrimRight(content, "\r\n")) {
			rt.Fatalf("existing rules must be kept: %q -> %q", content, once)
		}
	})
}

// Property: every textual variant of the workflow rule is recognized.
func TestProperty_IgnoreVariantsRecognized(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		prefix := rapid.SampledFrom([]string{"", "/", "**/"}).Draw(rt, "prefix")
		suffix := rapid.SampledFrom([]string{"", "/"}).Draw(rt, "suffix")
		before := rapid.SliceOfN(rapid.StringMatching(`[a-z]{1,8}/`), 0, 4).Draw(rt, "before")
		lines := append(before, prefix+".spec-workflow"+suffix)
		if !HasIgnoreEntry(strings.Join(lines, "\n") + "\n") {
			rt.Fatalf("variant %q not recognized", prefix+".spec-workflow"+suffix)
		}
	})
}
