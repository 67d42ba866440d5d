// Package workflowpath maps a project root to the canonical locations of the
// workflow directory and its subtrees. Every function is pure: no I/O, no
// state. This package exists to avoid import cycles between core and storage.
package workflowpath

import (
	"path/filepath"
	"strings"
)

// DirName is the name of the project-local workflow directory.
const DirName = ".spec-workflow"

// Subtree names under the workflow root.
const (
	SpecsDirName     = "specs"
	SteeringDirName  = "steering"
	ApprovalsDirName = "approvals"
	TemplatesDirName = "templates"
	ArchiveDirName   = "archive"
	LocksDirName     = ".locks"
	EventLogFileName = ".swf_events.jsonl"
)

// WorkflowRoot returns <projectRoot>/.spec-workflow.
func WorkflowRoot(projectRoot string) string {
	return filepath.Join(projectRoot, DirName)
}

// SpecsDir returns the directory holding active specs.
func SpecsDir(projectRoot string) string {
	return filepath.Join(WorkflowRoot(projectRoot), SpecsDirName)
}

// SpecDir returns the directory of a single active spec.
func SpecDir(projectRoot, specName string) string {
	return filepath.Join(SpecsDir(projectRoot), specName)
}

// SpecDocPath returns the path of a spec document, e.g. specs/<name>/tasks.md.
func SpecDocPath(projectRoot, specName, doc string) string {
	return filepath.Join(SpecDir(projectRoot, specName), doc+".md")
}

// SteeringDir returns the directory holding steering documents.
func SteeringDir(projectRoot string) string {
	return filepath.Join(WorkflowRoot(projectRoot), SteeringDirName)
}

// SteeringDocPath returns the path of a steering document, e.g. steering/tech.md.
func SteeringDocPath(projectRoot, doc string) string {
	return filepath.Join(SteeringDir(projectRoot), doc+".md")
}

// ApprovalsDir returns the directory holding all approval records.
func ApprovalsDir(projectRoot string) string {
	return filepath.Join(WorkflowRoot(projectRoot), ApprovalsDirName)
}

// ApprovalSpecDir returns the directory holding the approvals of one spec.
func ApprovalSpecDir(projectRoot, specName string) string {
	return filepath.Join(ApprovalsDir(projectRoot), specName)
}

// ApprovalPath returns the record file of one approval request.
func ApprovalPath(projectRoot, specName, id string) string {
	return filepath.Join(ApprovalSpecDir(projectRoot, specName), id+".json")
}

// TemplatesDir returns the directory holding document templates.
func TemplatesDir(projectRoot string) string {
	return filepath.Join(WorkflowRoot(projectRoot), TemplatesDirName)
}

// TemplatePath returns the on-disk template for a document type.
func TemplatePath(projectRoot, doc string) string {
	return filepath.Join(TemplatesDir(projectRoot), doc+"-template.md")
}

// ArchiveDir returns the archive root.
func ArchiveDir(projectRoot string) string {
	return filepath.Join(WorkflowRoot(projectRoot), ArchiveDirName)
}

// ArchiveSpecsDir returns the directory holding archived specs.
func ArchiveSpecsDir(projectRoot string) string {
	return filepath.Join(ArchiveDir(projectRoot), SpecsDirName)
}

// ArchivedSpecDir returns the directory of a single archived spec.
func ArchivedSpecDir(projectRoot, specName string) string {
	return filepath.Join(ArchiveSpecsDir(projectRoot), specName)
}

// LocksDir returns the directory holding sidecar lock files.
func LocksDir(projectRoot string) string {
	return filepath.Join(WorkflowRoot(projectRoot), LocksDirName)
}

// EventLogPath returns the JSONL event log file.
func EventLogPath(projectRoot string) string {
	return filepath.Join(WorkflowRoot(projectRoot), EventLogFileName)
}

// RequiredDirs lists every directory the workflow layout needs, parents first.
func RequiredDirs(projectRoot string) []string {
	return []string{
		WorkflowRoot(projectRoot),
		SpecsDir(projectRoot),
		SteeringDir(projectRoot),
		ApprovalsDir(projectRoot),
		TemplatesDir(projectRoot),
		ArchiveDir(projectRoot),
		ArchiveSpecsDir(projectRoot),
	}
}

// ToCanonical converts a platform path to its forward-slash form.
func ToCanonical(p string) string {
	return strings.ReplaceAll(filepath.ToSlash(p), `\`, "/")
}

// FromCanonical converts a forward-slash path to the platform form.
func FromCanonical(p string) string {
	return filepath.FromSlash(p)
}

// RelativeToProject returns p relative to projectRoot in canonical form.
// Paths outside the project, or that cannot be related, are returned in
// canonical form unchanged.
func RelativeToProject(projectRoot, p string) string {
	if !filepath.IsAbs(p) {
		return ToCanonical(filepath.Clean(p))
	}
	rel, err := filepath.Rel(projectRoot, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ToCanonical(p)
	}
	return ToCanonical(rel)
}
