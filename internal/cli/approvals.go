package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/spec-workflow/internal/core"
	"github.com/valter-silva-au/spec-workflow/pkg/models"
)

var (
	approvalsFormat string
	approvalsSpec   string
	approvalsStatus string

	requestTitle string
	requestFile  string

	respondStatus      string
	respondResponse    string
	respondAnnotations string
	respondComments    []string
	respondSelections  []string

	promptFeedback string
	deleteForce    bool
)

// selectionSeparator splits a --selection value into the selected text and
// the comment on it.
const selectionSeparator = "::"

var approvalsCmd = &cobra.Command{
	Use:   "approvals",
	Short: "Manage document approval requests",
}

var approvalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List approval requests",
	Long: `List approval requests, oldest first.

Filter with --spec and with --status, which takes a comma-separated list
(e.g. --status pending,needs-revision).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Approvals == nil {
			return fmt.Errorf("approval manager not initialized")
		}
		if err := validateFormat(approvalsFormat); err != nil {
			return err
		}
		statuses, err := parseApprovalStatuses(approvalsStatus)
		if err != nil {
			return err
		}

		reqs, err := Approvals.List(core.ApprovalFilter{SpecName: approvalsSpec, Status: statuses})
		if err != nil {
			return fmt.Errorf("listing approvals: %w", err)
		}
		if reqs == nil {
			reqs = []models.ApprovalRequest{}
		}
		if done, err := printStructured(approvalsFormat, reqs); done {
			return err
		}

		if len(reqs) == 0 {
			fmt.Println("No approvals found.")
			return nil
		}
		fmt.Printf("  %-36s %-16s %-12s %-14s %s\n", "ID", "SPEC", "TYPE", "STATUS", "TITLE")
		fmt.Printf("  %-36s %-16s %-12s %-14s %s\n", "--", "----", "----", "------", "-----")
		for _, r := range reqs {
			fmt.Printf("  %-36s %-16s %-12s %-14s %s\n", r.ID, r.SpecName, r.Type, statusLabel(string(r.Status)), r.Title)
		}
		return nil
	},
}

var approvalsRequestCmd = &cobra.Command{
	Use:   "request <spec> <document>",
	Short: "Request approval of a spec or steering document",
	Long: `Create a pending approval request for a document.

document is one of requirements, design, tasks (spec documents) or product,
tech, structure (steering documents).`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Approvals == nil {
			return fmt.Errorf("approval manager not initialized")
		}
		title := requestTitle
		if title == "" {
			title = fmt.Sprintf("%s %s", args[0], statusLabel(args[1]))
		}

		req, err := Approvals.Create(commandContext(cmd), core.ApprovalInput{
			SpecName: args[0],
			Type:     models.DocumentType(args[1]),
			Title:    title,
			FilePath: requestFile,
		})
		if err != nil {
			return fmt.Errorf("requesting approval: %w", err)
		}
		fmt.Printf("Created approval %s for %s (%s)\n", req.ID, req.FilePath, req.Status)
		return nil
	},
}

var approvalsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an approval request with its comments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Approvals == nil {
			return fmt.Errorf("approval manager not initialized")
		}
		if err := validateFormat(approvalsFormat); err != nil {
			return err
		}
		req, err := lookupApproval(args[0])
		if err != nil {
			return fmt.Errorf("getting approval: %w", err)
		}
		if done, err := printStructured(approvalsFormat, req); done {
			return err
		}
		printApprovalDetail(req)
		return nil
	},
}

var approvalsRespondCmd = &cobra.Command{
	Use:   "respond <id>",
	Short: "Approve, reject or request revision of a document",
	Long: `Record a reviewer decision on an approval request.

--status is one of approved, rejected or needs-revision. General comments are
added with --comment; comments on a passage use --selection "text::comment".
Both flags may be repeated and comments accumulate across responses.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Approvals == nil {
			return fmt.Errorf("approval manager not initialized")
		}
		comments, err := buildComments(respondComments, respondSelections)
		if err != nil {
			return err
		}
		req, err := lookupApproval(args[0])
		if err != nil {
			return fmt.Errorf("getting approval: %w", err)
		}

		updated, err := Approvals.Respond(commandContext(cmd), req.SpecName, req.ID, core.ApprovalResponse{
			Status:      models.ApprovalStatus(respondStatus),
			Response:    respondResponse,
			Annotations: respondAnnotations,
			Comments:    comments,
		})
		if err != nil {
			return fmt.Errorf("responding to approval: %w", err)
		}
		fmt.Printf("Approval %s is now %s (%d comment(s))\n", updated.ID, statusLabel(string(updated.Status)), len(updated.Comments))
		if updated.Status == models.ApprovalNeedsRevision {
			fmt.Printf("Run 'swf approvals prompt %s' for the revision instructions.\n", updated.ID)
		}
		return nil
	},
}

var approvalsPromptCmd = &cobra.Command{
	Use:   "prompt <id>",
	Short: "Print the revision prompt for an approval request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Approvals == nil {
			return fmt.Errorf("approval manager not initialized")
		}
		req, err := lookupApproval(args[0])
		if err != nil {
			return fmt.Errorf("getting approval: %w", err)
		}
		fmt.Println(Approvals.RevisionPrompt(req, promptFeedback))
		return nil
	},
}

var approvalsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a decided approval request",
	Long: `Delete an approval request record.

Only approved or rejected requests are deleted unless --force is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Approvals == nil {
			return fmt.Errorf("approval manager not initialized")
		}
		req, err := lookupApproval(args[0])
		if err != nil {
			return fmt.Errorf("getting approval: %w", err)
		}
		if !req.Status.IsTerminal() && !deleteForce {
			return fmt.Errorf("approval %s is still %s; use --force to delete it anyway", req.ID, req.Status)
		}
		if err := Approvals.Delete(req.SpecName, req.ID); err != nil {
			return fmt.Errorf("deleting approval: %w", err)
		}
		fmt.Printf("Deleted approval %s\n", req.ID)
		return nil
	},
}

// lookupApproval resolves an id within --spec when given and across all
// specs otherwise.
func lookupApproval(id string) (*models.ApprovalRequest, error) {
	if approvalsSpec != "" {
		return Approvals.Get(approvalsSpec, id)
	}
	return Approvals.Find(id)
}

func parseApprovalStatuses(raw string) ([]models.ApprovalStatus, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out []models.ApprovalStatus
	for _, part := range strings.Split(raw, ",") {
		s := models.ApprovalStatus(strings.TrimSpace(part))
		switch s {
		case models.ApprovalPending, models.ApprovalApproved, models.ApprovalRejected, models.ApprovalNeedsRevision:
			out = append(out, s)
		default:
			return nil, fmt.Errorf("invalid --status %q (use pending, approved, rejected or needs-revision)", part)
		}
	}
	return out, nil
}

func buildComments(general, selections []string) ([]models.ApprovalComment, error) {
	var out []models.ApprovalComment
	for _, sel := range selections {
		text, comment, ok := strings.Cut(sel, selectionSeparator)
		if !ok || strings.TrimSpace(text) == "" || strings.TrimSpace(comment) == "" {
			return nil, fmt.Errorf("invalid --selection %q (use \"selected text%scomment\")", sel, selectionSeparator)
		}
		out = append(out, models.ApprovalComment{
			Type:         models.CommentSelection,
			SelectedText: strings.TrimSpace(text),
			Comment:      strings.TrimSpace(comment),
		})
	}
	for _, c := range general {
		out = append(out, models.ApprovalComment{Type: models.CommentGeneral, Comment: c})
	}
	return out, nil
}

func printApprovalDetail(r *models.ApprovalRequest) {
	fmt.Printf("Approval %s\n", r.ID)
	fmt.Printf("  %-12s %s\n", "Title:", r.Title)
	fmt.Printf("  %-12s %s\n", "Spec:", r.SpecName)
	fmt.Printf("  %-12s %s (%s)\n", "Document:", r.Type, r.Category)
	fmt.Printf("  %-12s %s\n", "File:", r.FilePath)
	fmt.Printf("  %-12s %s\n", "Status:", statusLabel(string(r.Status)))
	fmt.Printf("  %-12s %s\n", "Created:", r.CreatedAt.Format(time.RFC3339))
	if r.RespondedAt != nil {
		fmt.Printf("  %-12s %s\n", "Responded:", r.RespondedAt.Format(time.RFC3339))
	}
	if r.Response != "" {
		fmt.Printf("  %-12s %s\n", "Response:", r.Response)
	}
	if r.Annotations != "" {
		fmt.Printf("  %-12s %s\n", "Annotations:", r.Annotations)
	}
	if len(r.Comments) == 0 {
		return
	}
	fmt.Printf("\n  Comments (%d):\n", len(r.Comments))
	for i, c := range r.Comments {
		if c.Type == models.CommentSelection {
			fmt.Printf("    %d. on %q: %s\n", i+1, c.SelectedText, c.Comment)
			continue
		}
		fmt.Printf("    %d. %s\n", i+1, c.Comment)
	}
}

func init() {
	approvalsCmd.PersistentFlags().StringVar(&approvalsFormat, "format", formatTable, "Output format (table, json, yaml)")
	approvalsCmd.PersistentFlags().StringVar(&approvalsSpec, "spec", "", "Restrict to one spec")

	approvalsListCmd.Flags().StringVar(&approvalsStatus, "status", "", "Comma-separated statuses to include")

	approvalsRequestCmd.Flags().StringVar(&requestTitle, "title", "", "Title shown to the reviewer")
	approvalsRequestCmd.Flags().StringVar(&requestFile, "file", "", "Project-relative document path (defaults to the document's location)")

	approvalsRespondCmd.Flags().StringVar(&respondStatus, "status", "", "Decision: approved, rejected or needs-revision")
	approvalsRespondCmd.Flags().StringVar(&respondResponse, "response", "", "Reviewer response text")
	approvalsRespondCmd.Flags().StringVar(&respondAnnotations, "annotations", "", "Free-form annotations")
	approvalsRespondCmd.Flags().StringArrayVar(&respondComments, "comment", nil, "General comment (repeatable)")
	approvalsRespondCmd.Flags().StringArrayVar(&respondSelections, "selection", nil, "Comment on a passage as \"text::comment\" (repeatable)")
	_ = approvalsRespondCmd.MarkFlagRequired("status")

	approvalsPromptCmd.Flags().StringVar(&promptFeedback, "feedback", "", "Feedback to include instead of the stored response")
	approvalsDeleteCmd.Flags().BoolVar(&deleteForce, "force", false, "Delete even if the request is still pending or needs revision")

	approvalsCmd.AddCommand(approvalsListCmd, approvalsRequestCmd, approvalsShowCmd, approvalsRespondCmd, approvalsPromptCmd, approvalsDeleteCmd)
	rootCmd.AddCommand(approvalsCmd)
}
