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
	specsArchived bool
	specsFormat   string
)

var specsCmd = &cobra.Command{
	Use:   "specs",
	Short: "Inspect and archive specs",
}

var specsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List specs with their phase and task progress",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Specs == nil {
			return fmt.Errorf("spec manager not initialized")
		}
		if err := validateFormat(specsFormat); err != nil {
			return err
		}

		specs, err := Specs.List(specsArchived)
		if err != nil {
			return fmt.Errorf("listing specs: %w", err)
		}
		if specs == nil {
			specs = []models.SpecInfo{}
		}
		if done, err := printStructured(specsFormat, specs); done {
			return err
		}

		if len(specs) == 0 {
			fmt.Println("No specs found.")
			return nil
		}

		fmt.Printf("  %-24s %-16s %-10s %s\n", "NAME", "PHASE", "TASKS", "MODIFIED")
		fmt.Printf("  %-24s %-16s %-10s %s\n", "----", "-----", "-----", "--------")
		for _, s := range specs {
			name := s.Name
			if s.Archived {
				name += " (archived)"
			}
			fmt.Printf("  %-24s %-16s %-10s %s\n", name, statusLabel(string(s.Phase)), taskProgress(s.TaskSummary), s.LastModified.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var specsStatusCmd = &cobra.Command{
	Use:   "status <name>",
	Short: "Show documents, tasks and approvals of a spec",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Specs == nil {
			return fmt.Errorf("spec manager not initialized")
		}
		if err := validateFormat(specsFormat); err != nil {
			return err
		}

		info, err := Specs.Status(args[0])
		if err != nil {
			return fmt.Errorf("getting spec status: %w", err)
		}
		var approvals []models.ApprovalRequest
		if Approvals != nil {
			approvals, err = Approvals.List(core.ApprovalFilter{SpecName: info.Name})
			if err != nil {
				return fmt.Errorf("listing approvals: %w", err)
			}
		}

		if done, err := printStructured(specsFormat, map[string]any{
			"spec":      info,
			"approvals": approvals,
		}); done {
			return err
		}

		title := info.Name
		if info.Archived {
			title += " (archived)"
		}
		fmt.Printf("Spec: %s\n", title)
		fmt.Printf("  %-12s %s\n", "Phase:", statusLabel(string(info.Phase)))
		fmt.Printf("  %-12s %s\n\n", "Tasks:", taskProgress(info.TaskSummary))

		fmt.Println("  Documents:")
		for _, d := range info.Documents {
			state := "missing"
			if d.Exists {
				state = "present"
				if d.LastModified != nil {
					state += ", " + d.LastModified.Format(time.RFC3339)
				}
			}
			fmt.Printf("    %-14s %s (%s)\n", d.Type, d.Path, state)
		}

		if len(approvals) > 0 {
			fmt.Println("\n  Approvals:")
			for _, a := range approvals {
				fmt.Printf("    %-38s %-14s %-14s %s\n", a.ID, a.Type, statusLabel(string(a.Status)), a.Title)
			}
		}
		return nil
	},
}

var specsArchiveCmd = &cobra.Command{
	Use:   "archive <name>",
	Short: "Move a spec into the archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Specs == nil {
			return fmt.Errorf("spec manager not initialized")
		}
		if err := Specs.Archive(args[0]); err != nil {
			return fmt.Errorf("archiving spec: %w", err)
		}
		fmt.Printf("Archived spec %s\n", args[0])
		return nil
	},
}

var specsUnarchiveCmd = &cobra.Command{
	Use:   "unarchive <name>",
	Short: "Restore an archived spec",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Specs == nil {
			return fmt.Errorf("spec manager not initialized")
		}
		if err := Specs.Unarchive(args[0]); err != nil {
			return fmt.Errorf("unarchiving spec: %w", err)
		}
		fmt.Printf("Restored spec %s\n", args[0])
		return nil
	},
}

var specsSteeringCmd = &cobra.Command{
	Use:   "steering",
	Short: "Show which steering documents exist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Specs == nil {
			return fmt.Errorf("spec manager not initialized")
		}
		docs, err := Specs.SteeringStatus()
		if err != nil {
			return fmt.Errorf("reading steering documents: %w", err)
		}
		for _, d := range docs {
			state := "missing"
			if d.Exists {
				state = "present"
			}
			fmt.Printf("  %-12s %-8s %s\n", d.Type, state, d.Path)
		}
		return nil
	},
}

// taskProgress renders a task summary as "done/total".
func taskProgress(s *models.TaskSummary) string {
	if s == nil {
		return "-"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d/%d", s.Completed, s.Total)
	if s.InProgress > 0 {
		fmt.Fprintf(&b, " (%d active)", s.InProgress)
	}
	return b.String()
}

func init() {
	specsListCmd.Flags().BoolVar(&specsArchived, "archived", false, "Include archived specs")
	specsCmd.PersistentFlags().StringVar(&specsFormat, "format", formatTable, "Output format (table, json, yaml)")
	specsCmd.AddCommand(specsListCmd, specsStatusCmd, specsArchiveCmd, specsUnarchiveCmd, specsSteeringCmd)
	rootCmd.AddCommand(specsCmd)
}
