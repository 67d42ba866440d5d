package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/spec-workflow/pkg/models"
)

var (
	tasksFormat string
	tasksStatus string
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Read and update a spec's task list",
}

var tasksListCmd = &cobra.Command{
	Use:   "list <spec>",
	Short: "List the tasks of a spec",
	Long: `List the tasks of a spec in document order, indented by hierarchy.

Use --status to show only pending, in-progress or completed tasks; headers are
always shown so the hierarchy stays readable.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Tasks == nil {
			return fmt.Errorf("task service not initialized")
		}
		if err := validateFormat(tasksFormat); err != nil {
			return err
		}
		var filter models.TaskStatus
		if tasksStatus != "" {
			s, ok := models.ParseTaskStatus(tasksStatus)
			if !ok {
				return fmt.Errorf("invalid --status %q (use pending, in-progress or completed)", tasksStatus)
			}
			filter = s
		}

		doc, err := Tasks.Load(args[0])
		if err != nil {
			return fmt.Errorf("loading tasks: %w", err)
		}
		if filter != "" {
			doc = filterTasks(doc, filter)
		}
		if done, err := printStructured(tasksFormat, doc); done {
			return err
		}

		if len(doc.Tasks) == 0 {
			fmt.Println("No tasks found.")
			return nil
		}
		for _, t := range doc.Tasks {
			fmt.Println(renderTaskLine(t))
		}
		s := doc.Summary
		fmt.Printf("\n  %d/%d completed, %d in progress, %d pending\n", s.Completed, s.Total, s.InProgress, s.Pending)
		return nil
	},
}

var tasksNextCmd = &cobra.Command{
	Use:   "next <spec>",
	Short: "Show the next task to work on",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Tasks == nil {
			return fmt.Errorf("task service not initialized")
		}
		if err := validateFormat(tasksFormat); err != nil {
			return err
		}

		next, err := Tasks.Next(args[0])
		if err != nil {
			return fmt.Errorf("finding next task: %w", err)
		}
		if done, err := printStructured(tasksFormat, next); done {
			return err
		}

		switch {
		case next.Task != nil:
			fmt.Printf("Next: %s %s\n", next.Task.ID, next.Task.Description)
		case next.AllCompleted:
			fmt.Println("All tasks completed.")
		case len(next.InProgress) > 0:
			fmt.Println("No pending tasks. Still in progress:")
			for _, t := range next.InProgress {
				fmt.Printf("  %s %s\n", t.ID, t.Description)
			}
		default:
			fmt.Println("No tasks found.")
		}
		return nil
	},
}

var tasksShowCmd = &cobra.Command{
	Use:   "show <spec> <task-id>",
	Short: "Show a task with its metadata",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Tasks == nil {
			return fmt.Errorf("task service not initialized")
		}
		if err := validateFormat(tasksFormat); err != nil {
			return err
		}

		task, err := Tasks.GetTask(args[0], args[1])
		if err != nil {
			return fmt.Errorf("getting task: %w", err)
		}
		if done, err := printStructured(tasksFormat, task); done {
			return err
		}
		printTaskDetail(task)
		return nil
	},
}

var tasksSetCmd = &cobra.Command{
	Use:   "set <spec> <task-id> <status>",
	Short: "Set the status of a task",
	Long: `Set the status of a task by rewriting its checkbox marker in tasks.md.

Accepted statuses: pending, in-progress, completed (also todo, in_progress, done).`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Tasks == nil {
			return fmt.Errorf("task service not initialized")
		}
		status, ok := models.ParseTaskStatus(args[2])
		if !ok {
			return fmt.Errorf("invalid status %q (use pending, in-progress or completed)", args[2])
		}

		task, err := Tasks.SetStatus(commandContext(cmd), args[0], args[1], status)
		if err != nil {
			return fmt.Errorf("setting task status: %w", err)
		}
		fmt.Printf("Task %s is now %s\n", task.ID, statusLabel(string(task.Status)))
		return nil
	},
}

// filterTasks keeps headers and the tasks with the given status. The summary
// still describes the whole document.
func filterTasks(doc *models.TaskDocument, status models.TaskStatus) *models.TaskDocument {
	out := &models.TaskDocument{Summary: doc.Summary}
	for _, t := range doc.Tasks {
		if t.IsHeader || t.Status == status {
			out.Tasks = append(out.Tasks, t)
		}
	}
	return out
}

// renderTaskLine draws one task as a checkbox line indented by its depth in
// the id hierarchy.
func renderTaskLine(t models.Task) string {
	depth := strings.Count(t.ID, ".")
	marker, ok := models.MarkerFor(t.Status)
	if !ok {
		marker = '?'
	}
	line := fmt.Sprintf("%s[%c] %s %s", strings.Repeat("  ", depth+1), marker, t.ID, t.Description)
	if t.IsHeader {
		line += " (header)"
	}
	return line
}

func printTaskDetail(t *models.Task) {
	fmt.Printf("Task %s: %s\n", t.ID, t.Description)
	fmt.Printf("  %-16s %s\n", "Status:", statusLabel(string(t.Status)))
	if t.ParentID != "" {
		fmt.Printf("  %-16s %s\n", "Parent:", t.ParentID)
	}
	fmt.Printf("  %-16s %d\n", "Line:", t.Line)
	if t.Purpose != "" {
		fmt.Printf("  %-16s %s\n", "Purpose:", t.Purpose)
	}
	if t.Leverage != "" {
		fmt.Printf("  %-16s %s\n", "Leverage:", t.Leverage)
	}
	if len(t.Requirements) > 0 {
		fmt.Printf("  %-16s %s\n", "Requirements:", strings.Join(t.Requirements, ", "))
	}
	if len(t.Files) > 0 {
		fmt.Printf("  %-16s %s\n", "Files:", strings.Join(t.Files, ", "))
	}
	if len(t.ImplementationDetails) > 0 {
		fmt.Println("  Implementation:")
		for _, d := range t.ImplementationDetails {
			fmt.Printf("    - %s\n", d)
		}
	}
	if t.Prompt != "" {
		fmt.Printf("\n  Prompt:\n    %s\n", t.Prompt)
	}
}

func init() {
	tasksCmd.PersistentFlags().StringVar(&tasksFormat, "format", formatTable, "Output format (table, json, yaml)")
	tasksListCmd.Flags().StringVar(&tasksStatus, "status", "", "Only show tasks with this status")
	tasksCmd.AddCommand(tasksListCmd, tasksNextCmd, tasksShowCmd, tasksSetCmd)
	rootCmd.AddCommand(tasksCmd)
}
