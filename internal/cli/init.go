package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/spec-workflow/internal/core"
	"github.com/valter-silva-au/spec-workflow/internal/workflowpath"
)

var initNoConfig bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the .spec-workflow directory layout",
	Long: `Create the .spec-workflow directory layout in the project root, copy the
default document templates into it, add the workflow directory to the
repository's .gitignore and write a default .swfconfig.

Safe to run repeatedly -- directories, templates and config that already
exist are left untouched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Bootstrapper == nil {
			return fmt.Errorf("bootstrapper not initialized")
		}

		result, err := Bootstrapper.Bootstrap(commandContext(cmd), ProjectRoot)
		if err != nil {
			return fmt.Errorf("bootstrapping project: %w", err)
		}

		printPaths("Created:", result.Directories.Created)
		printPaths("Templates written:", result.Templates.Created)
		if skipped := len(result.Directories.Skipped) + len(result.Templates.Skipped); skipped > 0 {
			fmt.Printf("Skipped %d path(s) that already exist.\n", skipped)
		}

		switch result.Ignore.Action {
		case core.ActionFailed:
			fmt.Printf("Ignore file: %s\n", result.Ignore.Message)
		case core.ActionCreated, core.ActionUpdated:
			fmt.Printf("Ignore file %s: %s\n", result.Ignore.Action, workflowpath.RelativeToProject(ProjectRoot, result.Ignore.Path))
		}

		if !initNoConfig && ConfigMgr != nil {
			created, err := ConfigMgr.WriteDefaultConfig()
			if err != nil {
				return fmt.Errorf("writing default config: %w", err)
			}
			if created {
				fmt.Printf("Config written: %s\n", core.ConfigFileName)
			}
		}

		fmt.Printf("\nSpec workflow initialized at %s\n", workflowpath.WorkflowRoot(ProjectRoot))
		return nil
	},
}

func printPaths(heading string, paths []string) {
	if len(paths) == 0 {
		return
	}
	fmt.Println(heading)
	for _, p := range paths {
		fmt.Printf("  %s\n", workflowpath.RelativeToProject(ProjectRoot, p))
	}
}

func init() {
	initCmd.Flags().BoolVar(&initNoConfig, "no-config", false, "Do not write a default "+core.ConfigFileName)
	rootCmd.AddCommand(initCmd)
}
