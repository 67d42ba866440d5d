package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	swfmcp "github.com/valter-silva-au/spec-workflow/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the swf MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the swf MCP server on stdio",
	Long: `Start the swf MCP server on stdio transport.

The project's .spec-workflow layout is created first if it is missing. The
server exposes the workflow as MCP tools that AI coding assistants can call:
spec_list, spec_status, create_spec_doc, get_template, manage_tasks,
request_approval, get_approval_status, delete_approval, get_metrics and
get_alerts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Specs == nil || Tasks == nil || Approvals == nil {
			return fmt.Errorf("workflow services not initialized")
		}

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
		defer stop()

		// Stdout belongs to the protocol, so the bootstrap result is only logged.
		if err := bootstrapQuietly(ctx); err != nil {
			return err
		}

		srv := swfmcp.NewServer(swfmcp.Services{
			Specs:     Specs,
			Tasks:     Tasks,
			Approvals: Approvals,
			Templates: Templates,
			Metrics:   MetricsCalc,
			Alerts:    AlertEngine,
		}, appVersion)

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}

		return nil
	},
}

// bootstrapQuietly makes sure the workflow layout exists, logging what it
// created instead of printing it.
func bootstrapQuietly(ctx context.Context) error {
	if Bootstrapper == nil {
		return nil
	}
	result, err := Bootstrapper.Bootstrap(ctx, ProjectRoot)
	if err != nil {
		return fmt.Errorf("bootstrapping project: %w", err)
	}
	if result.Changed() {
		slog.Info("workflow directory prepared",
			"directories", len(result.Directories.Created),
			"templates", len(result.Templates.Created),
			"ignore", result.Ignore.Action)
	}
	return nil
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
