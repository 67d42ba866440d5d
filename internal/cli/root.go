package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// ProjectEnvKey names the environment variable that overrides the project root.
const ProjectEnvKey = "SWF_PROJECT"

// Setup wires the services for a project root and sets the package-level
// service variables. It is assigned by main; when nil the variables are used
// as they are, which is what the tests rely on.
var Setup func(projectRoot string) (io.Closer, error)

var (
	projectFlag  string
	logLevelFlag string

	appCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "swf",
	Short: "Spec workflow - spec-driven development state engine",
	Long: `swf manages the spec workflow state of a project: the .spec-workflow
directory, spec and steering documents, hierarchical task lists and
approval requests.

It provides CLI commands for inspecting and updating that state, an MCP
server for AI assistants, a web dashboard and a terminal dashboard.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupProject,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("swf %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

// setupProject resolves the project root, wires the services for it and
// configures diagnostics logging.
func setupProject(cmd *cobra.Command, args []string) error {
	if cmd == versionCmd {
		return nil
	}

	root, err := resolveProjectRoot(projectFlag)
	if err != nil {
		return err
	}
	if Setup != nil {
		closer, err := Setup(root)
		if err != nil {
			return fmt.Errorf("initializing project %s: %w", root, err)
		}
		appCloser = closer
	}
	if ProjectRoot == "" {
		ProjectRoot = root
	}

	configLevel := ""
	if Config != nil {
		configLevel = Config.LogLevel
	}
	warning, err := configureLoggerForCLI(logLevelFlag, configLevel)
	if err != nil {
		return err
	}
	if warning != "" {
		fmt.Fprintln(os.Stderr, warning)
	}
	return nil
}

// resolveProjectRoot picks --project, then SWF_PROJECT, then the working
// directory, and returns it as an absolute path.
func resolveProjectRoot(flagValue string) (string, error) {
	root := flagValue
	if root == "" {
		root = os.Getenv(ProjectEnvKey)
	}
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolving working directory: %w", err)
		}
		root = cwd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving project path %q: %w", root, err)
	}
	return abs, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&projectFlag, "project", "", "Project root (defaults to $"+ProjectEnvKey+" or the working directory)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Diagnostics log level (debug, info, warn, error)")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command and releases whatever Setup opened.
func Execute() error {
	err := rootCmd.Execute()
	if appCloser != nil {
		if cerr := appCloser.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing project: %w", cerr)
		}
		appCloser = nil
	}
	return err
}
