package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by --format.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

var titleCaser = cases.Title(language.English)

// statusLabel turns a status or phase identifier such as "needs-revision"
// into a display label ("Needs Revision").
func statusLabel(s string) string {
	return titleCaser.String(strings.NewReplacer("-", " ", "_", " ").Replace(s))
}

// commandContext returns the command's context, or a background context when
// the command is run directly rather than through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func validateFormat(format string) error {
	switch format {
	case formatTable, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("unsupported format %q (use table, json or yaml)", format)
}

// printStructured writes v as JSON or YAML. It reports false for the table
// format so the caller can render its own table.
func printStructured(format string, v any) (bool, error) {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return true, fmt.Errorf("formatting output as JSON: %w", err)
		}
		fmt.Println(string(data))
		return true, nil
	case formatYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return true, fmt.Errorf("formatting output as YAML: %w", err)
		}
		fmt.Print(string(data))
		return true, nil
	}
	return false, nil
}
