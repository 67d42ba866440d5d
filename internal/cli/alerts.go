package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var alertsNotify bool

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Show active alerts and warnings",
	Long: `Evaluate alert conditions against the event log and display any triggered alerts.

Alerts check for approvals left pending too long, approvals that went through
too many revision rounds and duplicate active requests for one document.
With --notify the alerts are also posted to alerts.webhook_url.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if AlertEngine == nil {
			return fmt.Errorf("alert engine not initialized (events_enabled may be off)")
		}
		if alertsNotify && Notifier == nil {
			return fmt.Errorf("--notify requires alerts.webhook_url to be configured")
		}

		alerts, err := AlertEngine.Evaluate()
		if err != nil {
			return fmt.Errorf("evaluating alerts: %w", err)
		}

		if len(alerts) == 0 {
			fmt.Println("No active alerts.")
			return nil
		}

		fmt.Printf("%d active alert(s):\n\n", len(alerts))
		for _, alert := range alerts {
			severity := strings.ToUpper(string(alert.Severity))
			fmt.Printf("  [%s] %s\n", severity, alert.Message)
			fmt.Printf("         triggered at %s\n\n", alert.TriggeredAt.Format("2006-01-02 15:04 UTC"))
		}

		if alertsNotify {
			if err := Notifier.Notify(commandContext(cmd), alerts); err != nil {
				return fmt.Errorf("sending alert notification: %w", err)
			}
			fmt.Println("Notification sent.")
		}

		return nil
	},
}

func init() {
	alertsCmd.Flags().BoolVar(&alertsNotify, "notify", false, "Post the alerts to the configured webhook")
	rootCmd.AddCommand(alertsCmd)
}
