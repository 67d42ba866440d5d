package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/spec-workflow/internal/core"
	"github.com/valter-silva-au/spec-workflow/internal/dashboard"
	"github.com/valter-silva-au/spec-workflow/internal/watch"
	"github.com/valter-silva-au/spec-workflow/pkg/models"
)

var (
	serveAddr    string
	serveNoWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the web dashboard",
	Long: `Serve the web dashboard and its JSON API.

The workflow directory is watched and every change is pushed to connected
browsers over a WebSocket. The address defaults to dashboard.addr from
.swfconfig.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Specs == nil || Tasks == nil || Approvals == nil {
			return fmt.Errorf("workflow services not initialized")
		}

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := bootstrapQuietly(ctx); err != nil {
			return err
		}

		addr := serveAddr
		if addr == "" {
			addr = currentConfig().Dashboard.Addr
		}

		var changes watch.Notifier
		if !serveNoWatch {
			hub, err := startWatcher(ctx)
			if err != nil {
				return err
			}
			changes = hub
		}

		srv, err := dashboard.New(dashboard.Config{
			Addr:      addr,
			Specs:     Specs,
			Tasks:     Tasks,
			Approvals: Approvals,
			Changes:   changes,
			Logger:    slog.Default(),
		})
		if err != nil {
			return err
		}

		ready := make(chan string, 1)
		go func() {
			if bound, ok := <-ready; ok {
				fmt.Printf("Dashboard running at http://%s (Ctrl+C to stop)\n", bound)
			}
		}()
		if err := srv.Run(ctx, ready); err != nil {
			return fmt.Errorf("running dashboard: %w", err)
		}
		return nil
	},
}

// currentConfig returns the loaded config, or the defaults when none was
// loaded.
func currentConfig() *models.Config {
	if Config != nil {
		return Config
	}
	return core.DefaultConfig()
}

// startWatcher runs a watcher over the workflow directory until ctx is done
// and returns the hub it publishes to.
func startWatcher(ctx context.Context) (*watch.Hub, error) {
	hub := ChangeHub
	if hub == nil {
		hub = watch.NewHub(watch.DefaultBuffer)
	}
	w, err := watch.NewWatcher(ProjectRoot, hub, currentConfig().Watch.Debounce, slog.Default())
	if err != nil {
		return nil, err
	}
	go func() {
		if err := w.Run(ctx); err != nil {
			slog.Error("watcher stopped", "error", err)
		}
	}()
	return hub, nil
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides dashboard.addr)")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "Do not push file changes to the browser")
	rootCmd.AddCommand(serveCmd)
}
