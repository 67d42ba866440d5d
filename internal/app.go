// Package internal provides the App struct that wires all components of the
// spec workflow engine together and initializes the CLI layer.
package internal

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/valter-silva-au/spec-workflow/internal/cli"
	"github.com/valter-silva-au/spec-workflow/internal/core"
	"github.com/valter-silva-au/spec-workflow/internal/observability"
	"github.com/valter-silva-au/spec-workflow/internal/storage"
	"github.com/valter-silva-au/spec-workflow/internal/watch"
	"github.com/valter-silva-au/spec-workflow/internal/workflowpath"
	"github.com/valter-silva-au/spec-workflow/pkg/models"
)

// App holds all service dependencies for one project.
type App struct {
	ProjectRoot string
	Config      *models.Config

	// Configuration
	ConfigMgr core.ConfigurationManager

	// Shared infrastructure
	Ensured *core.EnsuredRoots
	Locker  *core.DocLocker
	Writer  *core.FileWriter

	// Storage layer
	ApprovalStore storage.ApprovalStore

	// Core services
	Bootstrapper core.Bootstrapper
	Templates    core.TemplateProvider
	Specs        core.SpecManager
	Tasks        core.TaskService
	Approvals    core.ApprovalManager

	// Change notifications
	ChangeHub *watch.Hub

	// Observability
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
}

// NewApp creates and wires all components for the project rooted at
// projectRoot and points the CLI at them.
func NewApp(projectRoot string) (*App, error) {
	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}
	app := &App{ProjectRoot: root}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(root)
	cfg, err := app.ConfigMgr.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if err := app.ConfigMgr.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	app.Config = cfg

	// --- Observability ---
	if cfg.EventsEnabled {
		app.EventLog, err = observability.NewJSONLEventLog(workflowpath.EventLogPath(root))
		if err != nil {
			// Non-fatal: run without observability if the log can't be opened.
			app.EventLog = nil
		}
	}
	var events core.EventLogger
	if app.EventLog != nil {
		events = &eventLogAdapter{log: app.EventLog}

		thresholds := observability.DefaultAlertThresholds()
		if cfg.Alerts.PendingApprovalHours > 0 {
			thresholds.PendingHours = cfg.Alerts.PendingApprovalHours
		}
		if cfg.Alerts.RevisionRounds > 0 {
			thresholds.RevisionRounds = cfg.Alerts.RevisionRounds
		}
		app.AlertEngine = observability.NewAlertEngine(app.EventLog, thresholds)
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}
	if cfg.Alerts.WebhookURL != "" {
		app.Notifier = observability.NewWebhookNotifier(cfg.Alerts.WebhookURL)
	}

	// --- Shared infrastructure ---
	app.Ensured = core.NewEnsuredRoots()
	app.Locker = core.NewDocLocker(workflowpath.LocksDir(root))
	app.Writer = core.NewFileWriter(cfg.Write)

	// --- Storage layer ---
	app.ApprovalStore = storage.NewApprovalStore(root, app.Writer.WriteFile)

	// --- Core services ---
	app.Templates = core.NewTemplateProvider(root)
	app.Bootstrapper = core.NewBootstrapper(core.BootstrapOptions{
		ManageIgnore: cfg.Ignore.Manage,
		CreateIgnore: cfg.Ignore.Create,
	}, app.Ensured, app.Writer, app.Templates, events)
	app.Specs = core.NewSpecManager(root, app.Locker, app.Writer, events)
	app.Tasks = core.NewTaskService(root, app.Locker, app.Writer, events)
	app.Approvals = core.NewApprovalManager(app.ApprovalStore, app.Locker, events)

	app.ChangeHub = watch.NewHub(watch.DefaultBuffer)

	// --- Wire CLI package-level variables ---
	cli.ProjectRoot = root
	cli.Config = cfg
	cli.ConfigMgr = app.ConfigMgr
	cli.Bootstrapper = app.Bootstrapper
	cli.Templates = app.Templates
	cli.Specs = app.Specs
	cli.Tasks = app.Tasks
	cli.Approvals = app.Approvals
	cli.ChangeHub = app.ChangeHub
	cli.EventLog = app.EventLog
	cli.AlertEngine = app.AlertEngine
	cli.MetricsCalc = app.MetricsCalc
	cli.Notifier = app.Notifier

	return app, nil
}

// Close releases resources held by the App, such as the event log file handle.
// It is safe to call Close on an App whose EventLog is nil.
func (a *App) Close() error {
	if a.EventLog != nil {
		return a.EventLog.Close()
	}
	return nil
}

// eventLogAdapter adapts observability.EventLog to core.EventLogger.
type eventLogAdapter struct {
	log observability.EventLog
}

func (a *eventLogAdapter) LogEvent(eventType string, data map[string]any) error {
	level := "INFO"
	if eventType == "approval.duplicate_active" {
		level = "WARN"
	}
	return a.log.Write(observability.Event{
		Time:    time.Now().UTC(),
		Level:   level,
		Type:    eventType,
		Message: eventType,
		Data:    data,
	})
}
