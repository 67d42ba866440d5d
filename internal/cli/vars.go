package cli

import (
	"github.com/valter-silva-au/spec-workflow/internal/core"
	"github.com/valter-silva-au/spec-workflow/internal/observability"
	"github.com/valter-silva-au/spec-workflow/internal/watch"
	"github.com/valter-silva-au/spec-workflow/pkg/models"
)

// Project state, set during app initialization in app.go.
var (
	ProjectRoot string
	Config      *models.Config

	ConfigMgr    core.ConfigurationManager
	Bootstrapper core.Bootstrapper
	Templates    core.TemplateProvider
	Specs        core.SpecManager
	Tasks        core.TaskService
	Approvals    core.ApprovalManager

	// ChangeHub carries workflow change events from the watcher to viewers.
	ChangeHub *watch.Hub
)

// Observability service instances, set during app initialization in app.go.
// They stay nil when the event log is disabled.
var (
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
)
