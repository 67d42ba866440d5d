package cli

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/spec-workflow/internal/core"
	"github.com/valter-silva-au/spec-workflow/internal/watch"
	"github.com/valter-silva-au/spec-workflow/pkg/models"
	"golang.org/x/term"
)

// Dashboard panel indices.
const (
	panelSpecs = iota
	panelApprovals
	panelAlerts
	panelCount
)

type dashboardModel struct {
	activePanel int
	width       int
	height      int

	// Data.
	specs     []specSnapshot
	approvals []approvalSnapshot
	alerts    []alertSnapshot

	// changes delivers workflow change events; nil disables live reload.
	changes    <-chan watch.ChangeEvent
	lastChange string

	// State.
	loading bool
	spinner spinner.Model
	err     error
}

type specSnapshot struct {
	name     string
	phase    string
	progress string
}

type approvalSnapshot struct {
	id     string
	spec   string
	doc    string
	status string
	title  string
}

type alertSnapshot struct {
	severity string
	message  string
	time     string
}

// dataLoadedMsg carries loaded data back to the model.
type dataLoadedMsg struct {
	specs     []specSnapshot
	approvals []approvalSnapshot
	alerts    []alertSnapshot
	err       error
}

// refreshMsg triggers the periodic reload that keeps alert ages current when
// no files change.
type refreshMsg time.Time

// dashboardRefreshInterval is how often the view reloads on its own.
const dashboardRefreshInterval = time.Minute

// changeMsg reports a change under the workflow directory.
type changeMsg struct {
	event watch.ChangeEvent
}

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(1, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	phaseRequirements   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	phaseDesign         = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
	phaseTasks          = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))
	phaseImplementation = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	phaseCompleted      = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))

	approvalPending  = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	approvalRevision = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	severityHigh   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	severityMedium = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	severityLow    = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newDashboardModel(changes <-chan watch.ChangeEvent) dashboardModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))

	return dashboardModel{
		activePanel: panelSpecs,
		loading:     true,
		spinner:     s,
		changes:     changes,
	}
}

func (m dashboardModel) Init() tea.Cmd {
	if m.changes == nil {
		return tea.Batch(loadData, m.spinner.Tick, scheduleRefresh())
	}
	return tea.Batch(loadData, m.spinner.Tick, scheduleRefresh(), waitForChange(m.changes))
}

func scheduleRefresh() tea.Cmd {
	return tea.Tick(dashboardRefreshInterval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

// waitForChange blocks until the next change event. A closed channel ends
// live reloading.
func waitForChange(ch <-chan watch.ChangeEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return changeMsg{event: ev}
	}
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.activePanel = (m.activePanel + 1) % panelCount
			return m, nil
		case "shift+tab":
			m.activePanel = (m.activePanel - 1 + panelCount) % panelCount
			return m, nil
		case "r":
			m.loading = true
			return m, tea.Batch(loadData, m.spinner.Tick)
		}

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case refreshMsg:
		return m, tea.Batch(loadData, scheduleRefresh())

	case changeMsg:
		m.lastChange = fmt.Sprintf("%s %s", msg.event.Op, msg.event.Path)
		return m, tea.Batch(loadData, waitForChange(m.changes))

	case dataLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.specs = msg.specs
		m.approvals = msg.approvals
		m.alerts = msg.alerts
		m.err = nil
		return m, nil
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(" Spec Workflow ")
	help := helpStyle.Render("tab: switch panel | r: refresh | q: quit")
	if m.lastChange != "" {
		help += helpStyle.Render(" | last change: " + m.lastChange)
	}

	if m.loading {
		return fmt.Sprintf("%s\n\n  %s Loading data...\n\n%s", title, m.spinner.View(), help)
	}

	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	specsPanel := m.renderSpecsPanel()
	approvalsPanel := m.renderApprovalsPanel()
	alertsPanel := m.renderAlertsPanel()

	// Available width for panels after accounting for margins.
	availableWidth := m.width - 2

	var body string
	if availableWidth > 120 {
		// Horizontal layout: three columns.
		colWidth := availableWidth / 3
		specsPanel = m.applyPanelStyle(panelSpecs, specsPanel, colWidth-4)
		approvalsPanel = m.applyPanelStyle(panelApprovals, approvalsPanel, colWidth-4)
		alertsPanel = m.applyPanelStyle(panelAlerts, alertsPanel, colWidth-4)
		body = lipgloss.JoinHorizontal(lipgloss.Top, specsPanel, approvalsPanel, alertsPanel)
	} else {
		// Vertical layout: stacked.
		panelWidth := availableWidth - 4
		if panelWidth < 20 {
			panelWidth = 20
		}
		specsPanel = m.applyPanelStyle(panelSpecs, specsPanel, panelWidth)
		approvalsPanel = m.applyPanelStyle(panelApprovals, approvalsPanel, panelWidth)
		alertsPanel = m.applyPanelStyle(panelAlerts, alertsPanel, panelWidth)
		body = lipgloss.JoinVertical(lipgloss.Left, specsPanel, approvalsPanel, alertsPanel)
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, body, help)
}

func (m dashboardModel) applyPanelStyle(panel int, content string, width int) string {
	style := panelStyle
	if m.activePanel == panel {
		style = activePanelStyle
	}
	return style.Width(width).Render(content)
}

func (m dashboardModel) renderSpecsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Specs"))
	b.WriteString("\n")

	if len(m.specs) == 0 {
		b.WriteString("  No specs found.")
		return b.String()
	}

	for _, s := range m.specs {
		phase := styleForPhase(s.phase).Render(fmt.Sprintf("%-14s", statusLabel(s.phase)))
		b.WriteString(fmt.Sprintf("  %-18s %s %s\n", s.name, phase, s.progress))
	}
	b.WriteString(fmt.Sprintf("\n  Total: %d", len(m.specs)))

	return b.String()
}

func (m dashboardModel) renderApprovalsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Awaiting Review"))
	b.WriteString("\n")

	if len(m.approvals) == 0 {
		b.WriteString("  Nothing awaiting review.")
		return b.String()
	}

	for _, a := range m.approvals {
		status := styleForApproval(a.status).Render(fmt.Sprintf("[%s]", statusLabel(a.status)))
		b.WriteString(fmt.Sprintf("  %s %s/%s %s\n", status, a.spec, a.doc, a.title))
	}
	b.WriteString(fmt.Sprintf("\n  Total: %d request(s)", len(m.approvals)))

	return b.String()
}

func (m dashboardModel) renderAlertsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Alerts"))
	b.WriteString("\n")

	if len(m.alerts) == 0 {
		b.WriteString("  No active alerts.")
		return b.String()
	}

	for _, a := range m.alerts {
		sev := styleForSeverity(a.severity).Render(fmt.Sprintf("[%s]", strings.ToUpper(a.severity)))
		b.WriteString(fmt.Sprintf("  %s %s\n", sev, a.message))
	}

	b.WriteString(fmt.Sprintf("\n  Total: %d alert(s)", len(m.alerts)))

	return b.String()
}

func styleForPhase(phase string) lipgloss.Style {
	switch models.SpecPhase(phase) {
	case models.PhaseRequirements:
		return phaseRequirements
	case models.PhaseDesign:
		return phaseDesign
	case models.PhaseTasks:
		return phaseTasks
	case models.PhaseImplementation:
		return phaseImplementation
	case models.PhaseCompleted:
		return phaseCompleted
	default:
		return lipgloss.NewStyle()
	}
}

func styleForApproval(status string) lipgloss.Style {
	switch models.ApprovalStatus(status) {
	case models.ApprovalPending:
		return approvalPending
	case models.ApprovalNeedsRevision:
		return approvalRevision
	default:
		return lipgloss.NewStyle()
	}
}

func styleForSeverity(severity string) lipgloss.Style {
	switch strings.ToLower(severity) {
	case "high":
		return severityHigh
	case "medium":
		return severityMedium
	case "low":
		return severityLow
	default:
		return lipgloss.NewStyle()
	}
}

func loadData() tea.Msg {
	var result dataLoadedMsg

	if Specs != nil {
		specs, err := Specs.List(false)
		if err != nil {
			result.err = fmt.Errorf("loading specs: %w", err)
			return result
		}
		for _, s := range specs {
			result.specs = append(result.specs, specSnapshot{
				name:     s.Name,
				phase:    string(s.Phase),
				progress: taskProgress(s.TaskSummary),
			})
		}
	}

	if Approvals != nil {
		reqs, err := Approvals.List(core.ApprovalFilter{
			Status: []models.ApprovalStatus{models.ApprovalPending, models.ApprovalNeedsRevision},
		})
		if err != nil {
			result.err = fmt.Errorf("loading approvals: %w", err)
			return result
		}
		for _, r := range reqs {
			result.approvals = append(result.approvals, approvalSnapshot{
				id:     r.ID,
				spec:   r.SpecName,
				doc:    string(r.Type),
				status: string(r.Status),
				title:  r.Title,
			})
		}
	}

	// Load alerts from AlertEngine.
	if AlertEngine != nil {
		alerts, err := AlertEngine.Evaluate()
		if err != nil {
			result.err = fmt.Errorf("loading alerts: %w", err)
			return result
		}
		result.alerts = make([]alertSnapshot, 0, len(alerts))

		// Sort alerts by severity: high first, then medium, then low.
		sort.SliceStable(alerts, func(i, j int) bool {
			return severityRank(string(alerts[i].Severity)) < severityRank(string(alerts[j].Severity))
		})

		for _, a := range alerts {
			result.alerts = append(result.alerts, alertSnapshot{
				severity: string(a.Severity),
				message:  a.Message,
				time:     a.TriggeredAt.Format("2006-01-02 15:04 UTC"),
			})
		}
	}

	return result
}

func severityRank(s string) int {
	switch s {
	case "high":
		return 0
	case "medium":
		return 1
	case "low":
		return 2
	default:
		return 3
	}
}

var dashboardNoWatch bool

// isInteractive reports whether stdin and stdout are both terminals.
var isInteractive = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive TUI dashboard of specs, approvals and alerts",
	Long: `Launch an interactive terminal dashboard showing spec phases, approval
requests awaiting review and active alerts. The view reloads whenever a file
under .spec-workflow changes.

Navigate between panels with Tab, refresh with r, quit with q.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Specs == nil || Approvals == nil {
			return fmt.Errorf("workflow services not initialized")
		}
		if !isInteractive() {
			return fmt.Errorf("swf dashboard needs an interactive terminal; use swf serve or swf specs list instead")
		}

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
		defer stop()

		var changes <-chan watch.ChangeEvent
		if !dashboardNoWatch {
			if err := bootstrapQuietly(ctx); err != nil {
				return err
			}
			hub, err := startWatcher(ctx)
			if err != nil {
				return err
			}
			ch, cancel := hub.Subscribe()
			defer cancel()
			changes = ch
		}

		p := tea.NewProgram(newDashboardModel(changes), tea.WithAltScreen(), tea.WithContext(ctx))
		_, err := p.Run()
		if err != nil && ctx.Err() != nil {
			return nil
		}
		return err
	},
}

func init() {
	dashboardCmd.Flags().BoolVar(&dashboardNoWatch, "no-watch", false, "Disable live reload on file changes")
	rootCmd.AddCommand(dashboardCmd)
}
