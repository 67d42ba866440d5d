// Package core contains the workflow state engine: task document parsing and
// mutation, the approval lifecycle, bootstrapping of the workflow directory,
// the spec catalogue and project configuration.
package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/valter-silva-au/spec-workflow/pkg/models"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the optional per-project configuration file.
const ConfigFileName = ".swfconfig"

// EnvPrefix prefixes environment overrides, e.g. SWF_WRITE_MAX_ATTEMPTS.
const EnvPrefix = "SWF"

// ConfigurationManager loads and validates project configuration from
// .swfconfig, a project .env file and SWF_* environment variables.
type ConfigurationManager interface {
	LoadConfig() (*models.Config, error)
	ValidateConfig(cfg *models.Config) error
	WriteDefaultConfig() (bool, error)
}

type viperConfigManager struct {
	// basePath is the project root where .swfconfig and .env reside.
	basePath string
}

// NewConfigurationManager creates a ConfigurationManager for the project
// rooted at basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() *models.Config {
	return &models.Config{
		Ignore: models.IgnoreConfig{Manage: true, Create: true},
		Write: models.WriteConfig{
			MaxAttempts:    defaultWriteAttempts,
			InitialBackoff: defaultInitialBackoff,
		},
		Dashboard:     models.DashboardConfig{Addr: "127.0.0.1:5000"},
		Watch:         models.WatchConfig{Debounce: 200 * time.Millisecond},
		Alerts:        models.AlertConfig{PendingApprovalHours: 24, RevisionRounds: 3},
		LogLevel:      "info",
		EventsEnabled: true,
	}
}

// LoadConfig reads .swfconfig from the base path. Values from a project .env
// file and SWF_* environment variables take precedence over the file. A
// missing file yields the defaults.
func (cm *viperConfigManager) LoadConfig() (*models.Config, error) {
	// godotenv never overrides variables already present in the environment.
	if err := godotenv.Load(filepath.Join(cm.basePath, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	def := DefaultConfig()

	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("ignore.manage", def.Ignore.Manage)
	v.SetDefault("ignore.create", def.Ignore.Create)
	v.SetDefault("write.max_attempts", def.Write.MaxAttempts)
	v.SetDefault("write.initial_backoff", def.Write.InitialBackoff)
	v.SetDefault("dashboard.addr", def.Dashboard.Addr)
	v.SetDefault("watch.debounce", def.Watch.Debounce)
	v.SetDefault("alerts.pending_approval_hours", def.Alerts.PendingApprovalHours)
	v.SetDefault("alerts.revision_rounds", def.Alerts.RevisionRounds)
	v.SetDefault("alerts.webhook_url", def.Alerts.WebhookURL)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("events_enabled", def.EventsEnabled)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading %s: %w", ConfigFileName, err)
		}
	}

	return &models.Config{
		Ignore: models.IgnoreConfig{
			Manage: v.GetBool("ignore.manage"),
			Create: v.GetBool("ignore.create"),
		},
		Write: models.WriteConfig{
			MaxAttempts:    v.GetInt("write.max_attempts"),
			InitialBackoff: v.GetDuration("write.initial_backoff"),
		},
		Dashboard: models.DashboardConfig{Addr: v.GetString("dashboard.addr")},
		Watch:     models.WatchConfig{Debounce: v.GetDuration("watch.debounce")},
		Alerts: models.AlertConfig{
			PendingApprovalHours: v.GetInt("alerts.pending_approval_hours"),
			RevisionRounds:       v.GetInt("alerts.revision_rounds"),
			WebhookURL:           v.GetString("alerts.webhook_url"),
		},
		LogLevel:      v.GetString("log_level"),
		EventsEnabled: v.GetBool("events_enabled"),
	}, nil
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig checks every field and reports all problems at once.
func (cm *viperConfigManager) ValidateConfig(cfg *models.Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if cfg.Write.MaxAttempts < 1 || cfg.Write.MaxAttempts > 10 {
		errs = append(errs, fmt.Sprintf("write.max_attempts %d is invalid, must be between 1 and 10", cfg.Write.MaxAttempts))
	}
	if cfg.Write.InitialBackoff <= 0 {
		errs = append(errs, fmt.Sprintf("write.initial_backoff %s must be positive", cfg.Write.InitialBackoff))
	}
	if cfg.Dashboard.Addr == "" {
		errs = append(errs, "dashboard.addr must not be empty")
	}
	if cfg.Watch.Debounce < 0 {
		errs = append(errs, fmt.Sprintf("watch.debounce %s must not be negative", cfg.Watch.Debounce))
	}
	if cfg.Alerts.PendingApprovalHours < 1 {
		errs = append(errs, fmt.Sprintf("alerts.pending_approval_hours %d must be at least 1", cfg.Alerts.PendingApprovalHours))
	}
	if cfg.Alerts.RevisionRounds < 1 {
		errs = append(errs, fmt.Sprintf("alerts.revision_rounds %d must be at least 1", cfg.Alerts.RevisionRounds))
	}
	if u := cfg.Alerts.WebhookURL; u != "" && !strings.HasPrefix(u, "https://") && !strings.HasPrefix(u, "http://") {
		errs = append(errs, fmt.Sprintf("alerts.webhook_url %q must be an http or https URL", u))
	}
	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		errs = append(errs, fmt.Sprintf("log_level %q is invalid, must be one of: debug, info, warn, error", cfg.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s: %w", strings.Join(errs, "\n  - "), ErrValidation)
	}
	return nil
}

// WriteDefaultConfig writes .swfconfig with the default values unless the file
// already exists. It reports whether the file was created.
func (cm *viperConfigManager) WriteDefaultConfig() (bool, error) {
	path := filepath.Join(cm.basePath, ConfigFileName)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	data, err := yaml.Marshal(configDocument(DefaultConfig()))
	if err != nil {
		return false, fmt.Errorf("marshalling default config: %w", err)
	}
	header := "# spec-workflow configuration. Environment variables prefixed with SWF_ override these values.\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0o644); err != nil {
		return false, fmt.Errorf("writing %s: %w", ConfigFileName, err)
	}
	return true, nil
}

// configDocument lays cfg out as the .swfconfig YAML document. Durations are
// written in their string form so the file stays readable.
func configDocument(cfg *models.Config) map[string]any {
	return map[string]any{
		"ignore": map[string]any{
			"manage": cfg.Ignore.Manage,
			"create": cfg.Ignore.Create,
		},
		"write": map[string]any{
			"max_attempts":    cfg.Write.MaxAttempts,
			"initial_backoff": cfg.Write.InitialBackoff.String(),
		},
		"dashboard": map[string]any{"addr": cfg.Dashboard.Addr},
		"watch":     map[string]any{"debounce": cfg.Watch.Debounce.String()},
		"alerts": map[string]any{
			"pending_approval_hours": cfg.Alerts.PendingApprovalHours,
			"revision_rounds":        cfg.Alerts.RevisionRounds,
			"webhook_url":            cfg.Alerts.WebhookURL,
		},
		"log_level":      cfg.LogLevel,
		"events_enabled": cfg.EventsEnabled,
	}
}
