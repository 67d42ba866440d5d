package models

import "time"

// IgnoreConfig controls how the bootstrapper manages the project ignore file.
type IgnoreConfig struct {
	Manage bool `yaml:"manage" mapstructure:"manage"`
	Create bool `yaml:"create" mapstructure:"create"`
}

// WriteConfig tunes the retrying file writer.
type WriteConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
}

// DashboardConfig holds the viewer server settings.
type DashboardConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// WatchConfig holds the change observation settings.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
}

// AlertConfig holds thresholds for approval alerts.
type AlertConfig struct {
	PendingApprovalHours int `yaml:"pending_approval_hours" mapstructure:"pending_approval_hours"`
	RevisionRounds       int `yaml:"revision_rounds" mapstructure:"revision_rounds"`
	// WebhookURL, when set, receives alert summaries from "swf alerts --notify".
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// Config holds project settings read from .swfconfig via Viper.
type Config struct {
	Ignore        IgnoreConfig    `yaml:"ignore" mapstructure:"ignore"`
	Write         WriteConfig     `yaml:"write" mapstructure:"write"`
	Dashboard     DashboardConfig `yaml:"dashboard" mapstructure:"dashboard"`
	Watch         WatchConfig     `yaml:"watch" mapstructure:"watch"`
	Alerts        AlertConfig     `yaml:"alerts" mapstructure:"alerts"`
	LogLevel      string          `yaml:"log_level" mapstructure:"log_level"`
	EventsEnabled bool            `yaml:"events_enabled" mapstructure:"events_enabled"`
}
