package cli

import (
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestSelectedLogLevel(t *testing.T) {
	tests := []struct {
		flag, env, config string
		want, source      string
	}{
		{"debug", "warn", "error", "debug", "flag"},
		{"", "warn", "error", "warn", "env"},
		{"", " ", "error", "error", "config"},
		{"", "", "", "", "default"},
	}
	for _, tt := range tests {
		got, source := selectedLogLevel(tt.flag, tt.env, tt.config)
		if got != tt.want || source != tt.source {
			t.Errorf("selectedLogLevel(%q, %q, %q) = %q, %q; want %q, %q",
				tt.flag, tt.env, tt.config, got, source, tt.want, tt.source)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		raw     string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"WARNING", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"-4", slog.LevelDebug, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := parseLogLevel(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseLogLevel(%q) error = %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestConfigureLoggerForCLI(t *testing.T) {
	orig := slog.Default()
	defer slog.SetDefault(orig)

	t.Run("invalid flag is an error", func(t *testing.T) {
		t.Setenv(logLevelEnvKey, "")
		if _, err := configureLoggerForCLI("loud", ""); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("invalid env warns", func(t *testing.T) {
		t.Setenv(logLevelEnvKey, "loud")
		warning, err := configureLoggerForCLI("", "")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(warning, logLevelEnvKey) {
			t.Errorf("warning = %q", warning)
		}
	})

	t.Run("invalid config warns", func(t *testing.T) {
		t.Setenv(logLevelEnvKey, "")
		warning, err := configureLoggerForCLI("", "loud")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(warning, "log_level") {
			t.Errorf("warning = %q", warning)
		}
	})

	t.Run("valid flag sets the level", func(t *testing.T) {
		t.Setenv(logLevelEnvKey, "")
		if _, err := configureLoggerForCLI("error", "debug"); err != nil {
			t.Fatal(err)
		}
		if slog.Default().Enabled(context.Background(), slog.LevelWarn) {
			t.Error("warn should be disabled at error level")
		}
	})
}
