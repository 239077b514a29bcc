package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracker.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoadWithFile(t *testing.T) {
	for _, key := range []string{"INVESTMENT_CATEGORIES", "COLOR_EARNING", "COLOR_EXPENSE", "COLOR_INVESTMENT"} {
		t.Setenv(key, "")
	}
	path := writeConfigFile(t, `
investment_categories: [stocks, funds]
palette:
  earning: "#000000"
  investment: "#111111"
`)
	t.Setenv("TRACKER_CONFIG", path)

	t.Run("file fills unset values", func(t *testing.T) {
		cfg, err := LoadWithFile()
		if err != nil {
			t.Fatalf("LoadWithFile() error = %v", err)
		}
		inv := cfg.Investments()
		if len(inv) != 2 || !inv.Contains("stocks") || !inv.Contains("funds") {
			t.Errorf("Investments = %v, want stocks and funds", inv)
		}
		if cfg.Palette.Earning != "#000000" || cfg.Palette.Investment != "#111111" {
			t.Errorf("Palette = %+v", cfg.Palette)
		}
		if cfg.Palette.Expense != DefaultPalette().Expense {
			t.Errorf("Palette.Expense = %q, want default", cfg.Palette.Expense)
		}
	})

	t.Run("environment wins over file", func(t *testing.T) {
		t.Setenv("INVESTMENT_CATEGORIES", "bonds")
		t.Setenv("COLOR_EARNING", "#222222")

		cfg, err := LoadWithFile()
		if err != nil {
			t.Fatalf("LoadWithFile() error = %v", err)
		}
		if inv := cfg.Investments(); len(inv) != 1 || !inv.Contains("bonds") {
			t.Errorf("Investments = %v, want bonds", inv)
		}
		if cfg.Palette.Earning != "#222222" {
			t.Errorf("Palette.Earning = %q, want env value", cfg.Palette.Earning)
		}
	})
}

func TestLoadWithFileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		t.Setenv("TRACKER_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
		if _, err := LoadWithFile(); err == nil || !strings.Contains(err.Error(), "read config file") {
			t.Errorf("LoadWithFile() error = %v, want read error", err)
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		t.Setenv("TRACKER_CONFIG", writeConfigFile(t, "investment_categories: [stocks\n"))
		if _, err := LoadWithFile(); err == nil || !strings.Contains(err.Error(), "parse config file") {
			t.Errorf("LoadWithFile() error = %v, want parse error", err)
		}
	})

	t.Run("no file configured", func(t *testing.T) {
		t.Setenv("TRACKER_CONFIG", "")
		if _, err := LoadWithFile(); err != nil {
			t.Errorf("LoadWithFile() error = %v", err)
		}
	})
}
