package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"tracker/internal/core"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Component: ComponentStorage, Output: &buf})

	logger.Info("saved", FieldCount, 3)
	logger.WithComponent(ComponentWorker).Debug("tick")

	out := buf.String()
	if !strings.Contains(out, "component=storage") || !strings.Contains(out, "count=3") {
		t.Errorf("missing storage fields in %q", out)
	}
	if !strings.Contains(out, "component=worker") {
		t.Errorf("missing worker component in %q", out)
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	New(Config{Level: slog.LevelInfo, Output: &buf}).Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug record written at info level: %q", buf.String())
	}
}

func TestFromContext(t *testing.T) {
	if got := FromContext(context.Background()); got.Component() != ComponentApp {
		t.Errorf("fallback component = %q, want %q", got.Component(), ComponentApp)
	}

	logger := New(Config{Component: ComponentHTTP, Output: &bytes.Buffer{}})
	if got := FromContext(NewContext(context.Background(), logger)); got != logger {
		t.Error("FromContext did not return the stored logger")
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Output: &buf}))
	ctx := context.Background()

	tx := core.Transaction{
		Concept:  "rent",
		Value:    decimal.NewFromInt(-500),
		Date:     core.NewDate(2020, 1, 1),
		Category: "housing",
		Store:    true,
	}
	sl.LogTransactionRecorded(ctx, 7, tx)
	sl.LogError(ctx, "save failed", errors.New("disk full"), ComponentStorage, OpSave, nil)

	req := httptest.NewRequest("GET", "/api/types", nil)
	sl.LogHTTPEnd(ctx, req, "req_1", 503, 12, "10.0.0.1")

	out := buf.String()
	for _, want := range []string{
		"concept=rent", "value=-500", "date=2020-01-01", "revision=7",
		"error=\"disk full\"", "operation=save", "component=storage",
		"level=ERROR", "status_code=503", "path=/api/types", "request_id=req_1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
