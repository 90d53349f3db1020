package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fishschool/internal/schedule"
	"fishschool/internal/sim"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"uppercase DEBUG", "DEBUG", slog.LevelDebug},
		{"unknown defaults to info", "verbose", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	NewLogger("info", FormatJSON, &buf).Info("hello", "workers", 4)
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected json line, got %q: %v", buf.String(), err)
	}
	if entry["workers"] != float64(4) {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	buf.Reset()
	NewLogger("info", FormatText, &buf).Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Fatalf("expected text line, got %q", buf.String())
	}
}

func TestAutoFormatUsesJSONForRegularFiles(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "log.jsonl"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	NewLogger("info", FormatAuto, f).Info("hello")
	data, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !json.Valid(bytes.TrimSpace(data)) {
		t.Fatalf("expected json output for non-terminal file, got %q", data)
	}
}

func TestTraceLevelLabel(t *testing.T) {
	var buf bytes.Buffer
	NewLogger("trace", FormatText, &buf).Log(context.Background(), LevelTrace, "deep")
	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Fatalf("expected TRACE label, got %q", buf.String())
	}
}

func TestValidateFormat(t *testing.T) {
	for _, f := range []string{"", FormatAuto, FormatText, FormatJSON} {
		if err := ValidateFormat(f); err != nil {
			t.Fatalf("format %q: %v", f, err)
		}
	}
	if err := ValidateFormat("xml"); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestRoundLoggerLevels(t *testing.T) {
	cfg := sim.Config{Schedule: schedule.Config{Workers: 2, Policy: schedule.PolicyGuided, Chunk: 8}}

	var buf bytes.Buffer
	obs := RoundLogger(NewLogger("debug", FormatText, &buf))
	obs.ObserveRound(cfg, sim.RoundStats{Round: 3, Barycentre: 1.5})
	if !strings.Contains(buf.String(), "round complete") || !strings.Contains(buf.String(), "round=3") {
		t.Fatalf("expected debug round line, got %q", buf.String())
	}
	if strings.Contains(buf.String(), "round phases") {
		t.Fatalf("phase timings must stay at trace level, got %q", buf.String())
	}

	buf.Reset()
	obs.ObserveRound(cfg, sim.RoundStats{Round: 4, Barycentre: math.NaN(), NonFiniteWeights: 2})
	if !strings.Contains(buf.String(), "level=WARN") || !strings.Contains(buf.String(), "non_finite_weights=2") {
		t.Fatalf("expected warn line, got %q", buf.String())
	}

	buf.Reset()
	RoundLogger(NewLogger("info", FormatText, &buf)).ObserveRound(cfg, sim.RoundStats{Round: 1})
	if buf.Len() != 0 {
		t.Fatalf("expected no output at info level, got %q", buf.String())
	}
}
