package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/strrl/aurora-cli/internal/chat"
	"github.com/strrl/aurora-cli/pkg/models"
)

func intPtr(v int) *int { return &v }

func TestLevelColor(t *testing.T) {
	tests := []struct {
		meter models.Meter
		want  string
	}{
		{models.Meter{Used: 79, Limit: intPtr(100)}, string(ColorSuccess)},
		{models.Meter{Used: 80, Limit: intPtr(100)}, string(ColorWarning)},
		{models.Meter{Used: 100, Limit: intPtr(100)}, string(ColorDanger)},
		{models.Meter{Used: 900, Limit: nil}, string(ColorSuccess)},
		{models.Meter{Used: 5, Limit: intPtr(0)}, string(ColorSuccess)},
	}
	for _, tt := range tests {
		if got := string(LevelColor(tt.meter.Level())); got != tt.want {
			t.Errorf("LevelColor(%+v) = %s, want %s", tt.meter, got, tt.want)
		}
	}
}

func TestMeterValue(t *testing.T) {
	if got := MeterValue(models.Meter{Used: 3, Limit: intPtr(5)}); got != "3 / 5" {
		t.Errorf("MeterValue() = %q", got)
	}
	if got := MeterValue(models.Meter{Used: 3}); got != "3 / Unlimited" {
		t.Errorf("MeterValue() unbounded = %q", got)
	}
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		percent float64
		filled  int
	}{
		{0, 0}, {50, 5}, {100, 10}, {150, 10}, {-5, 0},
	}
	for _, tt := range tests {
		bar := ProgressBar(tt.percent, 10, ColorSuccess)
		if got := strings.Count(bar, "█"); got != tt.filled {
			t.Errorf("ProgressBar(%v) filled = %d, want %d", tt.percent, got, tt.filled)
		}
		if got := strings.Count(bar, "█") + strings.Count(bar, "░"); got != 10 {
			t.Errorf("ProgressBar(%v) width = %d", tt.percent, got)
		}
	}
}

func TestRenderUsage(t *testing.T) {
	out := RenderUsage(models.UsageMetrics{
		Period:         "2026-10",
		AIQueriesUsed:  45,
		AIQueriesLimit: intPtr(50),
		SeatsUsed:      1,
		SeatsLimit:     intPtr(1),
		Warnings:       []string{"You've used 90% of your AI query limit this month."},
	}, 10)

	for _, want := range []string{"Period 2026-10", "AI Queries", "45 / 50", "Documents", "0 / Unlimited", "Team Seats", "1 / 1", "90%", "Upgrade plan"} {
		if !strings.Contains(out, want) {
			t.Errorf("RenderUsage() missing %q:\n%s", want, out)
		}
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"  yes  ", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"sure\n", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		got, err := Confirm(strings.NewReader(tt.input), &out, "Delete?")
		if err != nil {
			t.Fatalf("Confirm(%q) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("Confirm(%q) = %v, want %v", tt.input, got, tt.want)
		}
		if out.String() != "Delete? [y/N]: " {
			t.Errorf("prompt = %q", out.String())
		}
	}
}

func TestPrompt(t *testing.T) {
	var out bytes.Buffer
	got, err := Prompt(strings.NewReader("  owner@acme.test \n"), &out, "Email")
	if err != nil || got != "owner@acme.test" {
		t.Errorf("Prompt() = %q, %v", got, err)
	}
}

func TestPrintHelpersWithoutTerminal(t *testing.T) {
	var buf bytes.Buffer
	PrintSuccess(&buf, "saved")
	PrintWarning(&buf, "careful")
	PrintError(&buf, "failed")
	PrintInfo(&buf, "note")
	want := "saved\nWARNING: careful\nfailed\nnote\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := Notifier{W: &buf}
	n.Notify(chat.Notice{Level: chat.NoticeError, Message: chat.MsgUnreachable})
	if buf.String() != chat.MsgUnreachable+"\n" {
		t.Errorf("Notify() wrote %q", buf.String())
	}
}

func TestFormatting(t *testing.T) {
	if got := Bytes(1500); got != "1.5 kB" {
		t.Errorf("Bytes(1500) = %q", got)
	}
	if got := Bytes(-1); got != "0 B" {
		t.Errorf("Bytes(-1) = %q", got)
	}
	if got := Ago(time.Time{}); got != "-" {
		t.Errorf("Ago(zero) = %q", got)
	}
	if got := Ago(time.Now().Add(-3 * time.Hour)); got != "3 hours ago" {
		t.Errorf("Ago(-3h) = %q", got)
	}
	if got := Count(12345); got != "12,345" {
		t.Errorf("Count() = %q", got)
	}
	if got := Truncate("abcdefghij", 6); got != "abc..." {
		t.Errorf("Truncate() = %q", got)
	}
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate() = %q", got)
	}
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf, "ID", "NAME")
	tbl.Row("1", "alpha")
	tbl.Row("22", "beta")
	if err := tbl.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 || !strings.Contains(lines[2], "beta") {
		t.Errorf("table = %q", buf.String())
	}
}

func TestShowProgressWithoutTerminal(t *testing.T) {
	var buf bytes.Buffer
	boom := errors.New("boom")
	if err := ShowProgress(context.Background(), &buf, "working", func() error { return boom }); !errors.Is(err, boom) {
		t.Errorf("ShowProgress() error = %v", err)
	}
	if err := ShowProgress(context.Background(), &buf, "working", func() error { return nil }); err != nil {
		t.Errorf("ShowProgress() error = %v", err)
	}
}
