package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shiftcal/internal/model"
	"shiftcal/internal/pattern"
)

const testConfig = `
timezone: UTC
store:
  driver: sqlite3
  dsn: %DSN%
shift_types:
  - id: rot4
    cycle_length: 4
    pattern: [M, A, N, L]
    times:
      M: {start: "06:00", end: "14:00"}
      A: {start: "14:00", end: "22:00"}
      N: {start: "22:00", end: "06:00"}
teams:
  - team: A
    shift_type_id: rot4
    anchor_date: 2024-01-01
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	content := strings.ReplaceAll(testConfig, "%DSN%", filepath.Join(dir, "shifts.db"))
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// run executes the root command with args and returns its stdout.
func run(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestMonthCommand(t *testing.T) {
	cfg := writeTestConfig(t)
	out, err := run(t, cfg, "month", "--team", "A", "--year", "2024", "--month", "1")
	if err != nil {
		t.Fatalf("month: %v", err)
	}
	for _, want := range []string{"Team A, January 2024", "2024-01-01", "Mon", "06:00-14:00", "day 1", "Work days: 24", "Work hours: 192.0"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestMonthCommandUnknownTeam(t *testing.T) {
	cfg := writeTestConfig(t)
	_, err := run(t, cfg, "month", "--team", "Z", "--year", "2024", "--month", "1")
	if !errors.Is(err, pattern.ErrUnknownTeam) {
		t.Errorf("err = %v, want ErrUnknownTeam", err)
	}
}

func TestNextCommand(t *testing.T) {
	cfg := writeTestConfig(t)
	out, err := run(t, cfg, "next", "--team", "A", "--after", "2024-01-02")
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if strings.TrimSpace(out) != "2024-01-03 N 22:00-06:00 (in 1 days)" {
		t.Errorf("next output = %q", out)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	cfg := writeTestConfig(t)
	icsPath := filepath.Join(t.TempDir(), "pattern.ics")

	if _, err := run(t, cfg, "export", "--team", "A", "--pattern", "--year", "2024", "--month", "1", "-o", icsPath); err != nil {
		t.Fatalf("export pattern: %v", err)
	}
	body, err := os.ReadFile(icsPath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if n := strings.Count(string(body), "BEGIN:VEVENT"); n != 24 {
		t.Fatalf("pattern events = %d, want 24", n)
	}

	out, err := run(t, cfg, "import", "--team", "A", "--file", icsPath)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if strings.TrimSpace(out) != "imported 24, skipped 0, errored 0" {
		t.Errorf("first import = %q", out)
	}

	out, err = run(t, cfg, "import", "--team", "A", "--file", icsPath)
	if err != nil {
		t.Fatalf("re-import: %v", err)
	}
	if strings.TrimSpace(out) != "imported 0, skipped 24, errored 0" {
		t.Errorf("second import = %q", out)
	}

	out, err = run(t, cfg, "import", "--team", "A", "--file", icsPath, "--replace", "--from", "2024-01-01", "--to", "2024-01-31")
	if err != nil {
		t.Fatalf("replace import: %v", err)
	}
	if !strings.Contains(out, "removed 24 stored shifts in 2024-01-01..2024-01-31\n") ||
		!strings.Contains(out, "imported 24, skipped 0, errored 0") {
		t.Errorf("replace import = %q", out)
	}

	out, err = run(t, cfg, "export", "--team", "A", "--from", "2024-01-01", "--to", "2024-01-15")
	if err != nil {
		t.Fatalf("export stored: %v", err)
	}
	// Jan 1..15 holds 12 work days of the rotation (3 of every 4 days).
	if n := strings.Count(out, "BEGIN:VEVENT"); n != 12 {
		t.Errorf("stored events = %d, want 12", n)
	}
}

func TestImportCommandFlagValidation(t *testing.T) {
	cfg := writeTestConfig(t)
	if _, err := run(t, cfg, "import", "--team", "A"); err == nil {
		t.Error("expected error without --url or --file")
	}
	if _, err := run(t, cfg, "import", "--team", "A", "--url", "http://x", "--file", "y"); err == nil {
		t.Error("expected error with both --url and --file")
	}
}

func TestImportReplaceRejectsReversedRange(t *testing.T) {
	cfg := writeTestConfig(t)
	_, err := run(t, cfg, "import", "--team", "A", "--file", "unused.ics", "--replace", "--from", "2024-02-01", "--to", "2024-01-01")
	if err == nil {
		t.Error("expected error for reversed --replace range")
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ics")
	if err := writeFile(path, "BEGIN:VCALENDAR\r\n"); err != nil {
		t.Fatalf("writeFile: %v", err)
	}
	if got, err := os.ReadFile(path); err != nil || string(got) != "BEGIN:VCALENDAR\r\n" {
		t.Errorf("file = %q, %v", got, err)
	}
	if err := writeFile(filepath.Join(t.TempDir(), "missing", "out.ics"), "x"); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestExportRange(t *testing.T) {
	today := mustDate(t, "2024-02-10")
	from, to, err := exportRange("", "", today)
	if err != nil || from.String() != "2024-02-01" || to.String() != "2024-02-29" {
		t.Errorf("default range = %s..%s, %v", from, to, err)
	}
	if _, _, err := exportRange("2024-03-01", "2024-02-01", today); err == nil {
		t.Error("expected error for reversed range")
	}
}

func mustDate(t *testing.T, s string) model.Date {
	t.Helper()
	d, err := model.ParseDate(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}
