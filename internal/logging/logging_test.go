package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasError bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"invalid", LevelInfo, true},
		{"", LevelInfo, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			if test.hasError && err == nil {
				t.Error("expected error, got nil")
			}
			if !test.hasError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !test.hasError && level != test.expected {
				t.Errorf("expected %v, got %v", test.expected, level)
			}
		})
	}
}

func TestLevelString(t *testing.T) {
	for _, level := range []Level{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		parsed, err := ParseLevel(LevelString(level))
		if err != nil || parsed != level {
			t.Errorf("round trip of %v gave %v, %v", level, parsed, err)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("json"); err != nil || f != FormatJSON {
		t.Errorf("json: got %v, %v", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatText {
		t.Errorf("empty: got %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/state")
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("expected default level Info, got %v", cfg.Level)
	}
	if cfg.Output != "stderr" {
		t.Errorf("expected default output stderr, got %s", cfg.Output)
	}
	if !cfg.Redact {
		t.Error("redaction should be on by default")
	}
	if cfg.FilePath != "/state/composeim/composeim.log" {
		t.Errorf("unexpected log path %s", cfg.FilePath)
	}
}

func TestJSONFormatAndComponent(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{Level: LevelInfo, Format: FormatJSON, Component: "test"}
	logger := NewWithWriter(cfg, &buf)

	logger.WithComponent("wayland").Info("bound", "version", 1)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode record: %v (%s)", err, buf.String())
	}
	if rec["msg"] != "bound" {
		t.Errorf("unexpected msg %v", rec["msg"])
	}
	if rec["component"] != "wayland" {
		t.Errorf("expected child component, got %v", rec["component"])
	}
}

func TestRedaction(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&Config{Level: LevelDebug, Redact: true}, &buf)
	logger.Debug("compose finished", "sequence", "Multi_key quotedbl a", "text", "ä", "outcome", "matched")

	out := buf.String()
	if strings.Contains(out, "ä") || strings.Contains(out, "quotedbl") {
		t.Errorf("composed content leaked: %s", out)
	}
	if !strings.Contains(out, "outcome=matched") {
		t.Errorf("non-sensitive attribute missing: %s", out)
	}

	buf.Reset()
	logger = NewWithWriter(&Config{Level: LevelDebug}, &buf)
	logger.Debug("compose finished", "text", "ä")
	if !strings.Contains(buf.String(), "ä") {
		t.Errorf("text should pass when redaction is off: %s", buf.String())
	}
}

func TestSetLevelPropagates(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&Config{Level: LevelInfo}, &buf)
	child := logger.WithComponent("session")

	child.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug record written at info level: %s", buf.String())
	}

	logger.SetLevel(LevelDebug)
	child.Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("level change did not reach child: %q", buf.String())
	}
	if logger.Level() != LevelDebug {
		t.Errorf("expected debug, got %v", logger.Level())
	}
}

func TestFileOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "composeim.log")
	logger, err := New(&Config{Level: LevelInfo, Output: "file", FilePath: logPath, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	logger.Info("hello")
	if err := logger.Sync(); err != nil {
		t.Errorf("sync failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "msg=hello") {
		t.Errorf("record missing from file: %s", data)
	}
}

func TestFileRotatorRotation(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	cfg := &Config{FilePath: logPath, MaxSizeMB: 1, MaxBackups: 2}

	rotator, err := NewFileRotator(cfg)
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}
	tick := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rotator.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	chunk := bytes.Repeat([]byte("x"), 600<<10)
	for i := 0; i < 5; i++ {
		if _, err := rotator.Write(chunk); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if err := rotator.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	backups, err := rotator.Backups()
	if err != nil {
		t.Fatalf("list backups: %v", err)
	}
	if len(backups) == 0 || len(backups) > 2 {
		t.Errorf("expected 1-2 backups after cleanup, got %v", backups)
	}

	info, err := os.Stat(logPath)
	if err != nil {
		t.Fatalf("stat current: %v", err)
	}
	if info.Size() > 1<<20 {
		t.Errorf("current file exceeds limit: %d", info.Size())
	}
}

func TestFileRotatorCompress(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	rotator, err := NewFileRotator(&Config{FilePath: logPath, MaxSizeMB: 1, MaxBackups: 5, Compress: true})
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}

	chunk := bytes.Repeat([]byte("y"), 700<<10)
	rotator.Write(chunk)
	rotator.Write(chunk)
	rotator.Close()

	backups, _ := rotator.Backups()
	if len(backups) != 1 || !strings.HasSuffix(backups[0], ".gz") {
		t.Errorf("expected one compressed backup, got %v", backups)
	}
}

func TestCrashHandlerGuard(t *testing.T) {
	dir := t.TempDir()
	var seen []CrashReport
	handler := NewCrashHandler(CrashHandlerConfig{
		Dir:       dir,
		Version:   "1.0.0",
		Component: "test",
		OnCrash:   func(r CrashReport) { seen = append(seen, r) },
	})

	err := handler.Guard(map[string]any{"backend": "wayland"}, func() error {
		panic("dispatch blew up")
	})
	if err == nil || !strings.Contains(err.Error(), "dispatch blew up") {
		t.Fatalf("expected panic error, got %v", err)
	}
	if len(seen) != 1 {
		t.Fatalf("expected OnCrash once, got %d", len(seen))
	}

	reports, err := handler.Reports()
	if err != nil {
		t.Fatalf("read reports: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected one report, got %d", len(reports))
	}
	r := reports[0]
	if r.Version != "1.0.0" || r.Component != "test" {
		t.Errorf("unexpected report header: %+v", r)
	}
	if r.Context["backend"] != "wayland" {
		t.Errorf("context lost: %v", r.Context)
	}
	if !strings.Contains(r.StackTrace, "Guard") {
		t.Errorf("stack trace missing frame")
	}
}

func TestCrashHandlerPassesErrors(t *testing.T) {
	handler := NewCrashHandler(CrashHandlerConfig{Dir: t.TempDir()})
	want := errors.New("plain failure")
	if err := handler.Guard(nil, func() error { return want }); !errors.Is(err, want) {
		t.Errorf("expected passthrough error, got %v", err)
	}
	reports, _ := handler.Reports()
	if len(reports) != 0 {
		t.Errorf("no report expected, got %d", len(reports))
	}
}

func TestCrashReportsMissingDir(t *testing.T) {
	handler := NewCrashHandler(CrashHandlerConfig{Dir: filepath.Join(t.TempDir(), "none")})
	reports, err := handler.Reports()
	if err != nil || reports != nil {
		t.Errorf("expected nil, nil; got %v, %v", reports, err)
	}
}
