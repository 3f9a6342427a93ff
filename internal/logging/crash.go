package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"
)

// CrashReport describes a recovered panic.
type CrashReport struct {
	Timestamp    time.Time      `json:"timestamp"`
	Version      string         `json:"version"`
	Component    string         `json:"component,omitempty"`
	GOOS         string         `json:"goos"`
	GOARCH       string         `json:"goarch"`
	GoVersion    string         `json:"go_version"`
	NumGoroutine int            `json:"num_goroutine"`
	PanicValue   string         `json:"panic_value"`
	StackTrace   string         `json:"stack_trace"`
	Context      map[string]any `json:"context,omitempty"`
}

// CrashHandler writes crash reports for panics recovered in long-running loops.
type CrashHandler struct {
	mu        sync.Mutex
	dir       string
	version   string
	component string
	onCrash   func(CrashReport)
	now       func() time.Time
}

// CrashHandlerConfig configures a CrashHandler.
type CrashHandlerConfig struct {
	// Dir receives crash-*.json files. Defaults to DefaultCrashDir.
	Dir string

	Version   string
	Component string

	// OnCrash runs after the report is written.
	OnCrash func(CrashReport)
}

// DefaultCrashDir returns $XDG_STATE_HOME/composeim/crashes.
func DefaultCrashDir() string {
	return filepath.Join(stateDir(), "crashes")
}

// NewCrashHandler creates a CrashHandler.
func NewCrashHandler(cfg CrashHandlerConfig) *CrashHandler {
	if cfg.Dir == "" {
		cfg.Dir = DefaultCrashDir()
	}
	return &CrashHandler{
		dir:       cfg.Dir,
		version:   cfg.Version,
		component: cfg.Component,
		onCrash:   cfg.OnCrash,
		now:       time.Now,
	}
}

// Guard runs fn and converts a panic into a report and an error.
func (h *CrashHandler) Guard(info map[string]any, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			report := h.HandlePanic(r, info)
			err = fmt.Errorf("panic: %s", report.PanicValue)
		}
	}()
	return fn()
}

// HandlePanic builds and writes a report for panicValue.
func (h *CrashHandler) HandlePanic(panicValue any, info map[string]any) CrashReport {
	h.mu.Lock()
	defer h.mu.Unlock()

	report := CrashReport{
		Timestamp:    h.now().UTC(),
		Version:      h.version,
		Component:    h.component,
		GOOS:         runtime.GOOS,
		GOARCH:       runtime.GOARCH,
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		PanicValue:   fmt.Sprintf("%v", panicValue),
		StackTrace:   string(debug.Stack()),
		Context:      info,
	}

	if err := h.write(report); err != nil {
		fmt.Fprintf(os.Stderr, "composeim: write crash report: %v\n", err)
	}
	if h.onCrash != nil {
		h.onCrash(report)
	}
	return report
}

func (h *CrashHandler) write(report CrashReport) error {
	if err := os.MkdirAll(h.dir, 0750); err != nil {
		return err
	}
	name := fmt.Sprintf("crash-%s-%s.json", report.Component, report.Timestamp.Format("20060102-150405.000"))
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal crash report: %w", err)
	}
	return os.WriteFile(filepath.Join(h.dir, name), data, 0640)
}

// Reports returns stored reports, newest first.
func (h *CrashHandler) Reports() ([]CrashReport, error) {
	entries, err := os.ReadDir(h.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var reports []CrashReport
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "crash-") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(h.dir, e.Name()))
		if err != nil {
			continue
		}
		var r CrashReport
		if json.Unmarshal(data, &r) == nil {
			reports = append(reports, r)
		}
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].Timestamp.After(reports[j].Timestamp) })
	return reports, nil
}
