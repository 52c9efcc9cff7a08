// log/log_test.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package log

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWriterLevels(t *testing.T) {
	var buf bytes.Buffer
	lg := NewWriter(&buf, "warn")

	lg.Infof("built %d rows", 12)
	lg.Debug("details")
	if buf.Len() != 0 {
		t.Errorf("info/debug should be filtered at warn level; got %q", buf.String())
	}

	lg.Warnf("torn cache entry %s", "abc")
	out := buf.String()
	if !strings.Contains(out, "torn cache entry abc") {
		t.Errorf("missing warning text in %q", out)
	}
	if !strings.Contains(out, "callstack") {
		t.Errorf("missing callstack attribute in %q", out)
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	lg := NewWriter(&buf, "debug").With("category", "cam1")
	lg.Info("loaded")
	if !strings.Contains(buf.String(), "category=cam1") {
		t.Errorf("expected attribute in output; got %q", buf.String())
	}
}

func TestNilLogger(t *testing.T) {
	var lg *Logger
	// None of these should panic.
	lg.Debug("a")
	lg.Debugf("%d", 1)
	lg.Info("b")
	lg.Infof("%d", 2)
	if lg.With("k", "v") != nil {
		t.Errorf("With on a nil Logger should return nil")
	}
}

func TestNewFile(t *testing.T) {
	dir := t.TempDir()
	lg := New("info", dir)
	lg.Info("hello")

	if lg.LogFile != filepath.Join(dir, "skycam.slog") {
		t.Errorf("got log file %q", lg.LogFile)
	}
	b, err := os.ReadFile(lg.LogFile)
	if err != nil {
		t.Fatalf("%v", err)
	}
	if !strings.Contains(string(b), `"msg":"hello"`) {
		t.Errorf("log file missing record: %s", b)
	}
}

func TestCallstack(t *testing.T) {
	fr := func() []StackFrame { return Callstack(nil) }()
	if len(fr) == 0 {
		t.Fatalf("empty callstack")
	}
	if fr[0].File != "log_test.go" {
		t.Errorf("got first frame %s, expected one in log_test.go", fr[0])
	}
}
