package monitoring

import (
	"fmt"
	"strings"
	"testing"
)

func captureLogs(t *testing.T) *[]string {
	t.Helper()
	original := Logf
	t.Cleanup(func() {
		Logf = original
		SetVerbose(false)
	})
	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	return &lines
}

func TestSetLogger(t *testing.T) {
	lines := captureLogs(t)

	Logf("compiled %d commands", 5)
	if len(*lines) != 1 || (*lines)[0] != "compiled 5 commands" {
		t.Errorf("unexpected log lines %q", *lines)
	}

	// nil installs a no-op logger
	SetLogger(nil)
	Logf("test message")
	if len(*lines) != 1 {
		t.Errorf("no-op logger should not have triggered callback")
	}
}

func TestDebugf(t *testing.T) {
	lines := captureLogs(t)

	Debugf("hidden")
	if len(*lines) != 0 {
		t.Fatalf("Debugf logged while quiet: %q", *lines)
	}

	SetVerbose(true)
	if !Verbose() {
		t.Fatal("Verbose() = false after SetVerbose(true)")
	}
	Debugf("plan %s", "ok")
	if len(*lines) != 1 || (*lines)[0] != "[debug] plan ok" {
		t.Errorf("unexpected log lines %q", *lines)
	}
}

func TestTimed(t *testing.T) {
	lines := captureLogs(t)
	SetVerbose(true)

	Timed("compile")()
	if len(*lines) != 1 || !strings.HasPrefix((*lines)[0], "[debug] compile took ") {
		t.Errorf("unexpected log lines %q", *lines)
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Error("Logf should not be nil by default")
	}
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Logf panicked: %v", r)
		}
	}()
	Logf("test message: %s", "value")
}
