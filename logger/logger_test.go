package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSLogLoggerKeyvals(t *testing.T) {
	var buf bytes.Buffer
	l := NewSLogLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	l.Info("policy decision", "policy", "worker.view", "granted", true, "attempts", 2)

	out := buf.String()
	for _, want := range []string{"policy decision", "policy=worker.view", "granted=true", "attempts=2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestSLogLoggerOddKeyvals(t *testing.T) {
	var buf bytes.Buffer
	l := NewSLogLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	// A trailing key with no value must not panic; it is dropped.
	l.Error("bad call", "dangling")
	if !strings.Contains(buf.String(), "bad call") {
		t.Errorf("message lost: %s", buf.String())
	}
}

func TestNullLogger(t *testing.T) {
	var l Logger = NewNullLogger()
	l.Debug("nothing")
	l.Info("nothing", "k", "v")
	l.Error("nothing")
}
