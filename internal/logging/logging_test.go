package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestNewLevels(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, false).Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug record emitted without verbose: %q", buf.String())
	}

	New(&buf, true).Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("debug record missing with verbose: %q", buf.String())
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	Component(New(&buf, false), "gallery").Warn("skipped", Error(errors.New("boom")))

	out := buf.String()
	for _, want := range []string{"component=gallery", "error=boom", "level=WARN"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}

	// nil logger must not panic
	Component(nil, "x").Info("ok")
}
