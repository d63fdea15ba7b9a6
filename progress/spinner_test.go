package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestSpinnerString(t *testing.T) {
	spinner := NewSpinner("parsing")

	str := spinner.String()
	if !strings.HasPrefix(str, "parsing ") {
		t.Errorf("String() should start with the message, got %q", str)
	}

	hasFrame := false
	for _, f := range frames {
		if strings.Contains(str, f) {
			hasFrame = true
			break
		}
	}

	if !hasFrame {
		t.Errorf("String() should contain a spinner frame, got %q", str)
	}
}

func TestSpinnerStop(t *testing.T) {
	spinner := NewSpinner("writing")
	spinner.started = time.Now().Add(-1500 * time.Millisecond)
	spinner.Stop()

	first := spinner.stopped
	spinner.Stop()
	if spinner.stopped != first {
		t.Error("second Stop should not move the stop time")
	}

	str := spinner.String()
	if !strings.Contains(str, "(1.5") {
		t.Errorf("stopped spinner should show elapsed time, got %q", str)
	}

	for _, f := range frames {
		if strings.Contains(str, f) {
			t.Errorf("stopped spinner should not animate, got %q", str)
		}
	}
}

func TestProgressStop(t *testing.T) {
	var b bytes.Buffer
	p := NewProgress(&b)
	spinner := NewSpinner("loading")
	p.Add(spinner)
	p.Stop()
	p.Stop()

	if spinner.stopped.IsZero() {
		t.Error("Stop should stop every spinner")
	}

	out := b.String()
	if !strings.Contains(out, "loading (") {
		t.Errorf("final frame should show the stopped spinner, got %q", out)
	}

	if !strings.HasSuffix(out, "\033[?25h") {
		t.Errorf("Stop should show the cursor again, got %q", out)
	}
}
