package progress

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner shows a conversion phase. Once stopped it shows how long the
// phase took instead of the animation.
type Spinner struct {
	mu      sync.Mutex
	message string
	started time.Time
	stopped time.Time
}

func NewSpinner(message string) *Spinner {
	return &Spinner{message: message, started: time.Now()}
}

func (s *Spinner) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(s.message))
	sb.WriteString(" ")

	if s.stopped.IsZero() {
		elapsed := time.Since(s.started)
		sb.WriteString(frames[int(elapsed/(100*time.Millisecond))%len(frames)])
	} else {
		fmt.Fprintf(&sb, "(%s)", s.stopped.Sub(s.started).Round(time.Millisecond))
	}

	return sb.String()
}

func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped.IsZero() {
		s.stopped = time.Now()
	}
}
