package render

import (
	"fmt"
	"io"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a labeled progress indicator. It stays silent when
// disabled, so non-TTY callers can use it unconditionally.
type Spinner struct {
	w       io.Writer
	enabled bool

	mu    sync.Mutex
	label string
	stop  chan struct{}
	done  chan struct{}
}

// NewSpinner creates a Spinner writing to w. A disabled spinner is a
// no-op.
func NewSpinner(w io.Writer, enabled bool) *Spinner {
	return &Spinner{w: w, enabled: enabled}
}

// Start begins animating with the given label. Starting an already
// running spinner only updates the label.
func (s *Spinner) Start(label string) {
	if !s.enabled {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.label = label
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)
}

// Stop halts the animation and clears the line.
func (s *Spinner) Stop() {
	if !s.enabled {
		return
	}
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
	fmt.Fprint(s.w, "\r\033[K")
}

func (s *Spinner) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	idx := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			label := s.label
			s.mu.Unlock()
			fmt.Fprintf(s.w, "\r%s %s ", spinnerFrames[idx%len(spinnerFrames)], label)
			idx++
		}
	}
}
