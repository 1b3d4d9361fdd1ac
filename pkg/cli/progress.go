package cli

import (
	"fmt"
	"io"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner shows an elapsed-time spinner while a request is in flight.
type Spinner struct {
	w        io.Writer
	interval time.Duration

	mu      sync.Mutex
	label   string
	started time.Time
	frame   int
	stop    chan struct{}
	done    chan struct{}
}

// NewSpinner creates a spinner writing to w, normally stderr.
func NewSpinner(w io.Writer) *Spinner {
	return &Spinner{w: w, interval: 100 * time.Millisecond}
}

// Start begins rendering label. Calling Start on a running spinner only
// changes the label.
func (s *Spinner) Start(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.label = label
	if s.stop != nil {
		return
	}
	s.started = time.Now()
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(s.stop, s.done)
}

// Stop clears the spinner line and returns the elapsed time.
func (s *Spinner) Stop() time.Duration {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop = nil
	started := s.started
	s.mu.Unlock()

	if stop == nil {
		return 0
	}
	close(stop)
	<-done
	fmt.Fprint(s.w, "\r\x1b[K")
	return time.Since(started)
}

func (s *Spinner) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.render()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.render()
		}
	}
}

func (s *Spinner) render() {
	s.mu.Lock()
	defer s.mu.Unlock()

	frame := spinnerFrames[s.frame%len(spinnerFrames)]
	s.frame++
	fmt.Fprintf(s.w, "\r%s %s %.1fs", frame, s.label, time.Since(s.started).Seconds())
}
