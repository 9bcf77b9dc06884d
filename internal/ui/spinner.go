// Package ui draws terminal progress for long CLI commands.
package ui

import (
	"fmt"
	"io"
	"sync"
	"time"
)

var frames = []rune{'⠋', '⠙', '⠹', '⠸', '⠼', '⠴', '⠦', '⠧', '⠇', '⠏'}

// Spinner animates a one-line status on w. Progress messages from
// platform.ReportProgress are fed through Update.
type Spinner struct {
	w     io.Writer
	every time.Duration

	mu      sync.Mutex
	msg     string
	done    chan struct{}
	stopped chan struct{}
}

// NewSpinner returns a stopped spinner. A nil writer makes every call a no-op.
func NewSpinner(w io.Writer) *Spinner {
	return &Spinner{w: w, every: 80 * time.Millisecond}
}

func (s *Spinner) Start(msg string) {
	if s.w == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msg = msg
	if s.done != nil {
		return
	}
	s.done = make(chan struct{})
	s.stopped = make(chan struct{})
	go s.run(s.done, s.stopped)
}

func (s *Spinner) Update(msg string) {
	s.mu.Lock()
	s.msg = msg
	s.mu.Unlock()
}

// Stop halts the animation, waits for the last frame and clears the line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	done, stopped := s.done, s.stopped
	s.done, s.stopped = nil, nil
	s.mu.Unlock()
	if done == nil {
		return
	}
	close(done)
	<-stopped
	fmt.Fprint(s.w, "\r\033[K")
}

func (s *Spinner) run(done <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	tick := time.NewTicker(s.every)
	defer tick.Stop()

	for i := 0; ; i++ {
		s.mu.Lock()
		msg := s.msg
		s.mu.Unlock()
		fmt.Fprintf(s.w, "\r\033[K%c %s", frames[i%len(frames)], msg)

		select {
		case <-done:
			return
		case <-tick.C:
		}
	}
}
