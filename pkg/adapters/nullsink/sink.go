// Package nullsink provides a renderer that discards frames.
package nullsink

import (
	"sync"

	"github.com/user/avplay/pkg/ports"
)

// Sink is a no-op implementation of ports.Renderer.
// It discards every frame and only counts them.
type Sink struct {
	mu            sync.Mutex
	frames        int
	width, height int
}

// New creates a new NullSink.
func New() *Sink {
	return &Sink{}
}

// Present counts the frame.
func (s *Sink) Present(pixels []byte, width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	s.width, s.height = width, height
	return nil
}

// Presented returns the number of frames presented.
func (s *Sink) Presented() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Size returns the size of the last frame.
func (s *Sink) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// Ensure Sink implements ports.Renderer
var _ ports.Renderer = (*Sink)(nil)
