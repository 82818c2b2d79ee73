package mocks

import (
	"sync"

	"github.com/user/avplay/pkg/ports"
)

// Renderer is a mock implementation of ports.Renderer.
type Renderer struct {
	mu sync.RWMutex

	PresentFunc func(pixels []byte, width, height int) error

	Presented int
	Width     int
	Height    int
}

func (m *Renderer) Present(pixels []byte, width, height int) error {
	if m.PresentFunc != nil {
		return m.PresentFunc(pixels, width, height)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Presented++
	m.Width, m.Height = width, height
	return nil
}

// PresentCount returns how many frames were presented.
func (m *Renderer) PresentCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Presented
}

var _ ports.Renderer = (*Renderer)(nil)
