package mocks

import (
	"sync"

	"github.com/user/avplay/pkg/ports"
)

// AudioSink is a mock implementation of ports.AudioSink.
type AudioSink struct {
	mu sync.RWMutex

	EnqueueFunc func(samples []int16, channels, sampleRate int) error

	Enqueued int
	Samples  int
	Volume   float64
	Clears   int
}

func (m *AudioSink) Enqueue(samples []int16, channels, sampleRate int) error {
	if m.EnqueueFunc != nil {
		return m.EnqueueFunc(samples, channels, sampleRate)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Enqueued++
	m.Samples += len(samples)
	return nil
}

func (m *AudioSink) SetVolume(volume float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Volume = volume
}

func (m *AudioSink) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Clears++
}

// EnqueueCount returns how many chunks were enqueued.
func (m *AudioSink) EnqueueCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Enqueued
}

// ClearCount returns how many times Clear was called.
func (m *AudioSink) ClearCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Clears
}

var _ ports.AudioSink = (*AudioSink)(nil)
