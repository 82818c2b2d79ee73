package pipeline

import (
	"sync"
	"time"

	"github.com/user/avplay/pkg/ports"
)

// masterClock is the current presentation timestamp, written by the master
// stream and read by the sync decision and progress reporting.
type masterClock struct {
	mu  sync.RWMutex
	pts int64
	tb  ports.TimeBase
}

func (c *masterClock) reset(tb ports.TimeBase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pts = 0
	c.tb = tb
}

func (c *masterClock) set(pts int64, tb ports.TimeBase) {
	if pts == ports.NoPTS {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pts = pts
	c.tb = tb
}

func (c *masterClock) load() (int64, ports.TimeBase) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pts, c.tb
}

func (c *masterClock) position() time.Duration {
	pts, tb := c.load()
	return tb.Duration(pts)
}

// coverSlot holds the most recent attached picture. Last write wins.
type coverSlot struct {
	mu   sync.RWMutex
	data []byte
}

func (s *coverSlot) store(data []byte) {
	buf := make([]byte, len(data))
	copy(buf, data)
	s.mu.Lock()
	s.data = buf
	s.mu.Unlock()
}

func (s *coverSlot) load() ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return nil, false
	}
	out := make([]byte, len(s.data))
	copy(out, s.data)
	return out, true
}

func (s *coverSlot) reset() {
	s.mu.Lock()
	s.data = nil
	s.mu.Unlock()
}
