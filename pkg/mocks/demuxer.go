// Package mocks provides mock implementations for testing.
package mocks

import (
	"context"
	"io"
	"sync"

	"github.com/user/avplay/pkg/ports"
)

// SeekCall records one Demuxer.Seek invocation.
type SeekCall struct {
	StreamIndex int
	MinTS       int64
	TS          int64
	MaxTS       int64
}

// Demuxer is a mock implementation of ports.Demuxer that replays an
// in-memory packet list.
//
// Seek positions the reader on the first keyframe of the requested stream
// whose PTS lies inside [MinTS, MaxTS], or at the end of input when none does.
type Demuxer struct {
	mu sync.Mutex

	Info    ports.SourceInfo
	Packets []*ports.Packet
	pos     int

	OpenFunc       func(ctx context.Context, source string) (ports.SourceInfo, error)
	NextPacketFunc func() (*ports.Packet, error)
	SeekFunc       func(streamIndex int, minTS, ts, maxTS int64) error

	Opened    []string
	SeekCalls []SeekCall
	Closed    int
}

func (m *Demuxer) Open(ctx context.Context, source string) (ports.SourceInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Opened = append(m.Opened, source)
	m.pos = 0
	if m.OpenFunc != nil {
		return m.OpenFunc(ctx, source)
	}
	return m.Info, nil
}

func (m *Demuxer) NextPacket() (*ports.Packet, error) {
	if m.NextPacketFunc != nil {
		return m.NextPacketFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pos >= len(m.Packets) {
		return nil, io.EOF
	}
	pkt := *m.Packets[m.pos]
	m.pos++
	return &pkt, nil
}

func (m *Demuxer) Seek(streamIndex int, minTS, ts, maxTS int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SeekCalls = append(m.SeekCalls, SeekCall{StreamIndex: streamIndex, MinTS: minTS, TS: ts, MaxTS: maxTS})
	if m.SeekFunc != nil {
		return m.SeekFunc(streamIndex, minTS, ts, maxTS)
	}
	m.pos = len(m.Packets)
	for i, pkt := range m.Packets {
		if pkt.StreamIndex == streamIndex && pkt.Keyframe && pkt.PTS >= minTS && pkt.PTS <= maxTS {
			m.pos = i
			break
		}
	}
	return nil
}

func (m *Demuxer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed++
	return nil
}

// Seeks returns the recorded seek calls.
func (m *Demuxer) Seeks() []SeekCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SeekCall(nil), m.SeekCalls...)
}

// CloseCount returns how many times Close was called.
func (m *Demuxer) CloseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Closed
}

var _ ports.Demuxer = (*Demuxer)(nil)
