// Package pcmsink provides an audio sink that writes raw interleaved s16le
// samples to an io.Writer while modelling a real-time playback device.
//
// Samples are written immediately, and Buffered reports how much of the
// written audio a device playing in real time would not have played yet.
// The presenter uses that to pace how fast it feeds audio.
package pcmsink

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/user/avplay/pkg/ports"
)

// Sink implements ports.BufferedAudioSink.
type Sink struct {
	mu     sync.Mutex
	w      io.Writer
	now    func() time.Time
	volume float64

	playedUntil time.Time
	samples     int64
	clears      int
}

// New creates a sink writing to w.
func New(w io.Writer) *Sink {
	return NewWithClock(w, time.Now)
}

// NewWithClock creates a sink with an injected clock.
func NewWithClock(w io.Writer, now func() time.Time) *Sink {
	return &Sink{w: w, now: now, volume: 1.0}
}

// Enqueue scales the samples by the volume and writes them.
func (s *Sink) Enqueue(samples []int16, channels, sampleRate int) error {
	if channels <= 0 || sampleRate <= 0 {
		return fmt.Errorf("pcmsink: invalid format %d ch %d Hz", channels, sampleRate)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, len(samples)*2)
	for i, v := range samples {
		scaled := math.Round(float64(v) * s.volume)
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(int16(scaled)))
	}
	if _, err := s.w.Write(buf); err != nil {
		return fmt.Errorf("write samples: %w", err)
	}

	frames := int64(len(samples) / channels)
	dur := time.Duration(frames) * time.Second / time.Duration(sampleRate)
	start := s.now()
	if s.playedUntil.After(start) {
		start = s.playedUntil
	}
	s.playedUntil = start.Add(dur)
	s.samples += frames
	return nil
}

// SetVolume sets the playback gain, clamped to [0, 1].
func (s *Sink) SetVolume(volume float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = min(max(volume, 0), 1)
}

// Clear drops queued audio. Bytes already written stay in the output.
func (s *Sink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playedUntil = s.now()
	s.clears++
}

// Buffered returns the duration of written audio not yet played.
func (s *Sink) Buffered() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d := s.playedUntil.Sub(s.now()); d > 0 {
		return d
	}
	return 0
}

// SamplesWritten returns the number of sample frames written.
func (s *Sink) SamplesWritten() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.samples
}

var _ ports.BufferedAudioSink = (*Sink)(nil)
