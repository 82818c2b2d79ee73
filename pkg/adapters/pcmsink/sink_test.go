package pcmsink

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestSink_WritesScaledSamples(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf)
	s.SetVolume(0.5)

	if err := s.Enqueue([]int16{1000, -1000, 32767}, 1, 48000); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	want := []int16{500, -500, 16384}
	for i, w := range want {
		got := int16(binary.LittleEndian.Uint16(buf.Bytes()[2*i:]))
		if got != w {
			t.Errorf("sample %d = %d, want %d", i, got, w)
		}
	}
	if s.SamplesWritten() != 3 {
		t.Errorf("SamplesWritten() = %d, want 3", s.SamplesWritten())
	}
}

func TestSink_VolumeIsClamped(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf)
	s.SetVolume(3)
	s.Enqueue([]int16{20000}, 1, 48000)
	if got := int16(binary.LittleEndian.Uint16(buf.Bytes())); got != 20000 {
		t.Errorf("sample = %d, want 20000", got)
	}
}

func TestSink_BufferedDrainsInRealTime(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	s := NewWithClock(&bytes.Buffer{}, clock.now)

	// 4800 stereo frames at 48 kHz is 100ms.
	s.Enqueue(make([]int16, 9600), 2, 48000)
	if got := s.Buffered(); got != 100*time.Millisecond {
		t.Errorf("Buffered() = %v, want 100ms", got)
	}

	s.Enqueue(make([]int16, 9600), 2, 48000)
	if got := s.Buffered(); got != 200*time.Millisecond {
		t.Errorf("Buffered() = %v, want 200ms", got)
	}

	clock.t = clock.t.Add(150 * time.Millisecond)
	if got := s.Buffered(); got != 50*time.Millisecond {
		t.Errorf("Buffered() after 150ms = %v, want 50ms", got)
	}

	clock.t = clock.t.Add(time.Second)
	if got := s.Buffered(); got != 0 {
		t.Errorf("Buffered() after underrun = %v, want 0", got)
	}
}

func TestSink_ClearDropsQueue(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	s := NewWithClock(&bytes.Buffer{}, clock.now)

	s.Enqueue(make([]int16, 48000), 1, 48000)
	s.Clear()
	if got := s.Buffered(); got != 0 {
		t.Errorf("Buffered() after Clear = %v, want 0", got)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestSink_Errors(t *testing.T) {
	s := New(failingWriter{})
	if err := s.Enqueue([]int16{1}, 1, 48000); err == nil {
		t.Error("expected write error")
	}
	if err := s.Enqueue([]int16{1}, 0, 48000); err == nil {
		t.Error("expected error for zero channels")
	}
}
