package mocks

import (
	"sync"

	"github.com/user/avplay/pkg/ports"
)

// Decoder is a mock implementation of ports.Decoder. Each submitted packet
// yields one frame carrying the packet's PTS, after Delay packets have been
// buffered.
type Decoder struct {
	mu sync.Mutex

	Stream   ports.StreamDescriptor
	Delay    int
	Hardware bool

	SubmitFunc   func(pkt *ports.Packet) error
	TransferFunc func(f *ports.Frame) (*ports.Frame, error)
	DrainFunc    func() error

	pending   []*ports.Packet
	ready     []*ports.Frame
	Submitted []int64
	Flushes   int
	Drains    int
	Closed    bool
}

func (m *Decoder) Submit(pkt *ports.Packet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SubmitFunc != nil {
		if err := m.SubmitFunc(pkt); err != nil {
			return err
		}
	}
	m.Submitted = append(m.Submitted, pkt.PTS)
	m.pending = append(m.pending, pkt)
	for len(m.pending) > m.Delay {
		p := m.pending[0]
		m.pending = m.pending[1:]
		m.ready = append(m.ready, m.frameFor(p))
	}
	return nil
}

func (m *Decoder) frameFor(pkt *ports.Packet) *ports.Frame {
	f := &ports.Frame{
		Kind:     m.Stream.Kind,
		PTS:      pkt.PTS,
		Format:   m.Stream.Format,
		Hardware: m.Hardware,
	}
	switch m.Stream.Kind {
	case ports.KindVideo:
		f.Planes = [][]byte{make([]byte, m.Stream.Format.Width*m.Stream.Format.Height)}
	case ports.KindAudio:
		f.Planes = [][]byte{make([]byte, 1024*2*max(m.Stream.Format.Channels, 1))}
	}
	return f
}

func (m *Decoder) ReceiveFrame() (*ports.Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.ready) == 0 {
		return nil, ports.ErrNeedMorePackets
	}
	f := m.ready[0]
	m.ready = m.ready[1:]
	return f, nil
}

func (m *Decoder) SupportsHardware() bool {
	return m.Hardware
}

func (m *Decoder) TransferFrame(f *ports.Frame) (*ports.Frame, error) {
	if m.TransferFunc != nil {
		return m.TransferFunc(f)
	}
	out := *f
	out.Hardware = false
	return &out, nil
}

// Drain releases every packet held back by Delay. DrainFunc runs without
// the mock's lock held, so it may block.
func (m *Decoder) Drain() error {
	m.mu.Lock()
	m.Drains++
	m.mu.Unlock()
	if m.DrainFunc != nil {
		if err := m.DrainFunc(); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pending {
		m.ready = append(m.ready, m.frameFor(p))
	}
	m.pending = nil
	return nil
}

func (m *Decoder) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil
	m.ready = nil
	m.Flushes++
}

func (m *Decoder) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
}

// SubmittedPTS returns the PTS of every submitted packet in order.
func (m *Decoder) SubmittedPTS() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.Submitted...)
}

// FlushCount returns how many times Flush was called.
func (m *Decoder) FlushCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Flushes
}

// DrainCount returns how many times Drain was called.
func (m *Decoder) DrainCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Drains
}

var _ ports.Decoder = (*Decoder)(nil)

// DecoderFactory is a mock implementation of ports.DecoderFactory. It
// builds a mock Decoder per stream and remembers it by media kind.
type DecoderFactory struct {
	mu sync.Mutex

	NewDecoderFunc func(stream ports.StreamDescriptor, opts ports.DecoderOptions) (ports.Decoder, error)

	Hardware bool
	Decoders map[ports.MediaKind]*Decoder
	Options  []ports.DecoderOptions
}

func (m *DecoderFactory) NewDecoder(stream ports.StreamDescriptor, opts ports.DecoderOptions) (ports.Decoder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Options = append(m.Options, opts)
	if m.NewDecoderFunc != nil {
		return m.NewDecoderFunc(stream, opts)
	}
	dec := &Decoder{Stream: stream, Hardware: m.Hardware && opts.PreferHardware}
	if m.Decoders == nil {
		m.Decoders = make(map[ports.MediaKind]*Decoder)
	}
	m.Decoders[stream.Kind] = dec
	return dec, nil
}

// Decoder returns the last decoder built for kind.
func (m *DecoderFactory) Decoder(kind ports.MediaKind) *Decoder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Decoders[kind]
}

var _ ports.DecoderFactory = (*DecoderFactory)(nil)
