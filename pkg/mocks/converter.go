package mocks

import (
	"sync"

	"github.com/user/avplay/pkg/ports"
)

// Converter is a mock implementation of ports.Converter that returns a
// zeroed frame in the output format.
type Converter struct {
	mu  sync.Mutex
	in  ports.Format
	out ports.Format

	ReconfigureFunc func(in ports.Format) error
	ConvertFunc     func(f *ports.Frame) (*ports.Frame, error)

	Reconfigures int
	Converted    []int64
}

// NewConverter creates a mock converter.
func NewConverter(in, out ports.Format) *Converter {
	return &Converter{in: in, out: out}
}

func (m *Converter) Reconfigure(in ports.Format) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reconfigures++
	if m.ReconfigureFunc != nil {
		if err := m.ReconfigureFunc(in); err != nil {
			return err
		}
	}
	m.in = in
	return nil
}

func (m *Converter) InputFormat() ports.Format {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.in
}

func (m *Converter) Convert(f *ports.Frame) (*ports.Frame, error) {
	if m.ConvertFunc != nil {
		return m.ConvertFunc(f)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Converted = append(m.Converted, f.PTS)
	out := &ports.Frame{Kind: f.Kind, PTS: f.PTS, Format: m.out}
	switch f.Kind {
	case ports.KindVideo:
		out.Planes = [][]byte{make([]byte, m.out.Width*m.out.Height*4)}
	case ports.KindAudio:
		out.Planes = [][]byte{make([]byte, f.Samples()*m.out.Channels*2)}
	}
	return out, nil
}

// ConvertedPTS returns the PTS of every converted frame in order.
func (m *Converter) ConvertedPTS() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.Converted...)
}

var _ ports.Converter = (*Converter)(nil)

// ConverterFactory is a mock implementation of ports.ConverterFactory.
type ConverterFactory struct {
	mu sync.Mutex

	NewConverterFunc func(in, out ports.Format) (ports.Converter, error)
	Last             *Converter
}

func (m *ConverterFactory) NewConverter(in, out ports.Format) (ports.Converter, error) {
	if m.NewConverterFunc != nil {
		return m.NewConverterFunc(in, out)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Last = NewConverter(in, out)
	return m.Last, nil
}

var _ ports.ConverterFactory = (*ConverterFactory)(nil)
