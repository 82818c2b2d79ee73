// Package resample converts decoded audio to interleaved signed 16-bit
// samples at a fixed rate and channel count.
//
// Rate conversion uses linear interpolation and carries the last input
// sample and fractional position across frames, so consecutive frames join
// without a discontinuity.
package resample

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/user/avplay/pkg/ports"
)

var (
	// ErrInvalidFormat is returned for formats the resampler cannot read or write.
	ErrInvalidFormat = errors.New("resample: invalid audio format")

	// ErrFormatMismatch is returned when a frame does not match the configured input.
	ErrFormatMismatch = errors.New("resample: frame does not match input format")
)

// Resampler implements ports.Converter for audio.
type Resampler struct {
	in  ports.Format
	out ports.Format

	prev     []float32 // last input frame, already mapped to output channels
	position float64   // fractional read position relative to prev
}

// New creates a resampler from in to out. out must be s16.
func New(in, out ports.Format) (*Resampler, error) {
	if out.SampleFormat != ports.SampleFormatS16 || out.SampleRate <= 0 || out.Channels <= 0 {
		return nil, fmt.Errorf("%w: output %s %d Hz %d ch", ErrInvalidFormat, out.SampleFormat, out.SampleRate, out.Channels)
	}
	r := &Resampler{out: out}
	if err := r.Reconfigure(in); err != nil {
		return nil, err
	}
	return r, nil
}

// Reconfigure sets a new input format and resets the interpolation state.
func (r *Resampler) Reconfigure(in ports.Format) error {
	switch in.SampleFormat {
	case ports.SampleFormatS16, ports.SampleFormatF32:
	default:
		return fmt.Errorf("%w: sample format %q", ErrInvalidFormat, in.SampleFormat)
	}
	if in.SampleRate <= 0 || in.Channels <= 0 {
		return fmt.Errorf("%w: input %d Hz %d ch", ErrInvalidFormat, in.SampleRate, in.Channels)
	}
	r.in = in
	r.prev = nil
	r.position = 0
	return nil
}

// InputFormat returns the configured input format.
func (r *Resampler) InputFormat() ports.Format {
	return r.in
}

// Convert resamples one frame.
func (r *Resampler) Convert(f *ports.Frame) (*ports.Frame, error) {
	if f.Format != r.in {
		return nil, ErrFormatMismatch
	}
	if len(f.Planes) == 0 {
		return nil, fmt.Errorf("%w: no sample plane", ErrInvalidFormat)
	}

	var data []byte
	if r.in.SampleFormat == ports.SampleFormatS16 && r.in.SampleRate == r.out.SampleRate && r.in.Channels == r.out.Channels {
		data = append([]byte(nil), f.Planes[0]...)
	} else {
		data = encode(r.resample(r.remix(r.decode(f.Planes[0]))))
	}

	return &ports.Frame{
		Kind:   ports.KindAudio,
		PTS:    f.PTS,
		Format: r.out,
		Planes: [][]byte{data},
	}, nil
}

// decode reads interleaved samples as floats in [-1, 1].
func (r *Resampler) decode(b []byte) []float32 {
	if r.in.SampleFormat == ports.SampleFormatF32 {
		out := make([]float32, len(b)/4)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
		}
		return out
	}
	out := make([]float32, len(b)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(b[2*i:]))) / 32768
	}
	return out
}

// remix maps input channels to output channels. Downmixing to mono
// averages every channel; otherwise output channel c reads input channel
// c modulo the input count.
func (r *Resampler) remix(samples []float32) []float32 {
	inCh, outCh := r.in.Channels, r.out.Channels
	if inCh == outCh {
		return samples
	}
	frames := len(samples) / inCh
	out := make([]float32, frames*outCh)
	for i := 0; i < frames; i++ {
		src := samples[i*inCh : (i+1)*inCh]
		if outCh == 1 {
			var sum float32
			for _, s := range src {
				sum += s
			}
			out[i] = sum / float32(inCh)
			continue
		}
		for c := 0; c < outCh; c++ {
			out[i*outCh+c] = src[c%inCh]
		}
	}
	return out
}

// resample converts interleaved output-channel samples to the output rate.
func (r *Resampler) resample(samples []float32) []float32 {
	ch := r.out.Channels
	if r.in.SampleRate == r.out.SampleRate {
		return samples
	}

	// Prepend the previous frame so interpolation spans the boundary.
	src := samples
	if r.prev != nil {
		src = make([]float32, 0, len(r.prev)+len(samples))
		src = append(src, r.prev...)
		src = append(src, samples...)
	}
	frames := len(src) / ch
	if frames == 0 {
		return nil
	}

	step := float64(r.in.SampleRate) / float64(r.out.SampleRate)
	out := make([]float32, 0, int(float64(frames)/step+1)*ch)
	pos := r.position
	for {
		idx := int(pos)
		if idx+1 >= frames {
			break
		}
		frac := float32(pos - float64(idx))
		for c := 0; c < ch; c++ {
			a := src[idx*ch+c]
			b := src[(idx+1)*ch+c]
			out = append(out, a+(b-a)*frac)
		}
		pos += step
	}

	r.prev = append(r.prev[:0], src[(frames-1)*ch:frames*ch]...)
	r.position = pos - float64(frames-1)
	return out
}

func encode(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := math.Round(float64(s) * 32768)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(v)))
	}
	return out
}

// Factory implements ports.ConverterFactory for audio.
type Factory struct{}

// NewConverter creates a resampler with a fixed output format.
func (Factory) NewConverter(in, out ports.Format) (ports.Converter, error) {
	return New(in, out)
}

var (
	_ ports.Converter        = (*Resampler)(nil)
	_ ports.ConverterFactory = Factory{}
)
