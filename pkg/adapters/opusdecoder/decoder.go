// Package opusdecoder decodes Opus audio packets in pure Go using pion/opus.
//
// pion/opus decodes SILK frames and produces mono 48 kHz samples regardless
// of the channel count the container declares. Frames carry their actual
// format so the pipeline's resampler reconfigures for them.
package opusdecoder

import (
	"errors"
	"fmt"
	"time"

	"github.com/pion/opus"

	"github.com/user/avplay/pkg/ports"
)

// SampleRate is the rate of decoded output.
const SampleRate = 48000

var (
	// ErrNotOpus is returned for a stream that is not Opus.
	ErrNotOpus = errors.New("opusdecoder: stream is not opus")

	// ErrInvalidPacket is returned for a packet without a valid TOC.
	ErrInvalidPacket = errors.New("opusdecoder: invalid packet")
)

// Decoder implements ports.Decoder for one Opus stream.
type Decoder struct {
	stream ports.StreamDescriptor
	dec    opus.Decoder

	frames []*ports.Frame

	// next is the PTS of the sample following the last decoded one, used for
	// packets without a timestamp.
	next int64
}

// New creates a decoder for an Opus stream.
func New(stream ports.StreamDescriptor) (*Decoder, error) {
	if stream.Kind != ports.KindAudio || stream.Codec != "opus" {
		return nil, fmt.Errorf("%w: %s %s", ErrNotOpus, stream.Kind, stream.Codec)
	}
	return &Decoder{stream: stream, dec: opus.NewDecoder(), next: ports.NoPTS}, nil
}

// Factory implements ports.DecoderFactory for Opus streams.
type Factory struct{}

// NewDecoder creates a decoder for an Opus stream. The hardware preference is
// ignored.
func (Factory) NewDecoder(stream ports.StreamDescriptor, _ ports.DecoderOptions) (ports.Decoder, error) {
	return New(stream)
}

// Submit decodes one packet. The decoded frame is queued for ReceiveFrame.
func (d *Decoder) Submit(pkt *ports.Packet) error {
	samples, err := PacketSamples(pkt.Data)
	if err != nil {
		return err
	}

	out := make([]byte, samples*2)
	if _, _, err := d.dec.Decode(pkt.Data, out); err != nil {
		return fmt.Errorf("opus decode: %w", err)
	}

	pts := pkt.PTS
	if pts == ports.NoPTS {
		pts = d.next
	}
	if pts != ports.NoPTS {
		d.next = pts + d.stream.TimeBase.FromDuration(time.Duration(samples)*time.Second/SampleRate)
	}

	d.frames = append(d.frames, &ports.Frame{
		Kind: ports.KindAudio,
		PTS:  pts,
		Format: ports.Format{
			SampleFormat: ports.SampleFormatS16,
			Channels:     1,
			SampleRate:   SampleRate,
		},
		Planes: [][]byte{out},
	})
	return nil
}

// ReceiveFrame returns the next decoded frame, or ports.ErrNeedMorePackets.
func (d *Decoder) ReceiveFrame() (*ports.Frame, error) {
	if len(d.frames) == 0 {
		return nil, ports.ErrNeedMorePackets
	}
	f := d.frames[0]
	d.frames[0] = nil
	d.frames = d.frames[1:]
	return f, nil
}

// SupportsHardware always returns false.
func (d *Decoder) SupportsHardware() bool { return false }

// TransferFrame returns f unchanged.
func (d *Decoder) TransferFrame(f *ports.Frame) (*ports.Frame, error) { return f, nil }

// Drain is a no-op: every packet is decoded on Submit.
func (d *Decoder) Drain() error { return nil }

// Flush drops queued frames and resets decoder state.
func (d *Decoder) Flush() {
	d.frames = nil
	d.next = ports.NoPTS
	d.dec = opus.NewDecoder()
}

// Close releases queued frames.
func (d *Decoder) Close() {
	d.frames = nil
}

// frameDurations maps the TOC config number to the frame duration in
// 48 kHz samples (RFC 6716 section 3.1).
var frameDurations = [32]int{
	// SILK-only NB, MB, WB: 10, 20, 40, 60 ms
	480, 960, 1920, 2880, 480, 960, 1920, 2880, 480, 960, 1920, 2880,
	// Hybrid SWB, FB: 10, 20 ms
	480, 960, 480, 960,
	// CELT-only NB, WB, SWB, FB: 2.5, 5, 10, 20 ms
	120, 240, 480, 960, 120, 240, 480, 960, 120, 240, 480, 960, 120, 240, 480, 960,
}

// PacketSamples returns the number of 48 kHz samples per channel an Opus
// packet decodes to.
func PacketSamples(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: empty", ErrInvalidPacket)
	}
	toc := data[0]
	perFrame := frameDurations[toc>>3]

	var frames int
	switch toc & 0x03 {
	case 0:
		frames = 1
	case 1, 2:
		frames = 2
	default:
		if len(data) < 2 {
			return 0, fmt.Errorf("%w: missing frame count", ErrInvalidPacket)
		}
		frames = int(data[1] & 0x3F)
		if frames == 0 {
			return 0, fmt.Errorf("%w: zero frames", ErrInvalidPacket)
		}
	}

	// A packet never exceeds 120 ms.
	if frames*perFrame > 5760 {
		return 0, fmt.Errorf("%w: %d frames of %d samples", ErrInvalidPacket, frames, perFrame)
	}
	return frames * perFrame, nil
}

var (
	_ ports.Decoder        = (*Decoder)(nil)
	_ ports.DecoderFactory = Factory{}
)
