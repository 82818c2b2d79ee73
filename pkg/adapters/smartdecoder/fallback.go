package smartdecoder

import (
	"errors"
	"fmt"

	"github.com/user/avplay/pkg/ports"
)

// maxReplayPackets bounds the packets retained for replay after a runtime
// fallback.
const maxReplayPackets = 1000

// fallbackDecoder runs a hardware decoder and switches to a software decoder
// when the hardware one fails. Packets since the last keyframe are replayed
// into the software decoder, and frames at or before the last frame already
// handed out are discarded, so the stream continues without a gap or
// duplicate.
type fallbackDecoder struct {
	factory *Factory
	stream  ports.StreamDescriptor

	hw ports.Decoder
	sw ports.Decoder

	gop      []*ports.Packet
	overflow bool

	lastPTS  int64
	skipUpTo int64
}

func newFallback(hw ports.Decoder, factory *Factory, stream ports.StreamDescriptor) *fallbackDecoder {
	return &fallbackDecoder{
		factory:  factory,
		stream:   stream,
		hw:       hw,
		lastPTS:  ports.NoPTS,
		skipUpTo: ports.NoPTS,
	}
}

func (d *fallbackDecoder) Submit(pkt *ports.Packet) error {
	d.retain(pkt)
	if d.hw == nil {
		return d.sw.Submit(pkt)
	}
	if err := d.hw.Submit(pkt); err != nil {
		return d.fallback(err)
	}
	return nil
}

func (d *fallbackDecoder) retain(pkt *ports.Packet) {
	if pkt.Keyframe {
		d.gop = d.gop[:0]
		d.overflow = false
	}
	if d.overflow {
		return
	}
	if len(d.gop) >= maxReplayPackets {
		d.gop = d.gop[:0]
		d.overflow = true
		return
	}
	d.gop = append(d.gop, pkt)
}

func (d *fallbackDecoder) ReceiveFrame() (*ports.Frame, error) {
	if d.hw != nil {
		f, err := d.hw.ReceiveFrame()
		if err == nil {
			if !f.Hardware && f.PTS != ports.NoPTS {
				d.lastPTS = f.PTS
			}
			return f, nil
		}
		if errors.Is(err, ports.ErrNeedMorePackets) {
			return nil, err
		}
		if ferr := d.fallback(err); ferr != nil {
			return nil, ferr
		}
	}

	for {
		f, err := d.sw.ReceiveFrame()
		if err != nil {
			return nil, err
		}
		if d.skipUpTo != ports.NoPTS && f.PTS != ports.NoPTS && f.PTS <= d.skipUpTo {
			continue
		}
		d.skipUpTo = ports.NoPTS
		return f, nil
	}
}

// fallback replaces the hardware decoder with a software one and replays
// the retained packets into it.
func (d *fallbackDecoder) fallback(cause error) error {
	d.factory.logger.Warn("Hardware decoder failed on stream %d, replaying %d packets in software: %s", d.stream.Index, len(d.gop), cause)
	d.hw.Close()
	d.hw = nil

	sw, err := d.factory.software(d.stream)
	if err != nil {
		return fmt.Errorf("software fallback: %w", errors.Join(cause, err))
	}
	d.sw = sw
	d.skipUpTo = d.lastPTS
	for _, p := range d.gop {
		if err := sw.Submit(p); err != nil {
			return err
		}
	}
	return nil
}

func (d *fallbackDecoder) SupportsHardware() bool {
	return d.hw != nil
}

func (d *fallbackDecoder) TransferFrame(f *ports.Frame) (*ports.Frame, error) {
	if !f.Hardware {
		return f, nil
	}
	if d.hw == nil {
		return nil, fmt.Errorf("smartdecoder: hardware frame after software fallback")
	}
	out, err := d.hw.TransferFrame(f)
	if err != nil {
		if ferr := d.fallback(err); ferr != nil {
			return nil, ferr
		}
		return nil, err
	}
	if out.PTS != ports.NoPTS {
		d.lastPTS = out.PTS
	}
	return out, nil
}

func (d *fallbackDecoder) Drain() error {
	if d.hw == nil {
		return d.sw.Drain()
	}
	if err := d.hw.Drain(); err != nil {
		if ferr := d.fallback(err); ferr != nil {
			return ferr
		}
		return d.sw.Drain()
	}
	return nil
}

func (d *fallbackDecoder) Flush() {
	d.gop = d.gop[:0]
	d.overflow = false
	d.lastPTS = ports.NoPTS
	d.skipUpTo = ports.NoPTS
	if d.hw != nil {
		d.hw.Flush()
	} else {
		d.sw.Flush()
	}
}

func (d *fallbackDecoder) Close() {
	if d.hw != nil {
		d.hw.Close()
	}
	if d.sw != nil {
		d.sw.Close()
	}
}

var _ ports.Decoder = (*fallbackDecoder)(nil)
