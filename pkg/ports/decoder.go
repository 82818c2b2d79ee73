package ports

import "errors"

// ErrNeedMorePackets is returned by Decoder.ReceiveFrame when no frame is
// ready until more packets are submitted. It is not a failure.
var ErrNeedMorePackets = errors.New("decoder needs more packets")

// DecoderOptions configures decoder construction.
type DecoderOptions struct {
	// PreferHardware requests the hardware path when the backend supports it.
	PreferHardware bool
}

// Decoder turns packets of one stream into frames.
//
// A Decoder is not safe for concurrent use; the pipeline serializes access
// through the owning stream's decoder lock.
type Decoder interface {
	// Submit hands one packet to the decoder. A returned error is fatal for
	// the stream.
	Submit(pkt *Packet) error

	// ReceiveFrame returns the next decoded frame, or ErrNeedMorePackets.
	ReceiveFrame() (*Frame, error)

	// SupportsHardware reports whether frames come from a hardware path.
	SupportsHardware() bool

	// TransferFrame copies a hardware-resident frame into host memory.
	TransferFrame(f *Frame) (*Frame, error)

	// Drain signals that no packets follow. Frames still buffered inside
	// the decoder become available through ReceiveFrame. A returned error
	// is fatal for the stream. Flush makes the decoder accept input again.
	Drain() error

	// Flush discards internally buffered packets and frames.
	Flush()

	// Close releases decoder resources.
	Close()
}

// DecoderFactory builds a decoder for a stream.
type DecoderFactory interface {
	NewDecoder(stream StreamDescriptor, opts DecoderOptions) (Decoder, error)
}
