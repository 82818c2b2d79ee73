package ffmpegdecoder

import (
	"container/heap"
	"fmt"
	"sync"
	"time"

	"github.com/user/avplay/pkg/ports"
)

// audioChunkSamples is the number of samples per channel in one audio frame.
const audioChunkSamples = 1024

// drainTimeout bounds how long Drain waits for ffmpeg to exit.
const drainTimeout = 10 * time.Second

// Options configures the decoder factory.
type Options struct {
	// FFmpegPath is an optional custom path to the ffmpeg binary.
	FFmpegPath string

	// HWAccel is the ffmpeg -hwaccel method used when hardware decoding is
	// preferred (e.g. "auto", "vaapi", "videotoolbox"). Empty disables it.
	HWAccel string
}

// Factory implements ports.DecoderFactory on top of ffmpeg.
type Factory struct {
	opts   Options
	logger ports.Logger
}

// NewFactory creates an ffmpeg decoder factory.
func NewFactory(opts Options, logger ports.Logger) *Factory {
	return &Factory{opts: opts, logger: logger.WithComponent("ffmpeg")}
}

// NewDecoder starts an ffmpeg process for the stream.
func (f *Factory) NewDecoder(stream ports.StreamDescriptor, opts ports.DecoderOptions) (ports.Decoder, error) {
	return f.New(stream, opts.PreferHardware && f.opts.HWAccel != "")
}

// New starts an ffmpeg process for the stream, on the hardware path when
// hardware is set.
func (f *Factory) New(stream ports.StreamDescriptor, hardware bool) (*Decoder, error) {
	path, err := FindFFmpeg(f.opts.FFmpegPath)
	if err != nil {
		return nil, err
	}
	if _, err := inputFormat(stream.Codec); err != nil {
		return nil, err
	}
	switch stream.Kind {
	case ports.KindVideo:
		if stream.Format.Width <= 0 || stream.Format.Height <= 0 {
			return nil, fmt.Errorf("ffmpegdecoder: invalid video size %dx%d", stream.Format.Width, stream.Format.Height)
		}
	case ports.KindAudio:
		if stream.Format.SampleRate <= 0 || stream.Format.Channels <= 0 {
			return nil, fmt.Errorf("ffmpegdecoder: invalid audio format %d Hz %d ch", stream.Format.SampleRate, stream.Format.Channels)
		}
	default:
		return nil, fmt.Errorf("%w: %s stream", ErrUnsupportedCodec, stream.Kind)
	}

	d := &Decoder{
		ffmpegPath: path,
		stream:     stream,
		hardware:   hardware && stream.Kind == ports.KindVideo,
		hwaccel:    f.opts.HWAccel,
		logger:     f.logger,
		asc:        parseASC(firstSet(stream.ParameterSets), stream.Format.SampleRate, stream.Format.Channels),
		audioBase:  ports.NoPTS,
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.startLocked(); err != nil {
		return nil, err
	}
	return d, nil
}

func firstSet(sets [][]byte) []byte {
	if len(sets) == 0 {
		return nil
	}
	return sets[0]
}

// Decoder implements ports.Decoder for one stream.
//
// Video frames carry the smallest PTS submitted and not yet assigned, which
// restores presentation order for streams with reordered frames. Audio
// frames are timed from the first packet PTS after a flush plus the number
// of samples produced since.
type Decoder struct {
	ffmpegPath string
	stream     ports.StreamDescriptor
	hardware   bool
	hwaccel    string
	logger     ports.Logger
	asc        adtsConfig

	mu      sync.Mutex
	proc    *process
	pending ptsHeap
	closed  bool
	drained bool

	audioBase    int64
	audioSamples int64
}

func (d *Decoder) startLocked() error {
	var args []string
	var chunk int
	var err error
	switch d.stream.Kind {
	case ports.KindVideo:
		w, h := d.stream.Format.Width, d.stream.Format.Height
		pixFmt, hw := "yuv420p", ""
		if d.hardware {
			pixFmt, hw = "nv12", d.hwaccel
		}
		args, err = videoArgs(d.stream.Codec, hw, pixFmt, w, h)
		chunk = frameSize(w, h)
	default:
		args, err = audioArgs(d.stream.Codec, d.stream.Format.SampleRate, d.stream.Format.Channels)
		chunk = audioChunkSamples * d.stream.Format.Channels * 2
	}
	if err != nil {
		return err
	}

	// A short final audio chunk is still whole samples; a short video
	// chunk is a truncated picture.
	proc, err := startProcess(d.ffmpegPath, args, chunk, d.stream.Kind == ports.KindAudio)
	if err != nil {
		return err
	}
	d.proc = proc
	d.logger.Debug("Started ffmpeg for %s stream %d (%s, hardware %v)", d.stream.Kind, d.stream.Index, d.stream.Codec, d.hardware)
	return nil
}

// frameSize is the byte size of a 4:2:0 frame, planar or semi-planar.
func frameSize(w, h int) int {
	cw, ch := (w+1)/2, (h+1)/2
	return w*h + 2*cw*ch
}

// Submit writes one packet to ffmpeg in elementary-stream framing.
func (d *Decoder) Submit(pkt *ports.Packet) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if d.drained {
		// ffmpeg has exited; input after Drain starts a new process.
		d.stopLocked()
	}
	if d.proc == nil {
		if err := d.startLocked(); err != nil {
			return err
		}
	}

	if err := d.proc.write(d.frame(pkt)); err != nil {
		return err
	}

	if d.stream.Kind == ports.KindVideo {
		heap.Push(&d.pending, pkt.PTS)
	} else if d.audioBase == ports.NoPTS {
		d.audioBase = pkt.PTS
	}
	return nil
}

func (d *Decoder) frame(pkt *ports.Packet) []byte {
	switch d.stream.Codec {
	case "h264", "hevc":
		annexB := avccToAnnexB(pkt.Data)
		if pkt.Keyframe && len(d.stream.ParameterSets) > 0 {
			return append(parameterSetPrefix(d.stream.ParameterSets), annexB...)
		}
		return annexB
	case "av1":
		out := make([]byte, 0, len(temporalDelimiter)+len(pkt.Data))
		out = append(out, temporalDelimiter...)
		return append(out, pkt.Data...)
	case "aac":
		return adtsFrame(d.asc, pkt.Data)
	default:
		return pkt.Data
	}
}

// ReceiveFrame returns the next decoded frame, or ports.ErrNeedMorePackets.
func (d *Decoder) ReceiveFrame() (*ports.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	if d.proc == nil {
		return nil, ports.ErrNeedMorePackets
	}

	chunk, ok := d.proc.pop()
	if !ok {
		if exited, err := d.proc.status(); exited && err != nil {
			return nil, fmt.Errorf("%w: %v: %s", ErrProcessExited, err, d.proc.stderrText())
		}
		return nil, ports.ErrNeedMorePackets
	}

	if d.stream.Kind == ports.KindVideo {
		return d.videoFrame(chunk), nil
	}
	return d.audioFrame(chunk), nil
}

func (d *Decoder) videoFrame(chunk []byte) *ports.Frame {
	w, h := d.stream.Format.Width, d.stream.Format.Height
	pts := ports.NoPTS
	if d.pending.Len() > 0 {
		pts = heap.Pop(&d.pending).(int64)
	}
	f := &ports.Frame{
		Kind:   ports.KindVideo,
		PTS:    pts,
		Format: ports.Format{Width: w, Height: h},
	}
	luma := w * h
	if d.hardware {
		f.Format.PixelFormat = ports.PixelFormatNV12
		f.Planes = [][]byte{chunk[:luma], chunk[luma:]}
		f.Hardware = true
		return f
	}
	chroma := ((w + 1) / 2) * ((h + 1) / 2)
	f.Format.PixelFormat = ports.PixelFormatYUV420P
	f.Planes = [][]byte{chunk[:luma], chunk[luma : luma+chroma], chunk[luma+chroma:]}
	return f
}

func (d *Decoder) audioFrame(chunk []byte) *ports.Frame {
	rate := d.stream.Format.SampleRate
	pts := ports.NoPTS
	if d.audioBase != ports.NoPTS {
		elapsed := time.Duration(d.audioSamples) * time.Second / time.Duration(rate)
		pts = d.audioBase + d.stream.TimeBase.FromDuration(elapsed)
	}
	d.audioSamples += int64(len(chunk) / (2 * max(d.stream.Format.Channels, 1)))
	return &ports.Frame{
		Kind: ports.KindAudio,
		PTS:  pts,
		Format: ports.Format{
			SampleFormat: ports.SampleFormatS16,
			Channels:     d.stream.Format.Channels,
			SampleRate:   rate,
		},
		Planes: [][]byte{chunk},
	}
}

// SupportsHardware reports whether frames come from the -hwaccel path.
func (d *Decoder) SupportsHardware() bool {
	return d.hardware
}

// TransferFrame copies an NV12 surface into host-owned planes.
func (d *Decoder) TransferFrame(f *ports.Frame) (*ports.Frame, error) {
	if !f.Hardware {
		return f, nil
	}
	if len(f.Planes) != 2 {
		return nil, fmt.Errorf("ffmpegdecoder: hardware frame has %d planes, want 2", len(f.Planes))
	}
	out := *f
	out.Hardware = false
	out.Planes = make([][]byte, len(f.Planes))
	for i, p := range f.Planes {
		out.Planes[i] = append([]byte(nil), p...)
	}
	return &out, nil
}

// Drain closes ffmpeg's input and waits until it has written every
// buffered frame.
func (d *Decoder) Drain() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if d.proc == nil || d.drained {
		return nil
	}
	d.drained = true
	if err := d.proc.finish(drainTimeout); err != nil {
		return err
	}
	d.logger.Debug("Drained ffmpeg for %s stream %d", d.stream.Kind, d.stream.Index)
	return nil
}

// Flush drops buffered state by restarting ffmpeg on the next Submit.
func (d *Decoder) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

func (d *Decoder) stopLocked() {
	if d.proc != nil {
		d.proc.stop()
		d.proc = nil
	}
	d.drained = false
	d.pending = d.pending[:0]
	d.audioBase = ports.NoPTS
	d.audioSamples = 0
}

// Close stops ffmpeg.
func (d *Decoder) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.closed = true
}

// ptsHeap is a min-heap of pending presentation timestamps.
type ptsHeap []int64

func (h ptsHeap) Len() int           { return len(h) }
func (h ptsHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h ptsHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *ptsHeap) Push(x any)        { *h = append(*h, x.(int64)) }
func (h *ptsHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

var (
	_ ports.Decoder        = (*Decoder)(nil)
	_ ports.DecoderFactory = (*Factory)(nil)
)
