// Package smartdecoder provides a decoder factory that selects the backend
// by codec and prefers the hardware path, falling back to software decoding
// when the hardware decoder cannot be built or fails while running.
package smartdecoder

import (
	"errors"
	"fmt"
	"sync"

	"github.com/user/avplay/pkg/adapters/ffmpegdecoder"
	"github.com/user/avplay/pkg/adapters/opusdecoder"
	"github.com/user/avplay/pkg/ports"
)

// Backend represents the decoding backend used.
type Backend string

const (
	// BackendHardware represents ffmpeg with a -hwaccel method.
	BackendHardware Backend = "ffmpeg-hw"
	// BackendFFmpeg represents software decoding through ffmpeg.
	BackendFFmpeg Backend = "ffmpeg"
	// BackendOpus represents the pure-Go Opus decoder.
	BackendOpus Backend = "opus"
)

// Info contains information about the decoder selected for a stream.
type Info struct {
	// Codec is the stream codec.
	Codec string
	// Backend is the decoding backend being used.
	Backend Backend
}

// Options configures the smart decoder behavior.
type Options struct {
	// FFmpegPath is an optional custom path to the ffmpeg binary.
	FFmpegPath string
	// HWAccel is the ffmpeg -hwaccel method. Empty disables hardware decoding.
	HWAccel string
}

var (
	// ErrUnsupportedCodec is returned when the codec is not supported.
	ErrUnsupportedCodec = errors.New("smartdecoder: unsupported codec")
	// ErrNoDecoderAvailable is returned when no decoder is available for the codec.
	ErrNoDecoderAvailable = errors.New("smartdecoder: no decoder available")
)

// Factory implements ports.DecoderFactory.
//
// The selection flow:
//   - Opus: pure-Go decoder
//   - H.264, HEVC, AV1, AAC: ffmpeg, on the hardware path when requested
//     and enabled, otherwise software
type Factory struct {
	ffmpeg   ports.DecoderFactory
	opus     ports.DecoderFactory
	hardware bool
	logger   ports.Logger

	mu    sync.Mutex
	infos map[int]Info
}

// NewFactory creates a factory backed by ffmpeg and pion/opus.
func NewFactory(opts Options, logger ports.Logger) *Factory {
	ff := ffmpegdecoder.NewFactory(ffmpegdecoder.Options{
		FFmpegPath: opts.FFmpegPath,
		HWAccel:    opts.HWAccel,
	}, logger)
	return NewWithBackends(ff, opusdecoder.Factory{}, opts.HWAccel != "", logger)
}

// NewWithBackends creates a factory over explicit backends. hardware
// reports whether the ffmpeg backend honours PreferHardware.
func NewWithBackends(ffmpeg, opus ports.DecoderFactory, hardware bool, logger ports.Logger) *Factory {
	return &Factory{
		ffmpeg:   ffmpeg,
		opus:     opus,
		hardware: hardware,
		logger:   logger.WithComponent("smartdecoder"),
		infos:    make(map[int]Info),
	}
}

// NewDecoder builds a decoder for the stream.
func (f *Factory) NewDecoder(stream ports.StreamDescriptor, opts ports.DecoderOptions) (ports.Decoder, error) {
	switch stream.Codec {
	case "opus":
		dec, err := f.opus.NewDecoder(stream, ports.DecoderOptions{})
		if err != nil {
			return nil, err
		}
		f.record(stream, BackendOpus)
		return dec, nil

	case "h264", "hevc", "av1", "aac":

	case "":
		return nil, fmt.Errorf("%w: stream %d has no codec", ErrUnsupportedCodec, stream.Index)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCodec, stream.Codec)
	}

	if opts.PreferHardware && f.hardware && stream.Kind == ports.KindVideo {
		dec, err := f.ffmpeg.NewDecoder(stream, ports.DecoderOptions{PreferHardware: true})
		if err == nil {
			f.record(stream, BackendHardware)
			return newFallback(dec, f, stream), nil
		}
		f.logger.Warn("Hardware decoder unavailable for stream %d, using software: %s", stream.Index, err)
	}

	dec, err := f.ffmpeg.NewDecoder(stream, ports.DecoderOptions{})
	if err != nil {
		if errors.Is(err, ffmpegdecoder.ErrFFmpegNotFound) {
			return nil, fmt.Errorf("%w: %s: %w", ErrNoDecoderAvailable, stream.Codec, err)
		}
		return nil, err
	}
	f.record(stream, BackendFFmpeg)
	return dec, nil
}

func (f *Factory) software(stream ports.StreamDescriptor) (ports.Decoder, error) {
	dec, err := f.ffmpeg.NewDecoder(stream, ports.DecoderOptions{})
	if err != nil {
		return nil, err
	}
	f.record(stream, BackendFFmpeg)
	return dec, nil
}

func (f *Factory) record(stream ports.StreamDescriptor, backend Backend) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infos[stream.Index] = Info{Codec: stream.Codec, Backend: backend}
	f.logger.Debug("Stream %d decodes %s with %s", stream.Index, stream.Codec, backend)
}

// Info returns the backend last selected for a stream index.
func (f *Factory) Info(streamIndex int) (Info, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.infos[streamIndex]
	return info, ok
}

// IsAvailable reports whether the ffmpeg backend can be used. Opus decoding
// is always available.
func IsAvailable(opts Options) bool {
	return ffmpegdecoder.IsAvailable(opts.FFmpegPath)
}

var _ ports.DecoderFactory = (*Factory)(nil)
