// Package ports defines interfaces for external dependencies.
package ports

import (
	"math"
	"time"
)

// NoPTS marks a packet or frame without a presentation timestamp.
const NoPTS int64 = math.MinInt64

// MediaKind identifies the role of an elementary stream.
type MediaKind int

const (
	KindUnknown MediaKind = iota
	KindVideo
	KindAudio
	// KindAttachment is an attached picture (cover art) carried as a stream.
	KindAttachment
)

// String returns the string representation of the media kind.
func (k MediaKind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	case KindAttachment:
		return "attachment"
	default:
		return "unknown"
	}
}

// TimeBase is the rational scale converting stream ticks to seconds.
type TimeBase struct {
	Num int64
	Den int64
}

// Valid reports whether the time base can be used for conversions.
func (tb TimeBase) Valid() bool {
	return tb.Num > 0 && tb.Den > 0
}

// Millis converts a timestamp in this time base to milliseconds, truncating.
func (tb TimeBase) Millis(ts int64) int64 {
	if !tb.Valid() {
		return 0
	}
	return ts * 1000 * tb.Num / tb.Den
}

// Duration converts a timestamp in this time base to a time.Duration.
func (tb TimeBase) Duration(ts int64) time.Duration {
	if !tb.Valid() {
		return 0
	}
	// Split to keep ts*1e9 from overflowing for long streams.
	secs := ts * tb.Num / tb.Den
	rem := ts*tb.Num - secs*tb.Den
	return time.Duration(secs)*time.Second + time.Duration(rem*int64(time.Second)/tb.Den)
}

// FromDuration converts a time.Duration to ticks of this time base, truncating.
func (tb TimeBase) FromDuration(d time.Duration) int64 {
	if !tb.Valid() {
		return 0
	}
	secs := int64(d / time.Second)
	nanos := int64(d % time.Second)
	return (secs*tb.Den + nanos*tb.Den/int64(time.Second)) / tb.Num
}

// PixelFormat names the layout of video frame planes.
type PixelFormat string

const (
	PixelFormatNone    PixelFormat = ""
	PixelFormatYUV420P PixelFormat = "yuv420p"
	PixelFormatNV12    PixelFormat = "nv12"
	PixelFormatRGBA    PixelFormat = "rgba"
)

// SampleFormat names the encoding of interleaved audio samples.
type SampleFormat string

const (
	SampleFormatNone SampleFormat = ""
	SampleFormatS16  SampleFormat = "s16"
	SampleFormatF32  SampleFormat = "f32"
)

// Format describes decoded media. Video fields and audio fields are used
// according to the stream kind.
type Format struct {
	PixelFormat PixelFormat
	Width       int
	Height      int

	SampleFormat SampleFormat
	Channels     int
	SampleRate   int
}

// Packet is a compressed, timestamped chunk of one elementary stream.
type Packet struct {
	StreamIndex int
	PTS         int64 // NoPTS when unknown
	DTS         int64
	Duration    int64
	Keyframe    bool
	Data        []byte
}

// Frame is a decoded unit of picture or audio samples.
type Frame struct {
	Kind   MediaKind
	PTS    int64 // NoPTS when unknown
	Format Format

	// Planes holds the payload. Video: one slice per plane in PixelFormat
	// order. Audio: Planes[0] holds interleaved samples.
	Planes [][]byte

	// Hardware is set when Planes reference a device surface that must be
	// transferred to host memory before use.
	Hardware bool
}

// Samples returns the number of audio samples per channel in the frame.
func (f *Frame) Samples() int {
	if f.Kind != KindAudio || len(f.Planes) == 0 || f.Format.Channels == 0 {
		return 0
	}
	size := 2
	if f.Format.SampleFormat == SampleFormatF32 {
		size = 4
	}
	return len(f.Planes[0]) / (size * f.Format.Channels)
}

// StreamDescriptor describes one elementary stream of an opened source.
type StreamDescriptor struct {
	Index    int
	Kind     MediaKind
	Codec    string // e.g. "h264", "hevc", "av1", "aac", "opus", "jpeg"
	TimeBase TimeBase
	Format   Format

	// ParameterSets carries out-of-band codec configuration
	// (SPS/PPS for H.264) in container order.
	ParameterSets [][]byte
}

// SourceInfo is the result of opening a source.
type SourceInfo struct {
	Streams  []StreamDescriptor
	Duration time.Duration
}
