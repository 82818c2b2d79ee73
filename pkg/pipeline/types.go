package pipeline

import (
	"fmt"
	"time"

	"github.com/user/avplay/pkg/ports"
)

// =============================================================================
// Configuration
// =============================================================================

// Config holds the pipeline tunables.
type Config struct {
	PacketQueueCap int // Soft cap of the packet stage (default: 100)
	VideoQueueCap  int // Soft cap of the video frame stage (default: 100)
	AudioQueueCap  int // Soft cap of the audio frame stage (default: 100)

	// PollInterval is how long a task backs off when its input is empty or
	// its output is full.
	PollInterval time.Duration

	// SyncThreshold is how far video may run ahead of the audio clock
	// before it waits.
	SyncThreshold time.Duration

	// MaxFrameDelay caps the PTS delta used to pace consecutive video frames.
	MaxFrameDelay time.Duration

	// AudioLead is how much audio may be queued in a sink that reports its
	// buffer level before the presenter stops feeding it.
	AudioLead time.Duration

	// SeekWindow bounds the landing position of a seek to target ± window.
	SeekWindow time.Duration

	OutputWidth  int // Output surface width, 0 = stream width
	OutputHeight int // Output surface height, 0 = stream height

	AudioSampleRate int // Sink sample rate (default: 48000)
	AudioChannels   int // Sink channel count (default: 2)

	PreferHardware bool
	Volume         float64
}

// DefaultConfig returns Config with default values.
func DefaultConfig() Config {
	return Config{
		PacketQueueCap:  100,
		VideoQueueCap:   100,
		AudioQueueCap:   100,
		PollInterval:    10 * time.Millisecond,
		SyncThreshold:   0,
		MaxFrameDelay:   time.Second,
		AudioLead:       200 * time.Millisecond,
		SeekWindow:      2 * time.Second,
		AudioSampleRate: 48000,
		AudioChannels:   2,
		PreferHardware:  true,
		Volume:          1.0,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PacketQueueCap <= 0 {
		c.PacketQueueCap = d.PacketQueueCap
	}
	if c.VideoQueueCap <= 0 {
		c.VideoQueueCap = d.VideoQueueCap
	}
	if c.AudioQueueCap <= 0 {
		c.AudioQueueCap = d.AudioQueueCap
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.MaxFrameDelay <= 0 {
		c.MaxFrameDelay = d.MaxFrameDelay
	}
	if c.AudioLead <= 0 {
		c.AudioLead = d.AudioLead
	}
	if c.SeekWindow < 0 {
		c.SeekWindow = 0
	}
	if c.AudioSampleRate <= 0 {
		c.AudioSampleRate = d.AudioSampleRate
	}
	if c.AudioChannels <= 0 {
		c.AudioChannels = d.AudioChannels
	}
	return c
}

// =============================================================================
// Collaborators
// =============================================================================

// Collaborators are the external engines the pipeline drives.
type Collaborators struct {
	Demuxer         ports.Demuxer
	Decoders        ports.DecoderFactory
	VideoConverters ports.ConverterFactory
	AudioConverters ports.ConverterFactory
	AudioSink       ports.AudioSink
	Renderer        ports.Renderer
}

// =============================================================================
// Stream roles
// =============================================================================

// MasterStream names the stream that drives the master clock.
type MasterStream int

const (
	// MasterVideo: video advances at its own pace and writes the clock.
	MasterVideo MasterStream = iota
	// MasterAudio: audio writes the clock and video waits for it.
	MasterAudio
)

// String returns the string representation of the master stream.
func (m MasterStream) String() string {
	switch m {
	case MasterAudio:
		return "audio"
	case MasterVideo:
		return "video"
	default:
		return fmt.Sprintf("MasterStream(%d)", int(m))
	}
}

// noStream marks an absent role in the stream table.
const noStream = -1

// StreamTable maps logical roles to container stream indexes.
type StreamTable struct {
	Video int
	Audio int
	Cover int
}

func emptyStreamTable() StreamTable {
	return StreamTable{Video: noStream, Audio: noStream, Cover: noStream}
}

// HasVideo reports whether a video stream was selected.
func (t StreamTable) HasVideo() bool { return t.Video != noStream }

// HasAudio reports whether an audio stream was selected.
func (t StreamTable) HasAudio() bool { return t.Audio != noStream }

// HasCover reports whether a cover stream was selected.
func (t StreamTable) HasCover() bool { return t.Cover != noStream }

// =============================================================================
// Presentation
// =============================================================================

// TickResult reports what a presentation tick did.
type TickResult struct {
	Master        MasterStream
	AudioPlayed   bool // An audio frame was sent to the sink
	VideoAdvanced bool // A new video frame was sent to the renderer
	VideoWaiting  bool // The next video frame is ahead of the audio clock
	Position      time.Duration
}

// VideoWaitsForAudio reports whether a video frame with videoPTS must wait
// for the audio clock. Both timestamps are converted to milliseconds with
// their own time base before comparing; video waits when it is ahead by
// more than threshold.
func VideoWaitsForAudio(videoPTS int64, videoTB ports.TimeBase, clockPTS int64, clockTB ports.TimeBase, threshold time.Duration) bool {
	if videoPTS == ports.NoPTS || clockPTS == ports.NoPTS {
		return false
	}
	videoMs := videoTB.Millis(videoPTS)
	audioMs := clockTB.Millis(clockPTS)
	return videoMs-audioMs > threshold.Milliseconds()
}
