// Package summarizer provides summary generation for playback sessions.
package summarizer

import "time"

// Summary contains all data collected during a playback session.
type Summary struct {
	// Metadata
	GeneratedAt time.Time

	// Source information
	Source SourceInfo

	// Selected streams, in role order
	Streams []StreamInfo

	// Playback results
	Playback PlaybackInfo

	// Frame counters
	Frames FrameStats

	// Stream failures, empty when playback was clean
	Errors []string

	// Written artifacts
	Output OutputInfo
}

// SourceInfo describes the played container.
type SourceInfo struct {
	Path     string
	Duration time.Duration
	HasCover bool
}

// StreamInfo describes one selected stream.
type StreamInfo struct {
	Role    string // video, audio or cover
	Index   int
	Codec   string
	Backend string // decoder backend, empty for cover
	Detail  string // e.g. 1280x720 or 48000 Hz / 2 ch
}

// PlaybackInfo contains the session timeline.
type PlaybackInfo struct {
	Master     string
	Start      time.Duration
	End        time.Duration
	WallTime   time.Duration
	StopReason string
	Loops      int
	Seeks      int64
}

// FrameStats contains pipeline counters.
type FrameStats struct {
	PacketsDemuxed   int64
	PacketsDiscarded int64
	DemuxErrors      int64

	VideoDecoded   int64
	VideoPresented int64
	AudioDecoded   int64
	AudioPlayed    int64
	Dropped        int64
	VideoWaits     int64
}

// OutputInfo lists what the session wrote to disk.
type OutputInfo struct {
	SnapshotDir string
	Snapshots   int
	CoverPath   string
	AudioPath   string
	AudioBytes  int64
}

// NewSummary creates a new Summary with the current timestamp.
func NewSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Now(),
	}
}

// Builder provides a fluent interface for building a Summary.
type Builder struct {
	summary *Summary
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{
		summary: NewSummary(),
	}
}

// WithSource sets source information.
func (b *Builder) WithSource(path string, duration time.Duration, hasCover bool) *Builder {
	b.summary.Source = SourceInfo{
		Path:     path,
		Duration: duration,
		HasCover: hasCover,
	}
	return b
}

// AddStream appends a selected stream.
func (b *Builder) AddStream(stream StreamInfo) *Builder {
	b.summary.Streams = append(b.summary.Streams, stream)
	return b
}

// WithPlayback sets the session timeline.
func (b *Builder) WithPlayback(playback PlaybackInfo) *Builder {
	b.summary.Playback = playback
	return b
}

// WithFrames sets frame counters.
func (b *Builder) WithFrames(frames FrameStats) *Builder {
	b.summary.Frames = frames
	return b
}

// AddError records a stream failure. Nil errors are ignored.
func (b *Builder) AddError(role string, err error) *Builder {
	if err != nil {
		b.summary.Errors = append(b.summary.Errors, role+": "+err.Error())
	}
	return b
}

// WithOutput sets written artifact information.
func (b *Builder) WithOutput(output OutputInfo) *Builder {
	b.summary.Output = output
	return b
}

// Build returns the constructed Summary.
func (b *Builder) Build() *Summary {
	return b.summary
}
