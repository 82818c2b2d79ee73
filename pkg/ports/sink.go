package ports

import "time"

// AudioSink plays interleaved signed 16-bit samples.
type AudioSink interface {
	// Enqueue queues samples for playback.
	Enqueue(samples []int16, channels, sampleRate int) error

	// SetVolume sets the playback gain (0.0 - 1.0).
	SetVolume(volume float64)

	// Clear drops everything queued but not yet played.
	Clear()
}

// BufferedAudioSink is an AudioSink that reports how much queued audio is
// still waiting to be played.
type BufferedAudioSink interface {
	AudioSink

	// Buffered returns the playback time of queued samples.
	Buffered() time.Duration
}
