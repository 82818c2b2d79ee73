package ports

import "context"

// Demuxer splits a container into timestamped packets.
//
// A Demuxer is not safe for concurrent use. The pipeline only touches it
// while holding its source lock.
type Demuxer interface {
	// Open opens the source and describes its streams.
	Open(ctx context.Context, source string) (SourceInfo, error)

	// NextPacket returns the next packet in container order.
	// It returns io.EOF once every stream is exhausted; calling it again
	// after a successful Seek resumes production.
	NextPacket() (*Packet, error)

	// Seek repositions the source so that the next packet of streamIndex is
	// a keyframe whose timestamp lies within [minTS, maxTS], preferring the
	// last one at or before ts. Timestamps use the stream's time base.
	Seek(streamIndex int, minTS, ts, maxTS int64) error

	// Close releases the source.
	Close() error
}
