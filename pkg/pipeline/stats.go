package pipeline

import "sync/atomic"

// Stats is a point-in-time snapshot of pipeline counters.
type Stats struct {
	PacketsDemuxed   int64
	PacketsDiscarded int64
	DemuxErrors      int64
	CoverUpdates     int64

	VideoFramesDecoded   int64
	AudioFramesDecoded   int64
	VideoFramesPresented int64
	AudioFramesPlayed    int64
	FramesDropped        int64
	VideoWaits           int64
	Seeks                int64

	PacketQueueDepth int
	VideoQueueDepth  int
	AudioQueueDepth  int
}

type counters struct {
	packetsDemuxed   atomic.Int64
	packetsDiscarded atomic.Int64
	demuxErrors      atomic.Int64
	coverUpdates     atomic.Int64

	videoDecoded   atomic.Int64
	audioDecoded   atomic.Int64
	videoPresented atomic.Int64
	audioPlayed    atomic.Int64
	framesDropped  atomic.Int64
	videoWaits     atomic.Int64
	seeks          atomic.Int64
}

// Stats returns a snapshot of the pipeline counters and queue depths.
func (p *Pipeline) Stats() Stats {
	return Stats{
		PacketsDemuxed:       p.stats.packetsDemuxed.Load(),
		PacketsDiscarded:     p.stats.packetsDiscarded.Load(),
		DemuxErrors:          p.stats.demuxErrors.Load(),
		CoverUpdates:         p.stats.coverUpdates.Load(),
		VideoFramesDecoded:   p.stats.videoDecoded.Load(),
		AudioFramesDecoded:   p.stats.audioDecoded.Load(),
		VideoFramesPresented: p.stats.videoPresented.Load(),
		AudioFramesPlayed:    p.stats.audioPlayed.Load(),
		FramesDropped:        p.stats.framesDropped.Load(),
		VideoWaits:           p.stats.videoWaits.Load(),
		Seeks:                p.stats.seeks.Load(),
		PacketQueueDepth:     p.packets.Len(),
		VideoQueueDepth:      p.videoFrames.Len(),
		AudioQueueDepth:      p.audioFrames.Len(),
	}
}
