package pipeline

import (
	"fmt"
	"time"
)

// Seek flushes every stage and repositions the source near target. The
// demux and decode tasks keep running and pick up from the new position.
// The master clock is left alone until frames with new timestamps arrive.
func (p *Pipeline) Seek(target time.Duration) error {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	if !p.isOpen() {
		return ErrNotOpen
	}

	table := p.streamTable()
	ref := &p.video
	if !table.HasVideo() {
		ref = &p.audio
	}

	if d := p.TotalDuration(); d > 0 && target > d {
		target = d
	}
	target = max(target, 0)

	p.packets.Lock()
	defer p.packets.Unlock()
	p.audioFrames.Lock()
	defer p.audioFrames.Unlock()
	p.videoFrames.Lock()
	defer p.videoFrames.Unlock()
	p.sourceMu.Lock()
	defer p.sourceMu.Unlock()
	p.audio.mu.Lock()
	defer p.audio.mu.Unlock()
	p.video.mu.Lock()
	defer p.video.mu.Unlock()

	dropped := p.packets.ClearLocked() + p.audioFrames.ClearLocked() + p.videoFrames.ClearLocked()

	if p.audio.decoder != nil {
		p.audio.decoder.Flush()
	}
	if p.video.decoder != nil {
		p.video.decoder.Flush()
	}

	tb := ref.desc.TimeBase
	ts := tb.FromDuration(target)
	window := tb.FromDuration(p.cfg.SeekWindow)
	minTS := max(ts-window, 0)
	maxTS := ts + window

	// Bump before the source seek so nothing read under the old position
	// can be pushed, even when the seek fails.
	p.seekGen.Add(1)
	p.stats.seeks.Add(1)
	p.sourceEOF.Store(false)

	if err := p.collab.Demuxer.Seek(ref.desc.Index, minTS, ts, maxTS); err != nil {
		p.logger.Warn("Failed to seek to %s: %s", target, err)
		return fmt.Errorf("seek to %s: %w", target, err)
	}
	p.logger.Debug("Seeked to %s, dropped %d queued items", target, dropped)
	return nil
}
