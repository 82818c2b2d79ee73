package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/user/avplay/pkg/ports"
)

// runDecode moves packets from the packet stage through the stream decoders
// into the frame stages until it is told to stop. Once the source is at its
// end and the packet stage is empty, the decoders are drained once per seek
// generation so their buffered frames reach the frame stages too.
func (p *Pipeline) runDecode(ctx context.Context) error {
	logger := p.logger.WithComponent("decode")
	logger.Debug("Decode task started")
	defer logger.Debug("Decode task stopped")

	for {
		if p.stopDecode.Load() || ctx.Err() != nil {
			return nil
		}
		if p.frameStagesFull() {
			p.sleep(ctx)
			continue
		}

		p.packets.Lock()
		gen := p.seekGen.Load()
		pkt, ok := p.packets.PopFrontLocked()
		drain := !ok && p.sourceEOF.Load() && p.drainedGen.Load() != gen+1
		p.packets.Unlock()

		switch {
		case ok:
			p.decodePacket(logger, pkt, gen)
		case drain:
			p.drainDecoders(logger, gen)
			p.drainedGen.Store(gen + 1)
		default:
			p.sleep(ctx)
		}
	}
}

// frameStagesFull reports whether every frame stage that can still receive
// frames is at or above its cap. With both streams healthy this means both
// stages are full; a stage whose stream is absent or failed never counts as
// room to decode into.
func (p *Pipeline) frameStagesFull() bool {
	table := p.streamTable()
	videoLive := table.HasVideo() && p.video.failure() == nil
	audioLive := table.HasAudio() && p.audio.failure() == nil
	if !videoLive && !audioLive {
		return false
	}
	if videoLive && !p.videoFrames.Full() {
		return false
	}
	if audioLive && !p.audioFrames.Full() {
		return false
	}
	return true
}

// decodePacket routes one packet to its stream decoder and pushes every frame
// the decoder yields.
func (p *Pipeline) decodePacket(logger ports.Logger, pkt *ports.Packet, gen uint64) {
	table := p.streamTable()

	var st *streamState
	var stage *Stage[*ports.Frame]
	switch {
	case table.HasVideo() && pkt.StreamIndex == table.Video:
		st, stage = &p.video, p.videoFrames
	case table.HasAudio() && pkt.StreamIndex == table.Audio:
		st, stage = &p.audio, p.audioFrames
	default:
		p.stats.packetsDiscarded.Add(1)
		return
	}
	if st.failure() != nil {
		p.stats.packetsDiscarded.Add(1)
		return
	}

	frames, err := p.decodeLocked(logger, st, pkt, gen)
	if err != nil {
		p.failStream(st, streamFailure(st.kind, err))
		return
	}
	p.pushFrames(st, stage, frames, gen)
}

// drainDecoders tells every healthy decoder that input has ended and pushes
// the frames it still held.
func (p *Pipeline) drainDecoders(logger ports.Logger, gen uint64) {
	table := p.streamTable()
	streams := []struct {
		present bool
		st      *streamState
		stage   *Stage[*ports.Frame]
	}{
		{table.HasVideo(), &p.video, p.videoFrames},
		{table.HasAudio(), &p.audio, p.audioFrames},
	}
	for _, s := range streams {
		if !s.present || s.st.failure() != nil {
			continue
		}
		frames, err := p.drainLocked(logger, s.st, gen)
		if err != nil {
			p.failStream(s.st, streamFailure(s.st.kind, err))
			continue
		}
		if len(frames) > 0 {
			logger.Debug("Drained %d buffered %s frames", len(frames), s.st.kind)
		}
		p.pushFrames(s.st, s.stage, frames, gen)
	}
}

// pushFrames appends frames to stage unless a seek moved the generation on
// since they were decoded.
func (p *Pipeline) pushFrames(st *streamState, stage *Stage[*ports.Frame], frames []*ports.Frame, gen uint64) {
	if len(frames) == 0 {
		return
	}
	stage.Lock()
	defer stage.Unlock()
	if p.seekGen.Load() != gen {
		p.stats.framesDropped.Add(int64(len(frames)))
		return
	}
	for _, f := range frames {
		stage.PushLocked(f)
	}
	if st.kind == ports.KindVideo {
		p.stats.videoDecoded.Add(int64(len(frames)))
	} else {
		p.stats.audioDecoded.Add(int64(len(frames)))
	}
}

// decodeLocked submits pkt and drains the decoder while holding the
// stream's decoder lock. The returned error is fatal for the stream.
func (p *Pipeline) decodeLocked(logger ports.Logger, st *streamState, pkt *ports.Packet, gen uint64) ([]*ports.Frame, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.decoder == nil {
		return nil, nil
	}
	if p.seekGen.Load() != gen {
		// The decoder was flushed by a seek after this packet was popped.
		p.stats.packetsDiscarded.Add(1)
		return nil, nil
	}

	if err := st.decoder.Submit(pkt); err != nil {
		return nil, fmt.Errorf("submit packet: %w", err)
	}
	return p.receiveLocked(logger, st)
}

// drainLocked signals end of input to the stream's decoder and collects the
// remaining frames.
func (p *Pipeline) drainLocked(logger ports.Logger, st *streamState, gen uint64) ([]*ports.Frame, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.decoder == nil || p.seekGen.Load() != gen {
		return nil, nil
	}
	if err := st.decoder.Drain(); err != nil {
		return nil, fmt.Errorf("drain decoder: %w", err)
	}
	return p.receiveLocked(logger, st)
}

// receiveLocked collects every frame the decoder has ready. Hardware frames
// are transferred to host memory; a failed transfer drops the frame.
func (p *Pipeline) receiveLocked(logger ports.Logger, st *streamState) ([]*ports.Frame, error) {
	var frames []*ports.Frame
	for {
		f, err := st.decoder.ReceiveFrame()
		if errors.Is(err, ports.ErrNeedMorePackets) {
			break
		}
		if err != nil {
			return frames, fmt.Errorf("receive frame: %w", err)
		}
		if f == nil {
			break
		}
		if f.Hardware {
			host, err := st.decoder.TransferFrame(f)
			if err != nil {
				p.stats.framesDropped.Add(1)
				logger.Warn("Failed to transfer %s frame: %s", st.kind, err)
				continue
			}
			f = host
		}
		if f.Kind == ports.KindUnknown {
			f.Kind = st.kind
		}
		frames = append(frames, f)
	}
	return frames, nil
}
