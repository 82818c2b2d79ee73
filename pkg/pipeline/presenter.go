package pipeline

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/user/avplay/pkg/ports"
)

// presenter is the tick-driven consumer of both frame stages.
type presenter struct {
	p  *Pipeline
	mu sync.Mutex

	videoTB   ports.TimeBase
	audioTB   ports.TimeBase
	videoConv ports.Converter
	audioConv ports.Converter

	// Pacing state of the video stream.
	lastVideoPTS int64
	nextVideoAt  time.Time

	seenGen uint64
}

func (pr *presenter) init(p *Pipeline) {
	pr.p = p
	pr.lastVideoPTS = ports.NoPTS
}

func (pr *presenter) configure(video, audio ports.StreamDescriptor, videoConv, audioConv ports.Converter) {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	pr.videoTB = video.TimeBase
	pr.audioTB = audio.TimeBase
	pr.videoConv = videoConv
	pr.audioConv = audioConv
	pr.lastVideoPTS = ports.NoPTS
	pr.nextVideoAt = time.Time{}
	pr.seenGen = pr.p.seekGen.Load()
}

// Tick runs one presentation step at wall-clock instant now. It plays at
// most one audio frame and shows at most one video frame. A stream with no
// frame ready simply produces no update.
func (p *Pipeline) Tick(now time.Time) TickResult {
	pr := &p.presenter
	pr.mu.Lock()
	defer pr.mu.Unlock()

	if gen := p.seekGen.Load(); gen != pr.seenGen {
		pr.seenGen = gen
		pr.lastVideoPTS = ports.NoPTS
		pr.nextVideoAt = time.Time{}
		if p.collab.AudioSink != nil {
			p.collab.AudioSink.Clear()
		}
	}

	table := p.streamTable()
	res := TickResult{Master: p.MasterStream()}

	if table.HasAudio() && p.audio.failure() == nil {
		res.AudioPlayed = pr.playAudio(res.Master == MasterAudio)
	}
	if table.HasVideo() && p.video.failure() == nil {
		res.VideoAdvanced, res.VideoWaiting = pr.advanceVideo(now, res.Master)
	}

	res.Position = p.clock.position()
	return res
}

// playAudio sends the oldest audio frame to the sink. The frame's PTS drives
// the master clock when audio is master.
func (pr *presenter) playAudio(master bool) bool {
	p := pr.p
	sink := p.collab.AudioSink
	if sink == nil {
		return false
	}
	if b, ok := sink.(ports.BufferedAudioSink); ok && b.Buffered() >= p.cfg.AudioLead {
		return false
	}

	f, ok := p.audioFrames.PopFront()
	if !ok {
		return false
	}
	if master {
		p.clock.set(f.PTS, pr.audioTB)
	}

	out, err := pr.convert(&p.audio, pr.audioConv, f)
	if err != nil || out == nil {
		return false
	}
	samples := bytesToInt16(out.Planes[0])
	if err := sink.Enqueue(samples, out.Format.Channels, out.Format.SampleRate); err != nil {
		p.logger.Warn("Failed to enqueue audio: %s", err)
		return false
	}
	p.stats.audioPlayed.Add(1)
	return true
}

// advanceVideo shows the next video frame if it is due and, with audio as
// master, not ahead of the audio clock.
func (pr *presenter) advanceVideo(now time.Time, master MasterStream) (advanced, waiting bool) {
	p := pr.p
	if !pr.nextVideoAt.IsZero() && now.Before(pr.nextVideoAt) {
		return false, false
	}

	// audioExhausted takes the audioFrames lock, which comes before
	// videoFrames in the lock order.
	gen := p.seekGen.Load()
	exhausted := master == MasterAudio && pr.audioExhausted()

	p.videoFrames.Lock()
	f, ok := p.videoFrames.FrontLocked()
	if !ok {
		p.videoFrames.Unlock()
		return false, false
	}
	if p.seekGen.Load() != gen {
		exhausted = false
	}
	if master == MasterAudio && !exhausted {
		clockPTS, clockTB := p.clock.load()
		if VideoWaitsForAudio(f.PTS, pr.videoTB, clockPTS, clockTB, p.cfg.SyncThreshold) {
			p.videoFrames.Unlock()
			p.stats.videoWaits.Add(1)
			return false, true
		}
	}
	p.videoFrames.PopFrontLocked()
	p.videoFrames.Unlock()

	pr.schedule(now, f.PTS)
	if master == MasterVideo {
		p.clock.set(f.PTS, pr.videoTB)
	}

	out, err := pr.convert(&p.video, pr.videoConv, f)
	if err != nil || out == nil {
		return false, false
	}
	if p.collab.Renderer != nil {
		if err := p.collab.Renderer.Present(out.Planes[0], out.Format.Width, out.Format.Height); err != nil {
			p.logger.Warn("Failed to present frame: %s", err)
			return false, false
		}
	}
	p.stats.videoPresented.Add(1)
	return true, false
}

// audioExhausted reports whether no further audio can arrive before the
// next seek, in which case video no longer waits for the audio clock. It
// must not be called with videoFrames held.
func (pr *presenter) audioExhausted() bool {
	p := pr.p
	return p.inputExhausted() && p.audioFrames.Len() == 0
}

// schedule computes when the frame after the one with pts is due. The
// delay is the PTS delta to the previous frame, clamped to
// [0, MaxFrameDelay], and the instant is never earlier than now.
func (pr *presenter) schedule(now time.Time, pts int64) {
	due := pr.nextVideoAt
	if due.IsZero() {
		due = now
	}
	var delta time.Duration
	if pr.lastVideoPTS != ports.NoPTS && pts != ports.NoPTS {
		delta = pr.videoTB.Duration(pts - pr.lastVideoPTS)
	}
	delta = max(0, min(delta, pr.p.cfg.MaxFrameDelay))

	next := due.Add(delta)
	if next.Before(now) {
		next = now
	}
	pr.nextVideoAt = next
	if pts != ports.NoPTS {
		pr.lastVideoPTS = pts
	}
}

// convert runs conv on f, rebuilding the conversion context when the
// frame's format differs from the configured input. A reconfigure failure
// is fatal for the stream; a convert failure drops the frame.
func (pr *presenter) convert(st *streamState, conv ports.Converter, f *ports.Frame) (*ports.Frame, error) {
	p := pr.p
	if conv == nil {
		return f, nil
	}
	if f.Format != conv.InputFormat() {
		p.logger.Debug("Reconfiguring %s converter for %s", st.kind, formatString(f.Format))
		if err := conv.Reconfigure(f.Format); err != nil {
			err = streamFailure(st.kind, fmt.Errorf("reconfigure converter: %w", err))
			p.failStream(st, err)
			return nil, err
		}
	}
	out, err := conv.Convert(f)
	if err != nil {
		p.stats.framesDropped.Add(1)
		p.logger.Warn("Failed to convert %s frame: %s", st.kind, err)
		return nil, err
	}
	return out, nil
}

func formatString(f ports.Format) string {
	if f.PixelFormat != ports.PixelFormatNone {
		return fmt.Sprintf("%s %dx%d", f.PixelFormat, f.Width, f.Height)
	}
	return fmt.Sprintf("%s %d Hz %dch", f.SampleFormat, f.SampleRate, f.Channels)
}

func bytesToInt16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[2*i:]))
	}
	return out
}
