package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/avplay/pkg/ports"
)

// Pipeline demultiplexes one source, decodes its video and audio streams
// concurrently, and presents synchronized output on every Tick.
//
// Lock order, used by every path that holds more than one lock:
//
//	packets -> audioFrames -> videoFrames -> sourceMu -> audio.mu -> video.mu
//
// Tasks hold at most one of these at a time; only Seek holds them all.
type Pipeline struct {
	cfg    Config
	collab Collaborators
	logger ports.Logger

	packets     *Stage[*ports.Packet]
	audioFrames *Stage[*ports.Frame]
	videoFrames *Stage[*ports.Frame]

	// sourceMu guards the demuxer handle.
	sourceMu  sync.Mutex
	sourceEOF atomic.Bool

	// drainedGen is seekGen+1 once the decoders were drained at end of
	// input under that generation, and 0 before any drain.
	drainedGen atomic.Uint64

	// seekGen is bumped by Seek while it holds every lock. Items obtained
	// under one generation are dropped if the generation moved on before
	// they reach the next stage.
	seekGen atomic.Uint64

	tableMu sync.RWMutex
	table   StreamTable

	video streamState
	audio streamState

	clock     masterClock
	cover     coverSlot
	presenter presenter

	infoMu sync.RWMutex
	info   ports.SourceInfo
	open   bool

	// runMu serializes Open, Start, Stop and Close.
	runMu      sync.Mutex
	running    bool
	stopDemux  atomic.Bool
	stopDecode atomic.Bool
	cancel     context.CancelFunc
	group      *errgroup.Group

	stats counters
}

// streamState is the per-stream decoder handle and failure state.
type streamState struct {
	kind ports.MediaKind

	// mu is the decoder lock: only its holder touches decoder.
	mu      sync.Mutex
	desc    ports.StreamDescriptor
	decoder ports.Decoder

	errMu sync.RWMutex
	err   error
}

func (s *streamState) fail(err error) bool {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err != nil {
		return false
	}
	s.err = err
	return true
}

func (s *streamState) failure() error {
	s.errMu.RLock()
	defer s.errMu.RUnlock()
	return s.err
}

func (s *streamState) reset(desc ports.StreamDescriptor, dec ports.Decoder) {
	s.mu.Lock()
	s.desc = desc
	s.decoder = dec
	s.mu.Unlock()
	s.errMu.Lock()
	s.err = nil
	s.errMu.Unlock()
}

func (s *streamState) closeDecoder() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.decoder != nil {
		s.decoder.Close()
		s.decoder = nil
	}
}

// New creates a Pipeline around the given collaborators.
func New(collab Collaborators, logger ports.Logger, cfg Config) *Pipeline {
	cfg = cfg.withDefaults()
	p := &Pipeline{
		cfg:         cfg,
		collab:      collab,
		logger:      logger.WithComponent("pipeline"),
		packets:     NewStage[*ports.Packet]("packets", cfg.PacketQueueCap),
		audioFrames: NewStage[*ports.Frame]("audio", cfg.AudioQueueCap),
		videoFrames: NewStage[*ports.Frame]("video", cfg.VideoQueueCap),
		table:       emptyStreamTable(),
	}
	p.video.kind = ports.KindVideo
	p.audio.kind = ports.KindAudio
	p.presenter.init(p)
	if collab.AudioSink != nil {
		collab.AudioSink.SetVolume(cfg.Volume)
	}
	return p
}

// Open opens a source, selects its streams and builds decoders and
// converters. A source that is already open is stopped and closed first.
// Decoder or converter construction failures are returned as StreamErrors
// wrapping ErrStreamSetup.
func (p *Pipeline) Open(ctx context.Context, source string) error {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	p.stopLocked()
	p.closeSourceLocked()

	p.logger.Info("Opening %s", source)

	p.sourceMu.Lock()
	info, err := p.collab.Demuxer.Open(ctx, source)
	p.sourceMu.Unlock()
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}

	table := selectStreams(info.Streams)
	if !table.HasVideo() && !table.HasAudio() {
		p.closeDemuxer()
		return ErrNoPlayableStream
	}

	var errs []error
	var videoDesc, audioDesc ports.StreamDescriptor
	var videoDec, audioDec ports.Decoder
	var videoConv, audioConv ports.Converter

	if table.HasVideo() {
		videoDesc = info.Streams[table.Video]
		videoDec, videoConv, err = p.setupVideo(videoDesc)
		if err != nil {
			errs = append(errs, err)
		}
	}
	if table.HasAudio() {
		audioDesc = info.Streams[table.Audio]
		audioDec, audioConv, err = p.setupAudio(audioDesc)
		if err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		if videoDec != nil {
			videoDec.Close()
		}
		if audioDec != nil {
			audioDec.Close()
		}
		p.closeDemuxer()
		err := errors.Join(errs...)
		p.logger.Error("Failed to open %s: %s", source, err)
		return err
	}

	p.tableMu.Lock()
	p.table = table
	p.tableMu.Unlock()

	p.video.reset(videoDesc, videoDec)
	p.audio.reset(audioDesc, audioDec)

	p.packets.Clear()
	p.audioFrames.Clear()
	p.videoFrames.Clear()
	p.cover.reset()
	p.sourceEOF.Store(false)
	p.drainedGen.Store(0)

	master := p.MasterStream()
	if master == MasterAudio {
		p.clock.reset(audioDesc.TimeBase)
	} else {
		p.clock.reset(videoDesc.TimeBase)
	}
	p.presenter.configure(videoDesc, audioDesc, videoConv, audioConv)

	p.infoMu.Lock()
	p.info = info
	p.open = true
	p.infoMu.Unlock()

	p.logger.Info("Opened %s: duration %s, master stream %s", source, info.Duration, master)
	return nil
}

// selectStreams picks the first stream of each role.
func selectStreams(streams []ports.StreamDescriptor) StreamTable {
	table := emptyStreamTable()
	for i, s := range streams {
		switch s.Kind {
		case ports.KindVideo:
			if !table.HasVideo() {
				table.Video = i
			}
		case ports.KindAudio:
			if !table.HasAudio() {
				table.Audio = i
			}
		case ports.KindAttachment:
			if !table.HasCover() {
				table.Cover = i
			}
		}
	}
	return table
}

func (p *Pipeline) setupVideo(desc ports.StreamDescriptor) (ports.Decoder, ports.Converter, error) {
	dec, err := p.collab.Decoders.NewDecoder(desc, ports.DecoderOptions{PreferHardware: p.cfg.PreferHardware})
	if err != nil {
		return nil, nil, setupError(ports.KindVideo, fmt.Errorf("create decoder: %w", err))
	}
	out := ports.Format{
		PixelFormat: ports.PixelFormatRGBA,
		Width:       p.cfg.OutputWidth,
		Height:      p.cfg.OutputHeight,
	}
	if out.Width <= 0 || out.Height <= 0 {
		out.Width, out.Height = desc.Format.Width, desc.Format.Height
	}
	conv, err := p.collab.VideoConverters.NewConverter(desc.Format, out)
	if err != nil {
		return dec, nil, setupError(ports.KindVideo, fmt.Errorf("create converter: %w", err))
	}
	p.logger.Debug("Video stream %d: %s %dx%d, hardware %v", desc.Index, desc.Codec, out.Width, out.Height, dec.SupportsHardware())
	return dec, conv, nil
}

func (p *Pipeline) setupAudio(desc ports.StreamDescriptor) (ports.Decoder, ports.Converter, error) {
	dec, err := p.collab.Decoders.NewDecoder(desc, ports.DecoderOptions{})
	if err != nil {
		return nil, nil, setupError(ports.KindAudio, fmt.Errorf("create decoder: %w", err))
	}
	out := ports.Format{
		SampleFormat: ports.SampleFormatS16,
		Channels:     p.cfg.AudioChannels,
		SampleRate:   p.cfg.AudioSampleRate,
	}
	conv, err := p.collab.AudioConverters.NewConverter(desc.Format, out)
	if err != nil {
		return dec, nil, setupError(ports.KindAudio, fmt.Errorf("create resampler: %w", err))
	}
	p.logger.Debug("Audio stream %d: %s %d Hz, %d channels", desc.Index, desc.Codec, desc.Format.SampleRate, desc.Format.Channels)
	return dec, conv, nil
}

// Start launches the demux and decode tasks. Starting a running pipeline
// is a no-op.
func (p *Pipeline) Start(ctx context.Context) error {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	if !p.isOpen() {
		return ErrNotOpen
	}
	if p.running {
		return nil
	}

	p.stopDemux.Store(false)
	p.stopDecode.Store(false)

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return p.runDemux(gctx) })
	g.Go(func() error { return p.runDecode(gctx) })

	p.cancel = cancel
	p.group = g
	p.running = true
	p.logger.Debug("Pipeline tasks started")
	return nil
}

// Stop signals both tasks to exit, waits for them, and drains the queues.
// It is safe to call more than once.
func (p *Pipeline) Stop() {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	p.stopLocked()
}

func (p *Pipeline) stopLocked() {
	if !p.running {
		return
	}
	p.stopDemux.Store(true)
	p.stopDecode.Store(true)
	p.cancel()
	if err := p.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Warn("Pipeline task exited with error: %s", err)
	}
	p.running = false
	p.cancel = nil
	p.group = nil

	p.packets.Clear()
	p.audioFrames.Clear()
	p.videoFrames.Clear()
	p.logger.Debug("Pipeline tasks stopped")
}

// Close stops the pipeline and releases the source and decoders.
func (p *Pipeline) Close() error {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	p.stopLocked()
	return p.closeSourceLocked()
}

func (p *Pipeline) closeSourceLocked() error {
	p.infoMu.Lock()
	wasOpen := p.open
	p.open = false
	p.info = ports.SourceInfo{}
	p.infoMu.Unlock()
	if !wasOpen {
		return nil
	}

	p.video.closeDecoder()
	p.audio.closeDecoder()
	p.tableMu.Lock()
	p.table = emptyStreamTable()
	p.tableMu.Unlock()
	return p.closeDemuxer()
}

func (p *Pipeline) closeDemuxer() error {
	p.sourceMu.Lock()
	defer p.sourceMu.Unlock()
	if err := p.collab.Demuxer.Close(); err != nil {
		return fmt.Errorf("close source: %w", err)
	}
	return nil
}

func (p *Pipeline) isOpen() bool {
	p.infoMu.RLock()
	defer p.infoMu.RUnlock()
	return p.open
}

func (p *Pipeline) streamTable() StreamTable {
	p.tableMu.RLock()
	defer p.tableMu.RUnlock()
	return p.table
}

// Streams returns the roles selected for the open source.
func (p *Pipeline) Streams() StreamTable {
	return p.streamTable()
}

// Running reports whether the demux and decode tasks are running.
func (p *Pipeline) Running() bool {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	return p.running
}

// MasterStream returns the stream that currently drives the master clock:
// audio if an audio stream exists and has not failed, otherwise video.
func (p *Pipeline) MasterStream() MasterStream {
	table := p.streamTable()
	if table.HasAudio() && p.audio.failure() == nil {
		return MasterAudio
	}
	return MasterVideo
}

// CurrentMasterTimestamp returns the master clock position.
func (p *Pipeline) CurrentMasterTimestamp() time.Duration {
	return p.clock.position()
}

// TotalDuration returns the duration of the open source.
func (p *Pipeline) TotalDuration() time.Duration {
	p.infoMu.RLock()
	defer p.infoMu.RUnlock()
	return p.info.Duration
}

// SourceInfo returns the stream descriptors of the open source.
func (p *Pipeline) SourceInfo() ports.SourceInfo {
	p.infoMu.RLock()
	defer p.infoMu.RUnlock()
	return p.info
}

// CoverImage returns the latest attached picture, if the source has one.
func (p *Pipeline) CoverImage() ([]byte, bool) {
	return p.cover.load()
}

// StreamErr returns the fatal error of a stream, or nil while it is healthy.
func (p *Pipeline) StreamErr(kind ports.MediaKind) error {
	switch kind {
	case ports.KindVideo:
		return p.video.failure()
	case ports.KindAudio:
		return p.audio.failure()
	default:
		return nil
	}
}

// SetVolume forwards the playback gain to the audio sink.
func (p *Pipeline) SetVolume(volume float64) {
	if p.collab.AudioSink != nil {
		p.collab.AudioSink.SetVolume(volume)
	}
}

// Drained reports whether the source reached its end, the decoders gave
// up their buffered frames and every stage is empty, i.e. nothing more will
// be presented until the next seek.
func (p *Pipeline) Drained() bool {
	return p.inputExhausted() &&
		p.videoFrames.Len() == 0 &&
		p.audioFrames.Len() == 0
}

// inputExhausted reports whether every packet of the source has been
// decoded and the decoders have been drained under the current seek
// generation. It takes no locks.
func (p *Pipeline) inputExhausted() bool {
	return p.drainedGen.Load() == p.seekGen.Load()+1
}

// failStream records a fatal stream error once and logs it.
func (p *Pipeline) failStream(st *streamState, err error) {
	if st.fail(err) {
		p.logger.Error("Stream failed: %s", err)
	}
}

// sleep backs off for one poll interval or until ctx is done.
func (p *Pipeline) sleep(ctx context.Context) {
	t := time.NewTimer(p.cfg.PollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
