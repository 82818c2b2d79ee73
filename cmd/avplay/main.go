// Package main provides the CLI entry point for avplay.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/ideamans/go-l10n"

	"github.com/user/avplay/pkg/adapters/filesink"
	"github.com/user/avplay/pkg/adapters/ggrenderer"
	"github.com/user/avplay/pkg/adapters/imageconv"
	"github.com/user/avplay/pkg/adapters/logger"
	"github.com/user/avplay/pkg/adapters/mp4demuxer"
	"github.com/user/avplay/pkg/adapters/nullsink"
	"github.com/user/avplay/pkg/adapters/osfilesystem"
	"github.com/user/avplay/pkg/adapters/pcmsink"
	"github.com/user/avplay/pkg/adapters/resample"
	"github.com/user/avplay/pkg/adapters/smartdecoder"
	"github.com/user/avplay/pkg/config"
	"github.com/user/avplay/pkg/metrics"
	"github.com/user/avplay/pkg/orchestrator"
	"github.com/user/avplay/pkg/pipeline"
	"github.com/user/avplay/pkg/ports"
	"github.com/user/avplay/pkg/summarizer"
)

// CLI defines the command-line interface with subcommands.
type CLI struct {
	Play    PlayCmd    `cmd:"" help:"Play a media file."`
	Probe   ProbeCmd   `cmd:"" help:"List the streams of a media file."`
	Cover   CoverCmd   `cmd:"" help:"Extract attached cover art."`
	Version VersionCmd `cmd:"" help:"Show version information."`
}

// PlayCmd defines the play subcommand.
type PlayCmd struct {
	Source string  `arg:"" help:"Media file to play."`
	Config *string `short:"c" help:"YAML configuration file."`

	// Session
	Start    *time.Duration `short:"s" help:"Start position (e.g. 1m30s)."`
	Duration *time.Duration `short:"t" help:"Stop after this much playback time."`
	Loop     bool           `help:"Restart from the beginning at the end of the file."`

	// Output
	Width       *int     `short:"W" help:"Output video width (default: stream width)."`
	Height      *int     `short:"H" help:"Output video height (default: stream height)."`
	Volume      *float64 `help:"Playback volume (0.0 - 1.0)."`
	AudioOut    string   `short:"a" help:"Write played audio as raw s16le PCM to this file."`
	SnapshotDir string   `short:"o" help:"Save annotated frame snapshots to this directory."`
	Interval    *int     `help:"Snapshot interval in milliseconds (0 = every frame)."`
	Summary     string   `help:"Output playback summary to file (Markdown format)."`

	// Decoding
	HWAccel    *string `help:"ffmpeg hardware acceleration method (e.g. vaapi, cuda, videotoolbox)."`
	NoHardware bool    `help:"Always decode in software."`
	FFmpegPath string  `help:"Path to ffmpeg executable (falls back to FFMPEG_PATH env, then PATH)."`

	// Sync
	SyncThreshold *int `help:"How far video may run ahead of audio in milliseconds."`

	// Observability
	MetricsAddr string `help:"Serve Prometheus metrics on this address (e.g. :9090)."`

	// Logging options
	LogLevel *string `short:"l" help:"Log level (debug, info, warn, error)."`
	Quiet    bool    `short:"Q" help:"Suppress all log output."`
}

// ProbeCmd defines the probe subcommand.
type ProbeCmd struct {
	Source string `arg:"" help:"Media file to inspect."`
}

// CoverCmd defines the cover subcommand.
type CoverCmd struct {
	Source    string `arg:"" help:"Media file with attached cover art."`
	Output    string `short:"o" default:"." help:"Output directory."`
	Thumbnail int    `help:"Also write a PNG thumbnail fitting within this many pixels (0 = none)."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

var version = "dev"

func main() {
	cli := CLI{}

	ctx := kong.Parse(&cli,
		kong.Name("avplay"),
		kong.Description(l10n.T("Play local media files through a demux, decode and present pipeline")),
		kong.UsageOnError(),
	)

	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}

// Run executes the play command.
func (cmd *PlayCmd) Run() error {
	cfg, err := cmd.buildConfig()
	if err != nil {
		return err
	}

	var log ports.Logger
	if cmd.Quiet {
		log = logger.NewNoop()
	} else if cfg.Level() == ports.LevelDebug {
		log = logger.NewConsole(cfg.Level()).WithElapsed()
	} else {
		log = logger.NewConsole(cfg.Level())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Warn("Interrupted, shutting down...")
		cancel()
	}()

	fs := osfilesystem.New()

	// Audio output
	var audioWriter io.Writer = io.Discard
	if cfg.AudioOut != "" {
		f, err := fs.Create(cfg.AudioOut)
		if err != nil {
			return fmt.Errorf("create audio output: %w", err)
		}
		defer f.Close()
		audioWriter = f
	}
	audioSink := pcmsink.New(audioWriter)

	// Video output
	var renderer ports.Renderer
	var snapshots *filesink.Sink
	if cfg.SnapshotDir != "" {
		snapshots = filesink.New(cfg.SnapshotDir, fs,
			ggrenderer.NewWithTheme(cfg.RendererTheme()),
			time.Duration(cfg.SnapshotIntervalMs)*time.Millisecond)
		renderer = snapshots
	} else {
		renderer = nullsink.New()
	}

	decoders := smartdecoder.NewFactory(cfg.SmartDecoderOptions(), log)

	player := pipeline.New(pipeline.Collaborators{
		Demuxer:         mp4demuxer.New(log),
		Decoders:        decoders,
		VideoConverters: imageconv.Factory{},
		AudioConverters: resample.Factory{},
		AudioSink:       audioSink,
		Renderer:        renderer,
	}, log, cfg.ToPipelineConfig())

	if snapshots != nil {
		snapshots.SetPosition(func() (time.Duration, time.Duration) {
			return player.CurrentMasterTimestamp(), player.TotalDuration()
		})
	}

	var onStats orchestrator.StatsFunc
	if cfg.MetricsAddr != "" {
		defer metrics.Delete(cfg.Source)
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, log); err != nil {
				log.Error("Metrics server failed: %s", err)
			}
		}()
		onStats = func(stats pipeline.Stats, position time.Duration) {
			metrics.Record(cfg.Source, stats, position)
		}
	}

	orch := orchestrator.New(player, onStats, log)
	result, err := orch.Run(ctx, cfg.ToOrchestratorConfig())
	if err != nil {
		return err
	}

	log.Info("Played %s to %s in %s", cfg.Source, result.EndPosition, result.WallTime.Round(time.Millisecond))

	output := summarizer.OutputInfo{AudioPath: cfg.AudioOut}
	if cfg.AudioOut != "" {
		output.AudioBytes = audioSink.SamplesWritten() * 2
		log.Info("Output saved to %s", cfg.AudioOut)
	}
	if snapshots != nil {
		output.SnapshotDir = cfg.SnapshotDir
		output.Snapshots = snapshots.Saved()
		if data, ok := player.CoverImage(); ok {
			path, err := snapshots.SaveCover(data)
			if err != nil {
				log.Warn("Failed to save cover art: %s", err)
			} else {
				output.CoverPath = path
			}
		}
		log.Info("Output saved to %s", cfg.SnapshotDir)
	}

	if cmd.Summary != "" {
		summary := buildSummary(result, decoders, output)
		writer := summarizer.NewWriter(summarizer.NewMarkdownFormatter(
			summarizer.WithTranslator(func(key string) string { return l10n.T(key) }),
			summarizer.WithVersion(version),
		), fs)
		if err := writer.Write(cmd.Summary, summary); err != nil {
			log.Warn("Failed to write summary: %s", err)
		} else {
			log.Info("Summary saved to %s", cmd.Summary)
		}
	}

	if result.StopReason == orchestrator.StopFailed {
		return errors.Join(result.VideoErr, result.AudioErr)
	}
	return nil
}

// buildConfig loads the configuration file and applies CLI overrides.
func (cmd *PlayCmd) buildConfig() (config.Config, error) {
	cfg := config.Defaults()
	if cmd.Config != nil {
		loaded, err := config.LoadFromFile(*cmd.Config)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	cfg.Source = cmd.Source

	if cmd.LogLevel != nil {
		if _, err := ports.LookupLogLevel(*cmd.LogLevel); err != nil {
			return cfg, err
		}
		cfg.LogLevel = *cmd.LogLevel
	}
	if cmd.Start != nil {
		cfg.StartMs = int(cmd.Start.Milliseconds())
	}
	if cmd.Duration != nil {
		cfg.MaxPlayMs = int(cmd.Duration.Milliseconds())
	}
	if cmd.Loop {
		cfg.Loop = true
	}
	if cmd.Width != nil {
		cfg.Width = *cmd.Width
	}
	if cmd.Height != nil {
		cfg.Height = *cmd.Height
	}
	if cmd.Volume != nil {
		cfg.Volume = *cmd.Volume
	}
	if cmd.AudioOut != "" {
		cfg.AudioOut = cmd.AudioOut
	}
	if cmd.SnapshotDir != "" {
		cfg.SnapshotDir = cmd.SnapshotDir
	}
	if cmd.Interval != nil {
		cfg.SnapshotIntervalMs = *cmd.Interval
	}
	if cmd.HWAccel != nil {
		cfg.HWAccel = *cmd.HWAccel
	}
	if cmd.NoHardware {
		cfg.PreferHardware = false
	}
	if cmd.FFmpegPath != "" {
		cfg.FFmpegPath = cmd.FFmpegPath
	}
	if cmd.SyncThreshold != nil {
		cfg.SyncThresholdMs = *cmd.SyncThreshold
	}
	if cmd.MetricsAddr != "" {
		cfg.MetricsAddr = cmd.MetricsAddr
	}

	return cfg, nil
}

// buildSummary collects a RunResult into a Summary.
func buildSummary(result orchestrator.RunResult, decoders *smartdecoder.Factory, output summarizer.OutputInfo) *summarizer.Summary {
	b := summarizer.NewBuilder().
		WithSource(result.Source, result.Info.Duration, result.HasCover)

	roles := []struct {
		name  string
		index int
	}{
		{"video", result.Streams.Video},
		{"audio", result.Streams.Audio},
		{"cover", result.Streams.Cover},
	}
	for _, r := range roles {
		if r.index < 0 || r.index >= len(result.Info.Streams) {
			continue
		}
		desc := result.Info.Streams[r.index]
		stream := summarizer.StreamInfo{
			Role:   r.name,
			Index:  desc.Index,
			Codec:  desc.Codec,
			Detail: formatDetail(desc),
		}
		if info, ok := decoders.Info(desc.Index); ok {
			stream.Backend = string(info.Backend)
		}
		b.AddStream(stream)
	}

	s := result.Stats
	return b.
		WithPlayback(summarizer.PlaybackInfo{
			Master:     result.Master.String(),
			Start:      result.StartPosition,
			End:        result.EndPosition,
			WallTime:   result.WallTime,
			StopReason: string(result.StopReason),
			Loops:      result.Loops,
			Seeks:      s.Seeks,
		}).
		WithFrames(summarizer.FrameStats{
			PacketsDemuxed:   s.PacketsDemuxed,
			PacketsDiscarded: s.PacketsDiscarded,
			DemuxErrors:      s.DemuxErrors,
			VideoDecoded:     s.VideoFramesDecoded,
			VideoPresented:   s.VideoFramesPresented,
			AudioDecoded:     s.AudioFramesDecoded,
			AudioPlayed:      s.AudioFramesPlayed,
			Dropped:          s.FramesDropped,
			VideoWaits:       s.VideoWaits,
		}).
		AddError("video", result.VideoErr).
		AddError("audio", result.AudioErr).
		WithOutput(output).
		Build()
}

func formatDetail(desc ports.StreamDescriptor) string {
	switch desc.Kind {
	case ports.KindVideo:
		if desc.Format.Width > 0 {
			return fmt.Sprintf("%dx%d", desc.Format.Width, desc.Format.Height)
		}
	case ports.KindAudio:
		if desc.Format.SampleRate > 0 {
			return fmt.Sprintf("%d Hz / %d ch", desc.Format.SampleRate, desc.Format.Channels)
		}
	}
	return ""
}

// Run executes the probe command.
func (cmd *ProbeCmd) Run() error {
	demuxer := mp4demuxer.New(logger.NewNoop())
	info, err := demuxer.Open(context.Background(), cmd.Source)
	if err != nil {
		return err
	}
	defer demuxer.Close()

	fmt.Println(l10n.F("Duration: %s", info.Duration))
	for _, st := range info.Streams {
		detail := formatDetail(st)
		if detail == "" {
			detail = "-"
		}
		fmt.Println(l10n.F("Stream #%d: %s %s (%s), time base %d/%d",
			st.Index, st.Kind, st.Codec, detail, st.TimeBase.Num, st.TimeBase.Den))
	}
	return nil
}

// Run executes the cover command.
func (cmd *CoverCmd) Run() error {
	demuxer := mp4demuxer.New(logger.NewNoop())
	info, err := demuxer.Open(context.Background(), cmd.Source)
	if err != nil {
		return err
	}
	defer demuxer.Close()

	coverIndex := -1
	for _, st := range info.Streams {
		if st.Kind == ports.KindAttachment {
			coverIndex = st.Index
			break
		}
	}
	if coverIndex < 0 {
		return errors.New(l10n.T("No cover art found"))
	}

	for {
		pkt, err := demuxer.NextPacket()
		if errors.Is(err, io.EOF) {
			return errors.New(l10n.T("No cover art found"))
		}
		if err != nil {
			return err
		}
		if pkt.StreamIndex != coverIndex {
			continue
		}
		sink := filesink.New(cmd.Output, osfilesystem.New(), ggrenderer.New(), 0)
		path, err := sink.SaveCover(pkt.Data)
		if err != nil {
			return err
		}
		fmt.Println(l10n.F("Cover art saved to %s", path))
		if cmd.Thumbnail > 0 {
			thumb, err := sink.SaveThumbnail(pkt.Data, cmd.Thumbnail)
			if err != nil {
				return err
			}
			fmt.Println(l10n.F("Cover art saved to %s", thumb))
		}
		return nil
	}
}

// Run executes the version command.
func (cmd *VersionCmd) Run() error {
	fmt.Println(l10n.F("avplay version %s", version))
	return nil
}
