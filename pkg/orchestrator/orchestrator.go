// Package orchestrator drives a playback session: it opens the source,
// starts the pipeline tasks and runs the presentation tick loop until the
// source is drained, a time limit is hit or the context is cancelled.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/user/avplay/pkg/pipeline"
	"github.com/user/avplay/pkg/ports"
)

// Config contains all configuration for a playback session.
type Config struct {
	// Input
	Source string

	// StartAt seeks to this position before playback starts. Zero plays
	// from the beginning.
	StartAt time.Duration

	// MaxPlayTime stops playback after this much wall-clock time. Zero
	// plays until the source is drained.
	MaxPlayTime time.Duration

	// TickInterval is the period of the presentation loop.
	TickInterval time.Duration

	// StatsInterval is how often the stats hook is called. Zero disables it.
	StatsInterval time.Duration

	// Loop seeks back to the start instead of stopping at the end.
	Loop bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		TickInterval:  10 * time.Millisecond,
		StatsInterval: time.Second,
	}
}

// Player is the playback engine the orchestrator drives.
type Player interface {
	Open(ctx context.Context, source string) error
	Start(ctx context.Context) error
	Stop()
	Close() error
	Seek(target time.Duration) error
	Tick(now time.Time) pipeline.TickResult

	Drained() bool
	Streams() pipeline.StreamTable
	StreamErr(kind ports.MediaKind) error
	Stats() pipeline.Stats
	SourceInfo() ports.SourceInfo
	MasterStream() pipeline.MasterStream
	CurrentMasterTimestamp() time.Duration
	TotalDuration() time.Duration
	CoverImage() ([]byte, bool)
}

// StatsFunc receives periodic stats snapshots with the clock position.
type StatsFunc func(stats pipeline.Stats, position time.Duration)

// StopReason explains why playback ended.
type StopReason string

const (
	StopEnded     StopReason = "ended"
	StopTimeLimit StopReason = "time-limit"
	StopCancelled StopReason = "cancelled"
	StopFailed    StopReason = "failed"
)

// Orchestrator coordinates a playback session.
type Orchestrator struct {
	player  Player
	onStats StatsFunc
	logger  ports.Logger
	now     func() time.Time
}

// New creates a new Orchestrator. onStats may be nil.
func New(player Player, onStats StatsFunc, logger ports.Logger) *Orchestrator {
	return &Orchestrator{
		player:  player,
		onStats: onStats,
		logger:  logger,
		now:     time.Now,
	}
}

// Run plays the configured source to completion.
func (o *Orchestrator) Run(ctx context.Context, config Config) (RunResult, error) {
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultConfig().TickInterval
	}

	if err := o.player.Open(ctx, config.Source); err != nil {
		return RunResult{}, fmt.Errorf("open: %w", err)
	}
	defer o.player.Close()

	if config.StartAt > 0 {
		if err := o.player.Seek(config.StartAt); err != nil {
			return RunResult{}, fmt.Errorf("seek to start position: %w", err)
		}
	}

	if err := o.player.Start(ctx); err != nil {
		return RunResult{}, fmt.Errorf("start: %w", err)
	}
	o.logger.Info("Playing %s from %s", config.Source, config.StartAt)

	result := RunResult{
		Source:        config.Source,
		Info:          o.player.SourceInfo(),
		Streams:       o.player.Streams(),
		Master:        o.player.MasterStream(),
		StartPosition: config.StartAt,
	}
	started := o.now()
	result.StopReason = o.loop(ctx, config, &result, started)

	o.player.Stop()
	o.logger.Info("Playback stopped: %s", result.StopReason)

	result.WallTime = o.now().Sub(started)
	result.EndPosition = o.player.CurrentMasterTimestamp()
	result.Stats = o.player.Stats()
	result.VideoErr = o.player.StreamErr(ports.KindVideo)
	result.AudioErr = o.player.StreamErr(ports.KindAudio)
	_, result.HasCover = o.player.CoverImage()
	if o.onStats != nil {
		o.onStats(result.Stats, result.EndPosition)
	}
	return result, nil
}

func (o *Orchestrator) loop(ctx context.Context, config Config, result *RunResult, started time.Time) StopReason {
	ticker := time.NewTicker(config.TickInterval)
	defer ticker.Stop()

	lastStats := started
	for {
		select {
		case <-ctx.Done():
			return StopCancelled
		case <-ticker.C:
		}

		now := o.now()
		tick := o.player.Tick(now)
		result.Ticks++
		if tick.VideoWaiting {
			result.WaitTicks++
		}
		result.Master = tick.Master

		if o.onStats != nil && config.StatsInterval > 0 && now.Sub(lastStats) >= config.StatsInterval {
			o.onStats(o.player.Stats(), tick.Position)
			lastStats = now
		}

		if o.allStreamsFailed() {
			return StopFailed
		}
		if config.MaxPlayTime > 0 && now.Sub(started) >= config.MaxPlayTime {
			return StopTimeLimit
		}
		if o.player.Drained() {
			if !config.Loop {
				return StopEnded
			}
			if err := o.player.Seek(0); err != nil {
				o.logger.Warn("Failed to restart playback: %s", err)
				return StopEnded
			}
			result.Loops++
			o.logger.Debug("Restarting playback from the beginning")
		}
	}
}

func (o *Orchestrator) allStreamsFailed() bool {
	t := o.player.Streams()
	videoDown := !t.HasVideo() || o.player.StreamErr(ports.KindVideo) != nil
	audioDown := !t.HasAudio() || o.player.StreamErr(ports.KindAudio) != nil
	return videoDown && audioDown
}

// RunResult contains the results of a playback session for summary generation.
type RunResult struct {
	Source  string
	Info    ports.SourceInfo
	Streams pipeline.StreamTable
	Master  pipeline.MasterStream

	StartPosition time.Duration
	EndPosition   time.Duration
	WallTime      time.Duration
	StopReason    StopReason

	Ticks     int
	WaitTicks int
	Loops     int

	Stats    pipeline.Stats
	VideoErr error
	AudioErr error
	HasCover bool
}
