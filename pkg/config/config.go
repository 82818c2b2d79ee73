// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"image/color"
	"os"
	"time"

	"github.com/user/avplay/pkg/adapters/ggrenderer"
	"github.com/user/avplay/pkg/adapters/smartdecoder"
	"github.com/user/avplay/pkg/orchestrator"
	"github.com/user/avplay/pkg/pipeline"
	"github.com/user/avplay/pkg/ports"
	"gopkg.in/yaml.v3"
)

// Config represents the full configuration for avplay.
type Config struct {
	// Input
	Source string `yaml:"source"`

	// Queues
	PacketQueueCap int `yaml:"packet_queue_cap"`
	VideoQueueCap  int `yaml:"video_queue_cap"`
	AudioQueueCap  int `yaml:"audio_queue_cap"`
	PollMs         int `yaml:"poll_ms"`

	// Presentation
	TickMs          int `yaml:"tick_ms"`
	SyncThresholdMs int `yaml:"sync_threshold_ms"`
	MaxFrameDelayMs int `yaml:"max_frame_delay_ms"`
	AudioLeadMs     int `yaml:"audio_lead_ms"`
	SeekWindowMs    int `yaml:"seek_window_ms"`

	// Output
	Width         int     `yaml:"width"`
	Height        int     `yaml:"height"`
	AudioRate     int     `yaml:"audio_rate"`
	AudioChannels int     `yaml:"audio_channels"`
	Volume        float64 `yaml:"volume"`
	AudioOut      string  `yaml:"audio_out"`

	// Decoding
	PreferHardware bool   `yaml:"prefer_hardware"`
	HWAccel        string `yaml:"hwaccel"`
	FFmpegPath     string `yaml:"ffmpeg_path"`

	// Snapshots
	SnapshotDir        string      `yaml:"snapshot_dir"`
	SnapshotIntervalMs int         `yaml:"snapshot_interval_ms"`
	Theme              ThemeConfig `yaml:"theme"`

	// Session
	StartMs     int    `yaml:"start_ms"`
	MaxPlayMs   int    `yaml:"max_play_ms"`
	Loop        bool   `yaml:"loop"`
	StatsMs     int    `yaml:"stats_ms"`
	MetricsAddr string `yaml:"metrics_addr"`

	// Logging
	LogLevel string `yaml:"log_level"`
}

// ThemeConfig represents snapshot overlay colours.
type ThemeConfig struct {
	BackgroundColor  string `yaml:"background_color"`
	TextColor        string `yaml:"text_color"`
	ProgressBarColor string `yaml:"progress_bar_color"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	p := pipeline.DefaultConfig()
	o := orchestrator.DefaultConfig()
	return Config{
		// Queues
		PacketQueueCap: p.PacketQueueCap,
		VideoQueueCap:  p.VideoQueueCap,
		AudioQueueCap:  p.AudioQueueCap,
		PollMs:         int(p.PollInterval.Milliseconds()),

		// Presentation
		TickMs:          int(o.TickInterval.Milliseconds()),
		SyncThresholdMs: int(p.SyncThreshold.Milliseconds()),
		MaxFrameDelayMs: int(p.MaxFrameDelay.Milliseconds()),
		AudioLeadMs:     int(p.AudioLead.Milliseconds()),
		SeekWindowMs:    int(p.SeekWindow.Milliseconds()),

		// Output
		AudioRate:     p.AudioSampleRate,
		AudioChannels: p.AudioChannels,
		Volume:        p.Volume,

		// Decoding
		PreferHardware: p.PreferHardware,

		// Snapshots
		SnapshotIntervalMs: 1000,
		Theme: ThemeConfig{
			BackgroundColor:  "#000000a0",
			TextColor:        "#ffffff",
			ProgressBarColor: "#4285f4",
		},

		// Session
		StatsMs: int(o.StatsInterval.Milliseconds()),

		LogLevel: "info",
	}
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if _, err := ports.LookupLogLevel(cfg.LogLevel); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// ParseColor parses a hex color string to color.Color.
func ParseColor(hex string) color.Color {
	if len(hex) == 0 {
		return color.Black
	}

	if hex[0] == '#' {
		hex = hex[1:]
	}

	if len(hex) != 6 && len(hex) != 8 {
		return color.Black
	}

	c := color.NRGBA{A: 255}
	c.R = hexByte(hex[0], hex[1])
	c.G = hexByte(hex[2], hex[3])
	c.B = hexByte(hex[4], hex[5])
	if len(hex) == 8 {
		c.A = hexByte(hex[6], hex[7])
	}
	return c
}

func hexByte(hi, lo byte) uint8 {
	return hexValue(hi)<<4 | hexValue(lo)
}

func hexValue(c byte) uint8 {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0
	}
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// ToPipelineConfig converts Config to pipeline.Config.
func (c Config) ToPipelineConfig() pipeline.Config {
	return pipeline.Config{
		PacketQueueCap: c.PacketQueueCap,
		VideoQueueCap:  c.VideoQueueCap,
		AudioQueueCap:  c.AudioQueueCap,
		PollInterval:   ms(c.PollMs),

		SyncThreshold: ms(c.SyncThresholdMs),
		MaxFrameDelay: ms(c.MaxFrameDelayMs),
		AudioLead:     ms(c.AudioLeadMs),
		SeekWindow:    ms(c.SeekWindowMs),

		OutputWidth:     c.Width,
		OutputHeight:    c.Height,
		AudioSampleRate: c.AudioRate,
		AudioChannels:   c.AudioChannels,

		PreferHardware: c.PreferHardware,
		Volume:         c.Volume,
	}
}

// ToOrchestratorConfig converts Config to orchestrator.Config.
func (c Config) ToOrchestratorConfig() orchestrator.Config {
	return orchestrator.Config{
		Source:        c.Source,
		StartAt:       ms(c.StartMs),
		MaxPlayTime:   ms(c.MaxPlayMs),
		TickInterval:  ms(c.TickMs),
		StatsInterval: ms(c.StatsMs),
		Loop:          c.Loop,
	}
}

// SmartDecoderOptions returns the decoder backend options.
func (c Config) SmartDecoderOptions() smartdecoder.Options {
	opts := smartdecoder.Options{FFmpegPath: c.FFmpegPath}
	if c.PreferHardware {
		opts.HWAccel = c.HWAccel
	}
	return opts
}

// RendererTheme returns the snapshot overlay theme.
func (c Config) RendererTheme() ggrenderer.Theme {
	return ggrenderer.Theme{
		Background: ParseColor(c.Theme.BackgroundColor),
		Progress:   ParseColor(c.Theme.ProgressBarColor),
		Caption:    ParseColor(c.Theme.TextColor),
	}
}

// Level returns the configured log level.
func (c Config) Level() ports.LogLevel {
	return ports.ParseLogLevel(c.LogLevel)
}
