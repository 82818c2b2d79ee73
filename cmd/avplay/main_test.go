package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/user/avplay/pkg/adapters/logger"
	"github.com/user/avplay/pkg/adapters/smartdecoder"
	"github.com/user/avplay/pkg/mocks"
	"github.com/user/avplay/pkg/orchestrator"
	"github.com/user/avplay/pkg/pipeline"
	"github.com/user/avplay/pkg/ports"
	"github.com/user/avplay/pkg/summarizer"
)

func ptr[T any](v T) *T { return &v }

func TestBuildConfig_Overrides(t *testing.T) {
	cmd := PlayCmd{
		Source:        "movie.mp4",
		Start:         ptr(90 * time.Second),
		Duration:      ptr(5 * time.Second),
		Loop:          true,
		Width:         ptr(640),
		Volume:        ptr(0.5),
		NoHardware:    true,
		SyncThreshold: ptr(40),
		LogLevel:      ptr("debug"),
	}

	cfg, err := cmd.buildConfig()
	if err != nil {
		t.Fatalf("buildConfig failed: %v", err)
	}

	if cfg.Source != "movie.mp4" {
		t.Errorf("expected source movie.mp4, got %q", cfg.Source)
	}
	if cfg.StartMs != 90000 || cfg.MaxPlayMs != 5000 {
		t.Errorf("expected start 90000ms and limit 5000ms, got %d and %d", cfg.StartMs, cfg.MaxPlayMs)
	}
	if !cfg.Loop {
		t.Error("expected loop enabled")
	}
	if cfg.Width != 640 {
		t.Errorf("expected width 640, got %d", cfg.Width)
	}
	if cfg.Volume != 0.5 {
		t.Errorf("expected volume 0.5, got %v", cfg.Volume)
	}
	if cfg.PreferHardware {
		t.Error("expected hardware decoding disabled")
	}
	if cfg.SyncThresholdMs != 40 {
		t.Errorf("expected sync threshold 40ms, got %d", cfg.SyncThresholdMs)
	}
	if cfg.Level() != ports.LevelDebug {
		t.Errorf("expected debug level, got %v", cfg.Level())
	}
}

func TestBuildConfig_FileThenFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "avplay.yaml")
	yaml := "log_level: warn\nvolume: 0.25\nloop: true\n"
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cmd := PlayCmd{Source: "a.mp4", Config: &path, Volume: ptr(0.75)}
	cfg, err := cmd.buildConfig()
	if err != nil {
		t.Fatalf("buildConfig failed: %v", err)
	}

	// The file's log level survives when no flag is given.
	if cfg.Level() != ports.LevelWarn {
		t.Errorf("expected warn level from file, got %v", cfg.Level())
	}
	if cfg.Volume != 0.75 {
		t.Errorf("expected flag volume 0.75, got %v", cfg.Volume)
	}
	if !cfg.Loop {
		t.Error("expected loop from file")
	}
}

func TestBuildConfig_RejectsUnknownLevel(t *testing.T) {
	cmd := PlayCmd{Source: "a.mp4", LogLevel: ptr("chatty")}
	if _, err := cmd.buildConfig(); !errors.Is(err, ports.ErrUnknownLogLevel) {
		t.Errorf("expected ErrUnknownLogLevel, got %v", err)
	}
}

func TestBuildSummary(t *testing.T) {
	streams := []ports.StreamDescriptor{
		{Index: 0, Kind: ports.KindVideo, Codec: "h264", Format: ports.Format{Width: 1280, Height: 720}},
		{Index: 1, Kind: ports.KindAudio, Codec: "opus", Format: ports.Format{SampleRate: 48000, Channels: 1}},
	}
	decoders := smartdecoder.NewWithBackends(&mocks.DecoderFactory{}, &mocks.DecoderFactory{}, false, logger.NewNoop())
	if _, err := decoders.NewDecoder(streams[1], ports.DecoderOptions{}); err != nil {
		t.Fatalf("NewDecoder failed: %v", err)
	}

	result := orchestrator.RunResult{
		Source:        "clip.mp4",
		Info:          ports.SourceInfo{Streams: streams, Duration: 10 * time.Second},
		Streams:       pipeline.StreamTable{Video: 0, Audio: 1, Cover: -1},
		Master:        pipeline.MasterAudio,
		EndPosition:   10 * time.Second,
		StopReason:    orchestrator.StopEnded,
		Stats:         pipeline.Stats{VideoFramesDecoded: 250, VideoFramesPresented: 248, Seeks: 1},
		VideoErr:      errors.New("decoder exited"),
	}

	s := buildSummary(result, decoders, summarizer.OutputInfo{AudioPath: "out.pcm", AudioBytes: 4096})

	if len(s.Streams) != 2 {
		t.Fatalf("expected 2 streams, got %d", len(s.Streams))
	}
	if s.Streams[0].Role != "video" || s.Streams[0].Detail != "1280x720" || s.Streams[0].Backend != "" {
		t.Errorf("unexpected video stream: %+v", s.Streams[0])
	}
	if s.Streams[1].Role != "audio" || s.Streams[1].Backend != string(smartdecoder.BackendOpus) {
		t.Errorf("unexpected audio stream: %+v", s.Streams[1])
	}
	if s.Playback.Master != "audio" || s.Playback.Seeks != 1 {
		t.Errorf("unexpected playback info: %+v", s.Playback)
	}
	if s.Frames.VideoPresented != 248 {
		t.Errorf("expected 248 presented frames, got %d", s.Frames.VideoPresented)
	}
	if len(s.Errors) != 1 || !strings.HasPrefix(s.Errors[0], "video: ") {
		t.Errorf("unexpected errors: %v", s.Errors)
	}
	if s.Output.AudioBytes != 4096 {
		t.Errorf("expected 4096 audio bytes, got %d", s.Output.AudioBytes)
	}
}

func TestFormatDetail(t *testing.T) {
	tests := []struct {
		desc ports.StreamDescriptor
		want string
	}{
		{ports.StreamDescriptor{Kind: ports.KindVideo, Format: ports.Format{Width: 320, Height: 240}}, "320x240"},
		{ports.StreamDescriptor{Kind: ports.KindAudio, Format: ports.Format{SampleRate: 44100, Channels: 2}}, "44100 Hz / 2 ch"},
		{ports.StreamDescriptor{Kind: ports.KindVideo}, ""},
		{ports.StreamDescriptor{Kind: ports.KindAttachment}, ""},
	}
	for _, tt := range tests {
		if got := formatDetail(tt.desc); got != tt.want {
			t.Errorf("formatDetail(%v) = %q, want %q", tt.desc.Kind, got, tt.want)
		}
	}
}
