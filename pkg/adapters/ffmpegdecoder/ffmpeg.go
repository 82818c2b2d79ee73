// Package ffmpegdecoder decodes compressed video and audio packets through a
// persistent ffmpeg process per stream.
package ffmpegdecoder

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

var (
	// ErrFFmpegNotFound is returned when ffmpeg is not found.
	ErrFFmpegNotFound = errors.New("ffmpegdecoder: ffmpeg not found in PATH")

	// ErrUnsupportedCodec is returned for codecs ffmpeg is not wired for.
	ErrUnsupportedCodec = errors.New("ffmpegdecoder: unsupported codec")

	// ErrProcessExited is returned when the ffmpeg process died.
	ErrProcessExited = errors.New("ffmpegdecoder: ffmpeg process exited")

	// ErrClosed is returned when using a closed decoder.
	ErrClosed = errors.New("ffmpegdecoder: decoder closed")
)

// FindFFmpeg searches for ffmpeg.
// Priority: 1) custom path, 2) FFMPEG_PATH env, 3) PATH, 4) common locations
func FindFFmpeg(custom string) (string, error) {
	if custom != "" {
		if _, err := os.Stat(custom); err == nil {
			return custom, nil
		}
		return "", fmt.Errorf("%w: custom path %s not found", ErrFFmpegNotFound, custom)
	}

	if envPath := os.Getenv("FFMPEG_PATH"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
		return "", fmt.Errorf("%w: FFMPEG_PATH %s not found", ErrFFmpegNotFound, envPath)
	}

	execName := "ffmpeg"
	if runtime.GOOS == "windows" {
		execName = "ffmpeg.exe"
	}
	if path, err := exec.LookPath(execName); err == nil {
		return path, nil
	}

	var commonPaths []string
	switch runtime.GOOS {
	case "windows":
		commonPaths = []string{
			`C:\ffmpeg\bin\ffmpeg.exe`,
			`C:\Program Files\ffmpeg\bin\ffmpeg.exe`,
		}
	case "darwin":
		commonPaths = []string{
			"/opt/homebrew/bin/ffmpeg",
			"/usr/local/bin/ffmpeg",
			"/usr/bin/ffmpeg",
		}
	default:
		commonPaths = []string{
			"/usr/bin/ffmpeg",
			"/usr/local/bin/ffmpeg",
			"/snap/bin/ffmpeg",
		}
	}
	for _, p := range commonPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", ErrFFmpegNotFound
}

// IsAvailable reports whether an ffmpeg binary can be found.
func IsAvailable(custom string) bool {
	_, err := FindFFmpeg(custom)
	return err == nil
}

// inputFormat returns the ffmpeg demuxer name for a codec's elementary
// stream framing.
func inputFormat(codec string) (string, error) {
	switch codec {
	case "h264":
		return "h264", nil
	case "hevc":
		return "hevc", nil
	case "av1":
		return "obu", nil
	case "aac":
		return "aac", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedCodec, codec)
	}
}

// videoArgs builds the command line for a video stream writing raw frames
// of pixFmt at the stream size to stdout.
func videoArgs(codec, hwaccel, pixFmt string, width, height int) ([]string, error) {
	format, err := inputFormat(codec)
	if err != nil {
		return nil, err
	}
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	if hwaccel != "" {
		args = append(args, "-hwaccel", hwaccel)
	}
	args = append(args,
		"-probesize", "32",
		"-analyzeduration", "0",
		"-fflags", "nobuffer",
		"-flags", "low_delay",
		"-f", format,
		"-i", "pipe:0",
		"-vf", fmt.Sprintf("scale=%d:%d", width, height),
		"-f", "rawvideo",
		"-pix_fmt", pixFmt,
		"pipe:1",
	)
	return args, nil
}

// audioArgs builds the command line for an audio stream writing
// interleaved s16le at the stream rate and channel count.
func audioArgs(codec string, sampleRate, channels int) ([]string, error) {
	format, err := inputFormat(codec)
	if err != nil {
		return nil, err
	}
	return []string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-probesize", "32",
		"-analyzeduration", "0",
		"-fflags", "nobuffer",
		"-f", format,
		"-i", "pipe:0",
		"-f", "s16le",
		"-ac", fmt.Sprint(channels),
		"-ar", fmt.Sprint(sampleRate),
		"pipe:1",
	}, nil
}
