// Package filesink provides a renderer that saves presented frames as
// annotated PNG snapshots, plus attached cover art.
package filesink

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/user/avplay/pkg/adapters/ggrenderer"
	"github.com/user/avplay/pkg/ports"
)

// PositionFunc reports the current playback position and total duration.
type PositionFunc func() (position, total time.Duration)

// Sink saves output to files.
type Sink struct {
	baseDir  string
	fs       ports.FileSystem
	renderer *ggrenderer.Renderer
	interval time.Duration

	mu        sync.Mutex
	position  PositionFunc
	presented int
	saved     int
	lastSaved time.Duration
	dirReady  bool
}

// New creates a new Sink. A snapshot is written when the playback position
// has advanced by at least interval since the previous one; zero saves
// every frame.
func New(baseDir string, fs ports.FileSystem, renderer *ggrenderer.Renderer, interval time.Duration) *Sink {
	return &Sink{
		baseDir:  baseDir,
		fs:       fs,
		renderer: renderer,
		interval: interval,
	}
}

// SetPosition sets the playback position source used for the snapshot
// schedule and the overlay.
func (s *Sink) SetPosition(fn PositionFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = fn
}

// Present records a frame and saves it when a snapshot is due.
func (s *Sink) Present(pixels []byte, width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presented++

	var pos, total time.Duration
	if s.position != nil {
		pos, total = s.position()
	}
	// A position behind the last snapshot means a backward seek.
	if s.saved > 0 && pos >= s.lastSaved && pos-s.lastSaved < s.interval {
		return nil
	}

	progress := -1.0
	if total > 0 {
		progress = float64(pos) / float64(total)
	}
	img, err := s.renderer.Annotate(pixels, width, height, FormatPosition(pos), progress)
	if err != nil {
		return err
	}
	data, err := s.renderer.EncodeImage(img, ggrenderer.FormatPNG, 0)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Join(s.baseDir, "frames")
	if !s.dirReady {
		if err := s.fs.MkdirAll(dir); err != nil {
			return err
		}
		s.dirReady = true
	}
	path := filepath.Join(dir, fmt.Sprintf("frame-%04d.png", s.saved))
	if err := s.fs.WriteFile(path, data); err != nil {
		return err
	}
	s.saved++
	s.lastSaved = pos
	return nil
}

// SaveCover saves attached cover art, keeping its original encoding.
func (s *Sink) SaveCover(data []byte) (string, error) {
	_, format, err := s.renderer.DecodeImage(data)
	if err != nil {
		return "", err
	}
	if err := s.fs.MkdirAll(s.baseDir); err != nil {
		return "", err
	}
	path := filepath.Join(s.baseDir, "cover."+format.String())
	return path, s.fs.WriteFile(path, data)
}

// SaveThumbnail writes a PNG copy of attached cover art scaled to fit
// within size x size.
func (s *Sink) SaveThumbnail(data []byte, size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("thumbnail size must be positive, got %d", size)
	}
	img, _, err := s.renderer.DecodeImage(data)
	if err != nil {
		return "", err
	}
	thumb, err := s.renderer.EncodeImage(s.renderer.ResizeImage(img, size, size), ggrenderer.FormatPNG, 0)
	if err != nil {
		return "", fmt.Errorf("encode thumbnail: %w", err)
	}
	path := filepath.Join(s.baseDir, fmt.Sprintf("cover-%d.png", size))
	return path, s.fs.WriteFile(path, thumb)
}

// Presented returns the number of frames presented.
func (s *Sink) Presented() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presented
}

// Saved returns the number of snapshots written.
func (s *Sink) Saved() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved
}

// FormatPosition formats a playback position as mm:ss.mmm.
func FormatPosition(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d.%03d", ms/60000, ms/1000%60, ms%1000)
}

// Ensure Sink implements ports.Renderer
var _ ports.Renderer = (*Sink)(nil)
