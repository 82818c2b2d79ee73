package pipeline

import (
	"errors"
	"fmt"

	"github.com/user/avplay/pkg/ports"
)

var (
	// ErrNotOpen is returned when an operation needs an open source.
	ErrNotOpen = errors.New("pipeline: no source open")

	// ErrNoPlayableStream is returned when a source has neither audio nor video.
	ErrNoPlayableStream = errors.New("pipeline: source has no audio or video stream")

	// ErrStreamSetup wraps decoder and converter construction failures.
	ErrStreamSetup = errors.New("pipeline: stream setup failed")

	// ErrStreamFailed wraps fatal runtime failures of a stream.
	ErrStreamFailed = errors.New("pipeline: stream failed")
)

// StreamError attributes an error to one stream so that a video failure
// can be reported without touching audio, and vice versa.
type StreamError struct {
	Kind ports.MediaKind
	Err  error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("%s stream: %v", e.Kind, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

func setupError(kind ports.MediaKind, err error) error {
	return &StreamError{Kind: kind, Err: fmt.Errorf("%w: %w", ErrStreamSetup, err)}
}

func streamFailure(kind ports.MediaKind, err error) error {
	return &StreamError{Kind: kind, Err: fmt.Errorf("%w: %w", ErrStreamFailed, err)}
}
