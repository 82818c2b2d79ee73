package summarizer

import (
	"fmt"

	"github.com/user/avplay/pkg/ports"
)

// Formatter renders a Summary as text.
type Formatter interface {
	Format(summary *Summary) string
}

// FormatFunc lets a plain function serve as a Formatter.
type FormatFunc func(summary *Summary) string

func (f FormatFunc) Format(summary *Summary) string {
	return f(summary)
}

// Writer renders summaries and stores them through a ports.FileSystem.
type Writer struct {
	formatter Formatter
	fs        ports.FileSystem
}

func NewWriter(formatter Formatter, fs ports.FileSystem) *Writer {
	return &Writer{formatter: formatter, fs: fs}
}

// Write replaces the file at path with the rendered summary. Parent
// directories are created by the filesystem.
func (w *Writer) Write(path string, summary *Summary) error {
	if summary == nil {
		return fmt.Errorf("summarizer: nothing to write to %s", path)
	}
	if err := w.fs.WriteFile(path, []byte(w.formatter.Format(summary))); err != nil {
		return fmt.Errorf("summarizer: write %s: %w", path, err)
	}
	return nil
}
