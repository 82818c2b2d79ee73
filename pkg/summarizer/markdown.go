package summarizer

import (
	"fmt"
	"strings"
	"time"
)

// Translator maps an English label to the output language.
type Translator func(key string) string

// MarkdownFormatter renders a Summary as a Markdown report.
type MarkdownFormatter struct {
	translate Translator
	version   string
}

// MarkdownOption configures a MarkdownFormatter.
type MarkdownOption func(*MarkdownFormatter)

// WithTranslator sets the label translator.
func WithTranslator(t Translator) MarkdownOption {
	return func(f *MarkdownFormatter) {
		if t != nil {
			f.translate = t
		}
	}
}

// WithVersion sets the version shown in the footer.
func WithVersion(version string) MarkdownOption {
	return func(f *MarkdownFormatter) {
		f.version = version
	}
}

// NewMarkdownFormatter creates a MarkdownFormatter.
func NewMarkdownFormatter(opts ...MarkdownOption) *MarkdownFormatter {
	f := &MarkdownFormatter{
		translate: func(key string) string { return key },
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format implements Formatter.
func (f *MarkdownFormatter) Format(s *Summary) string {
	t := f.translate
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", t("Playback Summary"))

	fmt.Fprintf(&b, "## %s\n\n", t("Source"))
	fmt.Fprintf(&b, "| %s | %s |\n|---|---|\n", t("Item"), t("Value"))
	fmt.Fprintf(&b, "| %s | %s |\n", t("File"), s.Source.Path)
	if s.Source.Duration > 0 {
		fmt.Fprintf(&b, "| %s | %s |\n", t("Duration"), formatPosition(s.Source.Duration))
	}
	fmt.Fprintf(&b, "| %s | %s |\n\n", t("Cover Art"), yesNo(t, s.Source.HasCover))

	if len(s.Streams) > 0 {
		fmt.Fprintf(&b, "## %s\n\n", t("Streams"))
		fmt.Fprintf(&b, "| %s | # | %s | %s | %s |\n|---|---|---|---|---|\n",
			t("Role"), t("Codec"), t("Decoder"), t("Format"))
		for _, st := range s.Streams {
			backend := st.Backend
			if backend == "" {
				backend = "-"
			}
			fmt.Fprintf(&b, "| %s | %d | %s | %s | %s |\n", t(st.Role), st.Index, st.Codec, backend, st.Detail)
		}
		b.WriteString("\n")
	}

	p := s.Playback
	fmt.Fprintf(&b, "## %s\n\n", t("Playback"))
	fmt.Fprintf(&b, "| %s | %s |\n|---|---|\n", t("Item"), t("Value"))
	if p.Master != "" {
		fmt.Fprintf(&b, "| %s | %s |\n", t("Master Clock"), t(p.Master))
	}
	fmt.Fprintf(&b, "| %s | %s |\n", t("Start Position"), formatPosition(p.Start))
	fmt.Fprintf(&b, "| %s | %s |\n", t("End Position"), formatPosition(p.End))
	fmt.Fprintf(&b, "| %s | %s |\n", t("Wall Time"), p.WallTime.Round(time.Millisecond))
	if p.StopReason != "" {
		fmt.Fprintf(&b, "| %s | %s |\n", t("Stop Reason"), t(p.StopReason))
	}
	if p.Loops > 0 {
		fmt.Fprintf(&b, "| %s | %d |\n", t("Loops"), p.Loops)
	}
	fmt.Fprintf(&b, "| %s | %d |\n\n", t("Seeks"), p.Seeks)

	fr := s.Frames
	fmt.Fprintf(&b, "## %s\n\n", t("Frames"))
	fmt.Fprintf(&b, "| %s | %s |\n|---|---|\n", t("Counter"), t("Value"))
	fmt.Fprintf(&b, "| %s | %d |\n", t("Packets Demuxed"), fr.PacketsDemuxed)
	fmt.Fprintf(&b, "| %s | %d |\n", t("Packets Discarded"), fr.PacketsDiscarded)
	if fr.DemuxErrors > 0 {
		fmt.Fprintf(&b, "| %s | %d |\n", t("Demux Errors"), fr.DemuxErrors)
	}
	fmt.Fprintf(&b, "| %s | %d / %d |\n", t("Video Decoded / Presented"), fr.VideoDecoded, fr.VideoPresented)
	fmt.Fprintf(&b, "| %s | %d / %d |\n", t("Audio Decoded / Played"), fr.AudioDecoded, fr.AudioPlayed)
	fmt.Fprintf(&b, "| %s | %d |\n", t("Dropped Frames"), fr.Dropped)
	fmt.Fprintf(&b, "| %s | %d |\n\n", t("Video Waits"), fr.VideoWaits)

	if len(s.Errors) > 0 {
		fmt.Fprintf(&b, "## %s\n\n", t("Errors"))
		for _, e := range s.Errors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
		b.WriteString("\n")
	}

	o := s.Output
	if o.SnapshotDir != "" || o.CoverPath != "" || o.AudioPath != "" {
		fmt.Fprintf(&b, "## %s\n\n", t("Output"))
		fmt.Fprintf(&b, "| %s | %s |\n|---|---|\n", t("Item"), t("Value"))
		if o.SnapshotDir != "" {
			fmt.Fprintf(&b, "| %s | %s (%d) |\n", t("Snapshots"), o.SnapshotDir, o.Snapshots)
		}
		if o.CoverPath != "" {
			fmt.Fprintf(&b, "| %s | %s |\n", t("Cover Art"), o.CoverPath)
		}
		if o.AudioPath != "" {
			fmt.Fprintf(&b, "| %s | %s (%s) |\n", t("Audio"), o.AudioPath, formatBytes(o.AudioBytes))
		}
		b.WriteString("\n")
	}

	b.WriteString("---\n\n")
	generated := s.GeneratedAt.Format("2006-01-02 15:04:05")
	if f.version != "" {
		fmt.Fprintf(&b, "%s avplay %s (%s)\n", t("Generated by"), f.version, generated)
	} else {
		fmt.Fprintf(&b, "%s avplay (%s)\n", t("Generated by"), generated)
	}

	return b.String()
}

func yesNo(t Translator, v bool) string {
	if v {
		return t("Yes")
	}
	return t("No")
}

// formatPosition renders a media position as m:ss.mmm.
func formatPosition(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	return fmt.Sprintf("%d:%02d.%03d", ms/60000, ms/1000%60, ms%1000)
}

// formatBytes formats bytes in human-readable form.
func formatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
