// Package mp4demuxer reads timestamped packets from progressive and
// fragmented MP4 files.
package mp4demuxer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/avplay/pkg/ports"
)

var (
	// ErrNotOpen is returned when reading before Open.
	ErrNotOpen = errors.New("mp4demuxer: no file open")

	// ErrNoTracks is returned when a file has no usable track.
	ErrNoTracks = errors.New("mp4demuxer: no tracks found")

	// ErrMultiTrackFragment is returned for fragments that interleave
	// several tracks in one moof.
	ErrMultiTrackFragment = errors.New("mp4demuxer: multi-track fragments not supported")

	// ErrNoSeekPoint is returned when no sync sample lies in the seek window.
	ErrNoSeekPoint = errors.New("mp4demuxer: no sync sample in seek window")

	// ErrUnknownStream is returned when seeking on a stream index that does
	// not exist.
	ErrUnknownStream = errors.New("mp4demuxer: unknown stream")
)

type ref struct {
	track  int
	sample int
}

// Demuxer implements ports.Demuxer for MP4 files.
type Demuxer struct {
	logger ports.Logger

	mu     sync.Mutex
	file   *os.File
	tracks []*track
	order  []ref
	cursor int
}

// New creates an MP4 demuxer.
func New(logger ports.Logger) *Demuxer {
	return &Demuxer{logger: logger.WithComponent("mp4demuxer")}
}

// Open parses the file at source and indexes every track.
func (d *Demuxer) Open(ctx context.Context, source string) (ports.SourceInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeLocked()

	f, err := os.Open(source)
	if err != nil {
		return ports.SourceInfo{}, fmt.Errorf("open file: %w", err)
	}

	info, err := d.index(ctx, f)
	if err != nil {
		f.Close()
		return ports.SourceInfo{}, err
	}
	d.file = f
	return info, nil
}

func (d *Demuxer) index(ctx context.Context, f *os.File) (ports.SourceInfo, error) {
	parsed, err := mp4.DecodeFile(f)
	if err != nil {
		return ports.SourceInfo{}, fmt.Errorf("decode mp4: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return ports.SourceInfo{}, err
	}

	var moov *mp4.MoovBox
	if parsed.IsFragmented() {
		if parsed.Init != nil {
			moov = parsed.Init.Moov
		}
	} else {
		moov = parsed.Moov
	}
	if moov == nil {
		return ports.SourceInfo{}, fmt.Errorf("decode mp4: no moov box found")
	}

	tracks := make([]*track, 0, len(moov.Traks))
	byID := make(map[uint32]*track)
	for i, trak := range moov.Traks {
		t := &track{desc: describeTrack(trak, i)}
		if trak.Tkhd != nil {
			t.id = trak.Tkhd.TrackID
		}
		if trak.Mdia != nil && trak.Mdia.Mdhd != nil {
			t.timescale = trak.Mdia.Mdhd.Timescale
		}
		if t.timescale == 0 {
			t.timescale = 1000
			t.desc.TimeBase = ports.TimeBase{Num: 1, Den: 1000}
		}
		if !parsed.IsFragmented() {
			t.samples, err = progressiveSamples(trak)
			if err != nil {
				d.logger.Warn("Skipping track %d: %s", t.id, err)
				t.desc.Kind = ports.KindUnknown
			}
		}
		tracks = append(tracks, t)
		byID[t.id] = t
	}
	if len(tracks) == 0 {
		return ports.SourceInfo{}, ErrNoTracks
	}
	if parsed.IsFragmented() {
		if err := fragmentedSamples(parsed, byID); err != nil {
			return ports.SourceInfo{}, err
		}
	}

	d.tracks = tracks
	d.order = interleave(tracks)
	d.cursor = 0

	info := ports.SourceInfo{Streams: make([]ports.StreamDescriptor, len(tracks))}
	for i, t := range tracks {
		info.Streams[i] = t.desc
		d.logger.Debug("Track %d: %s %s, %d samples", t.id, t.desc.Kind, t.desc.Codec, len(t.samples))
	}
	info.Duration = duration(moov, tracks)
	return info, nil
}

// interleave orders all samples by decode time across tracks, keeping
// per-track order.
func interleave(tracks []*track) []ref {
	var order []ref
	for ti, t := range tracks {
		for si := range t.samples {
			order = append(order, ref{track: ti, sample: si})
		}
	}
	at := func(r ref) time.Duration {
		t := tracks[r.track]
		return t.desc.TimeBase.Duration(int64(t.samples[r.sample].decodeTime))
	}
	sort.SliceStable(order, func(i, j int) bool {
		ti, tj := at(order[i]), at(order[j])
		if ti != tj {
			return ti < tj
		}
		if order[i].track != order[j].track {
			return order[i].track < order[j].track
		}
		return order[i].sample < order[j].sample
	})
	for _, t := range tracks {
		t.pos = make([]int, len(t.samples))
	}
	for i, r := range order {
		tracks[r.track].pos[r.sample] = i
	}
	return order
}

// duration prefers the movie header and falls back to the longest track.
func duration(moov *mp4.MoovBox, tracks []*track) time.Duration {
	if moov.Mvhd != nil && moov.Mvhd.Duration > 0 && moov.Mvhd.Timescale > 0 {
		tb := ports.TimeBase{Num: 1, Den: int64(moov.Mvhd.Timescale)}
		return tb.Duration(int64(moov.Mvhd.Duration))
	}
	var longest time.Duration
	for _, t := range tracks {
		longest = max(longest, t.desc.TimeBase.Duration(int64(t.end())))
	}
	return longest
}

// NextPacket returns the next packet in decode order, or io.EOF.
func (d *Demuxer) NextPacket() (*ports.Packet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil, ErrNotOpen
	}
	if d.cursor >= len(d.order) {
		return nil, io.EOF
	}
	r := d.order[d.cursor]
	d.cursor++

	t := d.tracks[r.track]
	s := &t.samples[r.sample]
	data, err := readSample(d.file, s)
	if err != nil {
		return nil, fmt.Errorf("track %d sample %d: %w", t.id, r.sample+1, err)
	}
	return &ports.Packet{
		StreamIndex: r.track,
		PTS:         s.pts(),
		DTS:         int64(s.decodeTime),
		Duration:    int64(s.dur),
		Keyframe:    s.sync,
		Data:        data,
	}, nil
}

// Seek positions the reader on a sync sample of streamIndex with PTS in
// [minTS, maxTS]: the latest one at or before ts, else the earliest after.
func (d *Demuxer) Seek(streamIndex int, minTS, ts, maxTS int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return ErrNotOpen
	}
	if streamIndex < 0 || streamIndex >= len(d.tracks) {
		return fmt.Errorf("%w: %d", ErrUnknownStream, streamIndex)
	}
	t := d.tracks[streamIndex]

	before, after := -1, -1
	for i := range t.samples {
		s := &t.samples[i]
		pts := s.pts()
		if !s.sync || pts < minTS || pts > maxTS {
			continue
		}
		switch {
		case pts <= ts:
			if before < 0 || pts > t.samples[before].pts() {
				before = i
			}
		case after < 0 || pts < t.samples[after].pts():
			after = i
		}
	}
	best := before
	if best < 0 {
		best = after
	}
	if best < 0 {
		return fmt.Errorf("%w: [%d, %d]", ErrNoSeekPoint, minTS, maxTS)
	}

	d.cursor = t.pos[best]
	d.logger.Debug("Seek on track %d landed on sample %d (pts %d)", t.id, best+1, t.samples[best].pts())
	return nil
}

// Close releases the open file.
func (d *Demuxer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closeLocked()
}

func (d *Demuxer) closeLocked() error {
	d.tracks = nil
	d.order = nil
	d.cursor = 0
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

var _ ports.Demuxer = (*Demuxer)(nil)
