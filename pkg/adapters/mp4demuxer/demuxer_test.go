package mp4demuxer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Eyevinn/mp4ff/aac"
	"github.com/Eyevinn/mp4ff/av1"
	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/avplay/pkg/adapters/logger"
	"github.com/user/avplay/pkg/ports"
)

const (
	videoFrames  = 48 // 2s at 24000/1001
	audioFrames  = 94 // ~2s of 1024-sample AAC frames
	videoDur     = 1001
	audioDur     = 1024
	framesPerKey = 24
)

// writeFixture writes a fragmented MP4 with one AV1 video track and one AAC
// audio track, one fragment per track per second.
func writeFixture(t *testing.T) string {
	t.Helper()

	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(24000, "video", "en")
	init.AddEmptyTrack(48000, "audio", "en")

	vtrak := init.Moov.Traks[0]
	av1C := &mp4.Av1CBox{CodecConfRec: av1.CodecConfRec{
		Version:            1,
		SeqLevelIdx0:       8,
		ChromaSubsamplingX: 1,
		ChromaSubsamplingY: 1,
	}}
	vtrak.Mdia.Minf.Stbl.Stsd.AddChild(mp4.CreateVisualSampleEntryBox("av01", 64, 36, av1C))
	vtrak.Tkhd.Width = mp4.Fixed32(64 << 16)
	vtrak.Tkhd.Height = mp4.Fixed32(36 << 16)

	atrak := init.Moov.Traks[1]
	if err := atrak.SetAACDescriptor(aac.AAClc, 48000); err != nil {
		t.Fatalf("set AAC descriptor: %v", err)
	}

	var buf bytes.Buffer
	ftyp := mp4.NewFtyp("isom", 0x200, []string{"isom", "iso6", "av01", "mp41"})
	if err := ftyp.Encode(&buf); err != nil {
		t.Fatalf("encode ftyp: %v", err)
	}
	if err := init.Moov.Encode(&buf); err != nil {
		t.Fatalf("encode moov: %v", err)
	}

	seq := uint32(1)
	for sec := 0; sec < 2; sec++ {
		vfrag, err := mp4.CreateFragment(seq, 1)
		if err != nil {
			t.Fatalf("create fragment: %v", err)
		}
		seq++
		for i := sec * framesPerKey; i < (sec+1)*framesPerKey; i++ {
			flags := mp4.NonSyncSampleFlags
			if i%framesPerKey == 0 {
				flags = mp4.SyncSampleFlags
			}
			data := []byte{0x12, 0x00, byte(i)}
			vfrag.AddFullSample(mp4.FullSample{
				Sample:     mp4.Sample{Flags: flags, Size: uint32(len(data)), Dur: videoDur},
				DecodeTime: uint64(i * videoDur),
				Data:       data,
			})
		}
		if err := vfrag.Encode(&buf); err != nil {
			t.Fatalf("encode fragment: %v", err)
		}

		afrag, err := mp4.CreateFragment(seq, 2)
		if err != nil {
			t.Fatalf("create fragment: %v", err)
		}
		seq++
		for k := sec * audioFrames / 2; k < (sec+1)*audioFrames/2; k++ {
			data := []byte{0xAA, byte(k)}
			afrag.AddFullSample(mp4.FullSample{
				Sample:     mp4.Sample{Flags: mp4.SyncSampleFlags, Size: uint32(len(data)), Dur: audioDur},
				DecodeTime: uint64(k * audioDur),
				Data:       data,
			})
		}
		if err := afrag.Encode(&buf); err != nil {
			t.Fatalf("encode fragment: %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "fixture.mp4")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestDemuxer_Open(t *testing.T) {
	d := New(logger.NewNoop())
	info, err := d.Open(context.Background(), writeFixture(t))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer d.Close()

	if len(info.Streams) != 2 {
		t.Fatalf("got %d streams, want 2", len(info.Streams))
	}

	v := info.Streams[0]
	if v.Kind != ports.KindVideo || v.Codec != "av1" {
		t.Errorf("stream 0 = %s %s, want video av1", v.Kind, v.Codec)
	}
	if v.TimeBase != (ports.TimeBase{Num: 1, Den: 24000}) {
		t.Errorf("video time base = %+v, want 1/24000", v.TimeBase)
	}
	if v.Format.Width != 64 || v.Format.Height != 36 {
		t.Errorf("video size = %dx%d, want 64x36", v.Format.Width, v.Format.Height)
	}

	a := info.Streams[1]
	if a.Kind != ports.KindAudio || a.Codec != "aac" {
		t.Errorf("stream 1 = %s %s, want audio aac", a.Kind, a.Codec)
	}
	if a.Format.SampleRate != 48000 || a.Format.Channels != 2 {
		t.Errorf("audio format = %d Hz %d ch, want 48000 Hz 2 ch", a.Format.SampleRate, a.Format.Channels)
	}
	if len(a.ParameterSets) != 1 || len(a.ParameterSets[0]) < 2 {
		t.Errorf("audio should carry an AudioSpecificConfig, got %v", a.ParameterSets)
	}

	if info.Duration < 2*time.Second || info.Duration > 2010*time.Millisecond {
		t.Errorf("Duration = %v, want about 2s", info.Duration)
	}
}

func TestDemuxer_NextPacket_DecodeOrder(t *testing.T) {
	d := New(logger.NewNoop())
	info, err := d.Open(context.Background(), writeFixture(t))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer d.Close()

	lastPTS := map[int]int64{0: -1, 1: -1}
	var lastTime time.Duration
	counts := map[int]int{}

	for {
		pkt, err := d.NextPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("NextPacket() error = %v", err)
		}

		if pkt.PTS <= lastPTS[pkt.StreamIndex] {
			t.Fatalf("stream %d PTS %d not increasing", pkt.StreamIndex, pkt.PTS)
		}
		lastPTS[pkt.StreamIndex] = pkt.PTS

		at := info.Streams[pkt.StreamIndex].TimeBase.Duration(pkt.DTS)
		if at < lastTime {
			t.Fatalf("packet at %v after %v, not in decode order", at, lastTime)
		}
		lastTime = at

		n := counts[pkt.StreamIndex]
		switch pkt.StreamIndex {
		case 0:
			if pkt.Data[2] != byte(n) {
				t.Errorf("video packet %d carries payload %d", n, pkt.Data[2])
			}
			if pkt.Keyframe != (n%framesPerKey == 0) {
				t.Errorf("video packet %d keyframe = %v", n, pkt.Keyframe)
			}
		case 1:
			if pkt.Data[1] != byte(n) {
				t.Errorf("audio packet %d carries payload %d", n, pkt.Data[1])
			}
		}
		counts[pkt.StreamIndex]++
	}

	if counts[0] != videoFrames || counts[1] != audioFrames {
		t.Errorf("got %d video and %d audio packets, want %d and %d", counts[0], counts[1], videoFrames, audioFrames)
	}
}

func TestDemuxer_Seek(t *testing.T) {
	d := New(logger.NewNoop())
	if _, err := d.Open(context.Background(), writeFixture(t)); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer d.Close()

	// Target frame 36 (1.5s); the keyframe at or before it is frame 24.
	target := int64(36 * videoDur)
	window := int64(24 * videoDur)
	if err := d.Seek(0, target-window, target, target+window); err != nil {
		t.Fatalf("Seek() error = %v", err)
	}

	pkt, err := d.NextPacket()
	if err != nil {
		t.Fatalf("NextPacket() error = %v", err)
	}
	if pkt.StreamIndex != 0 || pkt.PTS != 24*videoDur || !pkt.Keyframe {
		t.Errorf("after seek got stream %d PTS %d keyframe %v, want video keyframe at %d", pkt.StreamIndex, pkt.PTS, pkt.Keyframe, 24*videoDur)
	}
}

func TestDemuxer_Seek_NoSyncSampleInWindow(t *testing.T) {
	d := New(logger.NewNoop())
	if _, err := d.Open(context.Background(), writeFixture(t)); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer d.Close()

	err := d.Seek(0, 30*videoDur, 32*videoDur, 34*videoDur)
	if !errors.Is(err, ErrNoSeekPoint) {
		t.Errorf("Seek() error = %v, want ErrNoSeekPoint", err)
	}
	if err := d.Seek(7, 0, 0, 0); !errors.Is(err, ErrUnknownStream) {
		t.Errorf("Seek() on missing stream error = %v, want ErrUnknownStream", err)
	}
}

func TestDemuxer_NotOpen(t *testing.T) {
	d := New(logger.NewNoop())

	if _, err := d.NextPacket(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("NextPacket() error = %v, want ErrNotOpen", err)
	}
	if _, err := d.Open(context.Background(), filepath.Join(t.TempDir(), "missing.mp4")); err == nil {
		t.Error("Open() on a missing file should fail")
	}
	if err := d.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
