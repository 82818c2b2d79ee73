package mp4demuxer

import (
	"fmt"
	"io"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/avplay/pkg/ports"
)

// nonSyncBit is sample_is_non_sync_sample in ISO/IEC 14496-12 sample flags.
const nonSyncBit = 0x00010000

// sample locates one access unit of a track.
type sample struct {
	decodeTime uint64
	cto        int32
	dur        uint32
	sync       bool

	// Progressive files are read lazily from offset; fragments carry data.
	offset int64
	size   uint32
	data   []byte
}

func (s *sample) pts() int64 {
	return int64(s.decodeTime) + int64(s.cto)
}

type track struct {
	id        uint32
	timescale uint32
	desc      ports.StreamDescriptor
	samples   []sample

	// pos maps a sample index to its position in the interleaved order.
	pos []int
}

// end returns the decode end time of the last sample.
func (t *track) end() uint64 {
	if len(t.samples) == 0 {
		return 0
	}
	last := t.samples[len(t.samples)-1]
	return last.decodeTime + uint64(last.dur)
}

// describeTrack builds the stream descriptor of a trak from its handler and
// first sample entry.
func describeTrack(trak *mp4.TrakBox, index int) ports.StreamDescriptor {
	desc := ports.StreamDescriptor{Index: index, Kind: ports.KindUnknown}
	if trak.Mdia == nil {
		return desc
	}
	if trak.Mdia.Mdhd != nil {
		desc.TimeBase = ports.TimeBase{Num: 1, Den: int64(trak.Mdia.Mdhd.Timescale)}
	}
	if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stsd == nil {
		return desc
	}
	children := trak.Mdia.Minf.Stbl.Stsd.Children
	if len(children) == 0 {
		return desc
	}
	entry := children[0]

	switch entry.Type() {
	case "avc1", "avc3":
		desc.Kind, desc.Codec = ports.KindVideo, "h264"
	case "hvc1", "hev1":
		desc.Kind, desc.Codec = ports.KindVideo, "hevc"
	case "av01":
		desc.Kind, desc.Codec = ports.KindVideo, "av1"
	case "jpeg":
		desc.Kind, desc.Codec = ports.KindAttachment, "jpeg"
	case "png ":
		desc.Kind, desc.Codec = ports.KindAttachment, "png"
	case "mp4a":
		desc.Kind, desc.Codec = ports.KindAudio, "aac"
	case "Opus", "opus":
		desc.Kind, desc.Codec = ports.KindAudio, "opus"
	default:
		return desc
	}

	switch e := entry.(type) {
	case *mp4.VisualSampleEntryBox:
		desc.Format = ports.Format{
			PixelFormat: ports.PixelFormatYUV420P,
			Width:       int(e.Width),
			Height:      int(e.Height),
		}
		desc.ParameterSets = videoParameterSets(e)
	case *mp4.AudioSampleEntryBox:
		desc.Format = ports.Format{
			SampleFormat: ports.SampleFormatS16,
			Channels:     int(e.ChannelCount),
			SampleRate:   int(e.SampleRate),
		}
		if asc := audioSpecificConfig(e); asc != nil {
			desc.ParameterSets = [][]byte{asc}
		}
	}

	if desc.Kind == ports.KindAudio && desc.Codec == "opus" {
		// Opus always decodes at 48 kHz regardless of the input rate field.
		desc.Format.SampleRate = 48000
		if desc.Format.Channels == 0 {
			desc.Format.Channels = 2
		}
	}
	return desc
}

func videoParameterSets(e *mp4.VisualSampleEntryBox) [][]byte {
	var sets [][]byte
	switch {
	case e.AvcC != nil:
		sets = append(sets, e.AvcC.SPSnalus...)
		sets = append(sets, e.AvcC.PPSnalus...)
	case e.HvcC != nil:
		for _, arr := range e.HvcC.NaluArrays {
			sets = append(sets, arr.Nalus...)
		}
	}
	return sets
}

func audioSpecificConfig(e *mp4.AudioSampleEntryBox) []byte {
	if e.Esds == nil {
		return nil
	}
	dcd := e.Esds.ESDescriptor.DecConfigDescriptor
	if dcd == nil || dcd.DecSpecificInfo == nil {
		return nil
	}
	return dcd.DecSpecificInfo.DecConfig
}

// progressiveSamples indexes a track from its sample table.
func progressiveSamples(trak *mp4.TrakBox) ([]sample, error) {
	if trak.Mdia == nil || trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil {
		return nil, fmt.Errorf("no sample table found")
	}
	stbl := trak.Mdia.Minf.Stbl
	if stbl.Stsz == nil || stbl.Stsc == nil || stbl.Stts == nil {
		return nil, fmt.Errorf("incomplete sample table")
	}

	syncSamples := make(map[uint32]bool)
	if stbl.Stss != nil {
		for _, nr := range stbl.Stss.SampleNumber {
			syncSamples[nr] = true
		}
	}

	count := stbl.Stsz.SampleNumber
	samples := make([]sample, 0, count)
	for nr := uint32(1); nr <= count; nr++ {
		offset, err := sampleOffset(stbl, nr)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", nr, err)
		}
		decodeTime, dur := stbl.Stts.GetDecodeTime(nr)
		var cto int32
		if stbl.Ctts != nil {
			cto = stbl.Ctts.GetCompositionTimeOffset(nr)
		}
		samples = append(samples, sample{
			decodeTime: decodeTime,
			cto:        cto,
			dur:        dur,
			sync:       stbl.Stss == nil || syncSamples[nr],
			offset:     int64(offset),
			size:       stbl.Stsz.GetSampleSize(int(nr)),
		})
	}
	return samples, nil
}

// sampleOffset returns the file offset of a sample from its chunk offset
// plus the sizes of the preceding samples in the same chunk.
func sampleOffset(stbl *mp4.StblBox, nr uint32) (uint64, error) {
	chunkNr, firstSampleInChunk, err := stbl.Stsc.ChunkNrFromSampleNr(int(nr))
	if err != nil {
		return 0, fmt.Errorf("get chunk nr: %w", err)
	}

	var chunkOffset uint64
	switch {
	case stbl.Stco != nil:
		chunkOffset, err = stbl.Stco.GetOffset(chunkNr)
		if err != nil {
			return 0, fmt.Errorf("get chunk offset: %w", err)
		}
	case stbl.Co64 != nil:
		if chunkNr < 1 || chunkNr > len(stbl.Co64.ChunkOffset) {
			return 0, fmt.Errorf("chunk nr %d out of range", chunkNr)
		}
		chunkOffset = stbl.Co64.ChunkOffset[chunkNr-1]
	default:
		return 0, fmt.Errorf("no stco or co64 box")
	}

	offset := chunkOffset
	for s := uint32(firstSampleInChunk); s < nr; s++ {
		offset += uint64(stbl.Stsz.GetSampleSize(int(s)))
	}
	return offset, nil
}

// fragmentedSamples indexes every track of a fragmented file. Each moof is
// expected to carry a single traf.
func fragmentedSamples(f *mp4.File, tracks map[uint32]*track) error {
	trexs := make(map[uint32]*mp4.TrexBox)
	if f.Init.Moov.Mvex != nil {
		for _, trex := range f.Init.Moov.Mvex.Trexs {
			trexs[trex.TrackID] = trex
		}
	}

	for _, seg := range f.Segments {
		for _, frag := range seg.Fragments {
			if frag.Moof == nil {
				continue
			}
			if len(frag.Moof.Trafs) != 1 {
				return ErrMultiTrackFragment
			}
			traf := frag.Moof.Trafs[0]
			t, ok := tracks[traf.Tfhd.TrackID]
			if !ok {
				continue
			}
			trex, ok := trexs[t.id]
			if !ok {
				return fmt.Errorf("no trex for track %d", t.id)
			}
			full, err := frag.GetFullSamples(trex)
			if err != nil {
				return fmt.Errorf("get samples: %w", err)
			}
			for _, s := range full {
				t.samples = append(t.samples, sample{
					decodeTime: s.DecodeTime,
					cto:        s.CompositionTimeOffset,
					dur:        s.Dur,
					sync:       s.Flags&nonSyncBit == 0,
					size:       uint32(len(s.Data)),
					data:       s.Data,
				})
			}
		}
	}
	return nil
}

// readSample returns the payload of s, reading it from r for progressive
// files.
func readSample(r io.ReaderAt, s *sample) ([]byte, error) {
	if s.data != nil {
		return s.data, nil
	}
	data := make([]byte, s.size)
	if _, err := r.ReadAt(data, s.offset); err != nil {
		return nil, fmt.Errorf("read sample: %w", err)
	}
	return data, nil
}
