package smartdecoder

import (
	"errors"
	"testing"

	"github.com/user/avplay/pkg/adapters/logger"
	"github.com/user/avplay/pkg/mocks"
	"github.com/user/avplay/pkg/ports"
)

func videoStream() ports.StreamDescriptor {
	return ports.StreamDescriptor{
		Index:    0,
		Kind:     ports.KindVideo,
		Codec:    "h264",
		TimeBase: ports.TimeBase{Num: 1, Den: 24},
		Format:   ports.Format{PixelFormat: ports.PixelFormatYUV420P, Width: 4, Height: 4},
	}
}

func TestFactory_RoutesOpus(t *testing.T) {
	ff := &mocks.DecoderFactory{}
	opus := &mocks.DecoderFactory{}
	f := NewWithBackends(ff, opus, true, logger.NewNoop())

	stream := ports.StreamDescriptor{Index: 1, Kind: ports.KindAudio, Codec: "opus"}
	if _, err := f.NewDecoder(stream, ports.DecoderOptions{PreferHardware: true}); err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}
	if opus.Decoder(ports.KindAudio) == nil {
		t.Error("opus stream should use the opus backend")
	}
	if ff.Decoder(ports.KindAudio) != nil {
		t.Error("opus stream should not reach ffmpeg")
	}
	if info, _ := f.Info(1); info.Backend != BackendOpus {
		t.Errorf("backend = %s, want %s", info.Backend, BackendOpus)
	}
}

func TestFactory_UnsupportedCodec(t *testing.T) {
	f := NewWithBackends(&mocks.DecoderFactory{}, &mocks.DecoderFactory{}, false, logger.NewNoop())

	for _, codec := range []string{"", "vp9", "flac"} {
		_, err := f.NewDecoder(ports.StreamDescriptor{Kind: ports.KindVideo, Codec: codec}, ports.DecoderOptions{})
		if !errors.Is(err, ErrUnsupportedCodec) {
			t.Errorf("NewDecoder(%q) error = %v, want ErrUnsupportedCodec", codec, err)
		}
	}
}

func TestFactory_PrefersHardware(t *testing.T) {
	ff := &mocks.DecoderFactory{Hardware: true}
	f := NewWithBackends(ff, &mocks.DecoderFactory{}, true, logger.NewNoop())

	dec, err := f.NewDecoder(videoStream(), ports.DecoderOptions{PreferHardware: true})
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}
	if !dec.SupportsHardware() {
		t.Error("decoder should report hardware support")
	}
	if info, _ := f.Info(0); info.Backend != BackendHardware {
		t.Errorf("backend = %s, want %s", info.Backend, BackendHardware)
	}
}

func TestFactory_HardwareDisabled(t *testing.T) {
	ff := &mocks.DecoderFactory{Hardware: true}
	f := NewWithBackends(ff, &mocks.DecoderFactory{}, false, logger.NewNoop())

	dec, err := f.NewDecoder(videoStream(), ports.DecoderOptions{PreferHardware: true})
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}
	if dec.SupportsHardware() {
		t.Error("hardware should not be used when disabled")
	}
}

func TestFactory_FallsBackAtConstruction(t *testing.T) {
	ff := &mocks.DecoderFactory{}
	ff.NewDecoderFunc = func(stream ports.StreamDescriptor, opts ports.DecoderOptions) (ports.Decoder, error) {
		if opts.PreferHardware {
			return nil, errors.New("no device")
		}
		return &mocks.Decoder{Stream: stream}, nil
	}
	f := NewWithBackends(ff, &mocks.DecoderFactory{}, true, logger.NewNoop())

	dec, err := f.NewDecoder(videoStream(), ports.DecoderOptions{PreferHardware: true})
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}
	if dec.SupportsHardware() {
		t.Error("expected software decoder")
	}
	if len(ff.Options) != 2 || !ff.Options[0].PreferHardware || ff.Options[1].PreferHardware {
		t.Errorf("factory calls = %+v, want hardware then software", ff.Options)
	}
	if info, _ := f.Info(0); info.Backend != BackendFFmpeg {
		t.Errorf("backend = %s, want %s", info.Backend, BackendFFmpeg)
	}
}

// runtimeFixture builds a factory whose hardware decoder fails according to
// the given hooks and records the software decoder it falls back to.
func runtimeFixture(submit func(*ports.Packet) error, transfer func(*ports.Frame) (*ports.Frame, error)) (*Factory, **mocks.Decoder) {
	var sw *mocks.Decoder
	ff := &mocks.DecoderFactory{}
	ff.NewDecoderFunc = func(stream ports.StreamDescriptor, opts ports.DecoderOptions) (ports.Decoder, error) {
		if opts.PreferHardware {
			return &mocks.Decoder{Stream: stream, Hardware: true, SubmitFunc: submit, TransferFunc: transfer}, nil
		}
		sw = &mocks.Decoder{Stream: stream}
		return sw, nil
	}
	return NewWithBackends(ff, &mocks.DecoderFactory{}, true, logger.NewNoop()), &sw
}

func receive(t *testing.T, dec ports.Decoder) (*ports.Frame, error) {
	t.Helper()
	f, err := dec.ReceiveFrame()
	if err != nil {
		return nil, err
	}
	if f.Hardware {
		return dec.TransferFrame(f)
	}
	return f, nil
}

func TestFallback_SubmitFailureReplaysGOP(t *testing.T) {
	f, sw := runtimeFixture(func(p *ports.Packet) error {
		if p.PTS == 2 {
			return errors.New("device lost")
		}
		return nil
	}, nil)

	dec, err := f.NewDecoder(videoStream(), ports.DecoderOptions{PreferHardware: true})
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}
	defer dec.Close()

	var got []int64
	for pts := int64(0); pts < 4; pts++ {
		if err := dec.Submit(&ports.Packet{PTS: pts, Keyframe: pts == 0}); err != nil {
			t.Fatalf("Submit(%d) error = %v", pts, err)
		}
		for {
			fr, err := receive(t, dec)
			if errors.Is(err, ports.ErrNeedMorePackets) {
				break
			}
			if err != nil {
				t.Fatalf("receive error = %v", err)
			}
			got = append(got, fr.PTS)
		}
	}

	want := []int64{0, 1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("frames = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("frames = %v, want %v", got, want)
		}
	}
	if dec.SupportsHardware() {
		t.Error("decoder should report software after fallback")
	}
	if *sw == nil {
		t.Fatal("software decoder not built")
	}
	if replayed := (*sw).SubmittedPTS(); len(replayed) != 4 || replayed[0] != 0 {
		t.Errorf("software decoder received %v, want GOP replay 0..3", replayed)
	}
	if info, _ := f.Info(0); info.Backend != BackendFFmpeg {
		t.Errorf("backend = %s after fallback, want %s", info.Backend, BackendFFmpeg)
	}
}

func TestFallback_TransferFailureRedecodesFrame(t *testing.T) {
	f, _ := runtimeFixture(nil, func(fr *ports.Frame) (*ports.Frame, error) {
		if fr.PTS == 1 {
			return nil, errors.New("surface lost")
		}
		out := *fr
		out.Hardware = false
		return &out, nil
	})

	dec, err := f.NewDecoder(videoStream(), ports.DecoderOptions{PreferHardware: true})
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}
	defer dec.Close()

	for pts := int64(0); pts < 2; pts++ {
		if err := dec.Submit(&ports.Packet{PTS: pts, Keyframe: pts == 0}); err != nil {
			t.Fatalf("Submit(%d) error = %v", pts, err)
		}
	}

	fr, err := receive(t, dec)
	if err != nil || fr.PTS != 0 {
		t.Fatalf("first frame = %v, %v; want PTS 0", fr, err)
	}
	if _, err := receive(t, dec); err == nil {
		t.Fatal("transfer of frame 1 should fail")
	}
	fr, err = receive(t, dec)
	if err != nil {
		t.Fatalf("receive after fallback error = %v", err)
	}
	if fr.PTS != 1 || fr.Hardware {
		t.Errorf("frame after fallback = PTS %d hardware %v, want software PTS 1", fr.PTS, fr.Hardware)
	}
}

func TestFallback_FlushForgetsGOP(t *testing.T) {
	f, sw := runtimeFixture(func(p *ports.Packet) error {
		if p.PTS == 11 {
			return errors.New("device lost")
		}
		return nil
	}, nil)

	dec, _ := f.NewDecoder(videoStream(), ports.DecoderOptions{PreferHardware: true})
	defer dec.Close()

	dec.Submit(&ports.Packet{PTS: 0, Keyframe: true})
	dec.Submit(&ports.Packet{PTS: 1})
	dec.Flush()
	dec.Submit(&ports.Packet{PTS: 10, Keyframe: true})
	if err := dec.Submit(&ports.Packet{PTS: 11}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	replayed := (*sw).SubmittedPTS()
	if len(replayed) != 2 || replayed[0] != 10 || replayed[1] != 11 {
		t.Errorf("software decoder received %v, want [10 11]", replayed)
	}
}

func TestFallback_DrainFailureFinishesInSoftware(t *testing.T) {
	var sw *mocks.Decoder
	ff := &mocks.DecoderFactory{}
	ff.NewDecoderFunc = func(stream ports.StreamDescriptor, opts ports.DecoderOptions) (ports.Decoder, error) {
		if opts.PreferHardware {
			return &mocks.Decoder{
				Stream:    stream,
				Hardware:  true,
				Delay:     1,
				DrainFunc: func() error { return errors.New("device lost") },
			}, nil
		}
		sw = &mocks.Decoder{Stream: stream, Delay: 1}
		return sw, nil
	}
	f := NewWithBackends(ff, &mocks.DecoderFactory{}, true, logger.NewNoop())

	dec, err := f.NewDecoder(videoStream(), ports.DecoderOptions{PreferHardware: true})
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}
	defer dec.Close()

	var got []int64
	collect := func() {
		for {
			fr, err := receive(t, dec)
			if errors.Is(err, ports.ErrNeedMorePackets) {
				return
			}
			if err != nil {
				t.Fatalf("receive error = %v", err)
			}
			got = append(got, fr.PTS)
		}
	}
	for pts := int64(0); pts < 3; pts++ {
		if err := dec.Submit(&ports.Packet{PTS: pts, Keyframe: pts == 0}); err != nil {
			t.Fatalf("Submit(%d) error = %v", pts, err)
		}
		collect()
	}
	if err := dec.Drain(); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	collect()

	want := []int64{0, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("frames = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("frames = %v, want %v", got, want)
		}
	}
	if sw == nil || sw.DrainCount() != 1 {
		t.Error("software decoder should be drained after the fallback")
	}
}
