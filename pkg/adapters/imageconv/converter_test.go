package imageconv

import (
	"bytes"
	"errors"
	"testing"

	"github.com/user/avplay/pkg/ports"
)

var rgba4x4 = ports.Format{PixelFormat: ports.PixelFormatRGBA, Width: 4, Height: 4}

func filled(n int, v byte) []byte {
	return bytes.Repeat([]byte{v}, n)
}

func assertGray(t *testing.T, pix []byte, want byte) {
	t.Helper()
	for i := 0; i < len(pix); i += 4 {
		r, g, b, a := pix[i], pix[i+1], pix[i+2], pix[i+3]
		if r != want || g != want || b != want || a != 0xFF {
			t.Fatalf("pixel %d = (%d,%d,%d,%d), want (%d,%d,%d,255)", i/4, r, g, b, a, want, want, want)
		}
	}
}

func TestConverter_YUV420PScalesToOutput(t *testing.T) {
	in := ports.Format{PixelFormat: ports.PixelFormatYUV420P, Width: 2, Height: 2}
	c, err := Factory{}.NewConverter(in, rgba4x4)
	if err != nil {
		t.Fatalf("NewConverter() error = %v", err)
	}

	out, err := c.Convert(&ports.Frame{
		Kind:   ports.KindVideo,
		PTS:    42,
		Format: in,
		Planes: [][]byte{filled(4, 128), {128}, {128}},
	})
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if out.PTS != 42 || out.Format != rgba4x4 {
		t.Errorf("output PTS %d format %+v", out.PTS, out.Format)
	}
	if len(out.Planes[0]) != 4*4*4 {
		t.Fatalf("output is %d bytes, want %d", len(out.Planes[0]), 4*4*4)
	}
	assertGray(t, out.Planes[0], 128)
}

func TestConverter_NV12(t *testing.T) {
	in := ports.Format{PixelFormat: ports.PixelFormatNV12, Width: 4, Height: 4}
	c, err := New(in, rgba4x4, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	out, err := c.Convert(&ports.Frame{
		Kind:   ports.KindVideo,
		Format: in,
		Planes: [][]byte{filled(16, 200), filled(8, 128)},
	})
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	assertGray(t, out.Planes[0], 200)
}

func TestConverter_RGBAPassthrough(t *testing.T) {
	c, err := New(rgba4x4, rgba4x4, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	pix := make([]byte, 4*4*4)
	for i := range pix {
		pix[i] = byte(i)
	}
	for i := 3; i < len(pix); i += 4 {
		pix[i] = 0xFF
	}

	out, err := c.Convert(&ports.Frame{Kind: ports.KindVideo, Format: rgba4x4, Planes: [][]byte{pix}})
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if !bytes.Equal(out.Planes[0], pix) {
		t.Error("same-size RGBA conversion should copy pixels unchanged")
	}
}

func TestConverter_Reconfigure(t *testing.T) {
	c, err := New(ports.Format{PixelFormat: ports.PixelFormatYUV420P, Width: 2, Height: 2}, rgba4x4, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	next := ports.Format{PixelFormat: ports.PixelFormatNV12, Width: 4, Height: 4}
	frame := &ports.Frame{Kind: ports.KindVideo, Format: next, Planes: [][]byte{filled(16, 16), filled(8, 128)}}
	if _, err := c.Convert(frame); !errors.Is(err, ErrFormatMismatch) {
		t.Errorf("Convert() before Reconfigure error = %v, want ErrFormatMismatch", err)
	}
	if err := c.Reconfigure(next); err != nil {
		t.Fatalf("Reconfigure() error = %v", err)
	}
	if c.InputFormat() != next {
		t.Errorf("InputFormat() = %+v, want %+v", c.InputFormat(), next)
	}
	if _, err := c.Convert(frame); err != nil {
		t.Errorf("Convert() after Reconfigure error = %v", err)
	}
}

func TestConverter_Errors(t *testing.T) {
	if _, err := New(ports.Format{PixelFormat: "p010", Width: 2, Height: 2}, rgba4x4, nil); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("New(p010) error = %v, want ErrUnsupportedFormat", err)
	}
	if _, err := New(rgba4x4, ports.Format{PixelFormat: ports.PixelFormatYUV420P, Width: 4, Height: 4}, nil); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("New() with yuv output error = %v, want ErrUnsupportedFormat", err)
	}

	in := ports.Format{PixelFormat: ports.PixelFormatYUV420P, Width: 2, Height: 2}
	c, _ := New(in, rgba4x4, nil)
	if _, err := c.Convert(&ports.Frame{Format: in, Planes: [][]byte{filled(4, 0)}}); !errors.Is(err, ErrShortPlane) {
		t.Errorf("Convert() with missing planes error = %v, want ErrShortPlane", err)
	}
}
