// Package imageconv converts decoded video frames to RGBA at a fixed output
// size using golang.org/x/image/draw.
package imageconv

import (
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/user/avplay/pkg/ports"
)

var (
	// ErrUnsupportedFormat is returned for pixel formats the converter cannot read.
	ErrUnsupportedFormat = errors.New("imageconv: unsupported pixel format")

	// ErrFormatMismatch is returned when a frame does not match the configured input.
	ErrFormatMismatch = errors.New("imageconv: frame does not match input format")

	// ErrShortPlane is returned when a plane is smaller than the format requires.
	ErrShortPlane = errors.New("imageconv: plane too short")
)

// Converter implements ports.Converter for video frames.
type Converter struct {
	in     ports.Format
	out    ports.Format
	scaler draw.Scaler
}

// New creates a converter from in to out. out must be RGBA with a positive size.
func New(in, out ports.Format, scaler draw.Scaler) (*Converter, error) {
	if out.PixelFormat != ports.PixelFormatRGBA || out.Width <= 0 || out.Height <= 0 {
		return nil, fmt.Errorf("%w: output %s %dx%d", ErrUnsupportedFormat, out.PixelFormat, out.Width, out.Height)
	}
	if scaler == nil {
		scaler = draw.ApproxBiLinear
	}
	c := &Converter{out: out, scaler: scaler}
	if err := c.Reconfigure(in); err != nil {
		return nil, err
	}
	return c, nil
}

// Reconfigure sets a new input format.
func (c *Converter) Reconfigure(in ports.Format) error {
	switch in.PixelFormat {
	case ports.PixelFormatYUV420P, ports.PixelFormatNV12, ports.PixelFormatRGBA:
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, in.PixelFormat)
	}
	if in.Width <= 0 || in.Height <= 0 {
		return fmt.Errorf("%w: input size %dx%d", ErrUnsupportedFormat, in.Width, in.Height)
	}
	c.in = in
	return nil
}

// InputFormat returns the configured input format.
func (c *Converter) InputFormat() ports.Format {
	return c.in
}

// Convert converts one frame to RGBA at the output size.
func (c *Converter) Convert(f *ports.Frame) (*ports.Frame, error) {
	if f.Format != c.in {
		return nil, ErrFormatMismatch
	}
	src, err := c.image(f)
	if err != nil {
		return nil, err
	}

	dst := image.NewRGBA(image.Rect(0, 0, c.out.Width, c.out.Height))
	if src.Bounds().Size() == dst.Bounds().Size() {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	} else {
		c.scaler.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	}

	return &ports.Frame{
		Kind:   ports.KindVideo,
		PTS:    f.PTS,
		Format: c.out,
		Planes: [][]byte{dst.Pix},
	}, nil
}

// image wraps the frame planes as an image.Image.
func (c *Converter) image(f *ports.Frame) (image.Image, error) {
	w, h := c.in.Width, c.in.Height
	cw, ch := (w+1)/2, (h+1)/2
	rect := image.Rect(0, 0, w, h)

	switch c.in.PixelFormat {
	case ports.PixelFormatRGBA:
		if err := checkPlanes(f.Planes, w*h*4); err != nil {
			return nil, err
		}
		return &image.RGBA{Pix: f.Planes[0], Stride: w * 4, Rect: rect}, nil

	case ports.PixelFormatYUV420P:
		if err := checkPlanes(f.Planes, w*h, cw*ch, cw*ch); err != nil {
			return nil, err
		}
		return &image.YCbCr{
			Y: f.Planes[0], Cb: f.Planes[1], Cr: f.Planes[2],
			YStride: w, CStride: cw,
			SubsampleRatio: image.YCbCrSubsampleRatio420,
			Rect:           rect,
		}, nil

	default: // NV12
		if err := checkPlanes(f.Planes, w*h, cw*ch*2); err != nil {
			return nil, err
		}
		cb := make([]byte, cw*ch)
		cr := make([]byte, cw*ch)
		uv := f.Planes[1]
		for i := range cb {
			cb[i] = uv[2*i]
			cr[i] = uv[2*i+1]
		}
		return &image.YCbCr{
			Y: f.Planes[0], Cb: cb, Cr: cr,
			YStride: w, CStride: cw,
			SubsampleRatio: image.YCbCrSubsampleRatio420,
			Rect:           rect,
		}, nil
	}
}

func checkPlanes(planes [][]byte, sizes ...int) error {
	if len(planes) < len(sizes) {
		return fmt.Errorf("%w: %d planes, want %d", ErrShortPlane, len(planes), len(sizes))
	}
	for i, size := range sizes {
		if len(planes[i]) < size {
			return fmt.Errorf("%w: plane %d has %d bytes, want %d", ErrShortPlane, i, len(planes[i]), size)
		}
	}
	return nil
}

// Factory implements ports.ConverterFactory for video.
type Factory struct {
	// Scaler resamples frames whose size differs from the output.
	// Defaults to draw.ApproxBiLinear.
	Scaler draw.Scaler
}

// NewConverter creates a converter with a fixed output format.
func (f Factory) NewConverter(in, out ports.Format) (ports.Converter, error) {
	return New(in, out, f.Scaler)
}

var (
	_ ports.Converter        = (*Converter)(nil)
	_ ports.ConverterFactory = Factory{}
)
