// Package ggrenderer draws playback overlays and encodes images using the gg
// library.
package ggrenderer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
)

// ImageFormat represents an encoded image format.
type ImageFormat int

const (
	FormatPNG ImageFormat = iota
	FormatJPEG
)

// String returns the file extension of the format.
func (f ImageFormat) String() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return "png"
}

// Theme holds the overlay colours.
type Theme struct {
	Background color.Color // caption box and unplayed bar
	Progress   color.Color // played part of the bar
	Caption    color.Color
}

// DefaultTheme returns the default overlay colours.
func DefaultTheme() Theme {
	return Theme{
		Background: color.RGBA{R: 0, G: 0, B: 0, A: 160},
		Progress:   color.RGBA{R: 66, G: 133, B: 244, A: 255},
		Caption:    color.White,
	}
}

// barHeight is the height of the progress bar in pixels.
const barHeight = 4

// Renderer draws overlays on RGBA frames and encodes images.
type Renderer struct {
	theme Theme
}

// New creates a new Renderer with the default theme.
func New() *Renderer {
	return NewWithTheme(DefaultTheme())
}

// NewWithTheme creates a new Renderer. Nil colours fall back to the defaults.
func NewWithTheme(theme Theme) *Renderer {
	d := DefaultTheme()
	if theme.Background == nil {
		theme.Background = d.Background
	}
	if theme.Progress == nil {
		theme.Progress = d.Progress
	}
	if theme.Caption == nil {
		theme.Caption = d.Caption
	}
	return &Renderer{theme: theme}
}

// Annotate draws a frame with a caption and a progress bar along the bottom
// edge. progress is clamped to [0, 1]; a negative value hides the bar.
func (r *Renderer) Annotate(pixels []byte, width, height int, caption string, progress float64) (image.Image, error) {
	if len(pixels) < width*height*4 {
		return nil, fmt.Errorf("ggrenderer: %d bytes for %dx%d frame", len(pixels), width, height)
	}
	frame := &image.RGBA{Pix: pixels, Stride: width * 4, Rect: image.Rect(0, 0, width, height)}

	dc := gg.NewContext(width, height)
	dc.DrawImage(frame, 0, 0)

	if progress >= 0 {
		if progress > 1 {
			progress = 1
		}
		y := float64(height - barHeight)
		dc.SetColor(r.theme.Background)
		dc.DrawRectangle(0, y, float64(width), barHeight)
		dc.Fill()
		dc.SetColor(r.theme.Progress)
		dc.DrawRectangle(0, y, float64(width)*progress, barHeight)
		dc.Fill()
	}

	if caption != "" {
		tw, th := dc.MeasureString(caption)
		dc.SetColor(r.theme.Background)
		dc.DrawRectangle(2, 2, tw+8, th+6)
		dc.Fill()
		dc.SetColor(r.theme.Caption)
		dc.DrawStringAnchored(caption, 6, 5+th/2, 0, 0.5)
	}

	return dc.Image(), nil
}

// DecodeImage decodes JPEG or PNG data and reports which format it was.
func (r *Renderer) DecodeImage(data []byte) (image.Image, ImageFormat, error) {
	img, name, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, FormatPNG, fmt.Errorf("decode image: %w", err)
	}
	if name == "jpeg" {
		return img, FormatJPEG, nil
	}
	return img, FormatPNG, nil
}

// EncodeImage encodes an image to the specified format.
func (r *Renderer) EncodeImage(img image.Image, format ImageFormat, quality int) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case FormatJPEG:
		opts := &jpeg.Options{Quality: quality}
		if err := jpeg.Encode(&buf, img, opts); err != nil {
			return nil, fmt.Errorf("encode JPEG: %w", err)
		}
	case FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode PNG: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format: %d", format)
	}

	return buf.Bytes(), nil
}

// ResizeImage resizes an image to fit within width x height, keeping the
// aspect ratio.
func (r *Renderer) ResizeImage(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return img
	}
	scale := min(float64(width)/float64(b.Dx()), float64(height)/float64(b.Dy()))
	w := max(int(float64(b.Dx())*scale), 1)
	h := max(int(float64(b.Dy())*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
