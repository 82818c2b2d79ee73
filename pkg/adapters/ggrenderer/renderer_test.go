package ggrenderer

import (
	"image"
	"image/color"
	"testing"
)

func solid(w, h int, c color.RGBA) []byte {
	pix := make([]byte, w*h*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = c.R, c.G, c.B, c.A
	}
	return pix
}

func TestRenderer_AnnotateDrawsProgressBar(t *testing.T) {
	r := New()
	red := color.RGBA{R: 255, A: 255}

	img, err := r.Annotate(solid(100, 50, red), 100, 50, "", 0.5)
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 50 {
		t.Fatalf("expected 100x50, got %dx%d", b.Dx(), b.Dy())
	}

	// Above the bar the frame is untouched.
	if got := color.RGBAModel.Convert(img.At(50, 10)).(color.RGBA); got != red {
		t.Errorf("frame pixel = %v, want %v", got, red)
	}
	// The played half of the bar is filled with the progress colour.
	progress := DefaultTheme().Progress.(color.RGBA)
	if got := color.RGBAModel.Convert(img.At(10, 48)).(color.RGBA); got != progress {
		t.Errorf("played bar pixel = %v, want %v", got, progress)
	}
	// The rest is darkened frame.
	if got := color.RGBAModel.Convert(img.At(90, 48)).(color.RGBA); got == red || got == progress {
		t.Errorf("unplayed bar pixel = %v, want darkened frame", got)
	}
}

func TestRenderer_CustomTheme(t *testing.T) {
	green := color.RGBA{G: 255, A: 255}
	r := NewWithTheme(Theme{Progress: green})

	img, err := r.Annotate(solid(40, 20, color.RGBA{A: 255}), 40, 20, "", 1)
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}
	if got := color.RGBAModel.Convert(img.At(20, 18)).(color.RGBA); got != green {
		t.Errorf("bar pixel = %v, want %v", got, green)
	}
	if r.theme.Background == nil || r.theme.Caption == nil {
		t.Error("unset colours should fall back to the defaults")
	}
}

func TestRenderer_AnnotateHidesBar(t *testing.T) {
	r := New()
	red := color.RGBA{R: 255, A: 255}

	img, err := r.Annotate(solid(20, 20, red), 20, 20, "", -1)
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}
	if got := color.RGBAModel.Convert(img.At(10, 19)).(color.RGBA); got != red {
		t.Errorf("bottom pixel = %v, want %v", got, red)
	}
}

func TestRenderer_AnnotateCaption(t *testing.T) {
	r := New()
	img, err := r.Annotate(solid(200, 40, color.RGBA{A: 255}), 200, 40, "00:01.000", 0)
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}

	lit := false
	for y := 2; y < 20 && !lit; y++ {
		for x := 2; x < 80; x++ {
			if c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA); c.R > 200 {
				lit = true
				break
			}
		}
	}
	if !lit {
		t.Error("expected caption text to be drawn in the top-left corner")
	}
}

func TestRenderer_AnnotateShortBuffer(t *testing.T) {
	if _, err := New().Annotate(make([]byte, 10), 4, 4, "", 0); err == nil {
		t.Error("expected error for short pixel buffer")
	}
}

func TestRenderer_EncodeDecode(t *testing.T) {
	r := New()
	img := image.NewRGBA(image.Rect(0, 0, 50, 50))
	for y := 0; y < 50; y++ {
		for x := 0; x < 50; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 0, B: 0, A: 255})
		}
	}

	for _, format := range []ImageFormat{FormatPNG, FormatJPEG} {
		data, err := r.EncodeImage(img, format, 80)
		if err != nil {
			t.Fatalf("EncodeImage(%s) failed: %v", format, err)
		}
		decoded, got, err := r.DecodeImage(data)
		if err != nil {
			t.Fatalf("DecodeImage(%s) failed: %v", format, err)
		}
		if got != format {
			t.Errorf("detected format %s, want %s", got, format)
		}
		if b := decoded.Bounds(); b.Dx() != 50 || b.Dy() != 50 {
			t.Errorf("expected 50x50, got %dx%d", b.Dx(), b.Dy())
		}
	}

	if _, _, err := r.DecodeImage([]byte("not an image")); err == nil {
		t.Error("expected error for invalid data")
	}
}

func TestRenderer_ResizeImageKeepsAspect(t *testing.T) {
	r := New()
	img := image.NewRGBA(image.Rect(0, 0, 400, 200))

	resized := r.ResizeImage(img, 100, 100)
	if b := resized.Bounds(); b.Dx() != 100 || b.Dy() != 50 {
		t.Errorf("expected 100x50, got %dx%d", b.Dx(), b.Dy())
	}
}
