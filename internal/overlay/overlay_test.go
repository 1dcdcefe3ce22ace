package overlay

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"

	"github.com/jackzampolin/textscan/internal/detect"
)

func whiteFrame(w, h int) *ImageFrame {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	return NewImageFrame(img)
}

func TestRenderer_Render(t *testing.T) {
	frame := whiteFrame(120, 80)
	set := detect.Set{{
		Box:        detect.QuadFromRect(image.Rect(10, 30, 90, 60)),
		Text:       "HI",
		Confidence: 0.9,
	}}

	if err := NewRenderer().Render(frame, set); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	edge := frame.Image().RGBAAt(50, 30)
	if edge.G < 200 || edge.R > 100 || edge.B > 100 {
		t.Errorf("box edge pixel = %v, want green", edge)
	}
	inside := frame.Image().RGBAAt(50, 45)
	if inside != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("box interior pixel = %v, want untouched white", inside)
	}

	var blue bool
	for y := 0; y < 30; y++ {
		for x := 10; x < 40; x++ {
			c := frame.Image().RGBAAt(x, y)
			if c.B > 150 && c.R < 150 && c.G < 150 {
				blue = true
			}
		}
	}
	if !blue {
		t.Error("expected a blue label above the box")
	}
}

func TestRenderer_UnsupportedFrame(t *testing.T) {
	var other detect.Frame = struct{ *ImageFrame }{whiteFrame(2, 2)}
	if err := NewRenderer().Render(other, nil); err == nil {
		t.Error("expected error for foreign frame type")
	}
}

func TestImageFrame(t *testing.T) {
	frame := whiteFrame(8, 6)

	t.Run("size", func(t *testing.T) {
		if w, h := frame.Size(); w != 8 || h != 6 {
			t.Errorf("Size() = %dx%d, want 8x6", w, h)
		}
	})

	t.Run("clone is independent", func(t *testing.T) {
		clone := frame.Clone().(*ImageFrame)
		clone.Image().SetRGBA(0, 0, color.RGBA{A: 255})
		if frame.Image().RGBAAt(0, 0) != (color.RGBA{255, 255, 255, 255}) {
			t.Error("mutating the clone changed the original")
		}
	})

	t.Run("encode png", func(t *testing.T) {
		data, err := frame.Encode(".png")
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if img.Bounds().Dx() != 8 {
			t.Errorf("decoded width = %d", img.Bounds().Dx())
		}
	})

	t.Run("encode jpeg", func(t *testing.T) {
		if _, err := frame.Encode(".JPG"); err != nil {
			t.Errorf("Encode(.JPG) error = %v", err)
		}
	})

	t.Run("encode unknown", func(t *testing.T) {
		if _, err := frame.Encode(".bmp"); err == nil {
			t.Error("expected error for .bmp")
		}
	})
}
