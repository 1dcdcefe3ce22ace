package ocr

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os/exec"
	"strings"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

func ensureTesseractAvailable(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tesseract"); err != nil {
		t.Skip("tesseract not installed in PATH")
	}
}

func renderText(t *testing.T, text string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 240, 80))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  img,
		Src:  image.Black,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(10, 45),
	}
	d.DrawString(text)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestTesseractDetect(t *testing.T) {
	ensureTesseractAvailable(t)

	engine := NewTesseract(TesseractConfig{Languages: []string{"eng"}, Level: LevelLine})
	dets, err := engine.Detect(context.Background(), renderText(t, "Hello Camera"))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(dets) == 0 {
		t.Fatal("expected at least one detection")
	}

	var joined []string
	for _, d := range dets {
		if d.Confidence < 0 || d.Confidence > 1 {
			t.Errorf("confidence %g outside [0,1]", d.Confidence)
		}
		if d.Box.Bounds().Empty() {
			t.Errorf("detection %q has an empty box", d.Text)
		}
		joined = append(joined, strings.ToLower(d.Text))
	}
	if got := strings.Join(joined, " "); !strings.Contains(got, "hello") {
		t.Errorf("unexpected OCR output: %q", got)
	}
}

func TestTesseractDefaults(t *testing.T) {
	e := NewTesseract(TesseractConfig{})
	if e.Name() != TesseractName {
		t.Errorf("Name() = %s", e.Name())
	}
	if len(e.cfg.Languages) != 1 || e.cfg.Languages[0] != "eng" || e.cfg.Level != LevelLine {
		t.Errorf("defaults = %+v", e.cfg)
	}
}
