// Package overlay draws detection overlays onto in-memory images without
// native dependencies.
package overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/jackzampolin/textscan/internal/detect"
)

// JPEGQuality is used when encoding frames as JPEG.
const JPEGQuality = 80

// ImageFrame is a detect.Frame backed by an RGBA image.
type ImageFrame struct {
	img *image.RGBA
}

var _ detect.Frame = (*ImageFrame)(nil)

// NewImageFrame copies src into a new RGBA frame.
func NewImageFrame(src image.Image) *ImageFrame {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return &ImageFrame{img: dst}
}

// Image returns the underlying image.
func (f *ImageFrame) Image() *image.RGBA { return f.img }

func (f *ImageFrame) Size() (int, int) {
	b := f.img.Bounds()
	return b.Dx(), b.Dy()
}

func (f *ImageFrame) Clone() detect.Frame {
	cp := &image.RGBA{
		Pix:    make([]byte, len(f.img.Pix)),
		Stride: f.img.Stride,
		Rect:   f.img.Rect,
	}
	copy(cp.Pix, f.img.Pix)
	return &ImageFrame{img: cp}
}

func (f *ImageFrame) Encode(ext string) ([]byte, error) {
	var buf bytes.Buffer
	switch strings.ToLower(ext) {
	case ".png":
		if err := png.Encode(&buf, f.img); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	case ".jpg", ".jpeg":
		if err := jpeg.Encode(&buf, f.img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported frame encoding %q", ext)
	}
	return buf.Bytes(), nil
}

func (f *ImageFrame) Close() error { return nil }
