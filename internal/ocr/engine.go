// Package ocr provides text recognition engines that return positioned,
// scored detections.
package ocr

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackzampolin/textscan/internal/detect"
)

// ErrEngineNotFound is returned when a named engine is not registered.
var ErrEngineNotFound = errors.New("ocr engine not found")

// Engine recognizes text in an encoded image (PNG or JPEG).
type Engine interface {
	// Name returns the engine identifier (e.g., "tesseract").
	Name() string

	// Detect returns one detection per recognized region, in reading order.
	Detect(ctx context.Context, image []byte) ([]detect.Detection, error)
}

// FrameDetector adapts an Engine to the detection loop by encoding each
// frame before recognition.
type FrameDetector struct {
	Engine Engine

	// Ext is the encoding handed to the engine. Defaults to ".png".
	Ext string
}

var _ detect.Detector = (*FrameDetector)(nil)

func (d *FrameDetector) Detect(ctx context.Context, frame detect.Frame) ([]detect.Detection, error) {
	ext := d.Ext
	if ext == "" {
		ext = ".png"
	}
	data, err := frame.Encode(ext)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return d.Engine.Detect(ctx, data)
}
