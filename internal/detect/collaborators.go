package detect

import (
	"context"
	"time"
)

// Frame is one captured image. Implementations may own native memory,
// which Close releases.
type Frame interface {
	// Size returns the frame dimensions in pixels.
	Size() (width, height int)

	// Clone returns an independent copy that must be closed separately.
	Clone() Frame

	// Encode returns the frame encoded in the format named by ext
	// (".png" or ".jpg").
	Encode(ext string) ([]byte, error)

	Close() error
}

// Source produces frames. Read returns io.EOF when the stream has ended.
type Source interface {
	Read() (Frame, error)
	Close() error
}

// Detector runs OCR on a frame.
type Detector interface {
	Detect(ctx context.Context, frame Frame) ([]Detection, error)
}

// Renderer draws detections onto a frame in place.
type Renderer interface {
	Render(frame Frame, detections Set) error
}

// Display presents annotated frames to the user.
type Display interface {
	Show(frame Frame) error
}

// Signal is a user command observed once per loop iteration.
type Signal int

const (
	SignalNone Signal = iota
	SignalCapture
	SignalQuit
)

func (s Signal) String() string {
	switch s {
	case SignalCapture:
		return "capture"
	case SignalQuit:
		return "quit"
	default:
		return "none"
	}
}

// Controls is polled once per iteration for a user signal. Poll must not
// block for longer than a frame interval.
type Controls interface {
	Poll() Signal
}

// Clock returns the current time. Tests substitute a fake.
type Clock func() time.Time

// ControlsFunc adapts a function to the Controls interface.
type ControlsFunc func() Signal

func (f ControlsFunc) Poll() Signal { return f() }

// NopDisplay discards every frame.
type NopDisplay struct{}

func (NopDisplay) Show(Frame) error { return nil }

// MultiDisplay shows each frame on every display in order. The first
// error is returned after all displays have been tried.
type MultiDisplay []Display

func (m MultiDisplay) Show(frame Frame) error {
	var first error
	for _, d := range m {
		if err := d.Show(frame); err != nil && first == nil {
			first = err
		}
	}
	return first
}
