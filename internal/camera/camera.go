// Package camera captures, annotates and displays frames with OpenCV.
package camera

import (
	"fmt"
	"io"
	"sync"

	"gocv.io/x/gocv"

	"github.com/jackzampolin/textscan/internal/detect"
)

// Config holds capture device settings.
type Config struct {
	// Device is the OpenCV device index.
	Device int `json:"device" yaml:"device" mapstructure:"device"`
	// Width and Height request a capture resolution.
	Width  int `json:"width" yaml:"width" mapstructure:"width"`
	Height int `json:"height" yaml:"height" mapstructure:"height"`
}

// DefaultConfig returns device 0 at 640x480.
func DefaultConfig() Config {
	return Config{
		Device: 0,
		Width:  640,
		Height: 480,
	}
}

// Validate returns a list of validation errors.
func (c Config) Validate() []string {
	var errs []string
	if c.Device < 0 {
		errs = append(errs, "device must be >= 0")
	}
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, "width and height must be positive")
	}
	return errs
}

// Webcam is a detect.Source reading from an OpenCV capture device.
type Webcam struct {
	cfg Config
	vc  *gocv.VideoCapture

	mu     sync.Mutex
	closed bool
}

var _ detect.Source = (*Webcam)(nil)

// Open opens the capture device. Any failure is reported as
// detect.ErrDeviceUnavailable so callers can refuse to start the loop.
func Open(cfg Config) (*Webcam, error) {
	vc, err := gocv.VideoCaptureDevice(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("%w: device %d: %v", detect.ErrDeviceUnavailable, cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: device %d did not open", detect.ErrDeviceUnavailable, cfg.Device)
	}
	if cfg.Width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	}
	if cfg.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}
	return &Webcam{cfg: cfg, vc: vc}, nil
}

// Read grabs the next frame. A failed grab or empty frame ends the stream.
func (w *Webcam) Read() (detect.Frame, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, io.EOF
	}

	mat := gocv.NewMat()
	if ok := w.vc.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, io.EOF
	}
	return &MatFrame{mat: mat}, nil
}

// Close releases the device. It is safe to call more than once.
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.vc.Close()
}
