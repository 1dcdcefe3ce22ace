package camera

import (
	"errors"
	"image"
	"testing"

	"gocv.io/x/gocv"

	"github.com/jackzampolin/textscan/internal/detect"
)

func TestKeySignal(t *testing.T) {
	tests := []struct {
		key  int
		want detect.Signal
	}{
		{-1, detect.SignalNone},
		{' ', detect.SignalCapture},
		{'q', detect.SignalQuit},
		{'Q', detect.SignalQuit},
		{27, detect.SignalQuit},
		{'a', detect.SignalNone},
	}
	for _, tt := range tests {
		if got := keySignal(tt.key); got != tt.want {
			t.Errorf("keySignal(%d) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	if errs := DefaultConfig().Validate(); len(errs) != 0 {
		t.Errorf("DefaultConfig().Validate() = %v, want none", errs)
	}
	if errs := (Config{Device: -1}).Validate(); len(errs) != 2 {
		t.Errorf("Validate() = %v, want 2 errors", errs)
	}
}

func TestMatFrame(t *testing.T) {
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 48, 64, gocv.MatTypeCV8UC3)
	f := NewMatFrame(mat)
	defer f.Close()

	if w, h := f.Size(); w != 64 || h != 48 {
		t.Fatalf("Size() = %dx%d, want 64x48", w, h)
	}

	t.Run("render draws on a clone only", func(t *testing.T) {
		clone := f.Clone()
		defer clone.Close()

		set := detect.Set{{Box: detect.QuadFromRect(image.Rect(10, 20, 40, 30)), Text: "hi", Confidence: 0.9}}
		if err := NewMatRenderer().Render(clone, set); err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if !allZero(f.mat.ToBytes()) {
			t.Error("original frame was modified")
		}
		if allZero(clone.(*MatFrame).mat.ToBytes()) {
			t.Error("clone has no overlay")
		}
	})

	t.Run("encode png", func(t *testing.T) {
		data, err := f.Encode(".png")
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		if len(data) < 8 || string(data[1:4]) != "PNG" {
			t.Errorf("Encode() did not produce a PNG")
		}
	})

	t.Run("render rejects foreign frames", func(t *testing.T) {
		if err := NewMatRenderer().Render(nil, nil); err == nil {
			t.Error("Render(nil) expected error")
		}
	})
}

func TestOpen_Unavailable(t *testing.T) {
	w, err := Open(Config{Device: 99, Width: 640, Height: 480})
	if err == nil {
		w.Close()
		t.Skip("device 99 exists on this host")
	}
	if !errors.Is(err, detect.ErrDeviceUnavailable) {
		t.Errorf("Open() error = %v, want ErrDeviceUnavailable", err)
	}
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
