package camera

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/jackzampolin/textscan/internal/detect"
)

// Window titles used by the scan command.
const (
	TitleManual = "Webcam Text Detection (Press Space to Capture, Q to Quit)"
	TitleAuto   = "Webcam Text Detection"
)

const (
	keySpace = 32
	keyEsc   = 27
)

// Window is an OpenCV highgui window. It serves as both the loop's
// Display and its Controls, since key events are only pumped by WaitKey.
type Window struct {
	win  *gocv.Window
	once sync.Once
}

var (
	_ detect.Display  = (*Window)(nil)
	_ detect.Controls = (*Window)(nil)
)

// NewWindow opens a window with the given title.
func NewWindow(title string) *Window {
	return &Window{win: gocv.NewWindow(title)}
}

// Show displays frame. Non-Mat frames are round-tripped through PNG.
func (w *Window) Show(frame detect.Frame) error {
	if f, ok := frame.(*MatFrame); ok {
		w.win.IMShow(f.mat)
		return nil
	}

	data, err := frame.Encode(".png")
	if err != nil {
		return fmt.Errorf("encode for display: %w", err)
	}
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return fmt.Errorf("decode for display: %w", err)
	}
	defer mat.Close()
	w.win.IMShow(mat)
	return nil
}

// Poll waits one millisecond for a key press.
func (w *Window) Poll() detect.Signal {
	return keySignal(w.win.WaitKey(1))
}

// Close destroys the window. Later calls are no-ops.
func (w *Window) Close() error {
	var err error
	w.once.Do(func() {
		err = w.win.Close()
	})
	return err
}

func keySignal(key int) detect.Signal {
	switch key {
	case keySpace:
		return detect.SignalCapture
	case 'q', 'Q', keyEsc:
		return detect.SignalQuit
	default:
		return detect.SignalNone
	}
}
