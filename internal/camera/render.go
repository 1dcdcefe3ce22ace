package camera

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/jackzampolin/textscan/internal/detect"
)

var (
	boxColor   = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	labelColor = color.RGBA{R: 0, G: 0, B: 255, A: 0}
)

// MatRenderer draws detections onto MatFrames: the quad outline and the
// text 10px above its top-left corner.
type MatRenderer struct {
	Thickness int
	FontScale float64
}

var _ detect.Renderer = (*MatRenderer)(nil)

// NewMatRenderer returns a renderer with thickness 2 and font scale 0.6.
func NewMatRenderer() *MatRenderer {
	return &MatRenderer{Thickness: 2, FontScale: 0.6}
}

func (r *MatRenderer) Render(frame detect.Frame, set detect.Set) error {
	f, ok := frame.(*MatFrame)
	if !ok {
		return fmt.Errorf("camera: unsupported frame type %T", frame)
	}
	img := f.Mat()

	for _, d := range set {
		pv := gocv.NewPointsVectorFromPoints([][]image.Point{d.Box.Points()})
		gocv.Polylines(img, pv, true, boxColor, r.Thickness)
		pv.Close()

		b := d.Box.Bounds()
		org := image.Pt(b.Min.X, b.Min.Y-10)
		gocv.PutText(img, d.Text, org, gocv.FontHersheySimplex, r.FontScale, labelColor, r.Thickness)
	}
	return nil
}
