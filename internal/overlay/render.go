package overlay

import (
	"fmt"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/jackzampolin/textscan/internal/detect"
)

var font *truetype.Font

func init() {
	var err error
	font, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// Default overlay styling: green boxes, blue labels.
var (
	BoxColor   = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	LabelColor = color.RGBA{R: 0, G: 0, B: 255, A: 255}
)

// Renderer draws detection boxes and labels onto ImageFrames.
type Renderer struct {
	BoxColor   color.Color
	LabelColor color.Color
	LineWidth  float64
	FontSize   float64
	// LabelOffset is how far above the box top the label baseline sits.
	LabelOffset float64
}

var _ detect.Renderer = (*Renderer)(nil)

// NewRenderer returns a renderer with the default styling.
func NewRenderer() *Renderer {
	return &Renderer{
		BoxColor:    BoxColor,
		LabelColor:  LabelColor,
		LineWidth:   2,
		FontSize:    14,
		LabelOffset: 10,
	}
}

// Render draws each detection's quad and text onto frame.
func (r *Renderer) Render(frame detect.Frame, set detect.Set) error {
	f, ok := frame.(*ImageFrame)
	if !ok {
		return fmt.Errorf("overlay: unsupported frame type %T", frame)
	}

	dc := gg.NewContextForRGBA(f.img)
	dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: r.FontSize}))

	for _, d := range set {
		DrawQuad(dc, d.Box, r.BoxColor, r.LineWidth)

		b := d.Box.Bounds()
		dc.SetColor(r.LabelColor)
		dc.DrawString(d.Text, float64(b.Min.X), float64(b.Min.Y)-r.LabelOffset)
	}
	return nil
}

// DrawQuad strokes the closed outline of q.
func DrawQuad(dc *gg.Context, q detect.Quad, c color.Color, width float64) {
	dc.SetColor(c)
	dc.SetLineWidth(width)
	dc.MoveTo(q[0].X, q[0].Y)
	for _, p := range q[1:] {
		dc.LineTo(p.X, p.Y)
	}
	dc.ClosePath()
	dc.Stroke()
}
