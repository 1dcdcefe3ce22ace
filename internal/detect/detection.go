package detect

import (
	"image"
	"math"
)

// DefaultThreshold is the minimum confidence a detection needs before it is
// drawn or logged.
const DefaultThreshold = 0.6

// Point is a position in frame pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Quad is a text region boundary ordered top-left, top-right,
// bottom-right, bottom-left.
type Quad [4]Point

// QuadFromRect builds an axis-aligned Quad from a rectangle.
func QuadFromRect(r image.Rectangle) Quad {
	return Quad{
		{X: float64(r.Min.X), Y: float64(r.Min.Y)},
		{X: float64(r.Max.X), Y: float64(r.Min.Y)},
		{X: float64(r.Max.X), Y: float64(r.Max.Y)},
		{X: float64(r.Min.X), Y: float64(r.Max.Y)},
	}
}

// Bounds returns the smallest integer rectangle containing the quad.
func (q Quad) Bounds() image.Rectangle {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range q {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return image.Rect(
		int(math.Floor(minX)), int(math.Floor(minY)),
		int(math.Ceil(maxX)), int(math.Ceil(maxY)),
	)
}

// Points returns the corners as integer image points.
func (q Quad) Points() []image.Point {
	pts := make([]image.Point, len(q))
	for i, p := range q {
		pts[i] = image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
	}
	return pts
}

// Detection is one recognized text region.
type Detection struct {
	Box        Quad    `json:"box"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Set is the result of one successful detection pass. A Set is never
// modified after it is stored on a Session.
type Set []Detection

// Above returns the detections whose confidence is strictly greater than
// threshold, preserving order.
func (s Set) Above(threshold float64) Set {
	out := make(Set, 0, len(s))
	for _, d := range s {
		if d.Confidence > threshold {
			out = append(out, d)
		}
	}
	return out
}

// Texts returns the text of each detection in order.
func (s Set) Texts() []string {
	texts := make([]string, len(s))
	for i, d := range s {
		texts[i] = d.Text
	}
	return texts
}
