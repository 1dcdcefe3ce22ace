package camera

import (
	"fmt"
	"strings"

	"gocv.io/x/gocv"

	"github.com/jackzampolin/textscan/internal/detect"
)

// MatFrame is a detect.Frame backed by an OpenCV Mat.
type MatFrame struct {
	mat gocv.Mat
}

var _ detect.Frame = (*MatFrame)(nil)

// NewMatFrame takes ownership of mat.
func NewMatFrame(mat gocv.Mat) *MatFrame {
	return &MatFrame{mat: mat}
}

// Mat returns the underlying Mat. It stays owned by the frame.
func (f *MatFrame) Mat() *gocv.Mat { return &f.mat }

func (f *MatFrame) Size() (int, int) {
	return f.mat.Cols(), f.mat.Rows()
}

func (f *MatFrame) Clone() detect.Frame {
	return &MatFrame{mat: f.mat.Clone()}
}

// Encode encodes the Mat with imencode. JPEG output uses quality 80.
func (f *MatFrame) Encode(ext string) ([]byte, error) {
	var (
		buf *gocv.NativeByteBuffer
		err error
	)
	switch strings.ToLower(ext) {
	case ".png":
		buf, err = gocv.IMEncode(gocv.PNGFileExt, f.mat)
	case ".jpg", ".jpeg":
		buf, err = gocv.IMEncodeWithParams(gocv.JPEGFileExt, f.mat, []int{gocv.IMWriteJpegQuality, 80})
	default:
		return nil, fmt.Errorf("unsupported frame encoding %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("imencode %s: %w", ext, err)
	}
	defer buf.Close()

	data := buf.GetBytes()
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (f *MatFrame) Close() error {
	return f.mat.Close()
}
