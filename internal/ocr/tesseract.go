package ocr

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/jackzampolin/textscan/internal/detect"
)

const TesseractName = "tesseract"

// Recognition levels for Tesseract bounding boxes.
const (
	LevelWord = "word"
	LevelLine = "line"
)

// TesseractConfig configures the Tesseract engine.
type TesseractConfig struct {
	// Languages passed to Tesseract (default: eng).
	Languages []string
	// Level is "word" or "line" (default: line).
	Level string
	// PageSegMode overrides Tesseract's page segmentation when non-zero.
	PageSegMode int
}

// Tesseract recognizes text with libtesseract via gosseract.
type Tesseract struct {
	cfg           TesseractConfig
	clientFactory func() *gosseract.Client

	// mu serialises recognition so one client is live at a time.
	mu sync.Mutex
}

var _ Engine = (*Tesseract)(nil)

// NewTesseract constructs a Tesseract-backed engine.
func NewTesseract(cfg TesseractConfig) *Tesseract {
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"eng"}
	}
	if cfg.Level == "" {
		cfg.Level = LevelLine
	}
	return &Tesseract{cfg: cfg, clientFactory: gosseract.NewClient}
}

func (e *Tesseract) Name() string { return TesseractName }

// Detect runs recognition and converts each bounding box to a detection
// with confidence scaled to [0,1].
func (e *Tesseract) Detect(ctx context.Context, image []byte) ([]detect.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetLanguage(e.cfg.Languages...); err != nil {
		return nil, fmt.Errorf("set languages: %w", err)
	}
	if e.cfg.PageSegMode > 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(e.cfg.PageSegMode)); err != nil {
			return nil, fmt.Errorf("set page segmentation mode: %w", err)
		}
	}
	if err := c.SetImageFromBytes(image); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	level := gosseract.RIL_TEXTLINE
	if e.cfg.Level == LevelWord {
		level = gosseract.RIL_WORD
	}
	boxes, err := c.GetBoundingBoxes(level)
	if err != nil {
		return nil, fmt.Errorf("recognize text: %w", err)
	}

	detections := make([]detect.Detection, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		detections = append(detections, detect.Detection{
			Box:        detect.QuadFromRect(b.Box),
			Text:       text,
			Confidence: b.Confidence / 100.0,
		})
	}
	return detections, nil
}
