// Package pdftext extracts text from PDFs, reading the text layer where one
// exists and falling back to OCR of the rendered page where it does not.
package pdftext

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/textscan/internal/detect"
	"github.com/jackzampolin/textscan/internal/ocr"
	"github.com/jackzampolin/textscan/internal/results"
)

var (
	// ErrInvalidPDF is returned when the file cannot be parsed as a PDF.
	ErrInvalidPDF = errors.New("invalid PDF")

	// ErrNoData is returned when no page yields any text.
	ErrNoData = errors.New("no data found in PDF")
)

// NoDataMessage is shown to users when ErrNoData is returned.
const NoDataMessage = "No data found in the uploaded PDF."

// PageCounter validates a PDF and reports its page count.
type PageCounter interface {
	PageCount(path string) (int, error)
}

// TextExtractor returns the text layer of every page, indexed from zero.
// A page without a text layer yields an empty string.
type TextExtractor interface {
	PageTexts(ctx context.Context, path string) ([]string, error)
}

// Rasterizer renders one page (1-based) to an encoded image.
type Rasterizer interface {
	Rasterize(ctx context.Context, path string, page, dpi int) ([]byte, error)
}

// Config controls the pipeline.
type Config struct {
	// DPI is the fallback render resolution.
	DPI int `json:"dpi" yaml:"dpi" mapstructure:"dpi"`
	// Workers bounds concurrent fallback OCR.
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`
	// Threshold is the minimum OCR confidence, exclusive.
	Threshold float64 `json:"threshold" yaml:"threshold" mapstructure:"threshold"`
}

// DefaultConfig returns 150 dpi, 4 workers and the standard threshold.
func DefaultConfig() Config {
	return Config{
		DPI:       150,
		Workers:   4,
		Threshold: detect.DefaultThreshold,
	}
}

// Pipeline turns a PDF into rows of text.
type Pipeline struct {
	Counter    PageCounter
	Text       TextExtractor
	Rasterizer Rasterizer
	Engine     ocr.Engine
	Config     Config
	Logger     *slog.Logger
}

// New returns a pipeline backed by pdfcpu, the PDF text layer, pdftoppm
// and engine.
func New(engine ocr.Engine, cfg Config, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		Counter:    PDFCPUCounter{},
		Text:       PlainTextExtractor{Logger: logger},
		Rasterizer: Pdftoppm{},
		Engine:     engine,
		Config:     cfg,
		Logger:     logger,
	}
}

// Result is the outcome of processing one PDF.
type Result struct {
	Rows     []results.Row `json:"rows"`
	Pages    int           `json:"pages"`
	OCRPages []int         `json:"ocr_pages,omitempty"`
}

// Lines renders rows in the plain text report format.
func (r *Result) Lines() []string {
	lines := make([]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		if row.Source == results.SourceOCR {
			lines = append(lines, fmt.Sprintf("Page %d OCR: %s", row.Page, row.Content))
		} else {
			lines = append(lines, fmt.Sprintf("Page %d:\n%s", row.Page, row.Content))
		}
	}
	return lines
}

// Process extracts rows from the PDF at path. Pages are reported in order;
// OCR rows follow the reading order the engine returned.
func (p *Pipeline) Process(ctx context.Context, path string) (*Result, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := p.Config
	if cfg.DPI <= 0 {
		cfg.DPI = DefaultConfig().DPI
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	pages, err := p.Counter.PageCount(path)
	if err != nil {
		return nil, err
	}

	texts, err := p.Text.PageTexts(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read text layer: %w", err)
	}

	perPage := make([][]results.Row, pages)
	var fallback []int
	for i := 0; i < pages; i++ {
		var text string
		if i < len(texts) {
			text = strings.TrimSpace(texts[i])
		}
		if text == "" {
			fallback = append(fallback, i+1)
			continue
		}
		perPage[i] = []results.Row{{Page: i + 1, Content: text, Source: results.SourceText}}
	}

	if len(fallback) > 0 && p.Engine == nil {
		logger.Warn("no OCR engine configured, skipping image-only pages", "pages", fallback)
		fallback = nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, page := range fallback {
		g.Go(func() error {
			rows, err := p.ocrPage(gctx, path, page, cfg)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Warn("OCR fallback failed", "page", page, "error", err)
				return nil
			}
			perPage[page-1] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Pages: pages, OCRPages: fallback}
	for _, rows := range perPage {
		res.Rows = append(res.Rows, rows...)
	}
	if len(res.Rows) == 0 {
		return res, ErrNoData
	}
	logger.Info("processed PDF", "pages", pages, "ocr_pages", len(fallback), "rows", len(res.Rows))
	return res, nil
}

func (p *Pipeline) ocrPage(ctx context.Context, path string, page int, cfg Config) ([]results.Row, error) {
	img, err := p.Rasterizer.Rasterize(ctx, path, page, cfg.DPI)
	if err != nil {
		return nil, err
	}
	dets, err := p.Engine.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Engine.Name(), err)
	}

	var rows []results.Row
	for _, d := range detect.Set(dets).Above(cfg.Threshold) {
		text := strings.TrimSpace(d.Text)
		if text == "" {
			continue
		}
		rows = append(rows, results.Row{Page: page, Content: text, Source: results.SourceOCR})
	}
	return rows, nil
}
