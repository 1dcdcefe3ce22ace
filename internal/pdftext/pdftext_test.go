package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/jackzampolin/textscan/internal/detect"
	"github.com/jackzampolin/textscan/internal/ocr"
	"github.com/jackzampolin/textscan/internal/results"
)

type fakeCounter struct {
	n   int
	err error
}

func (c fakeCounter) PageCount(string) (int, error) { return c.n, c.err }

type fakeText []string

func (t fakeText) PageTexts(context.Context, string) ([]string, error) { return t, nil }

type fakeRaster struct {
	mu    sync.Mutex
	pages []int
	dpi   int
	fail  map[int]bool
}

func (r *fakeRaster) Rasterize(_ context.Context, _ string, page, dpi int) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages = append(r.pages, page)
	r.dpi = dpi
	if r.fail[page] {
		return nil, errors.New("render failed")
	}
	return []byte{byte(page)}, nil
}

func box() detect.Quad { return detect.QuadFromRect(image.Rect(0, 0, 10, 10)) }

func TestPipeline_TextAndFallback(t *testing.T) {
	raster := &fakeRaster{}
	engine := ocr.NewMock(
		detect.Detection{Box: box(), Text: "WORLD", Confidence: 0.95},
		detect.Detection{Box: box(), Text: "noise", Confidence: 0.3},
	)
	p := &Pipeline{
		Counter:    fakeCounter{n: 2},
		Text:       fakeText{"  Hello \n", "   "},
		Rasterizer: raster,
		Engine:     engine,
		Config:     DefaultConfig(),
	}

	res, err := p.Process(context.Background(), "doc.pdf")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	wantRows := []results.Row{
		{Page: 1, Content: "Hello", Source: results.SourceText},
		{Page: 2, Content: "WORLD", Source: results.SourceOCR},
	}
	if !reflect.DeepEqual(res.Rows, wantRows) {
		t.Errorf("Rows = %+v, want %+v", res.Rows, wantRows)
	}
	if !reflect.DeepEqual(raster.pages, []int{2}) {
		t.Errorf("rasterized pages = %v, want [2]", raster.pages)
	}
	if raster.dpi != 150 {
		t.Errorf("dpi = %d, want 150", raster.dpi)
	}
	if engine.Calls() != 1 {
		t.Errorf("engine calls = %d, want 1", engine.Calls())
	}

	wantLines := []string{"Page 1:\nHello", "Page 2 OCR: WORLD"}
	if got := res.Lines(); !reflect.DeepEqual(got, wantLines) {
		t.Errorf("Lines() = %q, want %q", got, wantLines)
	}
	if res.Pages != 2 || !reflect.DeepEqual(res.OCRPages, []int{2}) {
		t.Errorf("Pages = %d, OCRPages = %v", res.Pages, res.OCRPages)
	}
}

func TestPipeline_PageOrder(t *testing.T) {
	engine := &ocr.Mock{Results: [][]detect.Detection{
		{{Box: box(), Text: "A", Confidence: 0.9}},
	}}
	p := &Pipeline{
		Counter:    fakeCounter{n: 5},
		Text:       fakeText{"", "", "text three", "", ""},
		Rasterizer: &fakeRaster{fail: map[int]bool{4: true}},
		Engine:     engine,
		Config:     Config{Workers: 3, Threshold: 0.6},
	}

	res, err := p.Process(context.Background(), "doc.pdf")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	var pages []int
	for _, r := range res.Rows {
		pages = append(pages, r.Page)
	}
	if !reflect.DeepEqual(pages, []int{1, 2, 3, 5}) {
		t.Errorf("row pages = %v, want [1 2 3 5] (page 4 failed)", pages)
	}
}

func TestPipeline_Errors(t *testing.T) {
	t.Run("no data", func(t *testing.T) {
		p := &Pipeline{
			Counter:    fakeCounter{n: 1},
			Text:       fakeText{""},
			Rasterizer: &fakeRaster{},
			Engine:     ocr.NewMock(),
			Config:     DefaultConfig(),
		}
		if _, err := p.Process(context.Background(), "doc.pdf"); !errors.Is(err, ErrNoData) {
			t.Errorf("Process() error = %v, want ErrNoData", err)
		}
	})

	t.Run("invalid pdf", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.pdf")
		os.WriteFile(path, []byte("not a pdf"), 0o644)

		p := New(ocr.NewMock(), DefaultConfig(), nil)
		if _, err := p.Process(context.Background(), path); !errors.Is(err, ErrInvalidPDF) {
			t.Errorf("Process() error = %v, want ErrInvalidPDF", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		p := &Pipeline{
			Counter:    fakeCounter{n: 1},
			Text:       fakeText{""},
			Rasterizer: &fakeRaster{},
			Engine:     &ocr.Mock{Latency: 1e9},
			Config:     DefaultConfig(),
		}
		if _, err := p.Process(ctx, "doc.pdf"); !errors.Is(err, context.Canceled) {
			t.Errorf("Process() error = %v, want context.Canceled", err)
		}
	})
}

func TestPdftoppm_Missing(t *testing.T) {
	if _, err := exec.LookPath("pdftoppm"); err == nil {
		t.Skip("pdftoppm installed; missing-binary path not reachable")
	}
	_, err := Pdftoppm{}.Rasterize(context.Background(), "x.pdf", 1, 150)
	if err == nil {
		t.Error("Rasterize() without pdftoppm should fail")
	}
}

// writePDF writes a minimal PDF with one page per entry. Empty entries
// become pages with no text layer.
func writePDF(t *testing.T, pages ...string) string {
	t.Helper()

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}
	for i, text := range pages {
		content := ""
		if text != "" {
			content = fmt.Sprintf("BT /F1 24 Tf 72 720 Td (%s) Tj ET", text)
		}
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, obj := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)

	path := filepath.Join(t.TempDir(), "doc.pdf")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBackends_TextAndBlankPage(t *testing.T) {
	path := writePDF(t, "Hello", "")

	n, err := PDFCPUCounter{}.PageCount(path)
	if err != nil {
		t.Fatalf("PageCount() error = %v", err)
	}
	if n != 2 {
		t.Errorf("PageCount() = %d, want 2", n)
	}

	texts, err := PlainTextExtractor{}.PageTexts(context.Background(), path)
	if err != nil {
		t.Fatalf("PageTexts() error = %v", err)
	}
	if len(texts) != 2 || strings.TrimSpace(texts[0]) != "Hello" || strings.TrimSpace(texts[1]) != "" {
		t.Errorf("PageTexts() = %q, want [Hello, blank]", texts)
	}

	t.Run("pipeline falls back only for the blank page", func(t *testing.T) {
		raster := &fakeRaster{}
		engine := ocr.NewMock(detect.Detection{Box: box(), Text: "WORLD", Confidence: 0.9})
		p := New(engine, DefaultConfig(), nil)
		p.Rasterizer = raster

		res, err := p.Process(context.Background(), path)
		if err != nil {
			t.Fatalf("Process() error = %v", err)
		}
		want := []results.Row{
			{Page: 1, Content: "Hello", Source: results.SourceText},
			{Page: 2, Content: "WORLD", Source: results.SourceOCR},
		}
		if !reflect.DeepEqual(res.Rows, want) {
			t.Errorf("Rows = %+v, want %+v", res.Rows, want)
		}
		if !reflect.DeepEqual(raster.pages, []int{2}) {
			t.Errorf("rasterized pages = %v, want [2]", raster.pages)
		}
	})
}
