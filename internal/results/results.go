// Package results writes extraction output to the working directory and
// serves it back for download.
package results

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Result file names.
const (
	CSVFile     = "processed_results.csv"
	PDFTextFile = "detected_text.txt"
	WebcamFile  = "webcam_detected_text.txt"
)

// ErrNotFound is returned when a requested result file does not exist or
// names something outside the store.
var ErrNotFound = errors.New("result not found")

// Row sources.
const (
	SourceText = "text"
	SourceOCR  = "ocr"
)

// Row is one line of tabular output.
type Row struct {
	Page    int    `json:"page"`
	Content string `json:"content"`
	Source  string `json:"source"`
}

// WriteCSV writes rows with a Page|Content header.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	cw.Comma = '|'
	if err := cw.Write([]string{"Page", "Content"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{strconv.Itoa(r.Page), r.Content}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteText writes lines joined by newlines, without a trailing newline.
func WriteText(w io.Writer, lines []string) error {
	_, err := io.WriteString(w, strings.Join(lines, "\n"))
	return err
}

// Report describes a saved PDF extraction.
type Report struct {
	Source    string    `json:"source"`
	Rows      []Row     `json:"rows"`
	Lines     []string  `json:"lines"`
	Pages     int       `json:"pages"`
	OCRPages  []int     `json:"ocr_pages,omitempty"`
	CSVFile   string    `json:"csv_file"`
	TextFile  string    `json:"text_file"`
	CreatedAt time.Time `json:"created_at"`
}

// TextLines returns the page-labelled extraction lines.
func (r Report) TextLines() []string { return r.Lines }

// Store manages result files in a single directory.
type Store struct {
	dir string
	now func() time.Time

	mu     sync.RWMutex
	latest *Report
}

// NewStore returns a store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string { return s.dir }

// SavePDF writes the CSV and text renderings of a PDF extraction and
// records it as the latest report.
func (s *Store) SavePDF(r Report) (*Report, error) {
	if err := s.writeFile(CSVFile, func(w io.Writer) error { return WriteCSV(w, r.Rows) }); err != nil {
		return nil, err
	}
	if err := s.writeFile(PDFTextFile, func(w io.Writer) error { return WriteText(w, r.Lines) }); err != nil {
		return nil, err
	}

	r.CSVFile = CSVFile
	r.TextFile = PDFTextFile
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}

	s.mu.Lock()
	s.latest = &r
	s.mu.Unlock()
	return &r, nil
}

// SaveText writes lines to a named text file and returns its path.
func (s *Store) SaveText(name string, lines []string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	if err := s.writeFile(name, func(w io.Writer) error { return WriteText(w, lines) }); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name), nil
}

// Latest returns the most recent PDF report, if any.
func (s *Store) Latest() (*Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil, false
	}
	cp := *s.latest
	return &cp, true
}

// Open opens one of the result files for reading. Other files in the
// store directory, such as uploads still being processed, are not served.
func (s *Store) Open(name string) (*os.File, error) {
	switch name {
	case CSVFile, PDFTextFile, WebcamFile:
	default:
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, err
	}
	if st, err := f.Stat(); err != nil || st.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return f, nil
}

// writeFile writes via a temp file and rename so readers never see a
// partial result.
func (s *Store) writeFile(name string, fill func(io.Writer) error) error {
	tmp, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if err := fill(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	return nil
}

func checkName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return nil
}
