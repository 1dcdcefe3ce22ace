// Package replay plays a directory of still images back as a frame source.
package replay

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackzampolin/textscan/internal/detect"
	"github.com/jackzampolin/textscan/internal/overlay"
)

// Config configures a replay source.
type Config struct {
	// Dir holds the .png/.jpg/.jpeg frames, played in name order.
	Dir string
	// Loop restarts from the first frame instead of ending.
	Loop bool
	// FrameDelay paces reads to simulate a live device. Zero disables pacing.
	FrameDelay time.Duration
}

// Source reads image files as frames.
type Source struct {
	cfg   Config
	files []string

	mu     sync.Mutex
	next   int
	closed bool
}

var _ detect.Source = (*Source)(nil)

// Open lists the frames in cfg.Dir. An empty or unreadable directory
// reports detect.ErrDeviceUnavailable.
func Open(cfg Config) (*Source, error) {
	entries, err := os.ReadDir(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w: replay dir %s: %v", detect.ErrDeviceUnavailable, cfg.Dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			files = append(files, filepath.Join(cfg.Dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no images in %s", detect.ErrDeviceUnavailable, cfg.Dir)
	}
	sort.Strings(files)

	return &Source{cfg: cfg, files: files}, nil
}

// Len returns the number of frames in one pass.
func (s *Source) Len() int { return len(s.files) }

func (s *Source) Read() (detect.Frame, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, io.EOF
	}
	if s.next >= len(s.files) {
		if !s.cfg.Loop {
			s.mu.Unlock()
			return nil, io.EOF
		}
		s.next = 0
	}
	path := s.files[s.next]
	s.next++
	s.mu.Unlock()

	if s.cfg.FrameDelay > 0 {
		time.Sleep(s.cfg.FrameDelay)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode frame %s: %w", filepath.Base(path), err)
	}
	return overlay.NewImageFrame(img), nil
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
