package session

import (
	"fmt"
	"time"

	"github.com/jackzampolin/textscan/internal/detect"
	"github.com/jackzampolin/textscan/internal/overlay"
	"github.com/jackzampolin/textscan/internal/replay"
)

// SourceKind names a frame source.
type SourceKind string

const (
	SourceCamera SourceKind = "camera"
	SourceReplay SourceKind = "replay"
)

// Options describe one session to start.
type Options struct {
	Source SourceKind `json:"source"`

	// Device overrides the configured camera index.
	Device *int `json:"device,omitempty"`

	// ReplayDir, ReplayLoop and FrameDelay configure replay sources.
	ReplayDir  string        `json:"replay_dir,omitempty"`
	ReplayLoop bool          `json:"replay_loop,omitempty"`
	FrameDelay time.Duration `json:"frame_delay,omitempty"`

	// Engine selects an OCR engine by name. Empty uses the default.
	Engine string `json:"engine,omitempty"`

	// Detection overrides the manager's default loop settings.
	Detection *detect.Config `json:"detection,omitempty"`
}

// Opener opens the source for a session and returns a renderer able to
// draw on the frames it produces.
type Opener func(opts Options) (detect.Source, detect.Renderer, error)

// Openers maps source kinds to their openers.
type Openers map[SourceKind]Opener

// OpenReplay opens opts.ReplayDir as an image-sequence source.
func OpenReplay(opts Options) (detect.Source, detect.Renderer, error) {
	if opts.ReplayDir == "" {
		return nil, nil, fmt.Errorf("%w: replay_dir is required", detect.ErrDeviceUnavailable)
	}
	src, err := replay.Open(replay.Config{
		Dir:        opts.ReplayDir,
		Loop:       opts.ReplayLoop,
		FrameDelay: opts.FrameDelay,
	})
	if err != nil {
		return nil, nil, err
	}
	return src, overlay.NewRenderer(), nil
}
