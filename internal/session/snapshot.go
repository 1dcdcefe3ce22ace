package session

import (
	"time"

	"github.com/jackzampolin/textscan/internal/detect"
)

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	ID           string            `json:"id"`
	State        detect.State      `json:"state"`
	Source       SourceKind        `json:"source"`
	Engine       string            `json:"engine"`
	Config       detect.Config     `json:"config"`
	StartedAt    time.Time         `json:"started_at"`
	EndedAt      *time.Time        `json:"ended_at,omitempty"`
	Frames       int64             `json:"frames"`
	Passes       int64             `json:"passes"`
	DetectErrors int64             `json:"detect_errors"`
	Detections   detect.Set        `json:"detections"`
	Log          []detect.LogEntry `json:"log"`
	Lines        []string          `json:"lines"`
	Error        string            `json:"error,omitempty"`
}

func (m *Manager) snapshot(e *entry) Snapshot {
	s := e.session
	snap := Snapshot{
		ID:           s.ID,
		State:        s.State(),
		Source:       e.opts.Source,
		Engine:       e.engine,
		Config:       s.Config,
		StartedAt:    s.StartedAt,
		Frames:       s.Frames(),
		Passes:       s.Passes(),
		DetectErrors: s.DetectErrors(),
		Detections:   s.Detections().Above(s.Config.Threshold),
		Log:          s.Log().Entries(),
		Lines:        s.Log().Lines(),
	}
	if t := s.EndedAt(); !t.IsZero() {
		snap.EndedAt = &t
	}
	if err := s.Err(); err != nil {
		snap.Error = err.Error()
	}
	return snap
}

// TextLines returns the captured log lines.
func (s Snapshot) TextLines() []string { return s.Lines }
