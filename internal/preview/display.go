package preview

import (
	"fmt"
	"sync"
	"time"

	"github.com/jackzampolin/textscan/internal/detect"
)

// DefaultMaxFPS caps how often frames are pushed to browsers.
const DefaultMaxFPS = 10

// Display is a detect.Display that publishes JPEG frames to a hub topic.
// Frames are skipped while nobody is watching or when they arrive faster
// than MaxFPS.
type Display struct {
	hub    *Hub
	topic  string
	minGap time.Duration
	now    func() time.Time

	mu   sync.Mutex
	last time.Time
	sent int64
}

var _ detect.Display = (*Display)(nil)

// NewDisplay returns a display for topic. maxFPS <= 0 uses DefaultMaxFPS.
func NewDisplay(hub *Hub, topic string, maxFPS int) *Display {
	if maxFPS <= 0 {
		maxFPS = DefaultMaxFPS
	}
	return &Display{
		hub:    hub,
		topic:  topic,
		minGap: time.Second / time.Duration(maxFPS),
		now:    time.Now,
	}
}

func (d *Display) Show(frame detect.Frame) error {
	if d.hub.ClientCount() == 0 {
		return nil
	}

	d.mu.Lock()
	now := d.now()
	if !d.last.IsZero() && now.Sub(d.last) < d.minGap {
		d.mu.Unlock()
		return nil
	}
	d.last = now
	d.mu.Unlock()

	data, err := frame.Encode(".jpg")
	if err != nil {
		return fmt.Errorf("encode preview frame: %w", err)
	}
	d.hub.BroadcastBinary(d.topic, data)

	d.mu.Lock()
	d.sent++
	d.mu.Unlock()
	return nil
}

// Sent returns how many frames have been published.
func (d *Display) Sent() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sent
}

// Event is a JSON update about a session.
type Event struct {
	Kind    string    `json:"kind"`
	Session string    `json:"session"`
	At      time.Time `json:"at"`
	Texts   []string  `json:"texts,omitempty"`
	State   string    `json:"state,omitempty"`
}

// Event kinds.
const (
	EventCapture = "capture"
	EventState   = "state"
)

// Publish broadcasts ev on the session's topic.
func (h *Hub) Publish(ev Event) error {
	return h.BroadcastJSON(ev.Session, ev)
}
