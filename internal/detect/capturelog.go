package detect

import (
	"sync"
	"time"
)

// TimestampLayout is the timestamp format used in captured log lines.
const TimestampLayout = "2006-01-02 15:04:05"

// LogEntry is one captured piece of text.
type LogEntry struct {
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

// String renders the entry as "2006-01-02 15:04:05 | text".
func (e LogEntry) String() string {
	return e.Time.Format(TimestampLayout) + " | " + e.Text
}

// CaptureLog is an append-only list of captured text. It is written by the
// loop and may be read concurrently.
type CaptureLog struct {
	mu      sync.RWMutex
	entries []LogEntry
}

// AutoCapturePrefix tags text logged by auto capture.
const AutoCapturePrefix = "Webcam: "

// Append adds one entry per detection, all stamped with at.
func (l *CaptureLog) Append(at time.Time, detections Set) int {
	return len(l.add(at, "", detections))
}

// add appends prefixed entries and returns the ones it added.
func (l *CaptureLog) add(at time.Time, prefix string, detections Set) []LogEntry {
	if len(detections) == 0 {
		return nil
	}
	added := make([]LogEntry, len(detections))
	for i, d := range detections {
		added[i] = LogEntry{Time: at, Text: prefix + d.Text}
	}
	l.mu.Lock()
	l.entries = append(l.entries, added...)
	l.mu.Unlock()
	return added
}

// Len returns the number of entries.
func (l *CaptureLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Entries returns a copy of the log.
func (l *CaptureLog) Entries() []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Lines returns each entry rendered with String.
func (l *CaptureLog) Lines() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	lines := make([]string, len(l.entries))
	for i, e := range l.entries {
		lines[i] = e.String()
	}
	return lines
}
