package ocr

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackzampolin/textscan/internal/detect"
)

const MockName = "mock"

// ErrMockFailure is returned by Mock when configured to fail.
var ErrMockFailure = errors.New("mock ocr failure")

// Mock is an Engine for tests and demos.
type Mock struct {
	// Results are returned in order, one per call. After the last one the
	// final result repeats. No results means an empty detection list.
	Results [][]detect.Detection

	// Configurable behavior
	Latency    time.Duration
	ShouldFail bool
	FailAfter  int // Fail after N requests (0 = never)

	mu    sync.Mutex
	calls atomic.Int64
	seen  [][]byte
}

var _ Engine = (*Mock)(nil)

// NewMock returns a mock that always answers with detections.
func NewMock(detections ...detect.Detection) *Mock {
	m := &Mock{}
	if len(detections) > 0 {
		m.Results = [][]detect.Detection{detections}
	}
	return m
}

func (m *Mock) Name() string { return MockName }

func (m *Mock) Detect(ctx context.Context, image []byte) ([]detect.Detection, error) {
	n := int(m.calls.Add(1))

	m.mu.Lock()
	m.seen = append(m.seen, image)
	m.mu.Unlock()

	if m.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.Latency):
		}
	}

	if m.ShouldFail || (m.FailAfter > 0 && n > m.FailAfter) {
		return nil, ErrMockFailure
	}
	if len(m.Results) == 0 {
		return nil, nil
	}
	idx := n - 1
	if idx >= len(m.Results) {
		idx = len(m.Results) - 1
	}
	out := make([]detect.Detection, len(m.Results[idx]))
	copy(out, m.Results[idx])
	return out, nil
}

// Calls returns how many times Detect has been called.
func (m *Mock) Calls() int {
	return int(m.calls.Load())
}

// Images returns the inputs passed to Detect, in call order.
func (m *Mock) Images() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.seen))
	copy(out, m.seen)
	return out
}
