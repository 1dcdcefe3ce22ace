package detect

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"
)

type fakeFrame struct {
	id     int
	closed *atomic.Int64
}

func (f *fakeFrame) Size() (int, int) { return 640, 480 }

func (f *fakeFrame) Clone() Frame { return &fakeFrame{id: f.id, closed: f.closed} }

func (f *fakeFrame) Encode(string) ([]byte, error) { return []byte{byte(f.id)}, nil }

func (f *fakeFrame) Close() error {
	f.closed.Add(1)
	return nil
}

// fakeSource yields n frames, then io.EOF.
type fakeSource struct {
	n      int
	read   int
	err    error
	opened atomic.Int64
	closes atomic.Int64
	closed atomic.Bool
}

func (s *fakeSource) Read() (Frame, error) {
	if s.read >= s.n {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	s.read++
	s.opened.Add(1)
	return &fakeFrame{id: s.read, closed: &s.closes}, nil
}

func (s *fakeSource) Close() error {
	s.closed.Store(true)
	return nil
}

// scriptedDetector returns results[i] on call i. Calls past the end return nil.
type scriptedDetector struct {
	results []detectResult
	calls   int
	frames  []int
}

type detectResult struct {
	set   []Detection
	err   error
	panic bool
}

func (d *scriptedDetector) Detect(_ context.Context, f Frame) ([]Detection, error) {
	d.calls++
	d.frames = append(d.frames, f.(*fakeFrame).id)
	if d.calls > len(d.results) {
		return nil, nil
	}
	r := d.results[d.calls-1]
	if r.panic {
		panic("ocr backend crashed")
	}
	return r.set, r.err
}

type recordingRenderer struct {
	sets []Set
	err  error
}

func (r *recordingRenderer) Render(_ Frame, set Set) error {
	cp := make(Set, len(set))
	copy(cp, set)
	r.sets = append(r.sets, cp)
	return r.err
}

type recordingDisplay struct {
	shown  int
	closed bool
	panics bool
}

func (d *recordingDisplay) Show(Frame) error {
	if d.panics {
		panic("window gone")
	}
	d.shown++
	return nil
}

func (d *recordingDisplay) Close() error {
	d.closed = true
	return nil
}

// scriptedControls returns the signal mapped to the current poll count.
type scriptedControls struct {
	polls   int
	signals map[int]Signal
	closed  bool
}

func (c *scriptedControls) Poll() Signal {
	c.polls++
	return c.signals[c.polls]
}

func (c *scriptedControls) Close() error {
	c.closed = true
	return nil
}

type fakeClock struct {
	now  time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

var errBackend = errors.New("backend unavailable")

func det(text string, conf float64) Detection {
	return Detection{
		Box:        Quad{{10, 10}, {60, 10}, {60, 30}, {10, 30}},
		Text:       text,
		Confidence: conf,
	}
}
