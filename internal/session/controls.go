package session

import (
	"sync/atomic"

	"github.com/jackzampolin/textscan/internal/detect"
)

// chanControls delivers signals sent from HTTP handlers to a running loop.
// Poll never blocks.
type chanControls struct {
	signals chan detect.Signal
	closed  atomic.Bool
}

func newChanControls() *chanControls {
	return &chanControls{signals: make(chan detect.Signal, 8)}
}

func (c *chanControls) Poll() detect.Signal {
	select {
	case s := <-c.signals:
		return s
	default:
		return detect.SignalNone
	}
}

// send queues s and reports whether the loop can still receive it.
func (c *chanControls) send(s detect.Signal) bool {
	if c.closed.Load() {
		return false
	}
	select {
	case c.signals <- s:
		return true
	default:
		return false
	}
}

func (c *chanControls) Close() error {
	c.closed.Store(true)
	return nil
}
