package detect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Loop is the sampled detection loop. It reads frames, runs the detector on
// the iterations its Policy selects, keeps the most recent non-empty result,
// draws it over every frame, and logs captured text.
type Loop struct {
	Source   Source
	Detector Detector

	// Renderer draws overlays. Nil shows frames unannotated.
	Renderer Renderer
	// Display defaults to NopDisplay.
	Display Display
	// Controls defaults to never signalling.
	Controls Controls
	// Policy defaults to NewPolicy(session.Config, session.StartedAt).
	Policy Policy
	// Clock defaults to time.Now.
	Clock Clock
	// OnCapture, when set, receives each batch of newly logged entries.
	OnCapture func(entries []LogEntry)
	Logger    *slog.Logger
}

// Run drives the loop until a quit signal, end of stream, or ctx is done.
// The source, display and controls are closed on every exit path. The
// session is returned with its final state recorded.
func (l *Loop) Run(ctx context.Context, s *Session) (out *Session, err error) {
	if l.Source == nil {
		return s, errors.New("detection loop: nil source")
	}
	if l.Detector == nil {
		l.closeAll()
		return s, errors.New("detection loop: nil detector")
	}
	if l.Display == nil {
		l.Display = NopDisplay{}
	}
	if l.Controls == nil {
		l.Controls = ControlsFunc(func() Signal { return SignalNone })
	}
	if l.Clock == nil {
		l.Clock = time.Now
	}
	if l.Logger == nil {
		l.Logger = slog.Default()
	}
	logger := l.Logger.With("session_id", s.ID)

	if l.Policy == nil {
		p, perr := NewPolicy(s.Config, s.StartedAt)
		if perr != nil {
			l.closeAll()
			s.Finish(l.Clock(), perr)
			return s, perr
		}
		l.Policy = p
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("detection loop panic: %v", r)
			logger.Error("detection loop aborted", "error", err)
		}
		out = s
		s.Finish(l.Clock(), err)
		logger.Info("detection session ended",
			"frames", s.Frames(),
			"passes", s.Passes(),
			"captured", s.Log().Len(),
		)
	}()
	defer l.closeAll()

	logger.Info("detection session started",
		"policy", s.Config.Policy,
		"capture_mode", s.Config.CaptureMode,
		"threshold", s.Config.Threshold,
	)

	for index := 1; ; index++ {
		if ctx.Err() != nil {
			logger.Info("detection session cancelled")
			return s, nil
		}

		frame, rerr := l.Source.Read()
		if rerr != nil {
			if !errors.Is(rerr, io.EOF) {
				logger.Warn("frame read failed, ending session", "frame", index, "error", rerr)
			}
			return s, nil
		}

		if l.step(ctx, logger, s, index, frame) {
			return s, nil
		}
	}
}

// step processes one frame and reports whether the loop should stop.
func (l *Loop) step(ctx context.Context, logger *slog.Logger, s *Session, index int, frame Frame) bool {
	defer frame.Close()

	now := l.Clock()
	s.frames.Add(1)
	threshold := s.Config.Threshold

	if l.Policy.Due(index, now) {
		s.passes.Add(1)
		fresh, err := l.detect(ctx, frame)
		switch {
		case err != nil:
			s.detectErrors.Add(1)
			logger.Warn("text detection failed", "frame", index, "error", err)
		case len(fresh) == 0:
			logger.Debug("no text detected, keeping previous results", "frame", index)
		default:
			set := make(Set, len(fresh))
			copy(set, fresh)
			s.replace(set)
			if s.Config.CaptureMode == CaptureAuto {
				if n := l.capture(s, now, AutoCapturePrefix, set.Above(threshold)); n > 0 {
					logger.Debug("auto-captured text", "frame", index, "count", n)
				}
			}
		}
	}

	visible := s.Detections().Above(threshold)
	l.show(logger, frame, visible)

	switch l.Controls.Poll() {
	case SignalQuit:
		logger.Debug("quit signal received", "frame", index)
		return true
	case SignalCapture:
		n := l.capture(s, now, "", visible)
		logger.Info("captured text", "frame", index, "count", n)
	}
	return false
}

func (l *Loop) capture(s *Session, now time.Time, prefix string, set Set) int {
	added := s.log.add(now, prefix, set)
	if len(added) > 0 && l.OnCapture != nil {
		l.OnCapture(added)
	}
	return len(added)
}

func (l *Loop) show(logger *slog.Logger, frame Frame, visible Set) {
	out := frame
	if l.Renderer != nil && len(visible) > 0 {
		annotated := frame.Clone()
		defer annotated.Close()
		if err := l.render(annotated, visible); err != nil {
			logger.Warn("overlay rendering failed", "error", err)
		} else {
			out = annotated
		}
	}
	if err := l.Display.Show(out); err != nil {
		logger.Warn("display failed", "error", err)
	}
}

func (l *Loop) detect(ctx context.Context, frame Frame) (dets []Detection, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("detector panic: %v", r)
		}
	}()
	return l.Detector.Detect(ctx, frame)
}

func (l *Loop) render(frame Frame, set Set) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("renderer panic: %v", r)
		}
	}()
	return l.Renderer.Render(frame, set)
}

func (l *Loop) closeAll() {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err := l.Source.Close(); err != nil {
		logger.Warn("failed to release capture source", "error", err)
	}
	if c, ok := l.Display.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Warn("failed to close display", "error", err)
		}
	}
	if c, ok := l.Controls.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Warn("failed to close controls", "error", err)
		}
	}
}
