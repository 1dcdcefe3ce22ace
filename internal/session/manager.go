// Package session runs detection loops in the background on behalf of
// API callers and keeps their results addressable by id.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jackzampolin/textscan/internal/detect"
	"github.com/jackzampolin/textscan/internal/ocr"
	"github.com/jackzampolin/textscan/internal/preview"
	"github.com/jackzampolin/textscan/internal/results"
)

var (
	// ErrNotFound is returned for unknown session ids.
	ErrNotFound = errors.New("session not found")

	// ErrNotRunning is returned when signalling a session that has ended.
	ErrNotRunning = errors.New("session not running")

	// ErrNothingToSave is returned when a session has captured no text.
	ErrNothingToSave = errors.New("nothing to save")

	// ErrUnknownSource is returned for a source kind with no opener.
	ErrUnknownSource = errors.New("unknown source")

	// ErrClosed is returned by Start once Close has been called.
	ErrClosed = errors.New("session manager closed")
)

// NothingToSaveMessage is shown to users when ErrNothingToSave is returned.
const NothingToSaveMessage = "No text to save!"

// DefaultMaxFinished is how many ended sessions a Manager keeps.
const DefaultMaxFinished = 32

// Config configures a Manager.
type Config struct {
	Engines  *ocr.Registry
	Results  *results.Store
	Openers  Openers
	Defaults detect.Config

	// MaxFinished caps how many ended sessions stay addressable. The
	// oldest are dropped first. Zero means DefaultMaxFinished.
	MaxFinished int

	// Hub, when set, receives annotated frames and state events.
	Hub        *preview.Hub
	PreviewFPS int

	// Clock defaults to time.Now.
	Clock  detect.Clock
	Logger *slog.Logger
}

type entry struct {
	session  *detect.Session
	opts     Options
	engine   string
	controls *chanControls
	cancel   context.CancelFunc
	done     chan struct{}
}

// Manager owns every session started through it.
type Manager struct {
	engines    *ocr.Registry
	store      *results.Store
	openers    Openers
	hub         *preview.Hub
	previewFPS  int
	maxFinished int
	clock       detect.Clock
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	defaults detect.Config
	sessions map[string]*entry
	closed   bool
}

// NewManager creates a manager. Sessions it starts run until stopped,
// until their source ends, or until Close.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	defaults := cfg.Defaults
	if defaults == (detect.Config{}) {
		defaults = detect.DefaultConfig()
	}
	maxFinished := cfg.MaxFinished
	if maxFinished <= 0 {
		maxFinished = DefaultMaxFinished
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		engines:     cfg.Engines,
		store:       cfg.Results,
		openers:     cfg.Openers,
		hub:         cfg.Hub,
		previewFPS:  cfg.PreviewFPS,
		maxFinished: maxFinished,
		clock:       clock,
		logger:      logger.With("component", "sessions"),
		ctx:         ctx,
		cancel:      cancel,
		defaults:    defaults,
		sessions:    make(map[string]*entry),
	}
}

// SetDefaults replaces the detection settings used by future sessions.
func (m *Manager) SetDefaults(cfg detect.Config) {
	m.mu.Lock()
	m.defaults = cfg
	m.mu.Unlock()
}

// Defaults returns the detection settings for new sessions.
func (m *Manager) Defaults() detect.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaults
}

// Start opens the requested source and runs a detection loop on it in the
// background. ctx only bounds start-up. A source that cannot be opened
// fails with an error wrapping detect.ErrDeviceUnavailable and no session
// is created.
func (m *Manager) Start(ctx context.Context, opts Options) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	m.mu.RLock()
	closed := m.closed
	cfg := m.defaults
	m.mu.RUnlock()
	if closed {
		return Snapshot{}, ErrClosed
	}
	if opts.Detection != nil {
		cfg = *opts.Detection
	}
	if err := cfg.Err(); err != nil {
		return Snapshot{}, err
	}

	if opts.Source == "" {
		opts.Source = SourceCamera
	}
	open, ok := m.openers[opts.Source]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownSource, opts.Source)
	}

	engine, err := m.engine(opts.Engine)
	if err != nil {
		return Snapshot{}, err
	}

	src, renderer, err := open(opts)
	if err != nil {
		m.logger.Warn("failed to open source", "source", opts.Source, "error", err)
		return Snapshot{}, err
	}

	s := detect.NewSession(cfg, m.clock())
	runCtx, cancel := context.WithCancel(m.ctx)
	e := &entry{
		session:  s,
		opts:     opts,
		engine:   engine.Name(),
		controls: newChanControls(),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	loop := &detect.Loop{
		Source:   src,
		Detector: &ocr.FrameDetector{Engine: engine},
		Renderer: renderer,
		Controls: e.controls,
		Clock:    m.clock,
		Logger:   m.logger,
	}
	if m.hub != nil {
		loop.Display = preview.NewDisplay(m.hub, s.ID, m.previewFPS)
		loop.OnCapture = func(entries []detect.LogEntry) { m.publishCapture(s.ID, entries) }
	}

	// Close may have run while the source was opening. wg.Add stays
	// under mu so it never races the Wait in Close.
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cancel()
		if err := src.Close(); err != nil {
			m.logger.Warn("failed to close source", "source", opts.Source, "error", err)
		}
		e.controls.Close()
		return Snapshot{}, ErrClosed
	}
	m.sessions[s.ID] = e
	m.pruneLocked()
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		defer close(e.done)
		defer cancel()
		if _, err := loop.Run(runCtx, s); err != nil {
			m.logger.Error("session failed", "session_id", s.ID, "error", err)
		}
		m.publishState(s)
	}()

	m.publishState(s)
	return m.snapshot(e), nil
}

// pruneLocked drops the oldest ended sessions beyond maxFinished.
// m.mu must be held.
func (m *Manager) pruneLocked() {
	var ended []*entry
	for _, e := range m.sessions {
		select {
		case <-e.done:
			ended = append(ended, e)
		default:
		}
	}
	if len(ended) <= m.maxFinished {
		return
	}
	sort.Slice(ended, func(i, j int) bool {
		return ended[i].session.StartedAt.Before(ended[j].session.StartedAt)
	})
	for _, e := range ended[:len(ended)-m.maxFinished] {
		delete(m.sessions, e.session.ID)
		m.logger.Debug("dropped ended session", "session_id", e.session.ID)
	}
}

func (m *Manager) engine(name string) (ocr.Engine, error) {
	if m.engines == nil {
		return nil, fmt.Errorf("%w: no engines configured", ocr.ErrEngineNotFound)
	}
	if name == "" {
		return m.engines.Default()
	}
	return m.engines.Get(name)
}

func (m *Manager) lookup(id string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, nil
}

// Capture asks the session to log the text currently on screen.
func (m *Manager) Capture(id string) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	if e.session.State() != detect.StateRunning || !e.controls.send(detect.SignalCapture) {
		return fmt.Errorf("%w: %s", ErrNotRunning, id)
	}
	return nil
}

// Stop asks the session to quit and waits for it to finish. If ctx ends
// first the loop is cancelled and Stop still waits for it to release
// its source.
func (m *Manager) Stop(ctx context.Context, id string) (Snapshot, error) {
	e, err := m.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	if !e.controls.send(detect.SignalQuit) {
		e.cancel()
	}

	select {
	case <-e.done:
	case <-ctx.Done():
		e.cancel()
		<-e.done
	}
	return m.snapshot(e), nil
}

// Wait blocks until the session ends or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) (Snapshot, error) {
	e, err := m.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	select {
	case <-e.done:
		return m.snapshot(e), nil
	case <-ctx.Done():
		return m.snapshot(e), ctx.Err()
	}
}

// Get returns a snapshot of one session.
func (m *Manager) Get(id string) (Snapshot, error) {
	e, err := m.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	return m.snapshot(e), nil
}

// List returns every session, oldest first.
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].session, entries[j].session
		if a.StartedAt.Equal(b.StartedAt) {
			return a.ID < b.ID
		}
		return a.StartedAt.Before(b.StartedAt)
	})
	out := make([]Snapshot, len(entries))
	for i, e := range entries {
		out[i] = m.snapshot(e)
	}
	return out
}

// Latest returns the most recently started session.
func (m *Manager) Latest() (Snapshot, bool) {
	all := m.List()
	if len(all) == 0 {
		return Snapshot{}, false
	}
	return all[len(all)-1], true
}

// Running returns how many sessions are still running.
func (m *Manager) Running() int {
	n := 0
	for _, s := range m.List() {
		if s.State == detect.StateRunning {
			n++
		}
	}
	return n
}

// Save writes the session's captured text to the webcam results file and
// returns the file path and its lines.
func (m *Manager) Save(id string) (string, []string, error) {
	e, err := m.lookup(id)
	if err != nil {
		return "", nil, err
	}
	lines := e.session.Log().Lines()
	if len(lines) == 0 {
		return "", nil, ErrNothingToSave
	}
	if m.store == nil {
		return "", nil, errors.New("no results store configured")
	}
	path, err := m.store.SaveText(results.WebcamFile, lines)
	if err != nil {
		return "", nil, err
	}
	m.logger.Info("saved captured text", "session_id", id, "lines", len(lines), "path", path)
	return path, lines, nil
}

// Close cancels every running session and waits for them to release
// their sources.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
	return nil
}

func (m *Manager) publishCapture(id string, entries []detect.LogEntry) {
	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Text
	}
	if err := m.hub.Publish(preview.Event{
		Kind:    preview.EventCapture,
		Session: id,
		At:      entries[0].Time,
		Texts:   texts,
	}); err != nil {
		m.logger.Debug("failed to publish capture", "session_id", id, "error", err)
	}
}

func (m *Manager) publishState(s *detect.Session) {
	if m.hub == nil {
		return
	}
	if err := m.hub.Publish(preview.Event{
		Kind:    preview.EventState,
		Session: s.ID,
		At:      m.clock(),
		State:   string(s.State()),
	}); err != nil {
		m.logger.Debug("failed to publish state", "session_id", s.ID, "error", err)
	}
}
