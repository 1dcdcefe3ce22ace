package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/jackzampolin/textscan/internal/detect"
)

// RegistryConfig describes the engines a Registry should hold.
type RegistryConfig struct {
	// Default is the engine returned by Default (default: tesseract).
	Default string
	// Tesseract configures the tesseract engine.
	Tesseract TesseractConfig
	// RateLimit caps requests per second to each engine. Zero disables it.
	RateLimit float64
}

// Registry holds OCR engines by name. It supports config-driven
// instantiation and hot reload, with thread-safe access.
type Registry struct {
	mu          sync.RWMutex
	engines     map[string]Engine
	defaultName string
	logger      *slog.Logger
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		engines:     make(map[string]Engine),
		defaultName: TesseractName,
		logger:      slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Register registers an engine under its own name.
func (r *Registry) Register(engine Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[engine.Name()] = engine
	if r.logger != nil {
		r.logger.Info("registered OCR engine", "engine", engine.Name())
	}
}

// Unregister removes an engine by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.engines, name)
}

// Get returns an engine by name.
func (r *Registry) Get(name string) (Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	engine, ok := r.engines[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEngineNotFound, name)
	}
	return engine, nil
}

// Has reports whether an engine is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.engines[name]
	return ok
}

// List returns all registered engine names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetDefault changes the engine returned by Default.
func (r *Registry) SetDefault(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultName = name
}

// Default returns the default engine.
func (r *Registry) Default() (Engine, error) {
	r.mu.RLock()
	name := r.defaultName
	r.mu.RUnlock()
	return r.Get(name)
}

// DefaultName returns the name of the default engine.
func (r *Registry) DefaultName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultName
}

// DefaultEngine is an Engine that resolves the registry's default on
// every call, so long-lived holders follow reloads.
type DefaultEngine struct {
	Registry *Registry
}

var _ Engine = DefaultEngine{}

func (d DefaultEngine) Name() string { return d.Registry.DefaultName() }

func (d DefaultEngine) Detect(ctx context.Context, image []byte) ([]detect.Detection, error) {
	engine, err := d.Registry.Default()
	if err != nil {
		return nil, err
	}
	return engine.Detect(ctx, image)
}

// Reload replaces the registered engines with those described by cfg.
// The mock engine is always available.
func (r *Registry) Reload(cfg RegistryConfig) {
	engines := map[string]Engine{
		TesseractName: NewTesseract(cfg.Tesseract),
		MockName:      NewMock(),
	}
	if cfg.RateLimit > 0 {
		for name, e := range engines {
			engines[name] = NewLimited(e, cfg.RateLimit)
		}
	}

	defaultName := cfg.Default
	if defaultName == "" {
		defaultName = TesseractName
	}

	r.mu.Lock()
	r.engines = engines
	r.defaultName = defaultName
	logger := r.logger
	r.mu.Unlock()

	if logger != nil {
		logger.Info("OCR engines loaded", "default", defaultName, "rate_limit", cfg.RateLimit)
	}
}
