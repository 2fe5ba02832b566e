// Package capture defines the video-capture collaborator the bridge drives.
//
// Backends open sessions on cameras or video files; sessions hand out one
// decoded frame per Read and forward numeric property get/set calls. The
// following backends exist:
//   - opencv (pkg/capture/opencv) - OpenCV VideoCapture through gocv
//   - mock - synthetic frames for tests and hardware-free runs
//
// Backends register themselves by name; import a backend package for its
// side effect to make it available to New.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/teslashibe/go-framebridge/pkg/frame"
)

// Backend opens capture sessions.
type Backend interface {
	// OpenCamera opens the camera with the given index.
	OpenCamera(ctx context.Context, index int) (Session, error)

	// OpenFile opens a video file or stream URL.
	OpenFile(ctx context.Context, path string) (Session, error)

	// Name returns the backend name (e.g., "opencv", "mock").
	Name() string
}

// Session is one open camera or file.
type Session interface {
	// Read grabs and decodes the next frame, blocking until it is
	// available. ok is false when the source produced nothing. The
	// returned frame is only valid until the next Read or Close.
	Read() (f frame.Frame, ok bool)

	// Get returns a property value. Unknown ids yield whatever sentinel
	// the backend uses.
	Get(prop int) float64

	// Set changes a property and reports the backend's success flag.
	Set(prop int, value float64) bool

	// Close releases the session.
	Close() error
}

// Factory builds a backend from configuration.
type Factory func(cfg Config, logger *slog.Logger) (Backend, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{}
)

// Register makes a backend available under name. It panics on duplicates.
func Register(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	if _, dup := factories[name]; dup {
		panic("capture: Register called twice for backend " + name)
	}
	factories[name] = f
}

// Backends returns the names of the registered backends.
func Backends() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates the backend named by cfg.Backend.
func New(cfg Config, logger *slog.Logger) (Backend, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config: %v", errs)
	}
	if logger == nil {
		logger = slog.Default()
	}

	factoriesMu.RLock()
	f, ok := factories[cfg.Backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported backend: %s (available: %v)", cfg.Backend, Backends())
	}

	logger.Info("creating capture backend",
		"backend", cfg.Backend,
		"scan_limit", cfg.ScanLimit,
	)
	return f(cfg, logger)
}

func init() {
	Register(BackendMock, func(cfg Config, logger *slog.Logger) (Backend, error) {
		return NewMockBackend(logger, WithDefaultDevice(cfg.MockWidth, cfg.MockHeight, cfg.MockChannels)), nil
	})
}
