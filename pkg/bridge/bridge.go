// Package bridge exposes capture sessions to a host array environment.
//
// A Bridge opens sessions on a capture backend and hands back tagged
// handle records. Every later call validates the record before touching the
// session. Calls are serialized: each runs to completion, and frame reads
// block on the backend.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-framebridge/pkg/capture"
	"github.com/teslashibe/go-framebridge/pkg/frame"
	"github.com/teslashibe/go-framebridge/pkg/handle"
	"github.com/teslashibe/go-framebridge/pkg/metrics"
)

// DefaultScanLimit is how many camera indices Open tries when no camera
// is given.
const DefaultScanLimit = 8

// FileCamera is the camera index stored in records opened from files.
const FileCamera = -1

type session struct {
	id     string
	camera int
	path   string
	src    capture.Session
}

// Bridge owns the capture sessions opened through it.
type Bridge struct {
	backend    capture.Backend
	logger     *slog.Logger
	metrics    *metrics.Metrics
	scanLimit int
	notify     func(Event)

	mu       sync.Mutex
	closed   bool
	sessions *handle.Registry[*session]
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics records operations on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bridge) {
		b.metrics = m
	}
}

// WithScanLimit sets how many camera indices Open tries when no camera
// is given.
func WithScanLimit(n int) Option {
	return func(b *Bridge) {
		if n > 0 {
			b.scanLimit = n
		}
	}
}

// New creates a bridge on backend.
func New(backend capture.Backend, opts ...Option) *Bridge {
	b := &Bridge{
		backend:    backend,
		logger:     slog.Default(),
		scanLimit: DefaultScanLimit,
		sessions:   handle.NewRegistry[*session](),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "bridge", "backend", backend.Name())
	return b
}

// Open opens a camera and returns its handle record. With a nil camera the
// first index in [0, scan limit) that responds is used, and the record
// carries the index that was found.
func (b *Bridge) Open(ctx context.Context, camera *int) (rec *handle.Record, err error) {
	defer b.observe("open", time.Now(), &err)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	if camera != nil {
		src, err := b.backend.OpenCamera(ctx, *camera)
		if err != nil {
			return nil, fmt.Errorf("%w: camera %d: %v", ErrOpenFailed, *camera, err)
		}
		return b.register(src, *camera, ""), nil
	}

	var last error
	for i := 0; i < b.scanLimit; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src, err := b.backend.OpenCamera(ctx, i)
		if err != nil {
			b.logger.Debug("camera scan open failed", "camera", i, "error", err)
			last = err
			continue
		}
		return b.register(src, i, ""), nil
	}
	return nil, fmt.Errorf("%w: no camera among the first %d indices: %v", ErrOpenFailed, b.scanLimit, last)
}

// OpenFile opens a video file or stream URL. The record's camera field is
// FileCamera.
func (b *Bridge) OpenFile(ctx context.Context, path string) (rec *handle.Record, err error) {
	defer b.observe("open_file", time.Now(), &err)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	src, err := b.backend.OpenFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpenFailed, path, err)
	}
	return b.register(src, FileCamera, path), nil
}

func (b *Bridge) register(src capture.Session, camera int, path string) *handle.Record {
	s := &session{id: uuid.NewString(), camera: camera, path: path, src: src}
	token := b.sessions.Add(s)
	b.metrics.SetSessions(b.sessions.Len())

	attrs := []any{"session", s.id, "camera", camera, "token", token}
	if path != "" {
		attrs = append(attrs, "path", path)
	}
	b.logger.Info("capture session opened", attrs...)
	b.emit(EventOpened, s, token)

	return handle.NewRecord(handle.KindCamera, int32(camera), token)
}

// Release closes the session behind rec. Unless rec is not a capture
// record at all, its fields are zeroed on return, including when the
// session was already gone or failed to close.
func (b *Bridge) Release(rec *handle.Record) (err error) {
	defer b.observe("release", time.Now(), &err)

	token, err := handle.Validate(rec, handle.KindCamera)
	if errors.Is(err, handle.ErrInvalidHandle) {
		return err
	}
	defer rec.Zero()
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.sessions.Remove(token)
	if err != nil {
		return err
	}
	b.metrics.SetSessions(b.sessions.Len())
	b.emit(EventReleased, s, token)

	if err := s.src.Close(); err != nil {
		b.logger.Warn("capture session close failed", "session", s.id, "error", err)
		return fmt.Errorf("release session: %w", err)
	}
	b.logger.Info("capture session released", "session", s.id, "camera", s.camera)
	return nil
}

// Read pulls exactly one frame from the session behind rec and converts it
// to a host buffer. Three-channel frames are reduced to luma when forceGray
// is set.
func (b *Bridge) Read(ctx context.Context, rec *handle.Record, forceGray bool) (buf frame.Buffer, err error) {
	defer b.observe("read", time.Now(), &err)

	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.resolve(rec)
	if err != nil {
		return frame.Buffer{}, err
	}
	if err := ctx.Err(); err != nil {
		return frame.Buffer{}, err
	}

	f, ok := s.src.Read()
	if !ok {
		return frame.Buffer{}, ErrNoFrame
	}
	buf, err = frame.Transfer(f, forceGray)
	if err != nil {
		return frame.Buffer{}, fmt.Errorf("session %s: %w", s.id, err)
	}

	b.metrics.ObserveFrame(string(buf.Layout), len(buf.Data))
	return buf, nil
}

// GetProperty returns the backend's value for property id unchanged.
// Unsupported ids are not an error; the backend's sentinel comes back.
func (b *Bridge) GetProperty(rec *handle.Record, id int) (v float64, err error) {
	defer b.observe("get_property", time.Now(), &err)

	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.resolve(rec)
	if err != nil {
		return 0, err
	}
	return s.src.Get(id), nil
}

// SetProperty sets property id and returns the backend's success flag as
// 1 or 0. A rejected value is not an error.
func (b *Bridge) SetProperty(rec *handle.Record, id int, value float64) (ok int, err error) {
	defer b.observe("set_property", time.Now(), &err)

	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.resolve(rec)
	if err != nil {
		return 0, err
	}
	if s.src.Set(id, value) {
		return 1, nil
	}
	return 0, nil
}

// Sessions returns the number of open sessions.
func (b *Bridge) Sessions() int {
	return b.sessions.Len()
}

// Close releases every open session. Records handed out earlier become
// inaccessible. Further opens fail with ErrClosed.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	for token, s := range b.sessions.Drain() {
		b.emit(EventReleased, s, token)
		if err := s.src.Close(); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", s.id, err))
		}
	}
	b.metrics.SetSessions(0)
	b.logger.Info("bridge closed")
	return errors.Join(errs...)
}

// resolve must be called with b.mu held.
func (b *Bridge) resolve(rec *handle.Record) (*session, error) {
	return b.sessions.Resolve(rec, handle.KindCamera)
}

func (b *Bridge) observe(op string, start time.Time, err *error) {
	b.metrics.ObserveCall(op, start, *err)
	if *err != nil {
		b.logger.Debug("operation failed", "op", op, "error", *err)
	}
}
