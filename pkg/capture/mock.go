package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-framebridge/pkg/frame"
)

// ErrNoDevice is returned by the mock backend when nothing answers at the
// requested camera index or path.
var ErrNoDevice = errors.New("capture: no such device")

// padByte fills row padding in synthetic frames.
const padByte = 0xee

// Geometry limits for synthetic frames set through properties.
const (
	maxMockDim        = 1 << 14
	maxMockFrameBytes = 64 << 20
)

// MockDevice describes a synthetic camera or file.
type MockDevice struct {
	Width    int
	Height   int
	Channels int

	// Stride overrides the row length in bytes. Zero rounds each row up
	// to a multiple of 4, the way OpenCV's legacy image header aligns rows.
	Stride int

	// Frames are handed out in order before falling back to the generated
	// pattern. Each must be Stride*Height bytes.
	Frames [][]byte

	// Finite makes Read report no frame once Frames is exhausted, like the
	// end of a video file.
	Finite bool

	// Props seeds property values.
	Props map[int]float64
}

// MockBackend serves synthetic sessions.
type MockBackend struct {
	logger *slog.Logger

	mu      sync.Mutex
	cameras map[int]MockDevice
	files   map[string]MockDevice

	opens  atomic.Int64
	closes atomic.Int64
}

// MockOption configures a MockBackend.
type MockOption func(*MockBackend)

// WithDevice attaches a synthetic camera at index.
func WithDevice(index int, dev MockDevice) MockOption {
	return func(m *MockBackend) {
		m.cameras[index] = dev
	}
}

// WithDefaultDevice attaches a synthetic camera with the given geometry at
// index 0.
func WithDefaultDevice(width, height, channels int) MockOption {
	return WithDevice(0, MockDevice{Width: width, Height: height, Channels: channels})
}

// WithFile attaches a synthetic video file at path.
func WithFile(path string, dev MockDevice) MockOption {
	return func(m *MockBackend) {
		m.files[path] = dev
	}
}

// NewMockBackend creates a mock backend. Without options it has no devices.
func NewMockBackend(logger *slog.Logger, opts ...MockOption) *MockBackend {
	if logger == nil {
		logger = slog.Default()
	}
	m := &MockBackend{
		logger:  logger,
		cameras: make(map[int]MockDevice),
		files:   make(map[string]MockDevice),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns "mock".
func (m *MockBackend) Name() string {
	return BackendMock
}

// OpenCamera opens the synthetic camera at index.
func (m *MockBackend) OpenCamera(ctx context.Context, index int) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	dev, ok := m.cameras[index]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: camera %d", ErrNoDevice, index)
	}
	return m.open(dev), nil
}

// OpenFile opens the synthetic file at path.
func (m *MockBackend) OpenFile(ctx context.Context, path string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	dev, ok := m.files[path]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: file %q", ErrNoDevice, path)
	}
	return m.open(dev), nil
}

// Opens returns how many sessions have been opened.
func (m *MockBackend) Opens() int64 {
	return m.opens.Load()
}

// Closes returns how many sessions have been closed.
func (m *MockBackend) Closes() int64 {
	return m.closes.Load()
}

func (m *MockBackend) open(dev MockDevice) *MockSession {
	m.opens.Add(1)
	s := &MockSession{
		backend: m,
		props:   make(map[int]float64),
		queue:   append([][]byte(nil), dev.Frames...),
		finite:  dev.Finite,
	}
	for k, v := range dev.Props {
		s.props[k] = v
	}
	s.resize(dev.Width, dev.Height, dev.Channels, dev.Stride)
	return s
}

// MockSession is a session on a synthetic device.
type MockSession struct {
	backend *MockBackend

	mu       sync.Mutex
	closed   bool
	width    int
	height   int
	channels int
	stride   int
	queue    [][]byte
	finite   bool
	count    int
	buf      []byte
	props    map[int]float64
}

func (s *MockSession) resize(width, height, channels, stride int) {
	if channels == 0 {
		channels = 3
	}
	if stride == 0 {
		stride = (width*channels + 3) &^ 3
	}
	s.width, s.height, s.channels, s.stride = width, height, channels, stride
	s.buf = make([]byte, stride*height)
	s.props[PropFrameWidth] = float64(width)
	s.props[PropFrameHeight] = float64(height)
}

// Read returns the next queued frame or a generated gradient. Generated
// frames fill row padding with 0xee.
func (s *MockSession) Read() (frame.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return frame.Frame{}, false
	}

	switch {
	case len(s.queue) > 0:
		copy(s.buf, s.queue[0])
		s.queue = s.queue[1:]
	case s.finite:
		return frame.Frame{}, false
	default:
		s.fill()
	}
	s.count++
	s.props[PropPosFrames] = float64(s.count)

	return frame.Frame{
		Width:    s.width,
		Height:   s.height,
		Channels: s.channels,
		Stride:   s.stride,
		Data:     s.buf,
	}, true
}

func (s *MockSession) fill() {
	rowBytes := s.width * s.channels
	for y := 0; y < s.height; y++ {
		row := s.buf[y*s.stride : (y+1)*s.stride]
		for i := 0; i < rowBytes; i++ {
			x, ch := i/s.channels, i%s.channels
			row[i] = byte(x + 2*y + 85*ch + s.count)
		}
		for i := rowBytes; i < s.stride; i++ {
			row[i] = padByte
		}
	}
}

// Get returns the property value, or -1 for unknown ids.
func (s *MockSession) Get(prop int) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.props[prop]; ok {
		return v
	}
	return -1
}

// Set stores the property. Negative ids and closed sessions fail. Setting
// frame width or height changes the geometry of subsequent frames.
func (s *MockSession) Set(prop int, value float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || prop < 0 {
		return false
	}
	switch prop {
	case PropFrameWidth:
		if !fitsFrame(value, float64(s.height), s.channels) {
			return false
		}
		s.resize(int(value), s.height, s.channels, 0)
	case PropFrameHeight:
		if !fitsFrame(float64(s.width), value, s.channels) {
			return false
		}
		s.resize(s.width, int(value), s.channels, 0)
	default:
		s.props[prop] = value
	}
	return true
}

// fitsFrame reports whether a width x height frame is a geometry the mock
// can allocate.
func fitsFrame(width, height float64, channels int) bool {
	for _, v := range []float64{width, height} {
		if math.IsNaN(v) || v < 0 || v > maxMockDim {
			return false
		}
	}
	stride := (int(width)*channels + 3) &^ 3
	return stride*int(height) <= maxMockFrameBytes
}

// Close releases the session. Closing twice is an error.
func (s *MockSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("capture: session already closed")
	}
	s.closed = true
	s.backend.closes.Add(1)
	return nil
}
