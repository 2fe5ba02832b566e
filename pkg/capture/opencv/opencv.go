// Package opencv implements the capture backend on OpenCV's VideoCapture
// through gocv. Importing it registers the "opencv" backend.
package opencv

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-framebridge/pkg/capture"
	"github.com/teslashibe/go-framebridge/pkg/frame"
	"gocv.io/x/gocv"
)

func init() {
	capture.Register(capture.BackendOpenCV, func(cfg capture.Config, logger *slog.Logger) (capture.Backend, error) {
		return New(cfg, logger), nil
	})
}

// Backend opens OpenCV capture sessions.
type Backend struct {
	cfg    capture.Config
	logger *slog.Logger
}

// New creates an OpenCV backend.
func New(cfg capture.Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{cfg: cfg, logger: logger}
}

// Name returns "opencv".
func (b *Backend) Name() string {
	return capture.BackendOpenCV
}

// OpenCamera opens a camera by index using any available API.
func (b *Backend) OpenCamera(ctx context.Context, index int) (capture.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vc, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", index, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("open camera %d: device did not respond", index)
	}

	// Override the device default geometry when configured.
	if b.cfg.Width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(b.cfg.Width))
	}
	if b.cfg.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(b.cfg.Height))
	}

	b.logger.Debug("opencv camera opened",
		"camera", index,
		"width", vc.Get(gocv.VideoCaptureFrameWidth),
		"height", vc.Get(gocv.VideoCaptureFrameHeight),
	)
	return newSession(vc), nil
}

// OpenFile opens a video file or stream URL.
func (b *Backend) OpenFile(ctx context.Context, path string) (capture.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file %q: %w", path, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("open file %q: not readable", path)
	}
	b.logger.Debug("opencv file opened", "path", path, "frames", vc.Get(gocv.VideoCaptureFrameCount))
	return newSession(vc), nil
}

// session keeps one Mat per capture. Frames returned by Read alias its
// pixel data and stay valid until the next Read.
type session struct {
	mu   sync.Mutex
	vc   *gocv.VideoCapture
	mat  gocv.Mat
	conv gocv.Mat
}

func newSession(vc *gocv.VideoCapture) *session {
	return &session{
		vc:   vc,
		mat:  gocv.NewMat(),
		conv: gocv.NewMat(),
	}
}

func (s *session) Read() (frame.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vc == nil {
		return frame.Frame{}, false
	}
	if ok := s.vc.Read(&s.mat); !ok || s.mat.Empty() {
		return frame.Frame{}, false
	}

	m := s.mat
	switch m.Type() {
	case gocv.MatTypeCV8UC1, gocv.MatTypeCV8UC3:
	case gocv.MatTypeCV8UC4:
		gocv.CvtColor(m, &s.conv, gocv.ColorBGRAToBGR)
		m = s.conv
	default:
		return frame.Frame{}, false
	}

	data, err := m.DataPtrUint8()
	if err != nil {
		return frame.Frame{}, false
	}
	return frame.Frame{
		Width:    m.Cols(),
		Height:   m.Rows(),
		Channels: m.Channels(),
		Stride:   m.Step(),
		Data:     data,
	}, true
}

func (s *session) Get(prop int) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vc == nil {
		return -1
	}
	return s.vc.Get(gocv.VideoCaptureProperties(prop))
}

// Set forwards to VideoCapture.Set. gocv does not surface OpenCV's return
// value, so success means the capture is still open afterwards.
func (s *session) Set(prop int, value float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vc == nil {
		return false
	}
	s.vc.Set(gocv.VideoCaptureProperties(prop), value)
	return s.vc.IsOpened()
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vc == nil {
		return fmt.Errorf("opencv: session already closed")
	}
	err := s.vc.Close()
	s.vc = nil
	s.mat.Close()
	s.conv.Close()
	return err
}
