package bridge

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/teslashibe/go-framebridge/pkg/capture"
	"github.com/teslashibe/go-framebridge/pkg/frame"
	"github.com/teslashibe/go-framebridge/pkg/handle"
	"github.com/teslashibe/go-framebridge/pkg/metrics"
)

func TestOpen_ExplicitCamera(t *testing.T) {
	b, m := newTestBridge(capture.WithDevice(2, capture.MockDevice{Width: 4, Height: 2, Channels: 3}))
	defer b.Close()

	rec, err := b.Open(context.Background(), intPtr(2))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if rec.Name != handle.CameraTag || rec.Camera != 2 || rec.Capture == 0 {
		t.Errorf("record = %+v", rec)
	}
	if m.Opens() != 1 {
		t.Errorf("backend opens = %d, want 1", m.Opens())
	}
}

func TestOpen_ScansForAnyCamera(t *testing.T) {
	b, _ := newTestBridge(capture.WithDevice(3, capture.MockDevice{Width: 4, Height: 2, Channels: 1}))
	defer b.Close()

	rec, err := b.Open(context.Background(), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if rec.Camera != 3 {
		t.Errorf("resolved camera = %d, want 3", rec.Camera)
	}
}

func TestOpen_NoDevice(t *testing.T) {
	b, _ := newTestBridge()
	defer b.Close()

	if _, err := b.Open(context.Background(), nil); !errors.Is(err, ErrOpenFailed) {
		t.Errorf("Open(nil) err = %v, want ErrOpenFailed", err)
	}
	if _, err := b.Open(context.Background(), intPtr(0)); !errors.Is(err, ErrOpenFailed) {
		t.Errorf("Open(0) err = %v, want ErrOpenFailed", err)
	}
	if b.Sessions() != 0 {
		t.Errorf("Sessions() = %d, want 0", b.Sessions())
	}
}

func TestOpen_ScanLimit(t *testing.T) {
	m := capture.NewMockBackend(nil, capture.WithDevice(5, capture.MockDevice{Width: 1, Height: 1, Channels: 1}))
	b := New(m, WithScanLimit(4))
	defer b.Close()

	if _, err := b.Open(context.Background(), nil); !errors.Is(err, ErrOpenFailed) {
		t.Errorf("err = %v, want ErrOpenFailed (camera 5 is beyond the scan limit)", err)
	}
}

func TestOpenFile(t *testing.T) {
	b, _ := newTestBridge(capture.WithFile("clip.avi", capture.MockDevice{Width: 2, Height: 2, Channels: 3}))
	defer b.Close()

	rec, err := b.OpenFile(context.Background(), "clip.avi")
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	if rec.Camera != FileCamera {
		t.Errorf("camera = %d, want %d", rec.Camera, FileCamera)
	}

	if _, err := b.OpenFile(context.Background(), "missing.avi"); !errors.Is(err, ErrOpenFailed) {
		t.Errorf("err = %v, want ErrOpenFailed", err)
	}
}

func TestRelease_ZeroesRecord(t *testing.T) {
	b, m := newTestBridge(capture.WithDefaultDevice(4, 2, 3))
	defer b.Close()

	rec := mustOpen(t, b)
	stale := *rec

	if err := b.Release(rec); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if rec.Capture != 0 || rec.Camera != 0 {
		t.Errorf("record not zeroed: %+v", rec)
	}
	if m.Closes() != 1 {
		t.Errorf("backend closes = %d, want 1", m.Closes())
	}

	// The zeroed record and a copy taken before release are both dead.
	if _, err := b.Read(context.Background(), rec, false); !errors.Is(err, handle.ErrInaccessibleHandle) {
		t.Errorf("Read(zeroed) err = %v, want ErrInaccessibleHandle", err)
	}
	if _, err := b.Read(context.Background(), &stale, false); !errors.Is(err, handle.ErrInaccessibleHandle) {
		t.Errorf("Read(stale) err = %v, want ErrInaccessibleHandle", err)
	}
	if err := b.Release(&stale); !errors.Is(err, handle.ErrInaccessibleHandle) {
		t.Errorf("second Release err = %v, want ErrInaccessibleHandle", err)
	}
	if stale.Capture != 0 {
		t.Errorf("stale record not zeroed: %+v", stale)
	}
}

func TestRelease_WrongTagLeavesRecord(t *testing.T) {
	b, _ := newTestBridge(capture.WithDefaultDevice(4, 2, 3))
	defer b.Close()

	rec := &handle.Record{Name: "NOT_A_CAMERA", Camera: 1, Capture: 77}
	if err := b.Release(rec); !errors.Is(err, handle.ErrInvalidHandle) {
		t.Fatalf("err = %v, want ErrInvalidHandle", err)
	}
	if rec.Capture != 77 {
		t.Errorf("foreign record was modified: %+v", rec)
	}
}

func TestRead_Color(t *testing.T) {
	dev := capture.MockDevice{
		Width: 2, Height: 2, Channels: 3, Stride: 8,
		Frames: [][]byte{{
			1, 2, 3, 4, 5, 6, 0xaa, 0xaa,
			7, 8, 9, 10, 11, 12, 0xbb, 0xbb,
		}},
	}
	b, _ := newTestBridge(capture.WithDevice(0, dev))
	defer b.Close()
	rec := mustOpen(t, b)

	buf, err := b.Read(context.Background(), rec, false)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if buf.Layout != frame.LayoutRGB {
		t.Errorf("Layout = %q", buf.Layout)
	}
	if len(buf.Dims) != 3 || buf.Dims[0] != 3 || buf.Dims[1] != 2 || buf.Dims[2] != 2 {
		t.Errorf("Dims = %v, want [3 2 2]", buf.Dims)
	}
	want := []byte{9, 8, 7, 12, 11, 10, 3, 2, 1, 6, 5, 4}
	if !bytes.Equal(buf.Data, want) {
		t.Errorf("Data = %v, want %v", buf.Data, want)
	}
}

func TestRead_ForceGray(t *testing.T) {
	dev := capture.MockDevice{
		Width: 1, Height: 2, Channels: 3, Stride: 4,
		Frames: [][]byte{{10, 20, 30, 0, 255, 255, 255, 0}},
	}
	b, _ := newTestBridge(capture.WithDevice(0, dev))
	defer b.Close()
	rec := mustOpen(t, b)

	buf, err := b.Read(context.Background(), rec, true)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	want := []byte{255, frame.Luma(30, 20, 10)}
	if !bytes.Equal(buf.Data, want) {
		t.Errorf("Data = %v, want %v", buf.Data, want)
	}
}

func TestRead_OutputOwnedByCaller(t *testing.T) {
	b, _ := newTestBridge(capture.WithDefaultDevice(3, 3, 1))
	defer b.Close()
	rec := mustOpen(t, b)

	first, err := b.Read(context.Background(), rec, false)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	saved := append([]byte(nil), first.Data...)

	if _, err := b.Read(context.Background(), rec, false); err != nil {
		t.Fatalf("second Read failed: %v", err)
	}
	if !bytes.Equal(first.Data, saved) {
		t.Error("second Read modified the first buffer")
	}
}

func TestRead_NoFrame(t *testing.T) {
	dev := capture.MockDevice{Width: 1, Height: 1, Channels: 1, Finite: true}
	b, _ := newTestBridge(capture.WithDevice(0, dev))
	defer b.Close()
	rec := mustOpen(t, b)

	if _, err := b.Read(context.Background(), rec, false); !errors.Is(err, ErrNoFrame) {
		t.Errorf("err = %v, want ErrNoFrame", err)
	}
}

func TestRead_ZeroSizedFrame(t *testing.T) {
	b, _ := newTestBridge(capture.WithDefaultDevice(0, 5, 3))
	defer b.Close()
	rec := mustOpen(t, b)

	buf, err := b.Read(context.Background(), rec, false)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(buf.Data) != 0 {
		t.Errorf("len(Data) = %d, want 0", len(buf.Data))
	}
}

func TestRead_InvalidHandle(t *testing.T) {
	b, _ := newTestBridge(capture.WithDefaultDevice(2, 2, 3))
	defer b.Close()
	rec := mustOpen(t, b)

	forged := *rec
	forged.Name = "OTHER_WIDGET"
	if _, err := b.Read(context.Background(), &forged, false); !errors.Is(err, handle.ErrInvalidHandle) {
		t.Errorf("err = %v, want ErrInvalidHandle", err)
	}
	if _, err := b.Read(context.Background(), nil, false); !errors.Is(err, handle.ErrInvalidHandle) {
		t.Errorf("nil record err = %v, want ErrInvalidHandle", err)
	}
}

func TestRead_CancelledContext(t *testing.T) {
	b, _ := newTestBridge(capture.WithDefaultDevice(2, 2, 3))
	defer b.Close()
	rec := mustOpen(t, b)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.Read(ctx, rec, false); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestProperties_PassThrough(t *testing.T) {
	dev := capture.MockDevice{Width: 8, Height: 6, Channels: 3, Props: map[int]float64{capture.PropFPS: 25}}
	b, _ := newTestBridge(capture.WithDevice(0, dev))
	defer b.Close()
	rec := mustOpen(t, b)

	v, err := b.GetProperty(rec, capture.PropFPS)
	if err != nil || v != 25 {
		t.Errorf("GetProperty(fps) = %v, %v; want 25", v, err)
	}

	// Unknown ids return the backend sentinel, not an error.
	v, err = b.GetProperty(rec, 4242)
	if err != nil || v != -1 {
		t.Errorf("GetProperty(4242) = %v, %v; want -1, nil", v, err)
	}

	ok, err := b.SetProperty(rec, capture.PropGain, 3.5)
	if err != nil || ok != 1 {
		t.Errorf("SetProperty(gain) = %d, %v; want 1", ok, err)
	}
	v, _ = b.GetProperty(rec, capture.PropGain)
	if v != 3.5 {
		t.Errorf("gain = %v, want 3.5", v)
	}

	ok, err = b.SetProperty(rec, -1, 0)
	if err != nil || ok != 0 {
		t.Errorf("SetProperty(-1) = %d, %v; want 0, nil", ok, err)
	}
}

func TestProperties_InvalidHandle(t *testing.T) {
	b, _ := newTestBridge(capture.WithDefaultDevice(2, 2, 3))
	defer b.Close()

	rec := handle.NewRecord(handle.KindCamera, 0, 12345)
	if _, err := b.GetProperty(rec, capture.PropFPS); !errors.Is(err, handle.ErrInaccessibleHandle) {
		t.Errorf("GetProperty err = %v, want ErrInaccessibleHandle", err)
	}
	rec.Name = "X"
	if _, err := b.SetProperty(rec, capture.PropFPS, 1); !errors.Is(err, handle.ErrInvalidHandle) {
		t.Errorf("SetProperty err = %v, want ErrInvalidHandle", err)
	}
}

func TestRecord_SurvivesBinaryRoundTrip(t *testing.T) {
	b, _ := newTestBridge(capture.WithDefaultDevice(2, 2, 1))
	defer b.Close()
	rec := mustOpen(t, b)

	data, err := rec.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}
	back := &handle.Record{Name: handle.CameraTag}
	if err := back.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary failed: %v", err)
	}
	if _, err := b.Read(context.Background(), back, false); err != nil {
		t.Errorf("Read with decoded record failed: %v", err)
	}
}

func TestClose_ReleasesEverything(t *testing.T) {
	b, m := newTestBridge(
		capture.WithDefaultDevice(2, 2, 1),
		capture.WithDevice(1, capture.MockDevice{Width: 2, Height: 2, Channels: 3}),
	)
	rec0 := mustOpen(t, b)
	if _, err := b.Open(context.Background(), intPtr(1)); err != nil {
		t.Fatalf("Open(1) failed: %v", err)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if m.Closes() != 2 {
		t.Errorf("backend closes = %d, want 2", m.Closes())
	}
	if _, err := b.Read(context.Background(), rec0, false); !errors.Is(err, handle.ErrInaccessibleHandle) {
		t.Errorf("Read after Close err = %v, want ErrInaccessibleHandle", err)
	}
	if _, err := b.Open(context.Background(), nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Open after Close err = %v, want ErrClosed", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestMetricsRecorded(t *testing.T) {
	mt := metrics.New()
	m := capture.NewMockBackend(nil, capture.WithDefaultDevice(2, 2, 3))
	b := New(m, WithMetrics(mt))
	defer b.Close()

	rec := mustOpen(t, b)
	if _, err := b.Read(context.Background(), rec, false); err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	families, err := mt.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "framebridge_frames_total" {
			found = true
		}
	}
	if !found {
		t.Error("framebridge_frames_total not recorded")
	}
}

func TestEvents(t *testing.T) {
	var events []Event
	m := capture.NewMockBackend(nil,
		capture.WithDefaultDevice(2, 2, 3),
		capture.WithFile("clip.avi", capture.MockDevice{Width: 2, Height: 2, Channels: 3}),
	)
	b := New(m, WithEvents(func(e Event) { events = append(events, e) }))

	rec := mustOpen(t, b)
	token := rec.Capture
	if err := b.Release(rec); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := b.OpenFile(context.Background(), "clip.avi"); err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	want := []struct {
		typ    string
		camera int
		path   string
	}{
		{EventOpened, 0, ""},
		{EventReleased, 0, ""},
		{EventOpened, FileCamera, "clip.avi"},
		{EventReleased, FileCamera, "clip.avi"},
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(events), len(want), events)
	}
	for i, w := range want {
		e := events[i]
		if e.Type != w.typ || e.Camera != w.camera || e.Path != w.path {
			t.Errorf("event %d = %+v, want %s camera %d path %q", i, e, w.typ, w.camera, w.path)
		}
	}
	if events[0].Token != token || events[1].Token != token {
		t.Errorf("tokens = %d/%d, want %d", events[0].Token, events[1].Token, token)
	}
	if events[0].Session == "" || events[0].Session != events[1].Session {
		t.Errorf("session ids = %q/%q", events[0].Session, events[1].Session)
	}
}

// Helper functions

func newTestBridge(opts ...capture.MockOption) (*Bridge, *capture.MockBackend) {
	m := capture.NewMockBackend(nil, opts...)
	return New(m), m
}

func mustOpen(t *testing.T, b *Bridge) *handle.Record {
	t.Helper()
	rec, err := b.Open(context.Background(), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return rec
}

func intPtr(i int) *int {
	return &i
}
