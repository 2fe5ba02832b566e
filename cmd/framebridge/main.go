// framebridge - exposes camera and video-file capture as host-callable routines
// Serves the routine table over HTTP/websocket, or grabs a single frame to disk.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-framebridge/internal/config"
	"github.com/teslashibe/go-framebridge/internal/log"
	"github.com/teslashibe/go-framebridge/pkg/bridge"
	"github.com/teslashibe/go-framebridge/pkg/capture"
	"github.com/teslashibe/go-framebridge/pkg/capture/opencv"
	"github.com/teslashibe/go-framebridge/pkg/dlm"
	"github.com/teslashibe/go-framebridge/pkg/handle"
	"github.com/teslashibe/go-framebridge/pkg/hub"
	"github.com/teslashibe/go-framebridge/pkg/metrics"
	"github.com/teslashibe/go-framebridge/pkg/web"
)

type options struct {
	configPath string
	grab       string
	file       string
	camera     int
	gray       bool
	debug      bool
}

func main() {
	opts := parseFlags()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(1)
	}
	if opts.debug {
		cfg.LogLevel = "debug"
	}
	log.Init(cfg.LogLevel)

	backend, err := capture.New(cfg.Capture, log.L())
	if err != nil {
		log.Error("capture backend unavailable", "backend", cfg.Capture.Backend, "available", capture.Backends(), "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	events := hub.New("events", log.L())
	go events.Run(ctx)

	m := metrics.New()
	b := bridge.New(backend,
		bridge.WithLogger(log.L()),
		bridge.WithMetrics(m),
		bridge.WithScanLimit(cfg.Capture.ScanLimit),
		bridge.WithEvents(func(e bridge.Event) { events.Publish(e) }),
	)
	defer b.Close()

	if opts.grab != "" {
		err = grab(ctx, b, opts)
	} else {
		err = serve(ctx, b, m, events, cfg.Addr)
	}
	if err != nil {
		log.Error("framebridge failed", "error", err)
		b.Close()
		os.Exit(1)
	}
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.configPath, "config", "", "YAML config file (env vars override it)")
	flag.StringVar(&o.grab, "grab", "", "Capture one frame, write it to this image path and exit")
	flag.StringVar(&o.file, "file", "", "Grab from a video file instead of a camera")
	flag.IntVar(&o.camera, "camera", -1, "Camera index for -grab (-1 scans for the first camera)")
	flag.BoolVar(&o.gray, "gray", false, "Convert color frames to grayscale")
	flag.BoolVar(&o.debug, "debug", false, "Enable verbose debug logging")
	flag.Parse()
	return o
}

func serve(ctx context.Context, b *bridge.Bridge, m *metrics.Metrics, events *hub.Hub, addr string) error {
	table := dlm.NewTable()
	if err := dlm.Load(table, b); err != nil {
		return err
	}

	srv := web.NewServer(addr, table, m, log.L(), web.WithEvents(events))
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", "sessions", b.Sessions())
	return srv.Shutdown()
}

func grab(ctx context.Context, b *bridge.Bridge, o options) error {
	var (
		rec *handle.Record
		err error
	)
	switch {
	case o.file != "":
		rec, err = b.OpenFile(ctx, o.file)
	case o.camera >= 0:
		rec, err = b.Open(ctx, &o.camera)
	default:
		rec, err = b.Open(ctx, nil)
	}
	if err != nil {
		return err
	}
	defer b.Release(rec)

	// Some cameras report no frame until streaming has started.
	var lastErr error
	for attempt := 0; attempt < 5; attempt++ {
		buf, err := b.Read(ctx, rec, o.gray)
		if err == nil {
			if err := opencv.WriteImage(o.grab, buf); err != nil {
				return err
			}
			log.Info("frame written", "path", o.grab, "layout", buf.Layout, "width", buf.Width(), "height", buf.Height())
			return nil
		}
		if !errors.Is(err, bridge.ErrNoFrame) {
			return err
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return lastErr
}
