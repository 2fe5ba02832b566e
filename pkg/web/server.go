// Package web exposes the routine table over HTTP and websockets so a host
// process can drive capture sessions remotely. Every request or websocket
// message is one routine call.
package web

import (
	"log/slog"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/teslashibe/go-framebridge/pkg/dlm"
	"github.com/teslashibe/go-framebridge/pkg/hub"
	"github.com/teslashibe/go-framebridge/pkg/metrics"
)

// Server is the routine transport.
type Server struct {
	app    *fiber.App
	addr   string
	table  *dlm.Table
	logger *slog.Logger
	events *hub.Hub
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithEvents serves h's session events to subscribers on /ws/events.
// The caller runs the hub.
func WithEvents(h *hub.Hub) ServerOption {
	return func(s *Server) {
		s.events = h
	}
}

// NewServer creates a server dispatching to table. m may be nil, in which
// case /metrics is not served.
func NewServer(addr string, table *dlm.Table, m *metrics.Metrics, logger *slog.Logger, opts ...ServerOption) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		addr:   addr,
		table:  table,
		logger: logger.With("component", "web"),
	}
	for _, opt := range opts {
		opt(s)
	}

	app := fiber.New(fiber.Config{
		AppName:               "framebridge",
		DisableStartupMessage: true,
		BodyLimit:             1 << 20,
	})

	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/healthz", s.handleHealth)

	api := app.Group("/api")
	api.Get("/routines", s.handleListRoutines)
	api.Post("/call/:routine", s.handleCall)

	if reg := m.Registry(); reg != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/call", websocket.New(s.handleCallWS))
	if s.events != nil {
		app.Get("/ws/events", websocket.New(s.events.Serve))
	}

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on the configured address and blocks.
func (s *Server) Start() error {
	s.logger.Info("routine transport listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// Serve accepts connections on ln and blocks.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("routine transport listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
