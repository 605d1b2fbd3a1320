// Package web is the HTTP and WebSocket boundary of the robot.
package web

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/Preet3627/Saras-AI/internal/log"
	"github.com/Preet3627/Saras-AI/pkg/autopilot"
	"github.com/Preet3627/Saras-AI/pkg/camera"
	"github.com/Preet3627/Saras-AI/pkg/control"
	"github.com/Preet3627/Saras-AI/pkg/hub"
	"github.com/Preet3627/Saras-AI/pkg/metrics"
	"github.com/Preet3627/Saras-AI/pkg/state"
	"github.com/Preet3627/Saras-AI/pkg/stream"
)

// Banner is the body of GET /.
const Banner = "Saras AI Robot API is running."

// Config holds server settings.
type Config struct {
	Addr           string
	StatusInterval time.Duration
	CameraPoll     time.Duration
}

// DefaultConfig listens on :5001.
func DefaultConfig() Config {
	return Config{
		Addr:           ":5001",
		StatusInterval: 500 * time.Millisecond,
		CameraPoll:     200 * time.Millisecond,
	}
}

// Deps are the components the server exposes. Camera, Stream and Metrics
// may be nil.
type Deps struct {
	Control   *control.Service
	Autopilot *autopilot.Manager
	Camera    *camera.Manager
	Stream    *stream.Broadcaster
	Metrics   *metrics.Metrics
}

// Event is one message on /ws/status.
type Event struct {
	Type       string            `json:"type"`
	Status     *control.Status   `json:"status,omitempty"`
	Transition *state.Transition `json:"transition,omitempty"`
}

// Event types.
const (
	EventStatus     = "status"
	EventTransition = "transition"
)

// Server serves the control API.
type Server struct {
	cfg  Config
	deps Deps
	app  *fiber.App

	statusHub *hub.Hub
	cameraHub *hub.Hub

	logger *slog.Logger
}

// New builds the fiber app and routes.
func New(cfg Config, deps Deps) *Server {
	s := &Server{
		cfg:       cfg,
		deps:      deps,
		statusHub: hub.New("status"),
		cameraHub: hub.New("camera"),
		logger:    log.Component("web"),
	}
	s.statusHub.OnConnect = func(c *hub.Client) {
		st := s.deps.Control.Status()
		if msg, err := encodeEvent(Event{Type: EventStatus, Status: &st}); err == nil {
			c.Send(msg)
		}
	}

	app := fiber.New(fiber.Config{
		AppName:               "Saras",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(Banner) })
	app.Post("/command", s.handleCommand)
	app.Post("/autonomous", s.handleAutonomous)
	app.Get("/video_feed", s.handleVideoFeed)
	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics.Handler()))
	}

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/command", s.handleCommand)
	api.Get("/mode", s.handleGetMode)
	api.Post("/mode", s.handleSetMode)
	api.Get("/transitions", s.handleTransitions)
	api.Get("/responses", s.handleGetResponses)
	api.Put("/responses", s.handlePutResponses)
	api.Get("/wakeword", s.handleGetWakeWord)
	api.Post("/wakeword", s.handleSetWakeWord)
	api.Get("/camera", s.handleGetCamera)
	api.Post("/camera", s.handleSetCamera)
	api.Get("/camera/presets", s.handleCameraPresets)
	api.Get("/autopilot", s.handleGetAutopilot)
	api.Post("/autopilot", s.handleSetAutopilot)
	api.Get("/autopilot/presets", s.handleAutopilotPresets)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(func(c *websocket.Conn) {
		hub.NewClient(s.statusHub, c).Run()
	}))
	app.Get("/ws/camera", websocket.New(func(c *websocket.Conn) {
		hub.NewClient(s.cameraHub, c).Run()
	}))

	s.app = app
	return s
}

// App returns the fiber app, for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// PublishTransition pushes a mode change to /ws/status viewers.
func (s *Server) PublishTransition(t state.Transition) {
	if msg, err := encodeEvent(Event{Type: EventTransition, Transition: &t}); err == nil {
		s.statusHub.Broadcast(msg)
	}
}

// StatusClients returns the number of /ws/status viewers.
func (s *Server) StatusClients() int { return s.statusHub.ClientCount() }

// CameraClients returns the number of /ws/camera viewers.
func (s *Server) CameraClients() int { return s.cameraHub.ClientCount() }

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go s.statusHub.Run(ctx)
	go s.cameraHub.Run(ctx)
	go s.statusLoop(ctx)
	if s.deps.Stream != nil {
		go s.cameraLoop(ctx)
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Addr)
		errc <- s.app.Listen(s.cfg.Addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("http shutdown", "error", err)
		}
		return nil
	}
}

// statusLoop broadcasts a status snapshot while anybody is watching.
func (s *Server) statusLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.StatusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.statusHub.ClientCount() == 0 {
				continue
			}
			st := s.deps.Control.Status()
			if msg, err := encodeEvent(Event{Type: EventStatus, Status: &st}); err == nil {
				s.statusHub.Broadcast(msg)
			}
		}
	}
}

// cameraLoop subscribes to the broadcaster only while /ws/camera has
// viewers, so frames are not rendered for nobody.
func (s *Server) cameraLoop(ctx context.Context) {
	poll := time.NewTicker(s.cfg.CameraPoll)
	defer poll.Stop()

	var frames <-chan []byte
	var unsubscribe func()
	defer func() {
		if unsubscribe != nil {
			unsubscribe()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			viewers := s.cameraHub.ClientCount() > 0
			switch {
			case viewers && frames == nil:
				frames, unsubscribe = s.deps.Stream.Subscribe()
			case !viewers && frames != nil:
				unsubscribe()
				frames, unsubscribe = nil, nil
			}
		case data, ok := <-frames:
			if !ok {
				return
			}
			s.cameraHub.BroadcastBinary(data)
		}
	}
}
