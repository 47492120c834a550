// Package web serves the focus pet control API and its live streams.
package web

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-focuspet/internal/log"
	"github.com/teslashibe/go-focuspet/pkg/camera"
	"github.com/teslashibe/go-focuspet/pkg/companion"
	"github.com/teslashibe/go-focuspet/pkg/hub"
	"github.com/teslashibe/go-focuspet/pkg/watch"
	"go.uber.org/zap"
)

// Config holds web server settings.
type Config struct {
	Addr           string `json:"addr" mapstructure:"addr"`
	StaticDir      string `json:"static_dir" mapstructure:"static_dir"`           // Served at / when set
	PreviewQuality int    `json:"preview_quality" mapstructure:"preview_quality"` // JPEG quality for /ws/preview
}

// DefaultConfig listens on localhost only.
func DefaultConfig() Config {
	return Config{
		Addr:           "127.0.0.1:8790",
		PreviewQuality: 70,
	}
}

// PreviewEncoder turns a raw frame into a JPEG.
type PreviewEncoder func(frame camera.Frame, quality int) ([]byte, error)

// Server is the HTTP and websocket surface over a companion.
type Server struct {
	app    *fiber.App
	config Config
	pet    *companion.Companion
	logger *zap.SugaredLogger

	// Hubs for websocket broadcast
	focusHub   *hub.Hub
	moodHub    *hub.Hub
	previewHub *hub.Hub

	encode PreviewEncoder
}

// NewServer creates the server. encode may be nil, in which case the
// preview stream stays silent.
func NewServer(cfg Config, pet *companion.Companion, encode PreviewEncoder, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = log.L()
	}
	s := &Server{
		config:     cfg,
		pet:        pet,
		encode:     encode,
		logger:     logger.With("component", "web"),
		focusHub:   hub.New("focus", logger),
		moodHub:    hub.New("mood", logger),
		previewHub: hub.New("preview", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "focuspet",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	app.Use(cors.New())

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	app.Get("/healthz", s.handleHealth)

	api := app.Group("/api")
	api.Get("/pet", s.handlePet)
	api.Get("/focus", s.handleFocus)
	api.Get("/stats", s.handleStats)
	api.Post("/stats/reset", s.handleResetStats)
	api.Get("/stats/daily", s.handleDailyStats)
	api.Post("/vision/start", s.handleStartVision)
	api.Post("/vision/stop", s.handleStopVision)
	api.Post("/gesture/:name", s.handleGesture)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/focus", websocket.New(s.serveHub(s.focusHub)))
	app.Get("/ws/mood", websocket.New(s.serveHub(s.moodHub)))
	app.Get("/ws/preview", websocket.New(s.serveHub(s.previewHub)))

	s.app = app
	return s
}

// App returns the fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the hubs and their feeds and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.StartStreams(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("web server listening", "addr", s.config.Addr)
		errCh <- s.app.Listen(s.config.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		return s.app.ShutdownWithContext(shutdownCtx)
	}
}

// StartStreams runs the hubs and feeds them from the companion until ctx is
// done.
func (s *Server) StartStreams(ctx context.Context) {
	go s.focusHub.Run(ctx)
	go s.moodHub.Run(ctx)
	go s.previewHub.Run(ctx)

	go feed(ctx, s.pet.SubscribeFocus(), func(v any) {
		s.focusHub.BroadcastJSON(v)
	})
	go feed(ctx, s.pet.SubscribeMood(), func(v any) {
		s.moodHub.BroadcastJSON(fiber.Map{"mood": v})
	})
	if s.encode != nil {
		go feed(ctx, s.pet.SubscribePreview(), func(v any) {
			frame := v.(camera.Frame)
			data, err := s.encode(frame, s.config.PreviewQuality)
			if err != nil {
				s.logger.Debugw("preview encode failed", "error", err)
				return
			}
			s.previewHub.BroadcastBinary(data)
		})
	}
}

// feed forwards every value observed on rx until ctx is done or the cell
// closes.
func feed[T any](ctx context.Context, rx *watch.Receiver[T], send func(any)) {
	for {
		if err := rx.Changed(ctx); err != nil {
			return
		}
		send(rx.Value())
	}
}

func (s *Server) serveHub(h *hub.Hub) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		hub.NewClient(h, conn).Run()
	}
}

// Shutdown gracefully stops the web server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Warnw("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
