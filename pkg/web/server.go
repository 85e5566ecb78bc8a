// Package web exposes the controller to host applications: blocking move
// endpoints, pose queries, prometheus metrics, and a telemetry websocket.
package web

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ospreylabs/go-scout/internal/log"
	"github.com/ospreylabs/go-scout/pkg/drive"
	"github.com/ospreylabs/go-scout/pkg/hub"
	"github.com/ospreylabs/go-scout/pkg/scout"
)

// Server is the host-facing HTTP surface.
type Server struct {
	app  *fiber.App
	port string

	scout       *scout.Scout
	namedFrames []string

	telemetry *hub.Hub
	started   time.Time
}

// NewServer builds the API server around a scout controller. namedFrames
// lists the extra frames served by the pose endpoint.
func NewServer(port string, sc *scout.Scout, namedFrames []string) *Server {
	s := &Server{
		port:        port,
		scout:       sc,
		namedFrames: namedFrames,
		telemetry:   hub.New("telemetry"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "scout controller",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/pose", s.handlePose)
	api.Get("/poses", s.handleNamedPoses)
	api.Post("/episode", s.handleNewEpisode)

	move := api.Group("/move")
	move.Post("/distance", s.handleMoveDistance)
	move.Post("/angle", s.handleMoveAngle)
	move.Post("/pose", s.handleMovePose)
	move.Post("/relative", s.handleMoveRelative)
	move.Post("/next", s.handleMoveNext)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/telemetry", websocket.New(s.handleTelemetryWS))

	s.app = app
	return s
}

// Start runs the server. Blocks until shutdown.
func (s *Server) Start() error {
	s.started = time.Now()
	go s.telemetry.Run()
	log.Info("api listening", "port", s.port)
	return s.app.Listen(":" + s.port)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// VelocitySink returns a sink that mirrors every velocity command onto the
// telemetry websocket. Tee it with the bridge sink.
func (s *Server) VelocitySink() drive.VelocitySink {
	return &telemetrySink{hub: s.telemetry}
}

type velocityEvent struct {
	Type    string  `json:"type"`
	Linear  float64 `json:"linear"`
	Angular float64 `json:"angular"`
}

type telemetrySink struct {
	hub *hub.Hub
}

func (t *telemetrySink) Publish(linear, angular float64) {
	t.hub.BroadcastJSON(velocityEvent{Type: "cmd_vel", Linear: linear, Angular: angular})
}

func (s *Server) handleTelemetryWS(conn *websocket.Conn) {
	client := hub.NewClient(s.telemetry, conn)
	client.Run()
}
