// Package sink is a local development collector. It implements every
// endpoint the client pipeline talks to, aggregates what it receives in
// memory, and exposes debug endpoints for inspection. Point a client's
// APIHost at it and watch events arrive.
package sink

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"go.uber.org/zap"

	"github.com/seentics/seentics-go/internal/core"
)

// Sink is the collector server.
type Sink struct {
	app      *fiber.App
	store    *Store
	fixtures *Fixtures
	log      *zap.Logger
}

type eventBatch struct {
	SiteID string       `json:"siteId"`
	Events []core.Event `json:"events"`
}

type funnelBatch struct {
	SiteID string        `json:"siteId"`
	Events []FunnelEvent `json:"events"`
}

type heatmapRecord struct {
	WebsiteID string         `json:"website_id"`
	Points    []HeatmapPoint `json:"points"`
}

// New builds a sink serving the given fixtures.
func New(fixtures *Fixtures, logger *zap.Logger) *Sink {
	if fixtures == nil {
		fixtures = &Fixtures{}
	}
	s := &Sink{
		app:      fiber.New(fiber.Config{AppName: "seentics-sink"}),
		store:    newStore(),
		fixtures: fixtures,
		log:      logger,
	}
	s.routes()
	return s
}

func (s *Sink) routes() {
	app := s.app
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
	}))
	app.Use(s.requestLogger)

	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy", "service": "seentics-sink"})
	})

	// Analytics
	app.Post("/api/v1/analytics/event/batch", s.handleEventBatch)
	app.Get("/api/v1/tracker/config/:siteId", s.handleTrackerConfig)

	// Funnels
	app.Get("/api/v1/funnels/active", s.handleActiveFunnels)
	app.Post("/api/v1/funnels/track", s.handleFunnelTrack)
	app.Post("/api/v1/funnels/batch", s.handleFunnelBatch)

	// Heatmaps
	app.Post("/api/v1/heatmaps/record", s.handleHeatmapRecord)

	// Workflows
	app.Get("/api/v1/workflows/site/:siteId/active", s.handleActiveWorkflows)
	app.Post("/api/v1/workflows/execution/action", s.handleExecution)

	// Debug
	app.Get("/debug/stats", func(c fiber.Ctx) error {
		return c.JSON(s.store.Stats())
	})
	app.Get("/debug/events", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"events": s.store.Events()})
	})
}

func (s *Sink) requestLogger(c fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.log.Info("request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", c.Response().StatusCode()),
		zap.Duration("duration", time.Since(start)),
	)
	return err
}

func (s *Sink) handleEventBatch(c fiber.Ctx) error {
	var batch eventBatch
	if err := c.Bind().Body(&batch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
	}
	if batch.SiteID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "siteId is required"})
	}
	s.store.addEvents(batch.Events)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"accepted": len(batch.Events)})
}

func (s *Sink) handleTrackerConfig(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"goals": s.fixtures.Goals})
}

func (s *Sink) handleActiveFunnels(c fiber.Ctx) error {
	if c.Query("siteId") == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "siteId is required"})
	}
	return c.JSON(fiber.Map{"funnels": s.fixtures.Funnels})
}

func (s *Sink) handleFunnelTrack(c fiber.Ctx) error {
	var ev FunnelEvent
	if err := c.Bind().Body(&ev); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
	}
	s.store.addFunnelEvents([]FunnelEvent{ev})
	return c.SendStatus(fiber.StatusAccepted)
}

func (s *Sink) handleFunnelBatch(c fiber.Ctx) error {
	var batch funnelBatch
	if err := c.Bind().Body(&batch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
	}
	s.store.addFunnelEvents(batch.Events)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"accepted": len(batch.Events)})
}

func (s *Sink) handleHeatmapRecord(c fiber.Ctx) error {
	var rec heatmapRecord
	if err := c.Bind().Body(&rec); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
	}
	s.store.addPoints(rec.Points)
	return c.SendStatus(fiber.StatusAccepted)
}

func (s *Sink) handleActiveWorkflows(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"workflows": s.fixtures.Workflows})
}

func (s *Sink) handleExecution(c fiber.Ctx) error {
	var ex Execution
	if err := c.Bind().Body(&ex); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
	}
	s.store.addExecution(ex)
	return c.SendStatus(fiber.StatusAccepted)
}

// Store exposes the aggregation layer, mainly for tests.
func (s *Sink) Store() *Store { return s.store }

// App exposes the fiber app for in-process testing.
func (s *Sink) App() *fiber.App { return s.app }

// Listen blocks serving on the given port.
func (s *Sink) Listen(port string) error {
	s.log.Info("sink listening", zap.String("port", port))
	return s.app.Listen(":" + port)
}
