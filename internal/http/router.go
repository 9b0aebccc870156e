package http

import (
	"time"

	"github.com/adpilot/backend/internal/config"
	"github.com/adpilot/backend/internal/http/handlers"
	"github.com/adpilot/backend/internal/middleware"
	"github.com/adpilot/backend/internal/rbac"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	actionHandler *handlers.ActionHandler,
	auditHandler *handlers.AuditHandler,
	guardrailHandler *handlers.GuardrailHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	// Auth (public)
	api.Post("/auth/session", authHandler.CreateSession)

	// Rate-limited public endpoints
	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	// Meta (public, no auth required)
	metaHandler := handlers.NewMetaHandler()
	api.Get("/meta/action-types", metaHandler.GetActionTypes)

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// Actions
	protected.Post("/actions/propose",
		middleware.RequirePermission(rbac.PermProposeAction), actionHandler.Propose)
	protected.Post("/actions/queue",
		middleware.RequirePermission(rbac.PermQueueAction), actionHandler.Queue)
	protected.Post("/actions/queue/bulk",
		middleware.RequirePermission(rbac.PermQueueAction), actionHandler.QueueBulk)

	// Queue
	protected.Get("/queue",
		middleware.RequirePermission(rbac.PermViewQueue), actionHandler.QueueSnapshot)
	protected.Get("/queue/stats",
		middleware.RequirePermission(rbac.PermViewQueue), actionHandler.QueueStats)
	protected.Post("/queue/:id/confirm",
		middleware.RequirePermission(rbac.PermQueueAction), actionHandler.Confirm)
	protected.Post("/queue/:id/cancel",
		middleware.RequirePermission(rbac.PermQueueAction), actionHandler.Cancel)
	protected.Post("/queue/:id/execute",
		middleware.RequirePermission(rbac.PermExecuteAction), actionHandler.Execute)
	protected.Post("/queue/execute",
		middleware.RequirePermission(rbac.PermExecuteAction), actionHandler.ExecuteConfirmed)

	// History (undo/redo)
	protected.Get("/history",
		middleware.RequirePermission(rbac.PermViewQueue), actionHandler.History)
	protected.Post("/history/undo",
		middleware.RequirePermission(rbac.PermUndoRedo), actionHandler.Undo)
	protected.Post("/history/redo",
		middleware.RequirePermission(rbac.PermUndoRedo), actionHandler.Redo)

	// Audit log
	protected.Get("/audit",
		middleware.RequirePermission(rbac.PermViewAudit), auditHandler.Query)
	protected.Get("/audit/:id",
		middleware.RequirePermission(rbac.PermViewAudit), auditHandler.Find)

	// Guardrails
	protected.Get("/guardrails",
		middleware.RequirePermission(rbac.PermViewQueue), guardrailHandler.Get)
	protected.Put("/guardrails",
		middleware.RequirePermission(rbac.PermManageGuardrails), guardrailHandler.Update)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
