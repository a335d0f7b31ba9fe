package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"echoreach/internal/agent"
	"echoreach/internal/config"
	"echoreach/internal/database"
	"echoreach/internal/gateway"
	"echoreach/internal/services"
)

// AdminHandler exposes the administrative controls: reset rate windows,
// reset the result cache, reset daily counters, and status snapshots.
type AdminHandler struct {
	gw       *gateway.Gateway
	engine   *agent.Engine
	policies *config.PolicyStore
	store    *database.SQLiteStore
	eventLog *services.EventLog
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(gw *gateway.Gateway, engine *agent.Engine, policies *config.PolicyStore, store *database.SQLiteStore, eventLog *services.EventLog) *AdminHandler {
	return &AdminHandler{gw: gw, engine: engine, policies: policies, store: store, eventLog: eventLog}
}

// RateLimits handles GET /api/ratelimits
func (h *AdminHandler) RateLimits(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"endpoints": h.gw.Tracker().Snapshot(),
	})
}

// AgentStatus handles GET /api/agent/status
func (h *AdminHandler) AgentStatus(c *fiber.Ctx) error {
	policy := h.policies.Current()

	status := fiber.Map{
		"state":          h.engine.State().Snapshot(policy.Cooldown()),
		"cache_entries":  h.gw.Cache().Len(),
		"dropped_events": h.eventLog.Dropped(),
	}

	limit := c.QueryInt("events", 25)
	events, err := h.store.RecentEvents(c.Context(), limit)
	if err != nil {
		log.Printf("⚠️  [ADMIN] Failed to load recent events: %v", err)
	} else {
		status["recent_events"] = events
	}

	return c.JSON(status)
}

// ResetRateLimits handles POST /api/admin/reset/ratelimits
func (h *AdminHandler) ResetRateLimits(c *fiber.Ctx) error {
	h.gw.Tracker().ClearAll()
	log.Printf("🔄 [ADMIN] Rate windows cleared by %v", c.Locals("operator_id"))
	return c.JSON(fiber.Map{"status": "rate windows cleared"})
}

// ResetCache handles POST /api/admin/reset/cache
func (h *AdminHandler) ResetCache(c *fiber.Ctx) error {
	h.gw.Cache().Reset()
	log.Printf("🔄 [ADMIN] Result cache cleared by %v", c.Locals("operator_id"))
	return c.JSON(fiber.Map{"status": "cache cleared"})
}

// ResetDaily handles POST /api/admin/reset/daily
func (h *AdminHandler) ResetDaily(c *fiber.Ctx) error {
	policy := h.policies.Current()
	h.engine.State().ResetDaily(policy.Cooldown())
	log.Printf("🔄 [ADMIN] Daily counters reset by %v", c.Locals("operator_id"))
	return c.JSON(fiber.Map{"status": "daily counters reset"})
}
