package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"echoreach/internal/config"
)

// PolicyHandler serves and updates the active decision policy.
type PolicyHandler struct {
	policies *config.PolicyStore
}

// NewPolicyHandler creates a new policy handler
func NewPolicyHandler(policies *config.PolicyStore) *PolicyHandler {
	return &PolicyHandler{policies: policies}
}

// Get handles GET /api/policy
func (h *PolicyHandler) Get(c *fiber.Ctx) error {
	return c.JSON(h.policies.Current())
}

// Update handles PUT /api/policy. The change applies in memory immediately;
// the YAML file on disk remains authoritative across restarts.
func (h *PolicyHandler) Update(c *fiber.Ctx) error {
	policy := h.policies.Current()
	if err := c.BodyParser(&policy); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid policy body",
		})
	}

	if policy.DetectionThreshold <= 0 || policy.DetectionThreshold > 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "detection_threshold must be in (0,1]",
		})
	}
	if policy.MaxDailyActions < 0 || policy.CooldownMinutes < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "max_daily_actions and cooldown_minutes must be non-negative",
		})
	}

	h.policies.Update(policy)
	log.Printf("✅ [POLICY] Updated by %v", c.Locals("operator_id"))
	return c.JSON(policy)
}
