package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"echoreach/internal/agent"
	"echoreach/internal/models"
)

const maxBatchSize = 100

// InboxHandler accepts batches of inbound posts from the dashboard and runs
// them through the decision engine.
type InboxHandler struct {
	engine  *agent.Engine
	workers int
}

// NewInboxHandler creates a new inbox handler
func NewInboxHandler(engine *agent.Engine, workers int) *InboxHandler {
	return &InboxHandler{engine: engine, workers: workers}
}

// Process handles POST /api/inbox/process
func (h *InboxHandler) Process(c *fiber.Ctx) error {
	var req struct {
		Posts []models.Post `json:"posts"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if len(req.Posts) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No posts provided",
		})
	}
	if len(req.Posts) > maxBatchSize {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Batch too large",
			"max":   maxBatchSize,
		})
	}
	for i, post := range req.Posts {
		if post.ID == "" || post.CounterpartyID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Every post needs an id and counterparty_id",
				"index": i,
			})
		}
	}

	log.Printf("📥 [INBOX] Processing batch of %d posts", len(req.Posts))
	results := h.engine.ProcessBatch(c.Context(), req.Posts, h.workers)

	acted := 0
	for _, r := range results {
		if r.Outcome == models.OutcomeActed {
			acted++
		}
	}

	return c.JSON(fiber.Map{
		"results": results,
		"total":   len(results),
		"acted":   acted,
	})
}
