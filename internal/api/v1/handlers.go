package apiv1

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/vikrampresence-a11y/storefront/internal/pkg/database"
	"github.com/vikrampresence-a11y/storefront/internal/pkg/jobqueue"
	"github.com/vikrampresence-a11y/storefront/internal/pkg/metrics/counter"
	"github.com/vikrampresence-a11y/storefront/internal/pkg/payment"
)

// APIServer serves the operator API: the read-only surface used to triage
// failed fulfillments and watch webhook outcomes.
type APIServer struct{}

// NewAPIServer creates a new API server instance
func NewAPIServer() *APIServer {
	return &APIServer{}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ping": "pong"})
}

// GetWebhookEvents lists the newest idempotency ledger entries. Entries in
// the failed state are the manual-resend queue.
func (s *APIServer) GetWebhookEvents(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	svc := payment.NewServiceFromDB(database.GetDB())
	events, err := svc.ListRecentWebhookEvents(ctx, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "ledger_query_failed",
		})
	}
	return c.JSON(fiber.Map{"events": events, "count": len(events)})
}

// GetWebhookStats returns webhook outcome counters and fulfillment job stats.
func (s *APIServer) GetWebhookStats(c *fiber.Ctx) error {
	outcomes, err := counter.Snapshot()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "counter_snapshot_failed",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	queue := jobqueue.GetManager().GetQueue()
	jobs, err := queue.GetJobStats(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "job_stats_failed",
		})
	}
	pending, _ := queue.GetQueueSize(ctx)
	processing, _ := queue.GetProcessingSize(ctx)

	return c.JSON(fiber.Map{
		"outcomes": outcomes,
		"jobs": fiber.Map{
			"stats":      jobs,
			"pending":    pending,
			"processing": processing,
		},
	})
}

// RegisterHandlers attaches the operator API routes to a router group.
func RegisterHandlers(router fiber.Router, s *APIServer) {
	router.Get("/ping", s.GetPing)
	router.Get("/webhook-events", s.GetWebhookEvents)
	router.Get("/webhook-stats", s.GetWebhookStats)
}
