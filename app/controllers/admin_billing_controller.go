package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PayFox/internal/pkg/billing"
	"github.com/ManuelReschke/PayFox/internal/pkg/jobqueue"
)

// QueueStatsSource is the part of the job queue the operator views read.
type QueueStatsSource interface {
	GetQueueStats(ctx context.Context) (*jobqueue.QueueStats, error)
}

// AdminBillingController exposes failed events and replay to operators.
type AdminBillingController struct {
	service *billing.Service
	queue   QueueStatsSource
}

// NewAdminBillingController creates an admin billing controller.
func NewAdminBillingController(service *billing.Service, queue QueueStatsSource) *AdminBillingController {
	return &AdminBillingController{service: service, queue: queue}
}

var adminBillingController *AdminBillingController

// InitializeAdminBillingController sets the global admin billing controller.
func InitializeAdminBillingController(service *billing.Service, queue QueueStatsSource) {
	adminBillingController = NewAdminBillingController(service, queue)
}

func withAdminBilling(h func(*AdminBillingController, *fiber.Ctx) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if adminBillingController == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "billing_unavailable"})
		}
		return h(adminBillingController, c)
	}
}

// Adapter functions for the router
var (
	HandleAdminFailedEvents = withAdminBilling((*AdminBillingController).HandleFailedEvents)
	HandleAdminEventDetail  = withAdminBilling((*AdminBillingController).HandleEventDetail)
	HandleAdminEventReplay  = withAdminBilling((*AdminBillingController).HandleEventReplay)
	HandleAdminQueueStats   = withAdminBilling((*AdminBillingController).HandleQueueStats)
)

// HandleFailedEvents lists events that exhausted their retries.
func (ac *AdminBillingController) HandleFailedEvents(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)
	recs, err := ac.service.ListFailedEvents(c.UserContext(), limit)
	if err != nil {
		log.Errorf("[AdminBilling] Listing failed events: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "list_failed"})
	}
	return c.JSON(fiber.Map{"events": recs, "count": len(recs)})
}

// HandleEventDetail shows the processing record and audit trail of an event.
func (ac *AdminBillingController) HandleEventDetail(c *fiber.Ctx) error {
	detail, err := ac.service.GetEventDetail(c.UserContext(), c.Params("event_id"))
	if err != nil {
		return c.Status(statusForBillingError(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(detail)
}

// HandleEventReplay puts an exhausted event back on the queue.
func (ac *AdminBillingController) HandleEventReplay(c *fiber.Ctx) error {
	eventID := c.Params("event_id")
	rec, err := ac.service.ReplayEvent(c.UserContext(), eventID)
	if err != nil {
		log.Warnf("[AdminBilling] Replay of %s failed: %v", eventID, err)
		return c.Status(statusForBillingError(err)).JSON(fiber.Map{"error": err.Error()})
	}
	log.Infof("[AdminBilling] Event %s replayed by operator", eventID)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"ok": true, "record": rec})
}

// HandleQueueStats reports queue depth and lifetime counters.
func (ac *AdminBillingController) HandleQueueStats(c *fiber.Ctx) error {
	stats, err := ac.queue.GetQueueStats(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "queue_unavailable"})
	}
	return c.JSON(stats)
}
