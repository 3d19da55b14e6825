package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PayFox/internal/pkg/billing"
)

const webhookTimeout = 15 * time.Second

// BillingController serves the gateway webhook and the status read API.
type BillingController struct {
	intake  *billing.Intake
	service *billing.Service
}

// NewBillingController creates a billing controller.
func NewBillingController(intake *billing.Intake, service *billing.Service) *BillingController {
	return &BillingController{intake: intake, service: service}
}

// Global billing controller instance
var billingController *BillingController

// InitializeBillingController sets the global billing controller.
func InitializeBillingController(intake *billing.Intake, service *billing.Service) {
	billingController = NewBillingController(intake, service)
}

// GetBillingController returns the global billing controller, or nil before
// InitializeBillingController ran.
func GetBillingController() *BillingController {
	return billingController
}

// HandleStripeWebhook - Adapter for the gateway webhook
func HandleStripeWebhook(c *fiber.Ctx) error {
	bc := GetBillingController()
	if bc == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "billing_unavailable"})
	}
	return bc.HandleWebhook(c)
}

// HandleAccountStatus - Adapter for the status read API
func HandleAccountStatus(c *fiber.Ctx) error {
	bc := GetBillingController()
	if bc == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "billing_unavailable"})
	}
	return bc.HandleAccountStatus(c)
}

// HandleWebhook verifies and queues one gateway notification. Any non-2xx
// answer makes the gateway redeliver.
func (bc *BillingController) HandleWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)

	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	res, err := bc.intake.Accept(ctx, billing.Notification{
		Payload:         rawBody,
		SignatureHeader: c.Get(billing.StripeSignatureHeader),
		ReceivedAt:      time.Now(),
		RemoteIP:        c.IP(),
	})
	if err != nil {
		log.Errorf("[BillingIntake] Could not queue webhook: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "webhook_enqueue_failed"})
	}

	switch res {
	case billing.IntakeUnauthorized:
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	case billing.IntakeInvalid:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	case billing.IntakeDuplicate:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	default:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	}
}

// HandleAccountStatus returns the derived billing status of one account.
func (bc *BillingController) HandleAccountStatus(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_account_id"})
	}

	view, err := bc.service.AccountStatus(c.UserContext(), uint(id))
	if err != nil {
		log.Errorf("[BillingStatus] Status lookup for account %d failed: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "status_lookup_failed"})
	}
	return c.JSON(fiber.Map{
		"account_id":   view.AccountID,
		"status":       view.Status,
		"label":        view.Label,
		"evaluated_at": view.EvaluatedAt.UTC().Format(time.RFC3339),
	})
}

func statusForBillingError(err error) int {
	switch {
	case errors.Is(err, billing.ErrRecordNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, billing.ErrNotReplayable):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}
