package controllers

import (
	"context"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PayFox/app/models"
)

func seedEvent(t *testing.T, f *billingFixture, eventID string) {
	t.Helper()
	payload := subscriptionDeletedPayload(eventID, "cus_1")
	_, _, err := f.repo.CreateWebhookEventIfNotExists(context.Background(), &models.BillingWebhookEvent{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: eventID,
		EventType:       "customer.subscription.deleted",
		AccountRef:      "cus_1",
		PayloadJSON:     string(payload),
		ReceivedAt:      time.Now(),
	})
	require.NoError(t, err)
}

func seedExhausted(t *testing.T, f *billingFixture, eventID string) {
	t.Helper()
	seedEvent(t, f, eventID)
	f.repo.SetRecord(models.BillingProcessingRecord{
		EventID:      eventID,
		EventType:    "customer.subscription.deleted",
		Status:       models.ProcessingStatusFailed,
		Exhausted:    true,
		AttemptCount: 8,
		LastError:    "store unavailable",
	})
}

func TestAdminBilling_FailedEventsAndDetail(t *testing.T) {
	f := newBillingFixture(t)
	seedExhausted(t, f, "evt_dead")

	status, body := f.do(t, fiber.MethodGet, "/admin/billing/events/failed?limit=10", nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, body["count"])

	status, body = f.do(t, fiber.MethodGet, "/admin/billing/events/evt_dead", nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	record, ok := body["record"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "evt_dead", record["event_id"])
	assert.Equal(t, true, record["exhausted"])

	status, _ = f.do(t, fiber.MethodGet, "/admin/billing/events/evt_missing", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestAdminBilling_Replay(t *testing.T) {
	f := newBillingFixture(t)
	seedExhausted(t, f, "evt_dead")
	seedEvent(t, f, "evt_done")
	f.repo.SetRecord(models.BillingProcessingRecord{
		EventID:   "evt_done",
		EventType: "customer.subscription.deleted",
		Status:    models.ProcessingStatusSucceeded,
	})

	status, body := f.do(t, fiber.MethodPost, "/admin/billing/events/evt_dead/replay", nil, nil)
	require.Equal(t, fiber.StatusAccepted, status)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, 1, f.queue.Len())
	assert.Equal(t, models.ProcessingStatusPending, f.repo.Record("evt_dead").Status)

	status, _ = f.do(t, fiber.MethodPost, "/admin/billing/events/evt_done/replay", nil, nil)
	assert.Equal(t, fiber.StatusConflict, status)

	status, _ = f.do(t, fiber.MethodPost, "/admin/billing/events/evt_missing/replay", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, 1, f.queue.Len())
}

func TestAdminBilling_QueueStats(t *testing.T) {
	f := newBillingFixture(t)

	status, body := f.do(t, fiber.MethodGet, "/admin/billing/queue", nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 2, body["pending"])
	assert.EqualValues(t, 3, body["delayed"])
}
