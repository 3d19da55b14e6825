package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PayFox/app/models"
	"github.com/ManuelReschke/PayFox/internal/pkg/billing"
	"github.com/ManuelReschke/PayFox/internal/pkg/billing/billingtest"
	"github.com/ManuelReschke/PayFox/internal/pkg/jobqueue"
)

const testSecret = "whsec_controller"

type billingFixture struct {
	repo  *billingtest.MemoryRepository
	queue *billingtest.Queue
	app   *fiber.App
}

type fakeQueueStats struct {
	stats *jobqueue.QueueStats
	err   error
}

func (f fakeQueueStats) GetQueueStats(context.Context) (*jobqueue.QueueStats, error) {
	return f.stats, f.err
}

func newBillingFixture(t *testing.T) *billingFixture {
	t.Helper()
	repo := billingtest.NewMemoryRepository()
	queue := &billingtest.Queue{}
	cfg := billing.DefaultConfig()
	cfg.WebhookSecret = testSecret

	InitializeBillingController(billing.NewIntake(repo, queue, cfg), billing.NewService(repo, queue))
	InitializeAdminBillingController(billing.NewService(repo, queue), fakeQueueStats{
		stats: &jobqueue.QueueStats{Pending: 2, Processing: 1, Delayed: 3},
	})
	t.Cleanup(func() {
		billingController = nil
		adminBillingController = nil
	})

	app := fiber.New()
	app.Post("/webhooks/stripe", HandleStripeWebhook)
	app.Get("/api/v1/accounts/:id/status", HandleAccountStatus)
	app.Get("/admin/billing/events/failed", HandleAdminFailedEvents)
	app.Get("/admin/billing/events/:event_id", HandleAdminEventDetail)
	app.Post("/admin/billing/events/:event_id/replay", HandleAdminEventReplay)
	app.Get("/admin/billing/queue", HandleAdminQueueStats)

	return &billingFixture{repo: repo, queue: queue, app: app}
}

func (f *billingFixture) do(t *testing.T, method, path string, body []byte, header map[string]string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func subscriptionDeletedPayload(eventID, customer string) []byte {
	return billingtest.EventPayload(eventID, "customer.subscription.deleted", time.Now(), map[string]interface{}{
		"id":       "sub_1",
		"object":   "subscription",
		"customer": customer,
		"status":   "canceled",
	})
}

func TestHandleStripeWebhook(t *testing.T) {
	tests := []struct {
		name       string
		signature  func(payload []byte) string
		payload    []byte
		queueErr   error
		wantStatus int
		wantKey    string
		wantQueued int
	}{
		{
			name:       "valid signature is queued",
			signature:  func(p []byte) string { return billing.SignStripePayload(p, testSecret, time.Now()) },
			payload:    subscriptionDeletedPayload("evt_ok", "cus_1"),
			wantStatus: fiber.StatusOK,
			wantKey:    "ok",
			wantQueued: 1,
		},
		{
			name:       "wrong secret is rejected",
			signature:  func(p []byte) string { return billing.SignStripePayload(p, "whsec_other", time.Now()) },
			payload:    subscriptionDeletedPayload("evt_forged", "cus_1"),
			wantStatus: fiber.StatusUnauthorized,
			wantKey:    "error",
		},
		{
			name:       "missing signature is rejected",
			signature:  func([]byte) string { return "" },
			payload:    subscriptionDeletedPayload("evt_unsigned", "cus_1"),
			wantStatus: fiber.StatusUnauthorized,
			wantKey:    "error",
		},
		{
			name:       "signed garbage is a bad request",
			signature:  func(p []byte) string { return billing.SignStripePayload(p, testSecret, time.Now()) },
			payload:    []byte(`{"nope":true}`),
			wantStatus: fiber.StatusBadRequest,
			wantKey:    "error",
		},
		{
			name:       "queue failure asks for redelivery",
			signature:  func(p []byte) string { return billing.SignStripePayload(p, testSecret, time.Now()) },
			payload:    subscriptionDeletedPayload("evt_down", "cus_1"),
			queueErr:   errors.New("redis down"),
			wantStatus: fiber.StatusServiceUnavailable,
			wantKey:    "error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBillingFixture(t)
			f.queue.Err = tt.queueErr

			status, body := f.do(t, fiber.MethodPost, "/webhooks/stripe", tt.payload, map[string]string{
				billing.StripeSignatureHeader: tt.signature(tt.payload),
			})
			assert.Equal(t, tt.wantStatus, status)
			assert.Contains(t, body, tt.wantKey)
			assert.Equal(t, tt.wantQueued, f.queue.Len())
		})
	}
}

func TestHandleStripeWebhook_DuplicateOfProcessedEvent(t *testing.T) {
	f := newBillingFixture(t)
	f.repo.SetRecord(models.BillingProcessingRecord{
		EventID:   "evt_done",
		EventType: "customer.subscription.deleted",
		Status:    models.ProcessingStatusSucceeded,
	})

	payload := subscriptionDeletedPayload("evt_done", "cus_1")
	status, body := f.do(t, fiber.MethodPost, "/webhooks/stripe", payload, map[string]string{
		billing.StripeSignatureHeader: billing.SignStripePayload(payload, testSecret, time.Now()),
	})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["duplicate"])
	assert.Equal(t, 0, f.queue.Len())
}

func TestHandleStripeWebhook_NotInitialized(t *testing.T) {
	billingController = nil
	app := fiber.New()
	app.Post("/webhooks/stripe", HandleStripeWebhook)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/webhooks/stripe", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestHandleAccountStatus(t *testing.T) {
	f := newBillingFixture(t)
	past := time.Now().Add(-time.Hour)
	active := f.repo.AddAccount(models.Account{StripeCustomerID: "cus_a", Active: true})
	expired := f.repo.AddAccount(models.Account{StripeCustomerID: "cus_b", Active: true, CancelledAt: &past, ExpiresAt: &past})

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantState  string
		wantLabel  string
	}{
		{"active account", "/api/v1/accounts/" + itoa(active) + "/status", fiber.StatusOK, string(billing.StatusActive), billing.StatusActive.Label()},
		{"expired account", "/api/v1/accounts/" + itoa(expired) + "/status", fiber.StatusOK, string(billing.StatusExpired), billing.StatusExpired.Label()},
		{"unknown account", "/api/v1/accounts/4242/status", fiber.StatusOK, string(billing.StatusUnknown), billing.StatusUnknown.Label()},
		{"invalid id", "/api/v1/accounts/abc/status", fiber.StatusBadRequest, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := f.do(t, fiber.MethodGet, tt.path, nil, nil)
			assert.Equal(t, tt.wantStatus, status)
			if tt.wantState == "" {
				assert.Contains(t, body, "error")
				return
			}
			assert.Equal(t, tt.wantState, body["status"])
			assert.Equal(t, tt.wantLabel, body["label"])
			assert.NotEmpty(t, body["evaluated_at"])
		})
	}
}

func TestHandleAccountStatus_StoreError(t *testing.T) {
	f := newBillingFixture(t)
	f.repo.FailNext = 1

	status, body := f.do(t, fiber.MethodGet, "/api/v1/accounts/1/status", nil, nil)
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "status_lookup_failed", body["error"])
}

func itoa(id uint) string {
	return fmt.Sprint(id)
}
