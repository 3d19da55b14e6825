package billing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PayFox/app/models"
	"github.com/ManuelReschke/PayFox/internal/pkg/accountlock"
	"github.com/ManuelReschke/PayFox/internal/pkg/billing"
	"github.com/ManuelReschke/PayFox/internal/pkg/billing/billingtest"
)

func signedNotification(t *testing.T, payload []byte) billing.Notification {
	t.Helper()
	return billing.Notification{
		Payload:         payload,
		SignatureHeader: billing.SignStripePayload(payload, testConfig().WebhookSecret, time.Now()),
		ReceivedAt:      time.Now(),
		RemoteIP:        "203.0.113.10",
	}
}

func TestIntake_AcceptsAndEnqueues(t *testing.T) {
	repo := billingtest.NewMemoryRepository()
	queue := &billingtest.Queue{}
	in := billing.NewIntake(repo, queue, testConfig())

	payload := billingtest.EventPayload("evt_1", "customer.subscription.deleted", time.Now(),
		map[string]interface{}{"id": "sub_1", "object": "subscription", "customer": "cus_1"})

	res, err := in.Accept(context.Background(), signedNotification(t, payload))
	require.NoError(t, err)
	assert.Equal(t, billing.IntakeAccepted, res)

	require.Equal(t, 1, queue.Len())
	env := queue.Envelopes[0]
	assert.Equal(t, "evt_1", env.EventID)
	assert.Equal(t, "customer.subscription.deleted", env.EventType)
	assert.Equal(t, "cus_1", env.AccountRef)
	assert.Equal(t, payload, env.Payload)

	stored := repo.StoredEvent("evt_1")
	require.NotNil(t, stored)
	assert.Equal(t, string(payload), stored.PayloadJSON)
	assert.Nil(t, repo.Record("evt_1"), "intake does no processing")
}

func TestIntake_BadSignatureRejectedWithoutSideEffects(t *testing.T) {
	repo := billingtest.NewMemoryRepository()
	queue := &billingtest.Queue{}
	in := billing.NewIntake(repo, queue, testConfig())

	payload := billingtest.EventPayload("evt_forged", "customer.subscription.deleted", time.Now(),
		map[string]interface{}{"id": "sub_1", "customer": "cus_1"})
	n := signedNotification(t, payload)
	n.SignatureHeader = billing.SignStripePayload(payload, "whsec_wrong", time.Now())

	res, err := in.Accept(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, billing.IntakeUnauthorized, res)
	assert.Equal(t, 0, queue.Len())
	assert.Equal(t, 0, repo.RecordCount())
	assert.Nil(t, repo.StoredEvent("evt_forged"))

	audit := repo.AuditEntries()
	require.Len(t, audit, 1)
	assert.Equal(t, models.AuditOutcomeRejected, audit[0].Outcome)
	assert.Equal(t, "evt_forged", audit[0].EventID)
}

func TestIntake_MissingSignature(t *testing.T) {
	repo := billingtest.NewMemoryRepository()
	queue := &billingtest.Queue{}
	in := billing.NewIntake(repo, queue, testConfig())

	res, err := in.Accept(context.Background(), billing.Notification{Payload: []byte(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, billing.IntakeUnauthorized, res)
	assert.Equal(t, 0, queue.Len())
}

func TestIntake_SignedButMalformed(t *testing.T) {
	repo := billingtest.NewMemoryRepository()
	queue := &billingtest.Queue{}
	in := billing.NewIntake(repo, queue, testConfig())

	res, err := in.Accept(context.Background(), signedNotification(t, []byte(`{"id":"evt_1"}`)))
	require.NoError(t, err)
	assert.Equal(t, billing.IntakeInvalid, res)
	assert.Equal(t, 0, queue.Len())
}

func TestIntake_ProcessedEventIsDuplicate(t *testing.T) {
	repo := billingtest.NewMemoryRepository()
	repo.SetRecord(models.BillingProcessingRecord{EventID: "evt_1", Status: models.ProcessingStatusSucceeded})
	queue := &billingtest.Queue{}
	in := billing.NewIntake(repo, queue, testConfig())

	payload := billingtest.EventPayload("evt_1", "invoice.created", time.Now(), map[string]interface{}{"id": "in_1"})
	res, err := in.Accept(context.Background(), signedNotification(t, payload))
	require.NoError(t, err)
	assert.Equal(t, billing.IntakeDuplicate, res)
	assert.Equal(t, 0, queue.Len())
}

func TestIntake_UnprocessedRedeliveryIsQueuedAgain(t *testing.T) {
	repo := billingtest.NewMemoryRepository()
	queue := &billingtest.Queue{}
	in := billing.NewIntake(repo, queue, testConfig())
	payload := billingtest.EventPayload("evt_1", "invoice.created", time.Now(), map[string]interface{}{"id": "in_1"})

	for i := 0; i < 2; i++ {
		res, err := in.Accept(context.Background(), signedNotification(t, payload))
		require.NoError(t, err)
		assert.Equal(t, billing.IntakeAccepted, res)
	}
	assert.Equal(t, 2, queue.Len())
}

func TestIntake_EnqueueFailureSurfaces(t *testing.T) {
	repo := billingtest.NewMemoryRepository()
	queue := &billingtest.Queue{Err: errors.New("redis down")}
	in := billing.NewIntake(repo, queue, testConfig())

	payload := billingtest.EventPayload("evt_1", "invoice.created", time.Now(), map[string]interface{}{"id": "in_1"})
	_, err := in.Accept(context.Background(), signedNotification(t, payload))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")
}

func TestIntakeThenDispatch_EndToEnd(t *testing.T) {
	repo := billingtest.NewMemoryRepository()
	id := repo.AddAccount(models.Account{StripeCustomerID: "cus_1", Active: true})
	queue := &billingtest.Queue{}
	cfg := testConfig()
	in := billing.NewIntake(repo, queue, cfg)
	d := billing.NewDispatcher(repo, accountlock.NewLocalLocker(), nil, cfg)
	svc := billing.NewService(repo, queue)

	payload := billingtest.EventPayload("evt_1", "customer.subscription.deleted", time.Now(),
		map[string]interface{}{"id": "sub_1", "object": "subscription", "customer": "cus_1", "status": "canceled"})
	n := signedNotification(t, payload)

	res, err := in.Accept(context.Background(), n)
	require.NoError(t, err)
	require.Equal(t, billing.IntakeAccepted, res)
	require.NoError(t, d.Dispatch(context.Background(), queue.Envelopes[0]))

	view, err := svc.AccountStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusCancelled, view.Status)
	assert.Equal(t, "Cancelled", view.Label)

	// gateway redelivers after a lost acknowledgment
	res, err = in.Accept(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, billing.IntakeDuplicate, res)
	assert.Equal(t, 1, queue.Len())
}
