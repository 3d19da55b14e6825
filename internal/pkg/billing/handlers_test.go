package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PayFox/app/models"
)

type recordingNotifier struct {
	calls    int
	trialEnd *time.Time
	err      error
}

func (n *recordingNotifier) SendTrialEndingNotice(_ context.Context, _ *models.Account, trialEnd *time.Time) error {
	n.calls++
	n.trialEnd = trialEnd
	return n.err
}

func eventContext(t *testing.T, eventType string, created int64, object map[string]interface{}) *EventContext {
	t.Helper()
	ev, err := ParseStripeEvent(rawEvent(t, "evt_test", eventType, created, object))
	require.NoError(t, err)
	return &EventContext{Event: ev, Account: &models.Account{ID: 7, Active: true}}
}

func applyTo(u AccountUpdate, s BillingSnapshot) *BillingSnapshot {
	u.ApplyTo(&s)
	return &s
}

func TestDefaultRoutes_CoverGatewayEvents(t *testing.T) {
	routes := DefaultRoutes()
	for _, eventType := range []string{
		"charge.succeeded", "charge.failed", "charge.refunded", "charge.captured", "charge.updated",
		"charge.dispute.created", "charge.dispute.updated", "charge.dispute.closed",
		"customer.deleted",
		"customer.subscription.created", "customer.subscription.updated",
		"customer.subscription.deleted", "customer.subscription.trial_will_end",
		"invoice.created", "invoice.updated", "invoice.payment_succeeded", "invoice.payment_failed",
		"invoiceitem.created", "invoiceitem.updated", "invoiceitem.deleted",
	} {
		route, ok := routes[eventType]
		if assert.True(t, ok, "missing route for %s", eventType) {
			assert.NotNil(t, route.Handle, eventType)
		}
	}
	_, ok := routes["customer.source.created"]
	assert.False(t, ok)
}

func TestSubscriptionDeletedCancelsAccount(t *testing.T) {
	plan := "plan_pro"
	ec := eventContext(t, "customer.subscription.deleted", 1_700_000_000, map[string]interface{}{
		"id": "sub_1", "object": "subscription", "customer": "cus_1", "status": "canceled",
	})

	u, err := DefaultRoutes()["customer.subscription.deleted"].Handle(context.Background(), ec)
	require.NoError(t, err)

	snap := applyTo(u, BillingSnapshot{Active: true, PausedPlan: &plan})
	assert.Equal(t, StatusCancelled, DeriveStatus(snap, time.Now()))
}

func TestSubscriptionUpdated(t *testing.T) {
	created := int64(1_700_000_000)
	periodEnd := time.Now().Add(30 * 24 * time.Hour).Unix()
	canceledAt := created - 60

	tests := []struct {
		name   string
		object map[string]interface{}
		want   Status
	}{
		{
			name:   "active",
			object: map[string]interface{}{"id": "sub_1", "customer": "cus_1", "status": "active", "current_period_end": periodEnd},
			want:   StatusActive,
		},
		{
			name:   "trialing counts as active",
			object: map[string]interface{}{"id": "sub_1", "customer": "cus_1", "status": "trialing"},
			want:   StatusActive,
		},
		{
			name: "cancel at period end",
			object: map[string]interface{}{"id": "sub_1", "customer": "cus_1", "status": "active",
				"cancel_at_period_end": true, "canceled_at": canceledAt, "current_period_end": periodEnd},
			want: StatusCancelPending,
		},
		{
			name: "paused collection",
			object: map[string]interface{}{"id": "sub_1", "customer": "cus_1", "status": "active",
				"pause_collection": map[string]interface{}{"behavior": "void"}, "plan": map[string]interface{}{"id": "plan_pro"}},
			want: StatusPaused,
		},
		{
			name:   "unpaid is inactive",
			object: map[string]interface{}{"id": "sub_1", "customer": "cus_1", "status": "unpaid"},
			want:   StatusCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ec := eventContext(t, "customer.subscription.updated", created, tt.object)
			u, err := subscriptionChanged(context.Background(), ec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, DeriveStatus(applyTo(u, BillingSnapshot{}), time.Now()))
		})
	}
}

func TestSubscriptionUpdated_CancelRecordsDates(t *testing.T) {
	created := int64(1_700_000_000)
	periodEnd := int64(1_702_000_000)
	ec := eventContext(t, "customer.subscription.updated", created, map[string]interface{}{
		"id": "sub_1", "customer": "cus_1", "status": "active",
		"cancel_at_period_end": true, "current_period_end": periodEnd,
	})

	u, err := subscriptionChanged(context.Background(), ec)
	require.NoError(t, err)
	require.True(t, u.CancelledAt.Set)
	require.NotNil(t, u.CancelledAt.Value)
	assert.Equal(t, created, u.CancelledAt.Value.Unix(), "falls back to the event time")
	require.NotNil(t, u.ExpiresAt.Value)
	assert.Equal(t, periodEnd, u.ExpiresAt.Value.Unix())
}

func TestSubscriptionUpdated_UndecodableObjectIsPermanent(t *testing.T) {
	ec := eventContext(t, "customer.subscription.updated", 1, map[string]interface{}{
		"id": "sub_1", "customer": "cus_1", "status": 12,
	})
	_, err := subscriptionChanged(context.Background(), ec)
	assert.True(t, IsPermanent(err))
}

func TestInvoicePaidReactivates(t *testing.T) {
	ec := eventContext(t, "invoice.payment_succeeded", 1, map[string]interface{}{"id": "in_1", "customer": "cus_1"})
	u, err := invoicePaid(context.Background(), ec)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, DeriveStatus(applyTo(u, BillingSnapshot{Active: false}), time.Now()))
}

func TestTrialWillEnd(t *testing.T) {
	trialEnd := int64(1_700_100_000)
	object := map[string]interface{}{"id": "sub_1", "customer": "cus_1", "status": "trialing", "trial_end": trialEnd}

	t.Run("notifies", func(t *testing.T) {
		n := &recordingNotifier{}
		ec := eventContext(t, "customer.subscription.trial_will_end", 1, object)
		ec.Notifier = n
		u, err := trialWillEnd(context.Background(), ec)
		require.NoError(t, err)
		assert.True(t, u.Empty())
		assert.Equal(t, 1, n.calls)
		require.NotNil(t, n.trialEnd)
		assert.Equal(t, trialEnd, n.trialEnd.Unix())
	})

	t.Run("mailer failure does not fail the event", func(t *testing.T) {
		n := &recordingNotifier{err: errors.New("smtp down")}
		ec := eventContext(t, "customer.subscription.trial_will_end", 1, object)
		ec.Notifier = n
		u, err := trialWillEnd(context.Background(), ec)
		require.NoError(t, err)
		assert.True(t, u.Empty())
		assert.Equal(t, 1, n.calls)
	})

	t.Run("no mailer", func(t *testing.T) {
		ec := eventContext(t, "customer.subscription.trial_will_end", 1, object)
		u, err := trialWillEnd(context.Background(), ec)
		require.NoError(t, err)
		assert.True(t, u.Empty())
	})
}
