package billing

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PayFox/app/models"
)

// EventContext is what a handler gets to look at.
type EventContext struct {
	Event    *StripeEvent
	Account  *models.Account
	Notifier TrialEndingNotifier
}

// HandlerFunc turns one event into the billing attribute changes it implies.
type HandlerFunc func(ctx context.Context, ec *EventContext) (AccountUpdate, error)

// Route binds an event type to its handler. Routes with NeedsAccount are
// skipped as ignored when the gateway customer has no local account.
type Route struct {
	Handle       HandlerFunc
	NeedsAccount bool
}

// Routes is the event type routing table.
type Routes map[string]Route

// DefaultRoutes returns the routing table for all handled gateway events.
func DefaultRoutes() Routes {
	ack := Route{Handle: acknowledge}
	return Routes{
		"charge.succeeded": ack,
		"charge.failed":    ack,
		"charge.refunded":  ack,
		"charge.captured":  ack,
		"charge.updated":   ack,

		"charge.dispute.created": ack,
		"charge.dispute.updated": ack,
		"charge.dispute.closed":  ack,

		"customer.deleted": {Handle: deactivate, NeedsAccount: true},

		"customer.subscription.created":        {Handle: subscriptionChanged, NeedsAccount: true},
		"customer.subscription.updated":        {Handle: subscriptionChanged, NeedsAccount: true},
		"customer.subscription.deleted":        {Handle: deactivate, NeedsAccount: true},
		"customer.subscription.trial_will_end": {Handle: trialWillEnd, NeedsAccount: true},

		"invoice.created":           ack,
		"invoice.updated":           ack,
		"invoice.payment_succeeded": {Handle: invoicePaid, NeedsAccount: true},
		"invoice.payment_failed":    {Handle: invoicePaymentFailed, NeedsAccount: true},

		"invoiceitem.created": ack,
		"invoiceitem.updated": ack,
		"invoiceitem.deleted": ack,
	}
}

func acknowledge(_ context.Context, _ *EventContext) (AccountUpdate, error) {
	return AccountUpdate{}, nil
}

// deactivate ends access for a deleted subscription or customer. A paused
// plan is cleared so the account reports cancelled rather than paused.
func deactivate(_ context.Context, _ *EventContext) (AccountUpdate, error) {
	return AccountUpdate{
		Active:     set(false),
		PausedPlan: set[*string](nil),
	}, nil
}

func subscriptionChanged(_ context.Context, ec *EventContext) (AccountUpdate, error) {
	var sub stripeSubscription
	if err := ec.Event.DecodeObject(&sub); err != nil {
		return AccountUpdate{}, Permanent(err)
	}
	status := strings.ToLower(strings.TrimSpace(sub.Status))

	u := AccountUpdate{
		Active:      set(isLiveSubscriptionStatus(status)),
		CancelledAt: set[*time.Time](nil),
		ExpiresAt:   set[*time.Time](nil),
		PausedPlan:  set[*string](nil),
	}
	if sub.CancelAtPeriodEnd {
		cancelledAt := unixPtr(derefInt64(sub.CanceledAt))
		if cancelledAt == nil {
			at := ec.Event.CreatedAt()
			cancelledAt = &at
		}
		u.CancelledAt = set(cancelledAt)
		u.ExpiresAt = set(sub.periodEnd())
	}
	if sub.PauseCollection != nil || status == "paused" {
		plan := sub.planRef()
		u.PausedPlan = set(&plan)
	}
	return u, nil
}

func trialWillEnd(ctx context.Context, ec *EventContext) (AccountUpdate, error) {
	var sub stripeSubscription
	if err := ec.Event.DecodeObject(&sub); err != nil {
		return AccountUpdate{}, Permanent(err)
	}
	if ec.Notifier == nil {
		log.Warnf("[BillingDispatcher] No mailer configured, trial ending notice for account %d not sent", ec.Account.ID)
		return AccountUpdate{}, nil
	}
	if err := ec.Notifier.SendTrialEndingNotice(ctx, ec.Account, unixPtr(derefInt64(sub.TrialEnd))); err != nil {
		log.Warnf("[BillingDispatcher] Trial ending notice for account %d failed: %v", ec.Account.ID, err)
	}
	return AccountUpdate{}, nil
}

func invoicePaid(_ context.Context, _ *EventContext) (AccountUpdate, error) {
	return AccountUpdate{Active: set(true)}, nil
}

// invoicePaymentFailed leaves the account untouched; the gateway retries the
// charge and eventually emits a subscription update or deletion.
func invoicePaymentFailed(_ context.Context, ec *EventContext) (AccountUpdate, error) {
	log.Warnf("[BillingDispatcher] Invoice payment failed for account %d (event %s)", ec.Account.ID, ec.Event.ID)
	return AccountUpdate{}, nil
}

func isLiveSubscriptionStatus(status string) bool {
	switch status {
	case "active", "trialing", "past_due":
		return true
	default:
		return false
	}
}

func derefInt64(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
