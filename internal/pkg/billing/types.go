package billing

import (
	"context"
	"time"

	"github.com/ManuelReschke/PayFox/app/models"
)

// Notification is a raw inbound webhook delivery before verification.
type Notification struct {
	Payload         []byte
	SignatureHeader string
	ReceivedAt      time.Time
	RemoteIP        string
}

// Envelope is the durable, queued representation of one gateway event.
type Envelope struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	AccountRef string    `json:"account_ref,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
	Payload    []byte    `json:"payload"`
	Signature  string    `json:"signature,omitempty"`
}

// EnvelopeFromWebhookEvent rebuilds a queued envelope from its stored copy.
func EnvelopeFromWebhookEvent(ev *models.BillingWebhookEvent) Envelope {
	return Envelope{
		EventID:    ev.ProviderEventID,
		EventType:  ev.EventType,
		AccountRef: ev.AccountRef,
		ReceivedAt: ev.ReceivedAt,
		Payload:    []byte(ev.PayloadJSON),
		Signature:  ev.Signature,
	}
}

// IntakeResult is the outcome of accepting a notification at the edge.
type IntakeResult string

const (
	IntakeAccepted     IntakeResult = "accepted"
	IntakeDuplicate    IntakeResult = "duplicate"
	IntakeUnauthorized IntakeResult = "unauthorized"
	IntakeInvalid      IntakeResult = "invalid"
)

// Enqueuer hands envelopes to the durable dispatch queue.
type Enqueuer interface {
	EnqueueEnvelope(ctx context.Context, env Envelope) error
}

// AccountLocker serializes work per account key. The returned function
// releases the lock.
type AccountLocker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// TrialEndingNotifier is the external mailer collaborator.
type TrialEndingNotifier interface {
	SendTrialEndingNotice(ctx context.Context, account *models.Account, trialEnd *time.Time) error
}
