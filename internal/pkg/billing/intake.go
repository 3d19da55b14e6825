package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PayFox/app/models"
)

// Intake verifies inbound notifications and hands them to the dispatch queue.
// It performs no business logic so the gateway gets a fast acknowledgment.
type Intake struct {
	repo  Repository
	queue Enqueuer
	cfg   Config
	now   func() time.Time
}

// NewIntake wires an intake stage.
func NewIntake(repo Repository, queue Enqueuer, cfg Config) *Intake {
	return &Intake{repo: repo, queue: queue, cfg: cfg.normalized(), now: time.Now}
}

// Accept verifies, deduplicates and enqueues one notification. A non-nil
// error means the envelope could not be made durable and the gateway should
// redeliver.
func (in *Intake) Accept(ctx context.Context, n Notification) (IntakeResult, error) {
	receivedAt := n.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = in.now()
	}

	if err := VerifyStripeWebhookSignature(n.Payload, n.SignatureHeader, in.cfg.WebhookSecret, in.cfg.WebhookTolerance, in.now()); err != nil {
		in.reject(ctx, n, err)
		intakeTotal.WithLabelValues(string(IntakeUnauthorized)).Inc()
		return IntakeUnauthorized, nil
	}

	ev, err := ParseStripeEvent(n.Payload)
	if err != nil {
		log.Warnf("[BillingIntake] Signed notification from %s could not be parsed: %v", n.RemoteIP, err)
		intakeTotal.WithLabelValues(string(IntakeInvalid)).Inc()
		return IntakeInvalid, nil
	}

	rec, err := in.repo.GetProcessingRecord(ctx, ev.ID)
	switch {
	case err == nil && rec.Status == models.ProcessingStatusSucceeded:
		log.Infof("[BillingIntake] Event %s already processed, acknowledging duplicate", ev.ID)
		intakeTotal.WithLabelValues(string(IntakeDuplicate)).Inc()
		return IntakeDuplicate, nil
	case err != nil && !errors.Is(err, ErrRecordNotFound):
		return "", fmt.Errorf("lookup processing record %s: %w", ev.ID, err)
	}

	env := Envelope{
		EventID:    ev.ID,
		EventType:  ev.Type,
		AccountRef: ev.CustomerRef(),
		ReceivedAt: receivedAt,
		Payload:    n.Payload,
		Signature:  n.SignatureHeader,
	}
	if _, _, err := in.repo.CreateWebhookEventIfNotExists(ctx, &models.BillingWebhookEvent{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: env.EventID,
		EventType:       env.EventType,
		AccountRef:      env.AccountRef,
		PayloadJSON:     string(env.Payload),
		Signature:       env.Signature,
		ReceivedAt:      env.ReceivedAt,
	}); err != nil {
		return "", fmt.Errorf("persist envelope %s: %w", env.EventID, err)
	}
	if err := in.queue.EnqueueEnvelope(ctx, env); err != nil {
		return "", fmt.Errorf("enqueue envelope %s: %w", env.EventID, err)
	}

	log.Infof("[BillingIntake] Queued event %s (%s)", env.EventID, env.EventType)
	intakeTotal.WithLabelValues(string(IntakeAccepted)).Inc()
	return IntakeAccepted, nil
}

// reject logs a security event and records it in the audit log. The event id
// in the entry is whatever the unverified payload claims.
func (in *Intake) reject(ctx context.Context, n Notification, cause error) {
	claimedID, claimedType := "", ""
	if ev, err := ParseStripeEvent(n.Payload); err == nil {
		claimedID, claimedType = ev.ID, ev.Type
	}
	log.Warnf("[BillingIntake] Rejected webhook from %s (claimed event %q): %v", n.RemoteIP, claimedID, cause)

	if err := in.repo.AppendAudit(ctx, &models.BillingAuditEntry{
		EventID:   claimedID,
		EventType: claimedType,
		Outcome:   models.AuditOutcomeRejected,
		Error:     cause.Error(),
	}); err != nil {
		log.Errorf("[BillingIntake] Could not audit rejected webhook: %v", err)
	}
}
