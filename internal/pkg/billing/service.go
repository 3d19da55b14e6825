package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/PayFox/app/models"
)

// Service exposes the read side of the billing core and operator actions.
type Service struct {
	repo  Repository
	queue Enqueuer
	now   func() time.Time
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository, queue Enqueuer) *Service {
	return &Service{repo: repo, queue: queue, now: time.Now}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, queue Enqueuer) *Service {
	return NewService(NewRepository(db), queue)
}

// StatusView is the status read model consumed by the UI layer.
type StatusView struct {
	AccountID   uint      `json:"account_id"`
	Status      Status    `json:"status"`
	Label       string    `json:"label"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// AccountStatus derives the current status of an account. Unknown accounts
// report StatusUnknown rather than an error.
func (s *Service) AccountStatus(ctx context.Context, accountID uint) (StatusView, error) {
	now := s.now()
	account, err := s.repo.GetAccountByID(ctx, accountID)
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		return StatusView{}, err
	}
	status := DeriveStatus(SnapshotFromAccount(account), now)
	return StatusView{
		AccountID:   accountID,
		Status:      status,
		Label:       status.Label(),
		EvaluatedAt: now,
	}, nil
}

// EventDetail bundles a processing record with its audit trail.
type EventDetail struct {
	Record *models.BillingProcessingRecord `json:"record"`
	Audit  []models.BillingAuditEntry      `json:"audit"`
}

// GetEventDetail returns the processing state of one event.
func (s *Service) GetEventDetail(ctx context.Context, eventID string) (*EventDetail, error) {
	rec, err := s.repo.GetProcessingRecord(ctx, eventID)
	if err != nil {
		return nil, err
	}
	audit, err := s.repo.ListAudit(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return &EventDetail{Record: rec, Audit: audit}, nil
}

// ListFailedEvents returns events that exhausted their retries.
func (s *Service) ListFailedEvents(ctx context.Context, limit int) ([]models.BillingProcessingRecord, error) {
	return s.repo.ListExhausted(ctx, limit)
}

// ReplayEvent resets an exhausted event and queues its stored envelope again.
func (s *Service) ReplayEvent(ctx context.Context, eventID string) (*models.BillingProcessingRecord, error) {
	stored, err := s.repo.GetWebhookEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	rec, err := s.repo.ResetForReplay(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.queue.EnqueueEnvelope(ctx, EnvelopeFromWebhookEvent(stored)); err != nil {
		return rec, fmt.Errorf("enqueue replay of %s: %w", eventID, err)
	}
	return rec, nil
}
