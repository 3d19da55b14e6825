package billing

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/PayFox/app/models"
)

// Completion describes the successful end of a processing attempt.
type Completion struct {
	AccountID *uint
	Update    AccountUpdate
	EventAt   time.Time
	Outcome   string
}

// Repository provides DB operations used by intake, dispatcher and service.
type Repository interface {
	GetAccountByID(ctx context.Context, id uint) (*models.Account, error)
	GetAccountByCustomerRef(ctx context.Context, customerRef string) (*models.Account, error)
	CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	GetWebhookEvent(ctx context.Context, eventID string) (*models.BillingWebhookEvent, error)
	GetProcessingRecord(ctx context.Context, eventID string) (*models.BillingProcessingRecord, error)
	BeginAttempt(ctx context.Context, env Envelope, leaseCutoff time.Time) (*models.BillingProcessingRecord, bool, error)
	CompleteAttempt(ctx context.Context, rec *models.BillingProcessingRecord, c Completion) (string, error)
	FailAttempt(ctx context.Context, rec *models.BillingProcessingRecord, errMsg string, exhausted bool) error
	ListExhausted(ctx context.Context, limit int) ([]models.BillingProcessingRecord, error)
	ResetForReplay(ctx context.Context, eventID string) (*models.BillingProcessingRecord, error)
	AppendAudit(ctx context.Context, entry *models.BillingAuditEntry) error
	ListAudit(ctx context.Context, eventID string) ([]models.BillingAuditEntry, error)
}

// ErrLeaseLost is returned when another worker reclaimed the record while
// this attempt was running.
var ErrLeaseLost = errors.New("processing lease lost")

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetAccountByID(ctx context.Context, id uint) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *gormRepository) GetAccountByCustomerRef(ctx context.Context, customerRef string) (*models.Account, error) {
	account, err := models.FindAccountByStripeCustomerID(r.db.WithContext(ctx), customerRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

func (r *gormRepository) CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	db := r.db.WithContext(ctx)
	tx := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) GetWebhookEvent(ctx context.Context, eventID string) (*models.BillingWebhookEvent, error) {
	var ev models.BillingWebhookEvent
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_event_id = ?", models.BillingProviderStripe, eventID).
		First(&ev).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &ev, nil
}

func (r *gormRepository) GetProcessingRecord(ctx context.Context, eventID string) (*models.BillingProcessingRecord, error) {
	var rec models.BillingProcessingRecord
	if err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// BeginAttempt creates the record if needed and atomically moves it into
// processing. started is false when the record is terminal or leased by
// another worker whose lease has not expired yet.
func (r *gormRepository) BeginAttempt(ctx context.Context, env Envelope, leaseCutoff time.Time) (*models.BillingProcessingRecord, bool, error) {
	db := r.db.WithContext(ctx)
	seed := &models.BillingProcessingRecord{
		EventID:   env.EventID,
		EventType: env.EventType,
		Status:    models.ProcessingStatusPending,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(seed).Error; err != nil {
		return nil, false, err
	}

	res := db.Model(&models.BillingProcessingRecord{}).
		Where("event_id = ? AND exhausted = ? AND (status IN ? OR (status = ? AND updated_at < ?))",
			env.EventID, false,
			[]string{models.ProcessingStatusPending, models.ProcessingStatusFailed},
			models.ProcessingStatusProcessing, leaseCutoff).
		Updates(map[string]interface{}{
			"status":        models.ProcessingStatusProcessing,
			"attempt_count": gorm.Expr("attempt_count + 1"),
		})
	if res.Error != nil {
		return nil, false, res.Error
	}

	rec, err := r.GetProcessingRecord(ctx, env.EventID)
	if err != nil {
		return nil, false, err
	}
	return rec, res.RowsAffected > 0, nil
}

// CompleteAttempt applies the account update, marks the record succeeded and
// appends the audit entry in one transaction. An update older than the last
// applied event for the account is skipped and the outcome becomes stale.
func (r *gormRepository) CompleteAttempt(ctx context.Context, rec *models.BillingProcessingRecord, c Completion) (string, error) {
	outcome := c.Outcome
	if outcome == "" {
		outcome = models.AuditOutcomeSucceeded
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if c.AccountID != nil && !c.Update.Empty() {
			cols := c.Update.Columns()
			cols["billing_event_at"] = c.EventAt
			res := tx.Model(&models.Account{}).
				Where("id = ? AND (billing_event_at IS NULL OR billing_event_at <= ?)", *c.AccountID, c.EventAt).
				Updates(cols)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				outcome = models.AuditOutcomeStale
			}
		}

		now := time.Now()
		res := tx.Model(&models.BillingProcessingRecord{}).
			Where("id = ? AND status = ?", rec.ID, models.ProcessingStatusProcessing).
			Updates(map[string]interface{}{
				"status":       models.ProcessingStatusSucceeded,
				"outcome":      outcome,
				"account_id":   c.AccountID,
				"last_error":   "",
				"processed_at": &now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrLeaseLost
		}

		return tx.Create(&models.BillingAuditEntry{
			EventID:   rec.EventID,
			EventType: rec.EventType,
			AccountID: c.AccountID,
			Attempt:   rec.AttemptCount,
			Outcome:   outcome,
		}).Error
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

func (r *gormRepository) FailAttempt(ctx context.Context, rec *models.BillingProcessingRecord, errMsg string, exhausted bool) error {
	outcome := models.AuditOutcomeFailed
	if exhausted {
		outcome = models.AuditOutcomeExhausted
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":     models.ProcessingStatusFailed,
			"exhausted":  exhausted,
			"outcome":    outcome,
			"last_error": errMsg,
		}
		if exhausted {
			now := time.Now()
			updates["processed_at"] = &now
		}
		res := tx.Model(&models.BillingProcessingRecord{}).
			Where("id = ? AND status = ?", rec.ID, models.ProcessingStatusProcessing).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrLeaseLost
		}
		return tx.Create(&models.BillingAuditEntry{
			EventID:   rec.EventID,
			EventType: rec.EventType,
			AccountID: rec.AccountID,
			Attempt:   rec.AttemptCount,
			Outcome:   outcome,
			Error:     errMsg,
		}).Error
	})
}

func (r *gormRepository) ListExhausted(ctx context.Context, limit int) ([]models.BillingProcessingRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var recs []models.BillingProcessingRecord
	err := r.db.WithContext(ctx).
		Where("status = ? AND exhausted = ?", models.ProcessingStatusFailed, true).
		Order("updated_at DESC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

// ResetForReplay returns an exhausted record to pending with a fresh attempt
// budget. Pending records are accepted too so a replay whose enqueue failed
// can be repeated.
func (r *gormRepository) ResetForReplay(ctx context.Context, eventID string) (*models.BillingProcessingRecord, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.BillingProcessingRecord{}).
			Where("event_id = ? AND ((status = ? AND exhausted = ?) OR status = ?)",
				eventID, models.ProcessingStatusFailed, true, models.ProcessingStatusPending).
			Updates(map[string]interface{}{
				"status":        models.ProcessingStatusPending,
				"exhausted":     false,
				"attempt_count": 0,
				"outcome":       "",
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotReplayable
		}
		return tx.Create(&models.BillingAuditEntry{
			EventID: eventID,
			Outcome: models.AuditOutcomeReplayed,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return r.GetProcessingRecord(ctx, eventID)
}

func (r *gormRepository) AppendAudit(ctx context.Context, entry *models.BillingAuditEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *gormRepository) ListAudit(ctx context.Context, eventID string) ([]models.BillingAuditEntry, error) {
	var entries []models.BillingAuditEntry
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).Order("id ASC").Find(&entries).Error
	return entries, err
}
