package models

import "time"

const (
	AuditOutcomeSucceeded = "succeeded"
	AuditOutcomeFailed    = "failed"
	AuditOutcomeExhausted = "exhausted"
	AuditOutcomeIgnored   = "ignored"
	AuditOutcomeStale     = "stale"
	AuditOutcomeDuplicate = "duplicate"
	AuditOutcomeRejected  = "rejected"
	AuditOutcomeReplayed  = "replayed"
)

// BillingAuditEntry is an append-only record of one processing attempt outcome.
type BillingAuditEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	EventID   string    `gorm:"type:varchar(191);not null;default:'';index" json:"event_id"`
	EventType string    `gorm:"type:varchar(100);not null;default:''" json:"event_type"`
	AccountID *uint     `gorm:"index" json:"account_id,omitempty"`
	Attempt   int       `gorm:"not null;default:0" json:"attempt"`
	Outcome   string    `gorm:"type:varchar(16);not null;index" json:"outcome"`
	Error     string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
