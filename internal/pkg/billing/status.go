package billing

import (
	"time"

	"github.com/ManuelReschke/PayFox/app/models"
)

// Status is the display-facing summary of an account's billing standing.
type Status string

const (
	StatusUnknown       Status = "unknown"
	StatusActive        Status = "active"
	StatusCancelPending Status = "cancel_pending"
	StatusCancelled     Status = "cancelled"
	StatusExpired       Status = "expired"
	StatusPaused        Status = "paused"
)

var statusLabels = map[Status]string{
	StatusUnknown:       "Unknown",
	StatusActive:        "Active",
	StatusCancelPending: "Cancellation pending",
	StatusCancelled:     "Cancelled",
	StatusExpired:       "Expired",
	StatusPaused:        "Paused",
}

// Label returns the human readable label shown in the UI.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return statusLabels[StatusUnknown]
}

// BillingSnapshot is the set of raw account attributes the status is derived from.
type BillingSnapshot struct {
	Active      bool       `json:"active"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	PausedPlan  *string    `json:"paused_plan,omitempty"`
}

// SnapshotFromAccount copies the billing columns of an account. A nil account
// yields a nil snapshot.
func SnapshotFromAccount(a *models.Account) *BillingSnapshot {
	if a == nil {
		return nil
	}
	return &BillingSnapshot{
		Active:      a.Active,
		CancelledAt: a.CancelledAt,
		ExpiresAt:   a.ExpiresAt,
		PausedPlan:  a.PausedPlan,
	}
}

type statusRule struct {
	status Status
	match  func(s *BillingSnapshot, now time.Time) bool
}

// statusRules is evaluated top to bottom; the first matching rule wins.
var statusRules = []statusRule{
	{StatusExpired, func(s *BillingSnapshot, now time.Time) bool {
		return s.ExpiresAt != nil && s.ExpiresAt.Before(now)
	}},
	{StatusPaused, func(s *BillingSnapshot, _ time.Time) bool {
		return s.PausedPlan != nil
	}},
	{StatusCancelled, func(s *BillingSnapshot, _ time.Time) bool {
		return !s.Active
	}},
	{StatusCancelPending, func(s *BillingSnapshot, _ time.Time) bool {
		return s.CancelledAt != nil
	}},
}

// DeriveStatus maps a snapshot to a Status as of now. It has no side effects.
func DeriveStatus(s *BillingSnapshot, now time.Time) Status {
	if s == nil {
		return StatusUnknown
	}
	for _, rule := range statusRules {
		if rule.match(s, now) {
			return rule.status
		}
	}
	return StatusActive
}
