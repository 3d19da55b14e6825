package models

import (
	"time"

	"gorm.io/gorm"
)

// Account holds the billing attributes of a tenant account. Only the billing
// dispatcher writes the billing columns; everything else is owned by the
// account management side of the application.
type Account struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	Email            string     `gorm:"type:varchar(200);not null;default:''" json:"email"`
	StripeCustomerID string     `gorm:"type:varchar(191);not null;default:'';index:idx_accounts_stripe_customer" json:"stripe_customer_id"`
	Active           bool       `gorm:"default:true" json:"active"`
	CancelledAt      *time.Time `gorm:"type:timestamp;default:null" json:"cancelled_at,omitempty"`
	ExpiresAt        *time.Time `gorm:"type:timestamp;default:null" json:"expires_at,omitempty"`
	PausedPlan       *string    `gorm:"type:varchar(191);default:null" json:"paused_plan,omitempty"`
	BillingEventAt   *time.Time `gorm:"type:timestamp;default:null" json:"billing_event_at,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// FindAccountByStripeCustomerID loads the account linked to a gateway customer.
// Unlinked accounts carry an empty id and never match.
func FindAccountByStripeCustomerID(db *gorm.DB, customerID string) (*Account, error) {
	if customerID == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var account Account
	if err := db.Where("stripe_customer_id = ?", customerID).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}
