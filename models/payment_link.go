package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Link statuses. "expired" is only written by the sweep; readers must compare
// ExpiresAt against the clock themselves.
const (
	LinkStatusActive   = "active"
	LinkStatusRedeemed = "redeemed"
	LinkStatusDisabled = "disabled"
	LinkStatusExpired  = "expired"
)

// PaymentLink is a single-use, time-bound capability to pay a fixed amount to its issuer.
type PaymentLink struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Token       string          `gorm:"type:varchar(64);not null;uniqueIndex" json:"link_id"`
	IssuerID    uint            `gorm:"not null;index" json:"issuer_id"`
	ServiceName string          `gorm:"type:varchar(191);not null" json:"service_name"`
	Amount      decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Currency    string          `gorm:"type:varchar(3);not null" json:"currency"`
	Description *string         `gorm:"type:text" json:"description,omitempty"`
	ClientEmail string          `gorm:"type:varchar(191);not null;index" json:"client_email"`
	ClientName  *string         `gorm:"type:varchar(191)" json:"client_name,omitempty"`
	Status      string          `gorm:"type:varchar(16);not null;default:'active';index" json:"status"`
	ExpiresAt   time.Time       `gorm:"not null;index" json:"expires_at"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (PaymentLink) TableName() string {
	return "payment_links"
}

// IsExpiredAt reports whether the link is past its expiry at the given instant.
func (l *PaymentLink) IsExpiredAt(now time.Time) bool {
	return now.After(l.ExpiresAt)
}
