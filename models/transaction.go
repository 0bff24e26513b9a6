package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	TransactionPending   = "pending"
	TransactionCompleted = "completed"
	TransactionFailed    = "failed"
)

// ErrImmutableTransaction is returned by the gorm hooks when code tries to
// change a ledger field other than the acknowledgment marker, or delete a row.
var ErrImmutableTransaction = errors.New("ledger transactions are append-only")

// Transaction is one ledger entry. Rows are inserted once and only
// Acknowledged/AcknowledgedAt may change afterwards.
type Transaction struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	LinkToken *string `gorm:"type:varchar(64);index" json:"link_token,omitempty"`
	// RedemptionKey carries the link token only for completed link payments;
	// its unique index is what allows one completed transaction per link.
	RedemptionKey      *string           `gorm:"type:varchar(64);uniqueIndex" json:"-"`
	PayerID            uint              `gorm:"not null;index" json:"payer_id"`
	PayeeID            uint              `gorm:"not null;index" json:"payee_id"`
	GrossAmount        decimal.Decimal   `gorm:"type:decimal(15,2);not null" json:"gross_amount"`
	PlatformFee        decimal.Decimal   `gorm:"type:decimal(15,2);not null" json:"platform_fee"`
	PayeeEarnings      decimal.Decimal   `gorm:"type:decimal(15,2);not null" json:"payee_earnings"`
	FeeRate            decimal.Decimal   `gorm:"type:decimal(6,4);not null" json:"fee_rate"`
	Currency           string            `gorm:"type:varchar(3);not null" json:"currency"`
	ProcessorReference *string           `gorm:"type:varchar(191);uniqueIndex" json:"processor_reference,omitempty"`
	Status             string            `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	Message            *string           `gorm:"type:text" json:"message,omitempty"`
	Metadata           datatypes.JSONMap `json:"metadata,omitempty"`
	Acknowledged       bool              `gorm:"not null;default:false;index" json:"acknowledged"`
	AcknowledgedAt     *time.Time        `json:"acknowledged_at,omitempty"`
	CreatedAt          time.Time         `gorm:"index" json:"created_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// BeforeUpdate only lets a map update through that sets acknowledged to true
// and acknowledged_at to a time. Struct updates, Save included, are rejected.
// The statement is narrowed to unacknowledged rows so the flag flips once.
func (t *Transaction) BeforeUpdate(tx *gorm.DB) error {
	dest, ok := tx.Statement.Dest.(map[string]interface{})
	if !ok || len(dest) == 0 {
		return ErrImmutableTransaction
	}
	for col, v := range dest {
		switch col {
		case "acknowledged", "Acknowledged":
			if b, ok := v.(bool); !ok || !b {
				return ErrImmutableTransaction
			}
		case "acknowledged_at", "AcknowledgedAt":
			switch at := v.(type) {
			case time.Time:
			case *time.Time:
				if at == nil {
					return ErrImmutableTransaction
				}
			default:
				return ErrImmutableTransaction
			}
		default:
			return ErrImmutableTransaction
		}
	}
	tx.Statement.AddClause(clause.Where{Exprs: []clause.Expression{
		clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: "acknowledged"}, Value: false},
	}})
	return nil
}

func (t *Transaction) BeforeDelete(tx *gorm.DB) error {
	return ErrImmutableTransaction
}
