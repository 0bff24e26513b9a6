package database

import (
	"paylink/models"

	"gorm.io/gorm"
)

// Migrate creates or updates the payment_links and transactions tables,
// including the unique redemption_key index that enforces one completed
// transaction per link.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.PaymentLink{},
		&models.Transaction{},
	)
}
