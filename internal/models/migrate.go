package models

import (
	"log"

	"gorm.io/gorm"
)

// AutoMigrate creates or updates all tables. The update pipeline's schema
// step also reaches this through the -migrate flag when no SQL migration
// files are present.
func AutoMigrate(db *gorm.DB) error {
	log.Println("Running database migrations...")

	return db.AutoMigrate(
		&User{},
		&Category{},
		&Product{},
		&QuoteRequest{},
		&Inquiry{},
		&Notification{},
		&AuditLog{},
		&UpdateLog{},
		&Backup{},
	)
}
