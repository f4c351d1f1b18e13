package config

import (
	"log"

	"github.com/amenassefagashaye/bingo-server/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

// SetupDatabase connects to the audit database and runs migrations.
// The game itself is fully in-memory; the database only receives
// write-only audit rows, so a missing DATABASE_URL is not an error.
func SetupDatabase(dsn string) *gorm.DB {
	if dsn == "" {
		log.Println("[INFO] DATABASE_URL not set, audit store disabled")
		return nil
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("[FATAL] Failed to connect to DB: %v", err)
	}
	DB = db

	if err := db.AutoMigrate(
		&models.RoundRecord{},
		&models.WithdrawalRecord{},
	); err != nil {
		log.Fatalf("[FATAL] Migration failed: %v", err)
	}

	log.Println("✅ Database migration completed")
	return db
}
