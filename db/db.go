package db

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func NewPSQLStorage() (*gorm.DB, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment")
	}

	connString := os.Getenv("DB_URL")

	// TranslateError turns driver unique-violation errors into
	// gorm.ErrDuplicatedKey, which the appointment ledger depends on for
	// double-booking detection.
	db, err := gorm.Open(postgres.Open(connString), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(25)

	return db, nil
}

// EnsureBookingIndex creates the partial unique index that makes booking
// atomic: at most one non-cancelled appointment per (doctor, date, start
// time). Cancelled rows fall outside the index so a freed slot can be booked
// again. The same DDL works on Postgres and SQLite, so tests exercise the
// real constraint.
func EnsureBookingIndex(db *gorm.DB) error {
	return db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_appointments_booked_slot
		 ON appointments (doctor_id, date, start_time)
		 WHERE status <> 'cancelled' AND deleted_at IS NULL`,
	).Error
}
