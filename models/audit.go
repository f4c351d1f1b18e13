package models

import (
	"time"

	"gorm.io/datatypes"
)

// RoundRecord is the write-only audit row saved when a round ends,
// whether by a win or an explicit stop.
type RoundRecord struct {
	ID          uint `gorm:"primaryKey"`
	StartedAt   time.Time
	EndedAt     time.Time
	Players     int
	BoardType   string
	NumbersJSON datatypes.JSON // called numbers, in call order
	WinnerName  string
	WinnerPhone string
	Pattern     string
	Prize       int
	CreatedAt   time.Time
}

// WithdrawalRecord is the audit row for a processed balance debit.
type WithdrawalRecord struct {
	ID           uint `gorm:"primaryKey"`
	PlayerName   string
	Phone        string
	Account      string
	Amount       int
	BalanceAfter int
	CreatedAt    time.Time
}
