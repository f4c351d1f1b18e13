package services

import (
	"encoding/json"

	"github.com/amenassefagashaye/bingo-server/game"
	"github.com/amenassefagashaye/bingo-server/models"
	"github.com/amenassefagashaye/bingo-server/utils/logger"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Audit writes round and withdrawal rows to the database. Writes are
// asynchronous and best effort; a failed insert is logged and dropped,
// never surfaced to the game.
type Audit struct {
	db *gorm.DB
}

func NewAudit(db *gorm.DB) *Audit {
	return &Audit{db: db}
}

func (a *Audit) RecordRound(rec game.RoundAudit) {
	numbers, err := json.Marshal(rec.CalledNumbers)
	if err != nil {
		logger.Errorf("marshal round numbers: %v", err)
		return
	}
	row := models.RoundRecord{
		StartedAt:   rec.StartedAt,
		EndedAt:     rec.EndedAt,
		Players:     rec.Players,
		BoardType:   rec.BoardType,
		NumbersJSON: datatypes.JSON(numbers),
		WinnerName:  rec.WinnerName,
		WinnerPhone: rec.WinnerPhone,
		Pattern:     rec.Pattern,
		Prize:       rec.Prize,
	}
	go func() {
		if err := a.db.Create(&row).Error; err != nil {
			logger.Errorf("save round record: %v", err)
		}
	}()
}

func (a *Audit) RecordWithdrawal(rec game.WithdrawalAudit) {
	row := models.WithdrawalRecord{
		PlayerName:   rec.PlayerName,
		Phone:        rec.Phone,
		Account:      rec.Account,
		Amount:       rec.Amount,
		BalanceAfter: rec.BalanceAfter,
	}
	go func() {
		if err := a.db.Create(&row).Error; err != nil {
			logger.Errorf("save withdrawal record: %v", err)
		}
	}()
}
