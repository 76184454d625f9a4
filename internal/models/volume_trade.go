package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// VolumeTrade records one volume strategy execution, possibly spread across a batch.
type VolumeTrade struct {
	ID         uint64          `gorm:"primaryKey;autoIncrement"`
	Strategy   string          `gorm:"type:varchar(32);not null;index"`
	SubjectID  string          `gorm:"type:varchar(64);not null;index"`
	Symbol     string          `gorm:"type:varchar(32)"`
	Side       string          `gorm:"type:varchar(8);not null"`
	Amount     decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	Impact     float64         `gorm:"not null;default:0"`
	Batch      string          `gorm:"type:varchar(64)"`
	Accounts   int             `gorm:"not null;default:1"`
	Signatures datatypes.JSON  `gorm:"type:jsonb"`
	Reason     string          `gorm:"type:text"`
	CreatedAt  time.Time       `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (VolumeTrade) TableName() string {
	return "volume_trades"
}
