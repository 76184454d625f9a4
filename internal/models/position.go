package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the persisted record of a sniper position. The in-memory book in
// the position package stays authoritative; rows are written through on every
// state change.
type Position struct {
	ID        string `gorm:"type:varchar(36);primaryKey"`
	SubjectID string `gorm:"type:varchar(64);not null;index"`
	Symbol    string `gorm:"type:varchar(32)"`

	Size         decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	EntryPrice   decimal.Decimal `gorm:"type:numeric(30,12);not null;default:0"`
	CurrentPrice decimal.Decimal `gorm:"type:numeric(30,12);not null;default:0"`
	PnLAbsolute  decimal.Decimal `gorm:"column:pnl_absolute;type:numeric(30,12);not null;default:0"`
	PnLPercent   decimal.Decimal `gorm:"column:pnl_percent;type:numeric(20,6);not null;default:0"`

	EntrySignature string `gorm:"type:varchar(128)"`
	ExitSignature  string `gorm:"type:varchar(128)"`

	State       string  `gorm:"type:varchar(16);not null;index"`
	ExitReason  string  `gorm:"type:varchar(20)"`
	Priority    float64 `gorm:"not null;default:0"`
	Rationale   string  `gorm:"type:text"`
	MaxSlippage float64 `gorm:"not null;default:0"`
	FailReason  string  `gorm:"type:text"`

	OpenedAt time.Time  `gorm:"type:timestamptz;not null;index"`
	ClosedAt *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Position) TableName() string {
	return "positions"
}
