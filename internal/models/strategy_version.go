package models

import (
	"time"

	"gorm.io/datatypes"
)

// StrategyVersion stores every accepted trading configuration.
type StrategyVersion struct {
	ID        uint64         `gorm:"primaryKey;autoIncrement"`
	Version   int64          `gorm:"not null;uniqueIndex"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null"`
	UpdatedBy string         `gorm:"type:varchar(64)"`
	CreatedAt time.Time      `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (StrategyVersion) TableName() string {
	return "strategy_versions"
}
