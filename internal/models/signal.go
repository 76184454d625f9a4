package models

import (
	"time"

	"gorm.io/datatypes"
)

// Signal is a normalized market observation kept for review.
type Signal struct {
	ID         uint64         `gorm:"primaryKey;autoIncrement"`
	Kind       string         `gorm:"type:varchar(32);not null;index"`
	Source     string         `gorm:"type:varchar(32);not null;index"`
	SubjectID  string         `gorm:"type:varchar(64);not null;index"`
	Symbol     string         `gorm:"type:varchar(32)"`
	Strength   float64        `gorm:"not null"`
	Confidence float64        `gorm:"not null"`
	RawMetrics datatypes.JSON `gorm:"type:jsonb"`

	ObservedAt time.Time `gorm:"type:timestamptz;not null;index"`
	CreatedAt  time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (Signal) TableName() string {
	return "signals"
}
