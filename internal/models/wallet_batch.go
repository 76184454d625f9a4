package models

import (
	"time"
)

type WalletBatch struct {
	ID        uint64          `gorm:"primaryKey;autoIncrement"`
	Name      string          `gorm:"type:varchar(64);not null;uniqueIndex"`
	Accounts  []WalletAccount `gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time       `gorm:"type:timestamptz;not null"`
	UpdatedAt time.Time       `gorm:"type:timestamptz;autoUpdateTime"`
}

func (WalletBatch) TableName() string {
	return "wallet_batches"
}

// WalletAccount secrets are stored as base58 private keys without encryption.
type WalletAccount struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	BatchID    uint64 `gorm:"not null;index"`
	Seq        int    `gorm:"not null"`
	Label      string `gorm:"type:varchar(64);not null"`
	PublicAddr string `gorm:"type:varchar(64);not null;uniqueIndex"`
	Secret     string `gorm:"type:varchar(128);not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (WalletAccount) TableName() string {
	return "wallet_accounts"
}
