package db

import (
	"solsniper/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Signal{},
		&models.Position{},
		&models.StrategyVersion{},
		&models.WalletBatch{},
		&models.WalletAccount{},
		&models.VolumeTrade{},
		&models.SystemSetting{},
	)
}
