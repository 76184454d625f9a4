package repository

import (
	"context"
	"time"

	"solsniper/internal/models"
)

type ListPositionsParams struct {
	Limit     int
	Offset    int
	State     *string
	SubjectID *string
	Since     *time.Time
	OrderBy   string
	Asc       *bool
}

type ListSignalsParams struct {
	Limit     int
	Offset    int
	Kind      *string
	SubjectID *string
	Since     *time.Time
}

type ListVolumeTradesParams struct {
	Limit    int
	Offset   int
	Strategy *string
}

// Repository is the persistence surface used by the engine. Every method is
// safe to call on a nil store, which turns persistence off.
type Repository interface {
	// signals
	InsertSignals(ctx context.Context, items []models.Signal) error
	ListSignals(ctx context.Context, params ListSignalsParams) ([]models.Signal, error)
	DeleteSignalsBefore(ctx context.Context, before time.Time) (int64, error)

	// positions
	SavePosition(ctx context.Context, item *models.Position) error
	GetPosition(ctx context.Context, id string) (*models.Position, error)
	ListPositions(ctx context.Context, params ListPositionsParams) ([]models.Position, error)
	CountPositions(ctx context.Context, params ListPositionsParams) (int64, error)

	// strategy configuration
	InsertStrategyVersion(ctx context.Context, item *models.StrategyVersion) error
	LatestStrategyVersion(ctx context.Context) (*models.StrategyVersion, error)

	// wallet batches
	CreateWalletBatch(ctx context.Context, item *models.WalletBatch) error
	GetWalletBatch(ctx context.Context, name string) (*models.WalletBatch, error)
	ListWalletBatches(ctx context.Context) ([]models.WalletBatch, error)
	DeleteWalletBatch(ctx context.Context, name string) error

	// volume trades
	InsertVolumeTrade(ctx context.Context, item *models.VolumeTrade) error
	ListVolumeTrades(ctx context.Context, params ListVolumeTradesParams) ([]models.VolumeTrade, error)

	// system settings
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
}
