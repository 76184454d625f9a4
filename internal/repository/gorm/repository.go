package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"solsniper/internal/models"
	"solsniper/internal/repository"
)

type Store struct {
	db *gorm.DB
}

var _ repository.Repository = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// --- signals ---------------------------------------------------------------

func (s *Store) InsertSignals(ctx context.Context, items []models.Signal) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(items, 200).Error
}

func (s *Store) ListSignals(ctx context.Context, params repository.ListSignalsParams) ([]models.Signal, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Signal{})
	if params.Kind != nil && strings.TrimSpace(*params.Kind) != "" {
		query = query.Where("kind = ?", strings.TrimSpace(*params.Kind))
	}
	if params.SubjectID != nil && strings.TrimSpace(*params.SubjectID) != "" {
		query = query.Where("subject_id = ?", strings.TrimSpace(*params.SubjectID))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("observed_at >= ?", *params.Since)
	}
	var items []models.Signal
	err := query.Order("observed_at desc").
		Limit(normalizeLimit(params.Limit, 200)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error
	return items, err
}

func (s *Store) DeleteSignalsBefore(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Where("observed_at < ?", before).Delete(&models.Signal{})
	return res.RowsAffected, res.Error
}

// --- positions -------------------------------------------------------------

func (s *Store) SavePosition(ctx context.Context, item *models.Position) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"size",
			"entry_price",
			"current_price",
			"pnl_absolute",
			"pnl_percent",
			"entry_signature",
			"exit_signature",
			"state",
			"exit_reason",
			"fail_reason",
			"closed_at",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetPosition(ctx context.Context, id string) (*models.Position, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Position
	err := s.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(id)).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListPositions(ctx context.Context, params repository.ListPositionsParams) ([]models.Position, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := positionFilter(s.db.WithContext(ctx).Model(&models.Position{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "opened_at")
	var items []models.Position
	err := query.Limit(normalizeLimit(params.Limit, 50)).Offset(normalizeOffset(params.Offset)).Find(&items).Error
	return items, err
}

func (s *Store) CountPositions(ctx context.Context, params repository.ListPositionsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	err := positionFilter(s.db.WithContext(ctx).Model(&models.Position{}), params).Count(&total).Error
	return total, err
}

func positionFilter(query *gorm.DB, params repository.ListPositionsParams) *gorm.DB {
	if params.State != nil && strings.TrimSpace(*params.State) != "" {
		query = query.Where("state = ?", strings.TrimSpace(*params.State))
	}
	if params.SubjectID != nil && strings.TrimSpace(*params.SubjectID) != "" {
		query = query.Where("subject_id = ?", strings.TrimSpace(*params.SubjectID))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("opened_at >= ?", *params.Since)
	}
	return query
}

// --- strategy versions -----------------------------------------------------

func (s *Store) InsertStrategyVersion(ctx context.Context, item *models.StrategyVersion) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) LatestStrategyVersion(ctx context.Context) (*models.StrategyVersion, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.StrategyVersion
	err := s.db.WithContext(ctx).Order("version desc").First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// --- wallet batches --------------------------------------------------------

func (s *Store) CreateWalletBatch(ctx context.Context, item *models.WalletBatch) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(item).Error
	})
}

func (s *Store) GetWalletBatch(ctx context.Context, name string) (*models.WalletBatch, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.WalletBatch
	err := s.db.WithContext(ctx).
		Preload("Accounts", func(db *gorm.DB) *gorm.DB { return db.Order("seq asc") }).
		Where("name = ?", strings.TrimSpace(name)).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListWalletBatches(ctx context.Context) ([]models.WalletBatch, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.WalletBatch
	err := s.db.WithContext(ctx).
		Preload("Accounts", func(db *gorm.DB) *gorm.DB { return db.Order("seq asc") }).
		Order("created_at desc").
		Find(&items).Error
	return items, err
}

func (s *Store) DeleteWalletBatch(ctx context.Context, name string) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var batch models.WalletBatch
		if err := tx.Where("name = ?", strings.TrimSpace(name)).First(&batch).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if err := tx.Where("batch_id = ?", batch.ID).Delete(&models.WalletAccount{}).Error; err != nil {
			return err
		}
		return tx.Delete(&batch).Error
	})
}

// --- volume trades ---------------------------------------------------------

func (s *Store) InsertVolumeTrade(ctx context.Context, item *models.VolumeTrade) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListVolumeTrades(ctx context.Context, params repository.ListVolumeTradesParams) ([]models.VolumeTrade, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.VolumeTrade{})
	if params.Strategy != nil && strings.TrimSpace(*params.Strategy) != "" {
		query = query.Where("strategy = ?", strings.TrimSpace(*params.Strategy))
	}
	var items []models.VolumeTrade
	err := query.Order("created_at desc").
		Limit(normalizeLimit(params.Limit, 100)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error
	return items, err
}

// --- system settings -------------------------------------------------------

func (s *Store) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.Key = strings.TrimSpace(item.Key)
	if item.Key == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"value",
			"description",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var item models.SystemSetting
	err := s.db.WithContext(ctx).Model(&models.SystemSetting{}).Where("key = ?", key).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
