package memoryrepository

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"solsniper/internal/models"
	"solsniper/internal/repository"
)

var ErrDuplicate = errors.New("duplicate key")

// Store keeps every table in process memory. It backs the engine when no
// database DSN is configured and doubles as the repository in tests.
type Store struct {
	mu sync.RWMutex

	signals   []models.Signal
	positions map[string]models.Position
	versions  []models.StrategyVersion
	batches   map[string]models.WalletBatch
	trades    []models.VolumeTrade
	settings  map[string]models.SystemSetting
	nextID    uint64
}

var _ repository.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		positions: map[string]models.Position{},
		batches:   map[string]models.WalletBatch{},
		settings:  map[string]models.SystemSetting{},
	}
}

func (s *Store) id() uint64 {
	s.nextID++
	return s.nextID
}

func (s *Store) InsertSignals(_ context.Context, items []models.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		it.ID = s.id()
		if it.CreatedAt.IsZero() {
			it.CreatedAt = time.Now().UTC()
		}
		s.signals = append(s.signals, it)
	}
	return nil
}

func (s *Store) ListSignals(_ context.Context, params repository.ListSignalsParams) ([]models.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Signal
	for i := len(s.signals) - 1; i >= 0; i-- {
		it := s.signals[i]
		if params.Kind != nil && *params.Kind != "" && it.Kind != *params.Kind {
			continue
		}
		if params.SubjectID != nil && *params.SubjectID != "" && it.SubjectID != *params.SubjectID {
			continue
		}
		if params.Since != nil && it.ObservedAt.Before(*params.Since) {
			continue
		}
		out = append(out, it)
	}
	return page(out, params.Offset, params.Limit, 200), nil
}

func (s *Store) DeleteSignalsBefore(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.signals[:0]
	var n int64
	for _, it := range s.signals {
		if it.ObservedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, it)
	}
	s.signals = kept
	return n, nil
}

func (s *Store) SavePosition(_ context.Context, item *models.Position) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if prev, ok := s.positions[item.ID]; ok {
		item.CreatedAt = prev.CreatedAt
	} else if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	s.positions[item.ID] = *item
	return nil
}

func (s *Store) GetPosition(_ context.Context, id string) (*models.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.positions[strings.TrimSpace(id)]
	if !ok {
		return nil, nil
	}
	return &it, nil
}

func (s *Store) ListPositions(_ context.Context, params repository.ListPositionsParams) ([]models.Position, error) {
	items := s.filterPositions(params)
	asc := params.Asc != nil && *params.Asc
	sort.SliceStable(items, func(i, j int) bool {
		if asc {
			return items[i].OpenedAt.Before(items[j].OpenedAt)
		}
		return items[i].OpenedAt.After(items[j].OpenedAt)
	})
	return page(items, params.Offset, params.Limit, 50), nil
}

func (s *Store) CountPositions(_ context.Context, params repository.ListPositionsParams) (int64, error) {
	return int64(len(s.filterPositions(params))), nil
}

func (s *Store) filterPositions(params repository.ListPositionsParams) []models.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Position
	for _, it := range s.positions {
		if params.State != nil && *params.State != "" && it.State != *params.State {
			continue
		}
		if params.SubjectID != nil && *params.SubjectID != "" && it.SubjectID != *params.SubjectID {
			continue
		}
		if params.Since != nil && it.OpenedAt.Before(*params.Since) {
			continue
		}
		out = append(out, it)
	}
	return out
}

func (s *Store) InsertStrategyVersion(_ context.Context, item *models.StrategyVersion) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.versions {
		if v.Version == item.Version {
			return ErrDuplicate
		}
	}
	item.ID = s.id()
	item.CreatedAt = time.Now().UTC()
	s.versions = append(s.versions, *item)
	return nil
}

func (s *Store) LatestStrategyVersion(_ context.Context) (*models.StrategyVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *models.StrategyVersion
	for i := range s.versions {
		if best == nil || s.versions[i].Version > best.Version {
			v := s.versions[i]
			best = &v
		}
	}
	return best, nil
}

func (s *Store) CreateWalletBatch(_ context.Context, item *models.WalletBatch) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batches[item.Name]; ok {
		return ErrDuplicate
	}
	item.ID = s.id()
	for i := range item.Accounts {
		item.Accounts[i].ID = s.id()
		item.Accounts[i].BatchID = item.ID
	}
	cp := *item
	cp.Accounts = append([]models.WalletAccount(nil), item.Accounts...)
	s.batches[item.Name] = cp
	return nil
}

func (s *Store) GetWalletBatch(_ context.Context, name string) (*models.WalletBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.batches[strings.TrimSpace(name)]
	if !ok {
		return nil, nil
	}
	b.Accounts = append([]models.WalletAccount(nil), b.Accounts...)
	return &b, nil
}

func (s *Store) ListWalletBatches(_ context.Context) ([]models.WalletBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.WalletBatch, 0, len(s.batches))
	for _, b := range s.batches {
		b.Accounts = append([]models.WalletAccount(nil), b.Accounts...)
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeleteWalletBatch(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.batches, strings.TrimSpace(name))
	return nil
}

func (s *Store) InsertVolumeTrade(_ context.Context, item *models.VolumeTrade) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = s.id()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	s.trades = append(s.trades, *item)
	return nil
}

func (s *Store) ListVolumeTrades(_ context.Context, params repository.ListVolumeTradesParams) ([]models.VolumeTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.VolumeTrade
	for i := len(s.trades) - 1; i >= 0; i-- {
		it := s.trades[i]
		if params.Strategy != nil && *params.Strategy != "" && it.Strategy != *params.Strategy {
			continue
		}
		out = append(out, it)
	}
	return page(out, params.Offset, params.Limit, 100), nil
}

func (s *Store) UpsertSystemSetting(_ context.Context, item *models.SystemSetting) error {
	if item == nil {
		return nil
	}
	key := strings.TrimSpace(item.Key)
	if key == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if prev, ok := s.settings[key]; ok {
		item.ID = prev.ID
		item.CreatedAt = prev.CreatedAt
	} else {
		item.ID = s.id()
		item.CreatedAt = now
	}
	item.Key = key
	item.UpdatedAt = now
	s.settings[key] = *item
	return nil
}

func (s *Store) GetSystemSettingByKey(_ context.Context, key string) (*models.SystemSetting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.settings[strings.TrimSpace(key)]
	if !ok {
		return nil, nil
	}
	return &it, nil
}

func page[T any](items []T, offset, limit, fallback int) []T {
	if limit <= 0 {
		limit = fallback
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
