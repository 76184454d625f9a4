package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"solsniper/internal/models"
	"solsniper/internal/repository"
)

// Store holds the active Config. Reads are lock-free; updates are
// serialized, validated, persisted as a new version and then swapped in.
type Store struct {
	Repo   repository.Repository
	Logger *zap.Logger
	Now    func() time.Time

	writeMu sync.Mutex
	cur     atomic.Pointer[Config]
}

func NewStore(initial Config, repo repository.Repository, logger *zap.Logger) (*Store, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	s := &Store{Repo: repo, Logger: logger}
	c := initial.clone()
	s.cur.Store(&c)
	return s, nil
}

// Current returns a copy of the active configuration.
func (s *Store) Current() Config {
	return s.cur.Load().clone()
}

// Load replaces the boot configuration with the latest persisted version.
// When nothing is persisted yet, the boot configuration is saved as version 1.
func (s *Store) Load(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.Repo == nil {
		return nil
	}
	row, err := s.Repo.LatestStrategyVersion(ctx)
	if err != nil {
		return err
	}
	if row == nil {
		boot := s.cur.Load().clone()
		boot.Version = 1
		boot.UpdatedBy = "boot"
		boot.UpdatedAt = s.now()
		if err := s.persist(ctx, boot); err != nil {
			return err
		}
		s.cur.Store(&boot)
		return nil
	}
	var stored Config
	if err := json.Unmarshal(row.Payload, &stored); err != nil {
		return fmt.Errorf("decode strategy version %d: %w", row.Version, err)
	}
	stored.Version = row.Version
	if err := stored.Validate(); err != nil {
		if s.Logger != nil {
			s.Logger.Warn("persisted strategy rejected, keeping boot config", zap.Int64("version", row.Version), zap.Error(err))
		}
		return err
	}
	s.cur.Store(&stored)
	if s.Logger != nil {
		s.Logger.Info("strategy loaded", zap.Int64("version", stored.Version))
	}
	return nil
}

// Update validates next, assigns it the following version and makes it active.
// An invalid config leaves the active one untouched.
func (s *Store) Update(ctx context.Context, next Config, by string) (Config, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.updateLocked(ctx, next, by)
}

// Patch applies fn to a copy of the current config and stores the result.
// fn runs under the write lock, so concurrent patches never drop each other.
func (s *Store) Patch(ctx context.Context, by string, fn func(*Config)) (Config, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	next := s.cur.Load().clone()
	fn(&next)
	return s.updateLocked(ctx, next, by)
}

// updateLocked requires writeMu.
func (s *Store) updateLocked(ctx context.Context, next Config, by string) (Config, error) {
	if err := next.Validate(); err != nil {
		return Config{}, err
	}
	next = next.clone()
	next.Version = s.cur.Load().Version + 1
	next.UpdatedBy = by
	next.UpdatedAt = s.now()
	if err := s.persist(ctx, next); err != nil {
		return Config{}, err
	}
	s.cur.Store(&next)
	if s.Logger != nil {
		s.Logger.Info("strategy updated", zap.Int64("version", next.Version), zap.String("by", by))
	}
	return next.clone(), nil
}

func (s *Store) persist(ctx context.Context, c Config) error {
	if s.Repo == nil {
		return nil
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.Repo.InsertStrategyVersion(ctx, &models.StrategyVersion{
		Version:   c.Version,
		Payload:   datatypes.JSON(raw),
		UpdatedBy: c.UpdatedBy,
	})
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}
