package engine

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"

	"solsniper/internal/models"
	"solsniper/internal/repository"
)

const (
	FeatureScanLoop    = "feature.scan_loop"
	FeatureMonitorLoop = "feature.monitor_loop"
	FeatureVolumeLoop  = "feature.volume_loop"
)

func featureKey(loop string) string {
	return "feature." + loop + "_loop"
}

// Settings persists loop switches so a restart resumes what the operator
// last chose.
type Settings struct {
	Repo repository.Repository
}

func (s *Settings) IsEnabled(ctx context.Context, key string, fallback bool) bool {
	if s == nil || s.Repo == nil {
		return fallback
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fallback
	}
	item, err := s.Repo.GetSystemSettingByKey(ctx, key)
	if err != nil || item == nil || len(item.Value) == 0 {
		return fallback
	}
	var enabled bool
	if err := json.Unmarshal(item.Value, &enabled); err != nil {
		return fallback
	}
	return enabled
}

func (s *Settings) SetEnabled(ctx context.Context, key string, enabled bool) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	raw, _ := json.Marshal(enabled)
	return s.Repo.UpsertSystemSetting(ctx, &models.SystemSetting{
		Key:         key,
		Value:       datatypes.JSON(raw),
		Description: "engine loop switch",
		UpdatedAt:   time.Now().UTC(),
	})
}
