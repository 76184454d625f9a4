package memoryrepository

import (
	"context"
	"errors"
	"testing"
	"time"

	"solsniper/internal/models"
	"solsniper/internal/repository"
)

func TestPositionsFilterAndOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, st := range []string{"open", "closed", "open"} {
		p := &models.Position{ID: string(rune('a' + i)), SubjectID: "S", State: st, OpenedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := s.SavePosition(ctx, p); err != nil {
			t.Fatalf("SavePosition err=%v", err)
		}
	}
	open := "open"
	items, _ := s.ListPositions(ctx, repository.ListPositionsParams{State: &open})
	if len(items) != 2 || items[0].ID != "c" {
		t.Fatalf("items=%+v", items)
	}
	n, _ := s.CountPositions(ctx, repository.ListPositionsParams{})
	if n != 3 {
		t.Fatalf("count=%d want=3", n)
	}
	got, _ := s.GetPosition(ctx, "b")
	if got == nil || got.State != "closed" {
		t.Fatalf("got=%+v", got)
	}
	if missing, _ := s.GetPosition(ctx, "zz"); missing != nil {
		t.Fatalf("expected nil for missing position")
	}
}

func TestWalletBatchLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()
	b := &models.WalletBatch{Name: "alpha", Accounts: []models.WalletAccount{{Seq: 0, Label: "alpha_0", PublicAddr: "P0"}}}
	if err := s.CreateWalletBatch(ctx, b); err != nil {
		t.Fatalf("create err=%v", err)
	}
	if err := s.CreateWalletBatch(ctx, &models.WalletBatch{Name: "alpha"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err=%v want ErrDuplicate", err)
	}
	got, _ := s.GetWalletBatch(ctx, "alpha")
	if got == nil || len(got.Accounts) != 1 || got.Accounts[0].BatchID != got.ID {
		t.Fatalf("got=%+v", got)
	}
	_ = s.DeleteWalletBatch(ctx, "alpha")
	if got, _ := s.GetWalletBatch(ctx, "alpha"); got != nil {
		t.Fatalf("expected batch deleted")
	}
}

func TestStrategyVersionsAndSettings(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.InsertStrategyVersion(ctx, &models.StrategyVersion{Version: 1})
	_ = s.InsertStrategyVersion(ctx, &models.StrategyVersion{Version: 3})
	if err := s.InsertStrategyVersion(ctx, &models.StrategyVersion{Version: 3}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err=%v want ErrDuplicate", err)
	}
	latest, _ := s.LatestStrategyVersion(ctx)
	if latest == nil || latest.Version != 3 {
		t.Fatalf("latest=%+v", latest)
	}

	_ = s.UpsertSystemSetting(ctx, &models.SystemSetting{Key: "feature.scan_loop", Value: []byte(`true`)})
	_ = s.UpsertSystemSetting(ctx, &models.SystemSetting{Key: "feature.scan_loop", Value: []byte(`false`)})
	got, _ := s.GetSystemSettingByKey(ctx, "feature.scan_loop")
	if got == nil || string(got.Value) != "false" {
		t.Fatalf("setting=%+v", got)
	}
}

func TestSignalsRetention(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = s.InsertSignals(ctx, []models.Signal{
		{Kind: "new_listing", SubjectID: "A", ObservedAt: base},
		{Kind: "volume_spike", SubjectID: "B", ObservedAt: base.Add(time.Hour)},
	})
	n, _ := s.DeleteSignalsBefore(ctx, base.Add(time.Minute))
	if n != 1 {
		t.Fatalf("deleted=%d want=1", n)
	}
	items, _ := s.ListSignals(ctx, repository.ListSignalsParams{})
	if len(items) != 1 || items[0].SubjectID != "B" {
		t.Fatalf("items=%+v", items)
	}
}
