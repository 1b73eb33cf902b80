package velocity

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/cache"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/repository"
)

func TestVelocityService(t *testing.T) {
	// Create temp database
	tmpFile, err := os.CreateTemp("", "velocity-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	// Create repository
	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	// Create cache
	lruCache := cache.NewLRUCache(100)
	defer lruCache.Close()

	// Create velocity service
	svc := NewService(repo, lruCache)

	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("EmptyDatabase", func(t *testing.T) {
		count, err := svc.GetScreenCount(ctx, tenantID, "John Smith", 3600)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 0 {
			t.Errorf("expected count 0 for empty database, got %d", count)
		}
	})

	t.Run("WithScreenings", func(t *testing.T) {
		// Spelling variants of the same name normalize identically.
		names := []string{"John Smith", "JOHN SMITH", "john-smith", "John  Smith", "Jôhn Smith"}
		for i, name := range names {
			rec := &domain.ScreeningRecord{
				ID:    fmt.Sprintf("scr-%d", i),
				Query: domain.EntityQuery{Name: name, Type: domain.EntityIndividual},
				Result: &domain.ScreeningResult{
					RiskLevel: domain.RiskLow,
					Timestamp: time.Now().UTC(),
				},
				CreatedAt: time.Now().UTC(),
			}
			if err := repo.SaveScreening(ctx, tenantID, rec); err != nil {
				t.Fatalf("failed to save screening: %v", err)
			}
		}

		count, err := svc.GetScreenCount(ctx, tenantID, "John Smith", 3600)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// "Jôhn Smith" normalizes to "jhnsmith", not "johnsmith".
		if count != 4 {
			t.Errorf("expected count 4, got %d", count)
		}

		count, err = svc.GetScreenCount(ctx, tenantID, "Somebody Else", 3600)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 0 {
			t.Errorf("expected count 0 for unknown name, got %d", count)
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		count, err := svc.GetScreenCount(ctx, "other-tenant", "John Smith", 3600)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 0 {
			t.Errorf("expected count 0 for different tenant, got %d", count)
		}
	})

	t.Run("RequiresTenantID", func(t *testing.T) {
		_, err := svc.GetScreenCount(ctx, "", "John Smith", 3600)
		if err == nil {
			t.Error("expected error for empty tenantID")
		}
	})

	t.Run("RequiresEntityName", func(t *testing.T) {
		_, err := svc.GetScreenCount(ctx, tenantID, "", 3600)
		if err == nil {
			t.Error("expected error for empty entity name")
		}
	})

	t.Run("Record", func(t *testing.T) {
		svc.Record(ctx, tenantID, "John Smith", time.Minute)
		svc.Record(ctx, tenantID, "JOHN SMITH", time.Minute)

		// The counter key is the normalized name; both calls share it.
		count, err := lruCache.IncrementCounter(ctx, tenantID, "screen:johnsmith", time.Minute)
		if err != nil {
			t.Fatalf("IncrementCounter failed: %v", err)
		}
		if count != 3 {
			t.Errorf("expected counter 3, got %d", count)
		}
	})

	t.Run("ScreenCountGetter", func(t *testing.T) {
		getter := svc.GetScreenCountGetter()
		if getter == nil {
			t.Fatal("GetScreenCountGetter returned nil")
		}

		count, err := getter(ctx, tenantID, "John Smith", 3600)
		if err != nil {
			t.Fatalf("ScreenCountGetter failed: %v", err)
		}
		if count != 4 {
			t.Errorf("expected count 4, got %d", count)
		}
	})
}

func TestNoDataSource(t *testing.T) {
	svc := &Service{} // No repo

	ctx := context.Background()
	_, err := svc.GetScreenCount(ctx, "tenant", "entity", 3600)
	if err == nil {
		t.Error("expected error with no data source")
	}
}
