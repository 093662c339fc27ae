package alert

import (
	"context"
	"testing"
	"time"
)

func TestSeedDemo(t *testing.T) {
	now := time.Date(2025, time.March, 12, 14, 0, 0, 0, time.UTC)
	repo := NewInMemoryRepository()
	if err := SeedDemo(repo, now); err != nil {
		t.Fatalf("SeedDemo() error = %v", err)
	}

	all, err := repo.List(context.Background(), ListFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("len = %d, want 5", len(all))
	}
	if all[0].Type != "suspicious_behavior" || !all[0].Timestamp.Equal(now.Add(-5*time.Minute)) {
		t.Errorf("newest alert = %+v", all[0])
	}

	resolved, err := repo.List(context.Background(), ListFilter{Status: StatusResolved})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(resolved) != 2 {
		t.Fatalf("len(resolved) = %d, want 2", len(resolved))
	}
	for _, a := range resolved {
		if a.ResolvedAt == nil {
			t.Errorf("resolved alert %s has no resolvedAt", a.ID)
		}
	}
}
