package memory

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestWindowStorePrune(t *testing.T) {
	store := NewWindowStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if err := store.Add(ctx, "key", base.Add(time.Duration(i)*time.Second), time.Minute); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	// Cutoff at base+2s removes base, base+1s, and base+2s (inclusive).
	if err := store.Prune(ctx, "key", base.Add(2*time.Second)); err != nil {
		t.Fatalf("Prune: %v", err)
	}
	count, err := store.Count(ctx, "key")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Errorf("count after prune = %d, want 2", count)
	}

	oldest, ok, err := store.Oldest(ctx, "key")
	if err != nil {
		t.Fatalf("Oldest: %v", err)
	}
	if !ok || !oldest.Equal(base.Add(3*time.Second)) {
		t.Errorf("oldest = %v ok=%v, want %v", oldest, ok, base.Add(3*time.Second))
	}
}

func TestWindowStorePruneAllRemovesKey(t *testing.T) {
	store := NewWindowStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := store.Add(ctx, "key", base, time.Minute); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := store.Prune(ctx, "key", base.Add(time.Hour)); err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if store.Size() != 0 {
		t.Errorf("size = %d, want 0 after pruning every entry", store.Size())
	}
}

func TestWindowStoreKeysAreIndependent(t *testing.T) {
	store := NewWindowStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_ = store.Add(ctx, "a", base, time.Minute)
	}
	_ = store.Add(ctx, "b", base, time.Minute)

	if err := store.Prune(ctx, "a", base.Add(time.Second)); err != nil {
		t.Fatalf("Prune: %v", err)
	}
	count, _ := store.Count(ctx, "b")
	if count != 1 {
		t.Errorf("key b count = %d, want 1 (untouched by prune of a)", count)
	}
}

func TestWindowStoreOldestMissingKey(t *testing.T) {
	store := NewWindowStore()
	_, ok, err := store.Oldest(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Oldest: %v", err)
	}
	if ok {
		t.Error("expected ok=false for a key with no entries")
	}
}

func TestWindowStoreBackgroundCleanup(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := NewWindowStoreWithConfig(10*time.Millisecond, time.Nanosecond)
	ctx := context.Background()

	if err := store.Add(ctx, "idle", time.Now().UTC(), time.Minute); err != nil {
		t.Fatalf("Add: %v", err)
	}

	store.StartCleanup(ctx)
	defer store.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for store.Size() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if store.Size() != 0 {
		t.Errorf("size = %d, want 0 after idle-key cleanup", store.Size())
	}
}

func TestWindowStoreStopIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := NewWindowStore()
	store.StartCleanup(context.Background())
	store.Stop()
	store.Stop()
}
