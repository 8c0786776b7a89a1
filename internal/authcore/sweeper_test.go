package authcore

import (
	"context"
	"testing"
	"time"
)

func TestSweepOnceRemovesOnlyExpired(t *testing.T) {
	t.Parallel()

	clock := &controllableClock{current: time.Unix(1700000000, 0).UTC()}
	store := NewMemoryRefreshTokenStore()
	now := clock.Now()

	records := []RefreshTokenRecord{
		{ID: "expired", UserID: "user-1", TokenHash: "hash-a", ExpiresAt: now.Add(-time.Minute), CreatedAt: now.Add(-time.Hour)},
		{ID: "live", UserID: "user-1", TokenHash: "hash-b", ExpiresAt: now.Add(time.Hour), CreatedAt: now},
	}
	for _, record := range records {
		if err := store.Save(context.Background(), record); err != nil {
			t.Fatalf("save %s: %v", record.ID, err)
		}
	}

	sweeper := NewRefreshTokenSweeper(store, time.Hour, clock, nil)
	sweeper.SweepOnce(context.Background())

	if _, err := store.FindByUserAndHash(context.Background(), "user-1", "hash-a"); err == nil {
		t.Fatalf("expected expired record removed")
	}
	if _, err := store.FindByUserAndHash(context.Background(), "user-1", "hash-b"); err != nil {
		t.Fatalf("live record must survive: %v", err)
	}
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	sweeper := NewRefreshTokenSweeper(NewMemoryRefreshTokenStore(), time.Millisecond, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("sweeper did not stop after cancel")
	}
}
