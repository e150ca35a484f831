package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestPurgeRenewalLogsCutoff(t *testing.T) {
	store := &fakeLogStore{}
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)

	PurgeRenewalLogs(context.Background(), store, 30*24*time.Hour, now, zap.NewNop())

	if len(store.cutoffs) != 1 {
		t.Fatalf("purge called %d times, want 1", len(store.cutoffs))
	}
	want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if !store.cutoffs[0].Equal(want) {
		t.Errorf("cutoff = %v, want %v", store.cutoffs[0], want)
	}
}

func TestPurgeRenewalLogsErrorIsLogged(t *testing.T) {
	store := &fakeLogStore{purgeErr: errors.New("db down")}

	// Must not panic; the scheduler keeps running.
	PurgeRenewalLogs(context.Background(), store, time.Hour, time.Now(), zap.NewNop())

	if len(store.cutoffs) != 1 {
		t.Errorf("purge called %d times, want 1", len(store.cutoffs))
	}
}

func TestStartRetentionScheduler(t *testing.T) {
	store := &fakeLogStore{}

	sched, err := StartRetentionScheduler(store, time.Hour, 20*time.Millisecond, zap.NewNop())
	if err != nil {
		t.Fatalf("StartRetentionScheduler() error = %v", err)
	}
	defer func() { _ = sched.Shutdown() }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		store.mu.Lock()
		n := len(store.cutoffs)
		store.mu.Unlock()
		if n > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("purge job never ran")
}
