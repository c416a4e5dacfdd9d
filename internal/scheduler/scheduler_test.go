package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"marketchart/internal/scheduler"

	"go.uber.org/zap"
)

// go test -v --run ^TestRegisterRejectsInvalidSpec$
func TestRegisterRejectsInvalidSpec(t *testing.T) {
	s := scheduler.New(zap.NewNop(), time.Second)

	if err := s.Register("not a cron", "reader", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected invalid spec to be rejected")
	}
	if err := s.Register("30 6 * * 1-5", "reader", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("expected valid spec, got %v", err)
	}
}

// go test -v --run ^TestRunNowAppliesTimeout$
func TestRunNowAppliesTimeout(t *testing.T) {
	s := scheduler.New(zap.NewNop(), 20*time.Millisecond)

	err := s.RunNow("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

// go test -v --run ^TestScheduledRuns$
func TestScheduledRuns(t *testing.T) {
	s := scheduler.New(zap.NewNop(), time.Second)

	var runs atomic.Int32
	if err := s.Register("@every 1s", "tick", func(context.Context) error {
		runs.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	s.Start()
	deadline := time.Now().Add(5 * time.Second)
	for runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	s.Stop()

	if runs.Load() == 0 {
		t.Fatal("expected at least one scheduled run")
	}
}
