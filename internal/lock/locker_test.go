package lock

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLockerMutualExclusion(t *testing.T) {
	locker, err := NewRunLocker("", "", 0, time.Minute)
	if err != nil {
		t.Fatalf("NewRunLocker: %v", err)
	}
	ctx := context.Background()

	ok, err := locker.Acquire(ctx, "sched-1")
	if err != nil || !ok {
		t.Fatalf("first acquire = %v, %v", ok, err)
	}
	ok, err = locker.Acquire(ctx, "sched-1")
	if err != nil || ok {
		t.Fatalf("second acquire = %v, %v, want held", ok, err)
	}

	// Other schedules are independent.
	ok, err = locker.Acquire(ctx, "sched-2")
	if err != nil || !ok {
		t.Fatalf("other schedule acquire = %v, %v", ok, err)
	}

	if err := locker.Release(ctx, "sched-1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, err = locker.Acquire(ctx, "sched-1")
	if err != nil || !ok {
		t.Fatalf("reacquire after release = %v, %v", ok, err)
	}
}

func TestMemoryLockerTTLExpires(t *testing.T) {
	locker := newMemoryRunLocker(10 * time.Millisecond)
	ctx := context.Background()

	if ok, _ := locker.Acquire(ctx, "sched-1"); !ok {
		t.Fatal("first acquire failed")
	}
	time.Sleep(20 * time.Millisecond)
	if ok, _ := locker.Acquire(ctx, "sched-1"); !ok {
		t.Error("lock did not expire with its TTL")
	}
}

func TestReleaseUnheldIsNoop(t *testing.T) {
	locker, _ := NewRunLocker("", "", 0, time.Minute)
	if err := locker.Release(context.Background(), "never-held"); err != nil {
		t.Errorf("release unheld: %v", err)
	}
}
