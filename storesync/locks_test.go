package storesync

import (
	"context"
	"testing"
	"time"
)

func TestAcquireRecordLock_SerializesSameStableId(t *testing.T) {
	release, err := acquireRecordLock(context.Background(), "lock-a")
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		second, err := acquireRecordLock(context.Background(), "lock-a")
		if err != nil {
			t.Errorf("second acquire failed: %v", err)
			close(acquired)
			return
		}
		close(acquired)
		second()
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire went through while the first still held the lock")
	case <-time.After(20 * time.Millisecond):
	}

	release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire never completed after release")
	}
}

func TestAcquireRecordLock_IndependentStableIdsDoNotBlock(t *testing.T) {
	releaseA, err := acquireRecordLock(context.Background(), "lock-b")
	if err != nil {
		t.Fatalf("acquire lock-b: %v", err)
	}
	defer releaseA()

	releaseB, err := acquireRecordLock(context.Background(), "lock-c")
	if err != nil {
		t.Fatalf("acquire lock-c: %v", err)
	}
	releaseB()
}
