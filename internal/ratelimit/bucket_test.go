package ratelimit

import (
	"context"
	"testing"
	"time"
)

// TestBucket_AIMD_Success verifies the additive-increase rule settles near
// min(initial*1.1^n, max), matching spec scenario S1.
func TestBucket_AIMD_Success(t *testing.T) {
	b := NewBucket(BucketConfig{InitialRate: 10, MinRate: 0.5, MaxRate: 50})
	for i := 0; i < 30; i++ {
		b.RecordSuccess()
	}
	if rate := b.Rate(); rate != 50 {
		t.Fatalf("Rate() after 30 successes = %v, want 50 (clamped at max)", rate)
	}
}

func TestBucket_AIMD_Throttle(t *testing.T) {
	b := NewBucket(BucketConfig{InitialRate: 50, MinRate: 0.5, MaxRate: 50})
	b.RecordThrottle()
	if rate := b.Rate(); rate != 25 {
		t.Fatalf("Rate() after one throttle = %v, want 25", rate)
	}
	b.RecordThrottle()
	if rate := b.Rate(); rate != 12.5 {
		t.Fatalf("Rate() after two throttles = %v, want 12.5", rate)
	}
}

func TestBucket_AIMD_Timeout(t *testing.T) {
	b := NewBucket(BucketConfig{InitialRate: 12.5, MinRate: 0.5, MaxRate: 50})
	b.RecordTimeout()
	if rate := b.Rate(); rate != 9.375 {
		t.Fatalf("Rate() after timeout = %v, want 9.375", rate)
	}
}

func TestBucket_AIMD_FloorsAtMinRate(t *testing.T) {
	b := NewBucket(BucketConfig{InitialRate: 1, MinRate: 0.5, MaxRate: 50})
	for i := 0; i < 10; i++ {
		b.RecordThrottle()
	}
	if rate := b.Rate(); rate != 0.5 {
		t.Fatalf("Rate() after repeated throttles = %v, want floor of 0.5", rate)
	}
}

func TestBucket_AcquireConsumesAvailableTokens(t *testing.T) {
	b := NewBucket(BucketConfig{InitialRate: 5, MinRate: 1, MaxRate: 10})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 5; i++ {
		if err := b.Acquire(ctx); err != nil {
			t.Fatalf("Acquire() #%d: %v", i, err)
		}
	}
}

func TestBucket_AcquireBlocksUntilCanceled(t *testing.T) {
	b := NewBucket(BucketConfig{InitialRate: 1, MinRate: 1, MaxRate: 1})
	// Drain the single starting token.
	ctx := context.Background()
	if err := b.Acquire(ctx); err != nil {
		t.Fatalf("initial Acquire: %v", err)
	}

	cancelCtx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := b.Acquire(cancelCtx); err == nil {
		t.Fatal("expected Acquire to report the context deadline, got nil")
	}
}
