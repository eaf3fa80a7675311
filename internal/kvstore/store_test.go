// Package kvstore contains unit tests exercising the Store contract against
// each backend that can run without an external service.
package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/meridian-idx/aggregator/internal/apperr"
)

func TestMockStore_PutGetRoundTrip(t *testing.T) {
	s := NewMock()
	ctx := context.Background()

	if err := s.Put(ctx, "plugin:a", []byte("value"), 0); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ctx, "plugin:a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "value" {
		t.Fatalf("Get returned %q, want %q", got, "value")
	}
}

func TestMockStore_GetMissingReturnsNotFound(t *testing.T) {
	s := NewMock()
	_, err := s.Get(context.Background(), "missing")
	if apperr.Classify(err) != apperr.ClassNotFound {
		t.Fatalf("expected ClassNotFound, got %v", apperr.Classify(err))
	}
}

func TestMockStore_TTLExpires(t *testing.T) {
	s := NewMock()
	ctx := context.Background()
	if err := s.Put(ctx, "k", []byte("v"), 5*time.Millisecond); err != nil {
		t.Fatalf("Put: %v", err)
	}
	time.Sleep(15 * time.Millisecond)
	if _, err := s.Get(ctx, "k"); apperr.Classify(err) != apperr.ClassNotFound {
		t.Fatalf("expected key to have expired, got err=%v", err)
	}
}

func TestMockStore_ScanByPrefix(t *testing.T) {
	s := NewMock()
	ctx := context.Background()
	_ = s.Put(ctx, "score:plugin-a:movie", []byte("1"), 0)
	_ = s.Put(ctx, "score:plugin-b:movie", []byte("2"), 0)
	_ = s.Put(ctx, "lastrun:health:plugin-a", []byte("3"), 0)

	entries, err := s.Scan(ctx, "score:")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Scan(score:) returned %d entries, want 2", len(entries))
	}
}

func TestMockStore_Delete(t *testing.T) {
	s := NewMock()
	ctx := context.Background()
	_ = s.Put(ctx, "k", []byte("v"), 0)
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "k"); apperr.Classify(err) != apperr.ClassNotFound {
		t.Fatalf("expected ClassNotFound after delete, got %v", err)
	}
}

func TestBuntStore_PutGetScanDelete(t *testing.T) {
	s, err := NewBunt(":memory:")
	if err != nil {
		t.Fatalf("NewBunt: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	if err := s.Put(ctx, "job:1", []byte("payload"), 0); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ctx, "job:1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("Get returned %q, want %q", got, "payload")
	}

	_ = s.Put(ctx, "job:2", []byte("other"), 0)
	entries, err := s.Scan(ctx, "job:")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Scan(job:) returned %d entries, want 2", len(entries))
	}

	if err := s.Delete(ctx, "job:1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "job:1"); apperr.Classify(err) != apperr.ClassNotFound {
		t.Fatalf("expected ClassNotFound after delete, got %v", err)
	}
}

func TestBuntStore_TTLExpires(t *testing.T) {
	s, err := NewBunt(":memory:")
	if err != nil {
		t.Fatalf("NewBunt: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	if err := s.Put(ctx, "ephemeral", []byte("v"), 5*time.Millisecond); err != nil {
		t.Fatalf("Put: %v", err)
	}
	time.Sleep(15 * time.Millisecond)
	if _, err := s.Get(ctx, "ephemeral"); apperr.Classify(err) != apperr.ClassNotFound {
		t.Fatalf("expected key to have expired, got err=%v", err)
	}
}
