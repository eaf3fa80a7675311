package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTransport_RetriesOn429ThenSucceeds(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	registry := NewRegistry(BucketConfig{InitialRate: 1000, MinRate: 1, MaxRate: 1000})
	client := &http.Client{Transport: NewTransport(http.DefaultTransport, registry)}

	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("final status = %d, want 200", resp.StatusCode)
	}
	if calls != 2 {
		t.Fatalf("server received %d calls, want 2 (1 throttle + 1 retry)", calls)
	}
}

func TestTransport_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	registry := NewRegistry(BucketConfig{InitialRate: 1000, MinRate: 1, MaxRate: 1000})
	client := &http.Client{Transport: NewTransport(http.DefaultTransport, registry)}

	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("final status = %d, want 503", resp.StatusCode)
	}
	if calls != retryMaxAttempts+1 {
		t.Fatalf("server received %d calls, want %d (1 initial + %d retries)", calls, retryMaxAttempts+1, retryMaxAttempts)
	}
}

