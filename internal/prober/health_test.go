package prober

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRunHealthProbe_HealthyOrigin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Fatalf("expected HEAD, got %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	probe := RunHealthProbe(t.Context(), srv.Client(), srv.URL)
	if !probe.OK || probe.Captcha {
		t.Fatalf("probe = %+v, want OK=true Captcha=false", probe)
	}
}

func TestRunHealthProbe_FallsBackToRangedGetOn405(t *testing.T) {
	var sawRangedGet bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		sawRangedGet = r.Header.Get("Range") == "bytes=0-0"
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	probe := RunHealthProbe(t.Context(), srv.Client(), srv.URL)
	if !probe.OK {
		t.Fatalf("probe = %+v, want OK=true after ranged-GET fallback", probe)
	}
	if !sawRangedGet {
		t.Fatal("expected a ranged GET fallback after 405 from HEAD")
	}
}

func TestRunHealthProbe_DetectsCloudflareCaptcha(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("cf-ray", "abc123-IAD")
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	probe := RunHealthProbe(t.Context(), srv.Client(), srv.URL)
	if !probe.Captcha {
		t.Fatalf("probe = %+v, want Captcha=true for cf-ray + 403", probe)
	}
	if probe.OK {
		t.Fatal("a captcha-gated 403 should not count as OK")
	}
}

func TestRunHealthProbe_ConnectionFailureIsNotOK(t *testing.T) {
	probe := RunHealthProbe(t.Context(), http.DefaultClient, "http://127.0.0.1:1")
	if probe.OK {
		t.Fatal("a connection failure should never report OK=true")
	}
}
