package resolver

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
)

func TestXFSResolver_ExtractsFileID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>file_id=ABC123</html>`))
	}))
	defer srv.Close()

	cfg := XFSConfig{
		FileIDPattern:    regexp.MustCompile(`file_id=(\w+)`),
		VideoURLTemplate: "https://cdn.example/{id}.mp4",
	}
	r := NewXFSResolver(cfg, srv.Client())

	stream, err := r.Resolve(t.Context(), srv.URL)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if stream == nil || stream.VideoURL != "https://cdn.example/ABC123.mp4" {
		t.Fatalf("stream = %+v, want video URL with extracted id", stream)
	}
}

func TestXFSResolver_OfflineMarkerReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>This file has been deleted.</html>`))
	}))
	defer srv.Close()

	cfg := XFSConfig{
		FileIDPattern:  regexp.MustCompile(`file_id=(\w+)`),
		OfflineMarkers: []string{"has been deleted"},
	}
	r := NewXFSResolver(cfg, srv.Client())

	stream, err := r.Resolve(t.Context(), srv.URL)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if stream != nil {
		t.Fatalf("stream = %+v, want nil for an offline marker match", stream)
	}
}

func TestXFSResolver_CaptchaHosterNeverFetches(t *testing.T) {
	var called bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewXFSResolver(XFSConfig{Captcha: true}, srv.Client())
	stream, err := r.Resolve(t.Context(), srv.URL)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if stream != nil {
		t.Fatalf("stream = %+v, want nil for a captcha-gated hoster", stream)
	}
	if called {
		t.Fatal("a captcha-gated hoster should never be fetched")
	}
}

func TestXFSResolver_IsVideoReturnsPageURLDirectly(t *testing.T) {
	r := NewXFSResolver(XFSConfig{IsVideo: true}, http.DefaultClient)
	stream, err := r.Resolve(t.Context(), "https://cdn.example/direct.mp4")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if stream == nil || stream.VideoURL != "https://cdn.example/direct.mp4" {
		t.Fatalf("stream = %+v, want the page URL echoed back", stream)
	}
}

func TestXFSResolver_NoFileIDMatchReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>nothing useful here</html>`))
	}))
	defer srv.Close()

	cfg := XFSConfig{FileIDPattern: regexp.MustCompile(`file_id=(\w+)`)}
	r := NewXFSResolver(cfg, srv.Client())

	stream, err := r.Resolve(t.Context(), srv.URL)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if stream != nil {
		t.Fatalf("stream = %+v, want nil when the file-id pattern never matches", stream)
	}
}
