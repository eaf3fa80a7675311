package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/meridian-idx/aggregator/internal/apperr"
	"github.com/meridian-idx/aggregator/internal/model"
)

func writeManifest(t *testing.T, dir, contents string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestFileName), []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestDiscover_ParsesManifestMetadata(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, filepath.Join(root, "plugin-a"), `
name: plugin-a
mode: fast-http
provides: download
languages: [en, de]
age_buckets: [current, y1_2]
`)

	descs, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(descs) != 1 {
		t.Fatalf("Discover returned %d descriptors, want 1", len(descs))
	}
	d := descs[0]
	if d.Name != "plugin-a" || d.Mode != ModeFastHTTP || d.Provides != ProvidesDownload {
		t.Fatalf("unexpected descriptor: %+v", d)
	}
	if len(d.Languages) != 2 {
		t.Fatalf("Languages = %v, want 2 entries", d.Languages)
	}
	if !d.Overrides.Enabled {
		t.Fatal("expected Enabled to default to true when omitted")
	}
}

func TestDiscover_DropsDisabledPlugins(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, filepath.Join(root, "plugin-a"), `
name: plugin-a
mode: fast-http
provides: download
languages: [en]
overrides:
  enabled: false
`)

	descs, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(descs) != 0 {
		t.Fatalf("Discover returned %d descriptors, want 0 (disabled plugin dropped)", len(descs))
	}
}

func TestDiscover_RejectsDuplicateNames(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, filepath.Join(root, "a"), "name: dup\nmode: fast-http\nprovides: download\nlanguages: [en]\n")
	writeManifest(t, filepath.Join(root, "b"), "name: dup\nmode: fast-http\nprovides: download\nlanguages: [en]\n")

	_, err := Discover(root)
	if apperr.Classify(err) != apperr.ClassInvalidInput {
		t.Fatalf("expected ClassInvalidInput for duplicate names, got %v", err)
	}
}

func TestDiscover_RejectsMissingRequiredFields(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, filepath.Join(root, "a"), "mode: fast-http\nprovides: download\nlanguages: [en]\n")

	_, err := Discover(root)
	if apperr.Classify(err) != apperr.ClassInvalidInput {
		t.Fatalf("expected ClassInvalidInput for missing name, got %v", err)
	}
}

type stubPlugin struct{}

func (stubPlugin) Search(ctx context.Context, query, category string, season, episode int) ([]model.SearchResult, error) {
	return nil, nil
}

func TestRegistry_GetLoadsOnceAndCaches(t *testing.T) {
	descs := []Descriptor{{Name: "plugin-a", Mode: ModeFastHTTP, Provides: ProvidesDownload, Languages: []string{"en"}}}
	var loadCount int
	r := New(descs, func(d Descriptor) (Plugin, error) {
		loadCount++
		return stubPlugin{}, nil
	})

	if _, err := r.Get("plugin-a"); err != nil {
		t.Fatalf("Get #1: %v", err)
	}
	if _, err := r.Get("plugin-a"); err != nil {
		t.Fatalf("Get #2: %v", err)
	}
	if loadCount != 1 {
		t.Fatalf("loader called %d times, want exactly 1", loadCount)
	}
}

func TestRegistry_MetadataPeeksDontLoad(t *testing.T) {
	descs := []Descriptor{{Name: "plugin-a", Mode: ModeHeadlessBrowser, Provides: ProvidesStream, Languages: []string{"de", "en"}}}
	var loadCount int
	r := New(descs, func(d Descriptor) (Plugin, error) {
		loadCount++
		return stubPlugin{}, nil
	})

	if _, err := r.GetMode("plugin-a"); err != nil {
		t.Fatalf("GetMode: %v", err)
	}
	if _, err := r.GetLanguages("plugin-a"); err != nil {
		t.Fatalf("GetLanguages: %v", err)
	}
	if loadCount != 0 {
		t.Fatalf("loader called %d times from metadata peeks, want 0", loadCount)
	}
}

func TestRegistry_GetUnknownPluginIsNotFound(t *testing.T) {
	r := New(nil, func(d Descriptor) (Plugin, error) { return stubPlugin{}, nil })
	_, err := r.Get("missing")
	if apperr.Classify(err) != apperr.ClassNotFound {
		t.Fatalf("expected ClassNotFound, got %v", err)
	}
}
