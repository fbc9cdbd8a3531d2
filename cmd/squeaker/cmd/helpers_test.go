package cmd

import (
	"strings"
	"testing"

	"github.com/squeaker/squeaker/internal/cache"
	"github.com/squeaker/squeaker/internal/digest"
	"github.com/squeaker/squeaker/internal/stage"
)

func newTestStore(t *testing.T) *cache.Store {
	t.Helper()
	store, err := cache.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func TestResolveImageRefPrefersTags(t *testing.T) {
	store := newTestStore(t)
	rec := &stage.Record{
		Type:        stage.TypeURL,
		Key:         "http://example.com/a.zip",
		Digest:      digest.Stage("url", "http://example.com/a.zip"),
		ImageDigest: digest.String("img"),
		URL:         "http://example.com/a.zip",
	}
	if err := store.WriteStage(rec); err != nil {
		t.Fatal(err)
	}
	if err := store.WriteTag(&stage.Tag{Name: "dev", StageDigest: rec.Digest, ImageDigest: rec.ImageDigest}); err != nil {
		t.Fatal(err)
	}

	imageDigest, got, err := resolveImageRef(store, "dev")
	if err != nil {
		t.Fatalf("resolveImageRef: %v", err)
	}
	if imageDigest != rec.ImageDigest {
		t.Errorf("image = %s", imageDigest)
	}
	if got == nil || got.Digest != rec.Digest {
		t.Errorf("stage record not returned for tag reference")
	}
}

func TestResolveImageRefByPrefix(t *testing.T) {
	store := newTestStore(t)
	sum, err := store.PutBlob(strings.NewReader("image bytes"))
	if err != nil {
		t.Fatal(err)
	}

	imageDigest, rec, err := resolveImageRef(store, sum[:12])
	if err != nil {
		t.Fatalf("resolveImageRef: %v", err)
	}
	if imageDigest != sum {
		t.Errorf("resolved %s, want %s", imageDigest, sum)
	}
	if rec != nil {
		t.Errorf("prefix reference has no stage record, got %+v", rec)
	}
}

func TestResolveImageRefNoMatch(t *testing.T) {
	store := newTestStore(t)
	if _, _, err := resolveImageRef(store, "nonexistent"); err == nil {
		t.Fatal("expected error")
	}
}

func TestResolveHeadless(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if _, err := resolveHeadless(true, true, false); err == nil {
		t.Error("conflicting flags accepted")
	}

	got, err := resolveHeadless(true, false, false)
	if err != nil || !got {
		t.Errorf("explicit --headless: %v %v", got, err)
	}
	got, err = resolveHeadless(false, true, true)
	if err != nil || got {
		t.Errorf("explicit --no-headless: %v %v", got, err)
	}
	got, err = resolveHeadless(false, false, true)
	if err != nil || !got {
		t.Errorf("fallback: %v %v", got, err)
	}
}

func TestHumanBytes(t *testing.T) {
	cases := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
		{3 * 1024 * 1024 * 1024, "3.0 GiB"},
	}
	for _, tc := range cases {
		if got := humanBytes(tc.n); got != tc.want {
			t.Errorf("humanBytes(%d) = %q, want %q", tc.n, got, tc.want)
		}
	}
}
