package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("zip bytes"))
	}))
	defer srv.Close()

	f := &Fetcher{}
	body, size, err := f.Open(context.Background(), srv.URL+"/base.zip")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer body.Close()

	got, err := io.ReadAll(body)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "zip bytes" {
		t.Errorf("body = %q", got)
	}
	if size != int64(len("zip bytes")) {
		t.Errorf("size = %d", size)
	}
}

func TestOpenHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "120")
		http.Error(w, "not here", http.StatusNotFound)
	}))
	defer srv.Close()

	f := &Fetcher{}
	_, _, err := f.Open(context.Background(), srv.URL+"/missing.zip")

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("err = %v, want FetchError", err)
	}
	if fetchErr.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", fetchErr.StatusCode)
	}
	if fetchErr.Header.Get("Retry-After") != "120" {
		t.Errorf("headers not preserved: %v", fetchErr.Header)
	}
}

func TestOpenFileScheme(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.zip")
	if err := os.WriteFile(path, []byte("local"), 0644); err != nil {
		t.Fatal(err)
	}

	f := &Fetcher{}
	for _, rawURL := range []string{"file:" + path, "file://" + path} {
		body, size, err := f.Open(context.Background(), rawURL)
		if err != nil {
			t.Fatalf("Open(%q): %v", rawURL, err)
		}
		got, _ := io.ReadAll(body)
		body.Close()
		if string(got) != "local" || size != 5 {
			t.Errorf("Open(%q) = %q, size %d", rawURL, got, size)
		}
	}
}

func TestOpenFileMissing(t *testing.T) {
	f := &Fetcher{}
	_, _, err := f.Open(context.Background(), "file:/no/such/file.zip")
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("err = %v, want FetchError", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("underlying cause lost: %v", err)
	}
}

func TestOpenUnsupportedScheme(t *testing.T) {
	f := &Fetcher{}
	_, _, err := f.Open(context.Background(), "ftp://example.com/base.zip")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestOpenRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &Fetcher{}
	if _, _, err := f.Open(ctx, srv.URL); err == nil {
		t.Fatal("expected error from canceled context")
	}
}
