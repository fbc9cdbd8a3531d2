// Package fetch retrieves recipe base images. It treats every source
// as a byte stream with an optional content-length hint; the caller
// decides where the bytes go.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
)

// HTTPClient abstracts HTTP operations for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultHTTPClient is an HTTPClient using http.DefaultClient.
type DefaultHTTPClient struct{}

func (DefaultHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return http.DefaultClient.Do(req)
}

// FetchError reports a source that could not be read. For HTTP sources
// Status and Header carry the server's response.
type FetchError struct {
	URL        string
	Status     string
	StatusCode int
	Header     http.Header
	Err        error
}

func (e *FetchError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("fetching %s: %s", e.URL, e.Status)
	}
	return fmt.Sprintf("fetching %s: %s", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher opens URLs for streaming. HTTP(S) and file: schemes are
// supported.
type Fetcher struct {
	Client HTTPClient
}

// Open returns a reader over the body of rawURL plus a content-length
// hint (0 when unknown). Any non-2xx HTTP status is a FetchError; the
// transport's own retry behavior, if any, is all the retrying there is.
func (f *Fetcher) Open(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, 0, &FetchError{URL: rawURL, Err: err}
	}

	switch u.Scheme {
	case "file":
		return openFile(u, rawURL)
	case "http", "https":
		return f.openHTTP(ctx, rawURL)
	default:
		return nil, 0, &FetchError{URL: rawURL, Err: fmt.Errorf("unsupported URL scheme %q", u.Scheme)}
	}
}

func (f *Fetcher) openHTTP(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	client := f.Client
	if client == nil {
		client = DefaultHTTPClient{}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, &FetchError{URL: rawURL, Err: fmt.Errorf("creating request: %w", err)}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, &FetchError{URL: rawURL, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, 0, &FetchError{
			URL:        rawURL,
			Status:     resp.Status,
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
		}
	}

	size := resp.ContentLength
	if size < 0 {
		size = 0
	}
	return resp.Body, size, nil
}

func openFile(u *url.URL, rawURL string) (io.ReadCloser, int64, error) {
	path := u.Path
	if u.Host != "" && u.Host != "localhost" {
		return nil, 0, &FetchError{URL: rawURL, Err: fmt.Errorf("file URL with remote host %q", u.Host)}
	}
	// file:relative/path parses into the opaque part.
	if path == "" {
		path = u.Opaque
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, &FetchError{URL: rawURL, Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, &FetchError{URL: rawURL, Err: err}
	}
	return f, info.Size(), nil
}
