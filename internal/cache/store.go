// Package cache implements the content-addressed on-disk store backing
// every build. Three namespaces live under the cache root: images/
// holds opaque image blobs named by their own SHA-512, stages/ holds
// JSON stage records named by stage digest, and tags/ holds JSON tag
// pointers named by human tag.
package cache

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/squeaker/squeaker/internal/digest"
	"github.com/squeaker/squeaker/internal/stage"
)

// Namespace names under the cache root.
const (
	Images = "images"
	Stages = "stages"
	Tags   = "tags"

	recentChangesDir = "recentchanges"
)

// Store provides durable, content-addressed storage for one cache root.
// It assumes a single writer per filesystem root.
type Store struct {
	root string
}

// New opens (creating if needed) a Store rooted at dir.
func New(dir string) (*Store, error) {
	for _, ns := range []string{Images, Stages, Tags} {
		if err := os.MkdirAll(filepath.Join(dir, ns), 0755); err != nil {
			return nil, fmt.Errorf("creating cache directory %s: %w", filepath.Join(dir, ns), err)
		}
	}
	return &Store{root: dir}, nil
}

// DefaultDir returns the default cache root.
// Uses XDG_CACHE_HOME if set, otherwise ~/.cache/squeaker.
func DefaultDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "squeaker")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "squeaker-cache")
	}
	return filepath.Join(home, ".cache", "squeaker")
}

// Root returns the cache root directory.
func (s *Store) Root() string {
	return s.root
}

// BlobPath returns the path an image blob with the given digest would
// occupy, whether or not it exists.
func (s *Store) BlobPath(imageDigest string) string {
	return filepath.Join(s.root, Images, imageDigest)
}

// HasBlob reports whether an image blob is present.
func (s *Store) HasBlob(imageDigest string) bool {
	_, err := os.Stat(s.BlobPath(imageDigest))
	return err == nil
}

// OpenBlob opens an image blob for reading.
func (s *Store) OpenBlob(imageDigest string) (*os.File, error) {
	f, err := os.Open(s.BlobPath(imageDigest))
	if err != nil {
		return nil, fmt.Errorf("opening image blob %.12s: %w", imageDigest, err)
	}
	return f, nil
}

// PutBlob streams r into the images namespace, hashing while writing,
// and returns the content digest. The blob is written to a temp file
// and promoted by rename; overwriting an existing blob is harmless
// because the store is content-addressed.
func (s *Store) PutBlob(r io.Reader) (string, error) {
	dir := filepath.Join(s.root, Images)
	tmp, err := os.CreateTemp(dir, ".blob-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating blob temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	sum, err := digest.Reader(io.TeeReader(r, tmp))
	if err != nil {
		return "", fmt.Errorf("writing blob: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("syncing blob temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing blob temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.BlobPath(sum)); err != nil {
		return "", fmt.Errorf("promoting blob into cache: %w", err)
	}

	success = true
	return sum, nil
}

// LoadStage reads a stage record by its full digest, verifying its
// internal consistency. A missing record satisfies
// errors.Is(err, fs.ErrNotExist); a corrupt one is a
// stage.ValidationError.
func (s *Store) LoadStage(stageDigest string) (*stage.Record, error) {
	var rec stage.Record
	if err := s.readJSON(Stages, stageDigest, &rec); err != nil {
		return nil, err
	}
	if errs := stage.Validate(&rec); len(errs) > 0 {
		return nil, &stage.ValidationError{Digest: stageDigest, Errors: errs}
	}
	return &rec, nil
}

// WriteStage persists a stage record under its own digest.
func (s *Store) WriteStage(rec *stage.Record) error {
	return s.writeJSON(Stages, rec.Digest, rec)
}

// LoadTag reads a tag record by name. A missing tag satisfies
// errors.Is(err, fs.ErrNotExist).
func (s *Store) LoadTag(name string) (*stage.Tag, error) {
	var t stage.Tag
	if err := s.readJSON(Tags, name, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// WriteTag persists a tag record, overwriting any previous pointer.
func (s *Store) WriteTag(t *stage.Tag) error {
	return s.writeJSON(Tags, t.Name, t)
}

// Delete removes an entry from a namespace. Missing entries succeed
// silently.
func (s *Store) Delete(namespace, id string) error {
	err := os.Remove(filepath.Join(s.root, namespace, id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting %s/%s: %w", namespace, id, err)
	}
	return nil
}

// List enumerates the entry names of a namespace, sorted.
func (s *Store) List(namespace string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, namespace))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", namespace, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// AmbiguousPrefixError reports a short reference matching more than one
// stored entry.
type AmbiguousPrefixError struct {
	Namespace string
	Prefix    string
	Matches   []string
}

func (e *AmbiguousPrefixError) Error() string {
	return fmt.Sprintf("prefix %q is ambiguous in %s: %d entries match", e.Prefix, e.Namespace, len(e.Matches))
}

// ResolvePrefix finds the single entry of a namespace starting with
// prefix. Returns ("", false, nil) on zero matches and an
// AmbiguousPrefixError on more than one.
func (s *Store) ResolvePrefix(namespace, prefix string) (string, bool, error) {
	matches, err := filepath.Glob(filepath.Join(s.root, namespace, prefix+"*"))
	if err != nil {
		return "", false, fmt.Errorf("globbing %s: %w", namespace, err)
	}
	switch len(matches) {
	case 0:
		return "", false, nil
	case 1:
		return filepath.Base(matches[0]), true, nil
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = filepath.Base(m)
		}
		return "", false, &AmbiguousPrefixError{Namespace: namespace, Prefix: prefix, Matches: names}
	}
}

func (s *Store) readJSON(namespace, id string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.root, namespace, id))
	if err != nil {
		return fmt.Errorf("reading %s/%s: %w", namespace, id, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s/%s: %w", namespace, id, err)
	}
	return nil
}

// writeJSON writes an indented JSON record atomically via temp file and
// rename, creating parent directories on demand.
func (s *Store) writeJSON(namespace, id string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s/%s: %w", namespace, id, err)
	}

	dir := filepath.Join(s.root, namespace)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	path := filepath.Join(dir, id)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming %s into place: %w", tmp, err)
	}
	return nil
}
