package cache

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// keepRecentChanges is how many audit-trail changes files survive.
const keepRecentChanges = 5

const recentChangesStamp = "2006-01-02T15:04:05"

// AddRecentChanges copies a changes file into the recentchanges audit
// namespace, stamped with the current UTC time, then prunes all but
// the most recent entries.
func (s *Store) AddRecentChanges(changesPath string) (string, error) {
	return s.addRecentChangesAt(changesPath, time.Now())
}

func (s *Store) addRecentChangesAt(changesPath string, now time.Time) (string, error) {
	dir := filepath.Join(s.root, recentChangesDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}

	src, err := os.Open(changesPath)
	if err != nil {
		return "", fmt.Errorf("opening changes file: %w", err)
	}
	defer src.Close()

	name := now.UTC().Format(recentChangesStamp) + "Z.changes"
	dest := filepath.Join(dir, name)
	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", dest, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return "", fmt.Errorf("copying changes file: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", dest, err)
	}

	if err := s.pruneRecentChanges(); err != nil {
		return "", err
	}
	return dest, nil
}

// pruneRecentChanges deletes all but the newest keepRecentChanges
// entries. The timestamped names sort chronologically.
func (s *Store) pruneRecentChanges() error {
	names, err := s.List(recentChangesDir)
	if err != nil {
		return err
	}
	if len(names) <= keepRecentChanges {
		return nil
	}
	sort.Strings(names)
	for _, name := range names[:len(names)-keepRecentChanges] {
		if err := s.Delete(recentChangesDir, name); err != nil {
			return err
		}
	}
	return nil
}
