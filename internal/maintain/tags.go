package maintain

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/squeaker/squeaker/internal/cache"
	"github.com/squeaker/squeaker/internal/stage"
)

// Tags enumerates all tag records, sorted by name.
func (m *Maintainer) Tags() ([]*stage.Tag, error) {
	names, err := m.Store.List(cache.Tags)
	if err != nil {
		return nil, err
	}
	tags := make([]*stage.Tag, 0, len(names))
	for _, name := range names {
		tag, err := m.Store.LoadTag(name)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// ResolveTag returns the tag record for name.
func (m *Maintainer) ResolveTag(name string) (*stage.Tag, error) {
	tag, err := m.Store.LoadTag(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("tag %q does not exist", name)
	}
	return tag, err
}

// Untag removes tag pointers. Missing tags are removed silently; the
// operation is idempotent.
func (m *Maintainer) Untag(names ...string) error {
	for _, name := range names {
		if err := m.Store.Delete(cache.Tags, name); err != nil {
			return err
		}
		m.Log.Info("untagged", "tag", name)
	}
	return nil
}

// Unstage removes stage records addressed by unambiguous digest
// prefixes, returning the fully resolved digests in input order.
func (m *Maintainer) Unstage(prefixes ...string) ([]string, error) {
	var resolved []string
	for _, prefix := range prefixes {
		full, ok, err := m.Store.ResolvePrefix(cache.Stages, prefix)
		if err != nil {
			return resolved, err
		}
		if !ok {
			return resolved, fmt.Errorf("no stage matches prefix %q", prefix)
		}
		if err := m.Store.Delete(cache.Stages, full); err != nil {
			return resolved, err
		}
		resolved = append(resolved, full)
		m.Log.Info("unstaged", "stage", full[:12])
	}
	return resolved, nil
}
