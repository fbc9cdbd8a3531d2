// Package maintain implements cache housekeeping: mark-and-sweep
// garbage collection over the derivation DAG plus tag and stage
// bookkeeping. The DAG is reconstructed from stored parent pointers;
// nothing is held between operations.
package maintain

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/squeaker/squeaker/internal/cache"
	"github.com/squeaker/squeaker/internal/stage"
)

// URLPolicy selects how GC treats url stages and their downloads.
type URLPolicy int

const (
	// URLKeep marks every url stage as a root, protecting downloads
	// even when no tag depends on them.
	URLKeep URLPolicy = iota
	// URLDeleteUnreferenced keeps only url images already reached by a
	// tag walk.
	URLDeleteUnreferenced
	// URLDeleteAll forcibly deletes every downloaded image blob. Stage
	// records survive only if transitively reachable from a tag.
	URLDeleteAll
)

// GCOptions configures one collection.
type GCOptions struct {
	// KeepIntermediate bounds how deep along each tag's parent chain
	// intermediate image blobs are kept. Negative keeps all of them;
	// zero keeps only the tip.
	KeepIntermediate int
	URLs             URLPolicy
	DryRun           bool
}

// GCResult lists what a collection deleted (or, dry-run, would have).
type GCResult struct {
	DoomedImages []string
	DoomedStages []string
}

// Maintainer performs cache maintenance against one store.
type Maintainer struct {
	Store *cache.Store
	Log   *log.Logger
}

// GC collects unreachable stage records and image blobs. Roots are the
// tags, plus (by default) every url stage.
func (m *Maintainer) GC(opts GCOptions) (*GCResult, error) {
	records, err := m.loadAllStages()
	if err != nil {
		return nil, err
	}

	markedStages := make(map[string]bool)
	markedImages := make(map[string]bool)

	// walk marks a stage chain. The image of each stage is kept only
	// within the configured depth of a root.
	var walk func(rec *stage.Record, depth int)
	walk = func(rec *stage.Record, depth int) {
		if markedStages[rec.Digest] {
			return
		}
		markedStages[rec.Digest] = true
		if opts.KeepIntermediate < 0 || depth <= opts.KeepIntermediate {
			markedImages[rec.ImageDigest] = true
		}
		if rec.Parent == "" {
			return
		}
		parent, ok := records[rec.Parent]
		if !ok {
			// Dangling parents are recoverable here; the chain simply
			// ends early.
			m.Log.Warn("stage references missing parent", "stage", rec.Digest[:12], "parent", rec.Parent[:12])
			return
		}
		walk(parent, depth+1)
	}

	tagNames, err := m.Store.List(cache.Tags)
	if err != nil {
		return nil, err
	}
	for _, name := range tagNames {
		tag, err := m.Store.LoadTag(name)
		if err != nil {
			return nil, err
		}
		// The tip image is always a root, even when its stage record is
		// gone.
		markedImages[tag.ImageDigest] = true
		if rec, ok := records[tag.StageDigest]; ok {
			walk(rec, 0)
		} else {
			m.Log.Warn("tag references missing stage", "tag", name, "stage", tag.StageDigest[:12])
		}
	}

	switch opts.URLs {
	case URLKeep:
		for _, rec := range sortedRecords(records) {
			if rec.Type == stage.TypeURL {
				walk(rec, 0)
			}
		}
	case URLDeleteUnreferenced:
		// Url stages reached by a tag walk keep their blob even beyond
		// the intermediate-depth bound; unreached ones lose it.
		for _, rec := range records {
			if rec.Type == stage.TypeURL && markedStages[rec.Digest] {
				markedImages[rec.ImageDigest] = true
			}
		}
	case URLDeleteAll:
		for _, rec := range records {
			if rec.Type == stage.TypeURL {
				delete(markedImages, rec.ImageDigest)
			}
		}
	}

	result := &GCResult{}

	images, err := m.Store.List(cache.Images)
	if err != nil {
		return nil, err
	}
	for _, img := range images {
		if !markedImages[img] {
			result.DoomedImages = append(result.DoomedImages, img)
		}
	}
	stages, err := m.Store.List(cache.Stages)
	if err != nil {
		return nil, err
	}
	for _, sd := range stages {
		if !markedStages[sd] {
			result.DoomedStages = append(result.DoomedStages, sd)
		}
	}

	if opts.DryRun {
		return result, nil
	}

	for _, img := range result.DoomedImages {
		if err := m.Store.Delete(cache.Images, img); err != nil {
			return nil, err
		}
		m.Log.Debug("deleted image", "image", img[:12])
	}
	for _, sd := range result.DoomedStages {
		if err := m.Store.Delete(cache.Stages, sd); err != nil {
			return nil, err
		}
		m.Log.Debug("deleted stage", "stage", sd[:12])
	}
	return result, nil
}

// loadAllStages reads every stage record into a map by stage digest.
// Unreadable records are skipped with a warning rather than aborting
// the collection.
func (m *Maintainer) loadAllStages() (map[string]*stage.Record, error) {
	names, err := m.Store.List(cache.Stages)
	if err != nil {
		return nil, err
	}
	records := make(map[string]*stage.Record, len(names))
	for _, name := range names {
		rec, err := m.Store.LoadStage(name)
		if err != nil {
			m.Log.Warn("skipping unreadable stage record", "stage", name, "err", err)
			continue
		}
		records[rec.Digest] = rec
	}
	return records, nil
}

func sortedRecords(records map[string]*stage.Record) []*stage.Record {
	out := make([]*stage.Record, 0, len(records))
	for _, rec := range records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Digest < out[j].Digest })
	return out
}

func (r *GCResult) String() string {
	return fmt.Sprintf("%d image(s), %d stage record(s)", len(r.DoomedImages), len(r.DoomedStages))
}
