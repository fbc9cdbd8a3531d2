// Package dot renders the derivation DAG as a Graphviz digraph.
package dot

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/squeaker/squeaker/internal/cache"
	"github.com/squeaker/squeaker/internal/stage"
)

// Write emits the whole stage graph to w: one node per stage record,
// edges from child to parent, and tag nodes pointing at their stages.
// Output is deterministic for a given cache.
func Write(w io.Writer, store *cache.Store) error {
	stageNames, err := store.List(cache.Stages)
	if err != nil {
		return err
	}
	sort.Strings(stageNames)

	fmt.Fprintln(w, "digraph stages {")
	fmt.Fprintln(w, "  rankdir=BT;")
	fmt.Fprintln(w, "  node [shape=box, fontname=\"monospace\"];")

	for _, name := range stageNames {
		rec, err := store.LoadStage(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %q [label=%q];\n", node(rec.Digest), label(rec))
		if rec.Parent != "" {
			fmt.Fprintf(w, "  %q -> %q;\n", node(rec.Digest), node(rec.Parent))
		}
	}

	tagNames, err := store.List(cache.Tags)
	if err != nil {
		return err
	}
	sort.Strings(tagNames)
	for _, name := range tagNames {
		tag, err := store.LoadTag(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %q [shape=ellipse, label=%q];\n", "tag:"+tag.Name, tag.Name)
		fmt.Fprintf(w, "  %q -> %q;\n", "tag:"+tag.Name, node(tag.StageDigest))
	}

	fmt.Fprintln(w, "}")
	return nil
}

func node(stageDigest string) string {
	if len(stageDigest) > 12 {
		return stageDigest[:12]
	}
	return stageDigest
}

// label summarizes a stage for human eyes.
func label(rec *stage.Record) string {
	switch rec.Type {
	case stage.TypeURL:
		return node(rec.Digest) + "\nfrom " + rec.URL
	case stage.TypeResource:
		return node(rec.Digest) + "\nresource " + rec.ResourcePath
	default:
		return node(rec.Digest) + "\n" + snippet(rec.Chunk)
	}
}

func snippet(chunk string) string {
	const max = 40
	chunk = strings.Join(strings.Fields(chunk), " ")
	if len(chunk) > max {
		return chunk[:max] + "…"
	}
	return chunk
}
