package dot

import (
	"bytes"
	"strings"
	"testing"

	"github.com/squeaker/squeaker/internal/cache"
	"github.com/squeaker/squeaker/internal/digest"
	"github.com/squeaker/squeaker/internal/stage"
)

func populate(t *testing.T) (*cache.Store, *stage.Record, *stage.Record) {
	t.Helper()
	store, err := cache.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	base := &stage.Record{
		Type:        stage.TypeURL,
		Key:         "http://example.com/base.zip",
		Digest:      digest.Stage("url", "http://example.com/base.zip"),
		ImageDigest: digest.String("base-img"),
		URL:         "http://example.com/base.zip",
	}
	if err := store.WriteStage(base); err != nil {
		t.Fatal(err)
	}

	inputs := []string{base.Digest, base.ImageDigest, digest.String("/vm"), digest.String("Transcript show: 'a very long chunk that should be shortened for display'")}
	key, err := digest.Digests(inputs)
	if err != nil {
		t.Fatal(err)
	}
	child := &stage.Record{
		Type:         stage.TypeChunk,
		Key:          key,
		Digest:       digest.Stage("stage", key),
		ImageDigest:  digest.String("child-img"),
		Parent:       base.Digest,
		DigestInputs: inputs,
		Chunk:        "Transcript show: 'a very long chunk that should be shortened for display'",
		VM:           "/vm",
	}
	if err := store.WriteStage(child); err != nil {
		t.Fatal(err)
	}

	if err := store.WriteTag(&stage.Tag{Name: "dev", StageDigest: child.Digest, ImageDigest: child.ImageDigest}); err != nil {
		t.Fatal(err)
	}
	return store, base, child
}

func TestWriteGraph(t *testing.T) {
	store, base, child := populate(t)

	var buf bytes.Buffer
	if err := Write(&buf, store); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()

	if !strings.HasPrefix(out, "digraph stages {") || !strings.HasSuffix(strings.TrimSpace(out), "}") {
		t.Errorf("not a digraph:\n%s", out)
	}
	edge := `"` + child.Digest[:12] + `" -> "` + base.Digest[:12] + `";`
	if !strings.Contains(out, edge) {
		t.Errorf("missing child->parent edge %s in:\n%s", edge, out)
	}
	if !strings.Contains(out, `"tag:dev" -> "`+child.Digest[:12]+`";`) {
		t.Errorf("missing tag edge in:\n%s", out)
	}
	if !strings.Contains(out, "from http://example.com/base.zip") {
		t.Errorf("url label missing in:\n%s", out)
	}
	if strings.Contains(out, "shortened for display") {
		t.Errorf("long chunk not truncated in:\n%s", out)
	}
}

func TestWriteIsDeterministic(t *testing.T) {
	store, _, _ := populate(t)

	var a, b bytes.Buffer
	if err := Write(&a, store); err != nil {
		t.Fatal(err)
	}
	if err := Write(&b, store); err != nil {
		t.Fatal(err)
	}
	if a.String() != b.String() {
		t.Error("output differs between runs")
	}
}

func TestWriteEmptyStore(t *testing.T) {
	store, err := cache.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := Write(&buf, store); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.Contains(buf.String(), "digraph stages {") {
		t.Errorf("got:\n%s", buf.String())
	}
}
