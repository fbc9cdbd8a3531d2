package vm

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderScriptEmbedsChunkVerbatim(t *testing.T) {
	got, err := renderScript(RunSpec{
		WorkDir: t.TempDir(),
		Chunk:   "Transcript show: 'hello'.",
	})
	if err != nil {
		t.Fatalf("renderScript: %v", err)
	}
	if !strings.Contains(got, "Transcript show: 'hello'.") {
		t.Errorf("chunk not embedded:\n%s", got)
	}
	if !strings.Contains(got, "on: Error do:") {
		t.Errorf("exception trap missing:\n%s", got)
	}
	if !strings.Contains(got, "snapshot: true andQuit: true") {
		t.Errorf("clean shutdown missing:\n%s", got)
	}
}

func TestRenderScriptEscapesPathQuotes(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "it's here")
	got, err := renderScript(RunSpec{WorkDir: dir, Chunk: "x"})
	if err != nil {
		t.Fatalf("renderScript: %v", err)
	}
	if !strings.Contains(got, "it''s here") {
		t.Errorf("path quote not doubled:\n%s", got)
	}
}

func TestRenderScriptPathsAreAbsolute(t *testing.T) {
	got, err := renderScript(RunSpec{WorkDir: t.TempDir(), Chunk: "x"})
	if err != nil {
		t.Fatalf("renderScript: %v", err)
	}
	for _, name := range []string{outputName, errorsName} {
		idx := strings.Index(got, name)
		if idx < 0 {
			t.Fatalf("%s not referenced:\n%s", name, got)
		}
	}
	// The stream paths appear inside string literals; they must not be
	// bare relative names.
	if strings.Contains(got, "'"+outputName+"'") {
		t.Errorf("output path is relative:\n%s", got)
	}
}
