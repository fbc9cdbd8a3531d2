package recipe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/squeaker/squeaker/internal/build"
	"github.com/squeaker/squeaker/internal/cache"
	"github.com/squeaker/squeaker/internal/stage"
)

// Chunk prefixes with special meaning. Anything else is a raw
// Smalltalk command applied to the current stage.
const (
	fromPrefix     = "from:"
	resourcePrefix = "resource:"
	fileInPrefix   = "fileIn:"
)

// ParseError reports a recipe chunk the interpreter could not make
// sense of.
type ParseError struct {
	Chunk string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("recipe chunk %q: %s", abbreviate(e.Chunk), e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ResourceMissingError reports a fileIn: of an absent file. A
// resource: of an absent file, by contrast, is legal.
type ResourceMissingError struct {
	Path string
}

func (e *ResourceMissingError) Error() string {
	return fmt.Sprintf("fileIn: %s: file does not exist", e.Path)
}

// Interpreter threads a single current stage through the chunks of a
// recipe, strictly in order.
type Interpreter struct {
	Resolver *build.Resolver
	Store    *cache.Store
	Log      *log.Logger
	// Out receives the final image digest.
	Out io.Writer
}

// Options configures one interpreter run.
type Options struct {
	// Tag, when non-empty, names the final stage after materializing it.
	Tag string
}

// Run consumes the recipe and returns the final stage. With a tag
// requested, the final image is materialized first so the tag never
// points at an absent blob.
func (i *Interpreter) Run(ctx context.Context, recipe io.Reader, opts Options) (*stage.Record, error) {
	chunks := NewChunkReader(recipe)
	var current *stage.Record

	for {
		chunk, err := chunks.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading recipe: %w", err)
		}

		current, err = i.step(ctx, current, strings.TrimSpace(chunk))
		if err != nil {
			return nil, err
		}
	}

	if current == nil {
		return nil, errors.New("recipe is empty: no from: chunk found")
	}

	if opts.Tag != "" {
		rec, err := i.Resolver.EnsureImagePresent(ctx, current)
		if err != nil {
			return nil, err
		}
		current = rec
		tag := &stage.Tag{Name: opts.Tag, StageDigest: rec.Digest, ImageDigest: rec.ImageDigest}
		if err := i.Store.WriteTag(tag); err != nil {
			return nil, err
		}
		i.Log.Info("tagged", "tag", opts.Tag, "image", rec.ImageDigest[:12])
	}

	if i.Out != nil {
		fmt.Fprintln(i.Out, current.ImageDigest)
	}
	return current, nil
}

func (i *Interpreter) step(ctx context.Context, current *stage.Record, chunk string) (*stage.Record, error) {
	switch {
	case chunk == "":
		return current, nil

	case strings.HasPrefix(chunk, fromPrefix):
		return i.from(ctx, chunk)

	case strings.HasPrefix(chunk, resourcePrefix):
		if current == nil {
			return nil, &ParseError{Chunk: chunk, Err: errors.New("resource: before any from:")}
		}
		path, err := parseStringLiteral(strings.TrimSpace(strings.TrimPrefix(chunk, resourcePrefix)))
		if err != nil {
			return nil, &ParseError{Chunk: chunk, Err: err}
		}
		return i.Resolver.DependOnResource(ctx, current, i.resourcePath(path))

	case strings.HasPrefix(chunk, fileInPrefix):
		if current == nil {
			return nil, &ParseError{Chunk: chunk, Err: errors.New("fileIn: before any from:")}
		}
		return i.fileIn(ctx, current, chunk)

	default:
		if current == nil {
			return nil, &ParseError{Chunk: chunk, Err: errors.New("command before any from:")}
		}
		return i.Resolver.ApplyChunk(ctx, current, chunk)
	}
}

// from establishes the current stage, either by fetching a URL
// ('...') or by dereferencing an existing tag (#'...', no rebuild).
func (i *Interpreter) from(ctx context.Context, chunk string) (*stage.Record, error) {
	arg := strings.TrimSpace(strings.TrimPrefix(chunk, fromPrefix))

	if strings.HasPrefix(arg, "#") {
		name, err := parseSymbolLiteral(arg)
		if err != nil {
			return nil, &ParseError{Chunk: chunk, Err: err}
		}
		tag, err := i.Store.LoadTag(name)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("from: tag %q does not exist", name)
		}
		if err != nil {
			return nil, err
		}
		rec, err := i.Store.LoadStage(tag.StageDigest)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("tag %q points at stage %.12s which is not in the cache", name, tag.StageDigest)
		}
		return rec, err
	}

	rawURL, err := parseStringLiteral(arg)
	if err != nil {
		return nil, &ParseError{Chunk: chunk, Err: err}
	}
	return i.Resolver.FetchURL(ctx, rawURL)
}

// fileIn pins the file as a resource dependency, then applies an
// Installer chunk that loads it in-image. The file must exist.
func (i *Interpreter) fileIn(ctx context.Context, current *stage.Record, chunk string) (*stage.Record, error) {
	path, err := parseStringLiteral(strings.TrimSpace(strings.TrimPrefix(chunk, fileInPrefix)))
	if err != nil {
		return nil, &ParseError{Chunk: chunk, Err: err}
	}

	resolved := i.resourcePath(path)
	if _, err := os.Stat(resolved); err != nil {
		return nil, &ResourceMissingError{Path: resolved}
	}

	current, err = i.Resolver.DependOnResource(ctx, current, resolved)
	if err != nil {
		return nil, err
	}
	install := "Installer installFile: '" + strings.ReplaceAll(path, "'", "''") + "'"
	return i.Resolver.ApplyChunk(ctx, current, install)
}

// resourcePath resolves a recipe-relative path against the project
// directory.
func (i *Interpreter) resourcePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(i.Resolver.Dir, path)
}

func abbreviate(chunk string) string {
	const max = 60
	chunk = strings.Join(strings.Fields(chunk), " ")
	if len(chunk) > max {
		return chunk[:max] + "…"
	}
	return chunk
}
