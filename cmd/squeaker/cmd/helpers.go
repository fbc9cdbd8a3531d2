package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/squeaker/squeaker/internal/build"
	"github.com/squeaker/squeaker/internal/cache"
	"github.com/squeaker/squeaker/internal/config"
	"github.com/squeaker/squeaker/internal/fetch"
	"github.com/squeaker/squeaker/internal/maintain"
	"github.com/squeaker/squeaker/internal/progress"
	"github.com/squeaker/squeaker/internal/stage"
	"github.com/squeaker/squeaker/internal/vm"
)

// newStore opens the content-addressed cache.
func newStore() (*cache.Store, error) {
	dir := cacheDir
	if dir == "" {
		dir = cache.DefaultDir()
	}
	return cache.New(dir)
}

// newMaintainer builds the cache maintainer.
func newMaintainer(store *cache.Store) *maintain.Maintainer {
	return &maintain.Maintainer{Store: store, Log: logger}
}

// newResolver wires a stage resolver for builds rooted at dir.
func newResolver(store *cache.Store, dir, vmPath string, headless bool) *build.Resolver {
	return &build.Resolver{
		Store:    store,
		Fetcher:  &fetch.Fetcher{},
		Runner:   &vm.ExecRunner{Log: logger},
		VMPath:   vmPath,
		Headless: headless,
		Dir:      dir,
		NoCache:  make(map[stage.Type]bool),
		Log:      logger,
		Progress: newProgress(),
	}
}

// resolveVM picks the VM executable: flag, then user config, then
// autodetection.
func resolveVM(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	cfg, err := config.LoadDefault()
	if err != nil {
		return "", err
	}
	if cfg.VM != "" {
		return cfg.VM, nil
	}
	return vm.Autodetect()
}

// resolveHeadless picks the headless setting: explicit flags, then
// user config, then the given default.
func resolveHeadless(set, unset bool, fallback bool) (bool, error) {
	if set && unset {
		return false, errors.New("--headless and --no-headless are mutually exclusive")
	}
	if set {
		return true, nil
	}
	if unset {
		return false, nil
	}
	cfg, err := config.LoadDefault()
	if err != nil {
		return false, err
	}
	if cfg.Headless != nil {
		return *cfg.Headless, nil
	}
	return fallback, nil
}

// resolveImageRef resolves a short reference: exact tag name first,
// then unambiguous image-digest prefix. The stage record is returned
// when the reference was a tag whose stage still exists, enabling
// self-repair of a missing blob.
func resolveImageRef(store *cache.Store, ref string) (string, *stage.Record, error) {
	tag, err := store.LoadTag(ref)
	if err == nil {
		rec, recErr := store.LoadStage(tag.StageDigest)
		if recErr != nil {
			rec = nil
		}
		return tag.ImageDigest, rec, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", nil, err
	}

	full, ok, err := store.ResolvePrefix(cache.Images, ref)
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return "", nil, fmt.Errorf("no tag or image matches %q", ref)
	}
	return full, nil, nil
}

// materializeRef resolves ref and guarantees its image blob is on
// disk, replaying stages when possible.
func materializeRef(ctx context.Context, store *cache.Store, resolver *build.Resolver, ref string) (string, error) {
	imageDigest, rec, err := resolveImageRef(store, ref)
	if err != nil {
		return "", err
	}
	if store.HasBlob(imageDigest) {
		return imageDigest, nil
	}
	if rec == nil {
		return "", fmt.Errorf("image %.12s is not in the cache and has no stage record to replay", imageDigest)
	}
	rec, err = resolver.EnsureImagePresent(ctx, rec)
	if err != nil {
		return "", err
	}
	return rec.ImageDigest, nil
}

// newProgress returns the terminal progress renderer, or none in quiet
// mode.
func newProgress() progress.Reporter {
	if quiet {
		return progress.Nop{}
	}
	return &termProgress{}
}

// termProgress renders inline carriage-return updates on stderr.
type termProgress struct {
	rendered bool
}

func (p *termProgress) Update(done, expected int64, label string) {
	p.rendered = true
	if expected > 0 {
		fmt.Fprintf(os.Stderr, "\r%s  %s / %s", label, humanBytes(done), humanBytes(expected))
		return
	}
	fmt.Fprintf(os.Stderr, "\r%s  %s", label, humanBytes(done))
}

func (p *termProgress) Done() {
	if p.rendered {
		fmt.Fprintln(os.Stderr)
		p.rendered = false
	}
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
