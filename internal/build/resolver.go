// Package build implements the stage resolver: the engine that turns
// recipe operations into content-addressed derivation stages,
// materializing image blobs only on cache miss.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/squeaker/squeaker/internal/archive"
	"github.com/squeaker/squeaker/internal/cache"
	"github.com/squeaker/squeaker/internal/digest"
	"github.com/squeaker/squeaker/internal/fetch"
	"github.com/squeaker/squeaker/internal/progress"
	"github.com/squeaker/squeaker/internal/stage"
	"github.com/squeaker/squeaker/internal/vm"
)

// Resolver resolves recipe operations against the cache. A single
// Resolver serves one build; it is not safe for concurrent use.
type Resolver struct {
	Store   *cache.Store
	Fetcher *fetch.Fetcher
	Runner  vm.Runner

	// VMPath is the VM executable used for new chunk stages. Replays of
	// stored stages use the path recorded at build time.
	VMPath string
	// Headless controls the VM's headless flag.
	Headless bool
	// Dir is the user's project directory, exposed to in-image code via
	// the squeakerDirectory file.
	Dir string
	// NoCache lists stage types whose cached records are ignored,
	// forcing recomputation. The mask applies only to the looked-up
	// record itself, never to its ancestors.
	NoCache map[stage.Type]bool

	Log      *log.Logger
	Progress progress.Reporter
}

// parentSlot holds the current best view of a parent stage. Stage keys
// are computed from the slot so that a parent rebuilt during
// materialization is observed by the final key computation.
type parentSlot struct {
	rec *stage.Record
}

// cached looks up a stage record by type and key. A hit is returned
// without checking the image blob; records are hints, repaired later
// if reality disagrees. A record that fails validation is dropped and
// treated as a miss, so the stage is simply recomputed.
func (r *Resolver) cached(t stage.Type, key string) (*stage.Record, bool, error) {
	stageDigest := digest.Stage(string(t), key)
	rec, err := r.Store.LoadStage(stageDigest)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	var invalid *stage.ValidationError
	if errors.As(err, &invalid) {
		r.Log.Warn("dropping corrupt stage record", "stage", short(stageDigest), "err", err)
		if err := r.Store.Delete(cache.Stages, stageDigest); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if r.NoCache[t] {
		r.Log.Info("ignoring cached stage", "type", string(t), "stage", short(rec.Digest))
		return nil, false, nil
	}
	r.Log.Debug("cached stage", "type", string(t), "stage", short(rec.Digest))
	return rec, true, nil
}

// FetchURL resolves a url stage. The stage key is the URL itself.
func (r *Resolver) FetchURL(ctx context.Context, rawURL string) (*stage.Record, error) {
	if rec, ok, err := r.cached(stage.TypeURL, rawURL); err != nil {
		return nil, err
	} else if ok {
		return rec, nil
	}

	imageDigest, err := r.download(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	rec := &stage.Record{
		Type:        stage.TypeURL,
		Key:         rawURL,
		Digest:      digest.Stage(string(stage.TypeURL), rawURL),
		ImageDigest: imageDigest,
		URL:         rawURL,
	}
	if err := r.Store.WriteStage(rec); err != nil {
		return nil, err
	}
	r.Log.Info("fetched image", "url", rawURL, "image", short(imageDigest))
	return rec, nil
}

func (r *Resolver) download(ctx context.Context, rawURL string) (string, error) {
	body, size, err := r.Fetcher.Open(ctx, rawURL)
	if err != nil {
		return "", err
	}
	defer body.Close()

	reporter := r.reporter()
	counted := io.TeeReader(body, &progress.Writer{
		W:        io.Discard,
		Reporter: reporter,
		Expected: size,
		Label:    rawURL,
	})
	sum, err := r.Store.PutBlob(counted)
	reporter.Done()
	if err != nil {
		return "", fmt.Errorf("storing %s: %w", rawURL, err)
	}
	return sum, nil
}

// ApplyChunk resolves a chunk stage: the parent's image with one
// Smalltalk chunk evaluated inside it.
func (r *Resolver) ApplyChunk(ctx context.Context, parent *stage.Record, chunk string) (*stage.Record, error) {
	return r.applyChunk(ctx, parent, chunk, r.VMPath)
}

func (r *Resolver) applyChunk(ctx context.Context, parent *stage.Record, chunk, vmPath string) (*stage.Record, error) {
	slot := &parentSlot{rec: parent}
	keyOf := func() ([]string, string, error) {
		inputs := []string{
			slot.rec.Digest,
			slot.rec.ImageDigest,
			digest.String(vmPath),
			digest.String(chunk),
		}
		key, err := digest.Digests(inputs)
		return inputs, key, err
	}

	_, key, err := keyOf()
	if err != nil {
		return nil, err
	}
	if rec, ok, err := r.cached(stage.TypeChunk, key); err != nil {
		return nil, err
	} else if ok {
		return rec, nil
	}

	imageDigest, err := r.runChunk(ctx, slot, chunk, vmPath)
	if err != nil {
		return nil, err
	}

	// Materializing may have rebuilt the parent under a new image
	// digest. Recompute so the stored record matches its own key.
	inputs, key, err := keyOf()
	if err != nil {
		return nil, err
	}
	rec := &stage.Record{
		Type:         stage.TypeChunk,
		Key:          key,
		Digest:       digest.Stage(string(stage.TypeChunk), key),
		ImageDigest:  imageDigest,
		Parent:       slot.rec.Digest,
		DigestInputs: inputs,
		Chunk:        chunk,
		VM:           vmPath,
	}
	if err := r.Store.WriteStage(rec); err != nil {
		return nil, err
	}
	r.Log.Info("built stage", "stage", short(rec.Digest), "image", short(imageDigest))
	return rec, nil
}

// runChunk materializes the parent image in a fresh working directory,
// evaluates the chunk in the VM, and archives the result into a new
// blob. Rebinds the slot if the parent had to be rebuilt.
func (r *Resolver) runChunk(ctx context.Context, slot *parentSlot, chunk, vmPath string) (string, error) {
	parent, err := r.EnsureImagePresent(ctx, slot.rec)
	if err != nil {
		return "", err
	}
	slot.rec = parent

	workDir, err := os.MkdirTemp("", "squeaker-build-")
	if err != nil {
		return "", fmt.Errorf("creating working directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	if err := archive.Extract(r.Store.BlobPath(parent.ImageDigest), workDir, r.Log); err != nil {
		return "", err
	}

	err = r.Runner.Run(ctx, vm.RunSpec{
		VM:          vmPath,
		WorkDir:     workDir,
		SqueakerDir: r.Dir,
		Chunk:       chunk,
		Headless:    r.Headless,
	})
	if err != nil {
		return "", err
	}

	return r.packImage(workDir)
}

// packImage archives the working directory's image pair into the blob
// store and returns the new image digest.
func (r *Resolver) packImage(workDir string) (string, error) {
	for _, name := range []string{archive.ImageName, archive.ChangesName} {
		if _, err := os.Stat(filepath.Join(workDir, name)); err != nil {
			return "", fmt.Errorf("vm left no %s behind: %w", name, err)
		}
	}

	tmp, err := os.CreateTemp(workDir, "image-*.zip")
	if err != nil {
		return "", fmt.Errorf("creating archive temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if err := archive.Pack(workDir, "squeak", tmp); err != nil {
		return "", err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewinding archive temp file: %w", err)
	}
	return r.Store.PutBlob(tmp)
}

// DependOnResource resolves a resource stage: the parent's image
// unchanged, with the fingerprint of a local file attached to the
// stage graph. An absent file is a valid state whose key simply omits
// the resource digest.
func (r *Resolver) DependOnResource(ctx context.Context, parent *stage.Record, resourcePath string) (*stage.Record, error) {
	slot := &parentSlot{rec: parent}
	keyOf := func() (inputs []string, key string, resDigest *string, err error) {
		inputs = []string{slot.rec.Digest, slot.rec.ImageDigest}
		if _, statErr := os.Stat(resourcePath); statErr == nil {
			sum, hashErr := digest.File(resourcePath)
			if hashErr != nil {
				return nil, "", nil, hashErr
			}
			inputs = append(inputs, sum)
			resDigest = &sum
		} else if !os.IsNotExist(statErr) {
			return nil, "", nil, fmt.Errorf("stat %s: %w", resourcePath, statErr)
		}
		key, err = digest.Digests(inputs)
		return inputs, key, resDigest, err
	}

	_, key, _, err := keyOf()
	if err != nil {
		return nil, err
	}
	if rec, ok, err := r.cached(stage.TypeResource, key); err != nil {
		return nil, err
	} else if ok {
		return rec, nil
	}

	// No blob of its own: just make sure the parent is materialized and
	// take over its image.
	parentRec, err := r.EnsureImagePresent(ctx, slot.rec)
	if err != nil {
		return nil, err
	}
	slot.rec = parentRec

	inputs, key, resDigest, err := keyOf()
	if err != nil {
		return nil, err
	}
	rec := &stage.Record{
		Type:           stage.TypeResource,
		Key:            key,
		Digest:         digest.Stage(string(stage.TypeResource), key),
		ImageDigest:    slot.rec.ImageDigest,
		Parent:         slot.rec.Digest,
		DigestInputs:   inputs,
		ResourcePath:   resourcePath,
		ResourceDigest: resDigest,
	}
	if err := r.Store.WriteStage(rec); err != nil {
		return nil, err
	}
	r.Log.Debug("pinned resource", "path", resourcePath, "present", resDigest != nil)
	return rec, nil
}

func (r *Resolver) reporter() progress.Reporter {
	if r.Progress == nil {
		return progress.Nop{}
	}
	return r.Progress
}

func short(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
