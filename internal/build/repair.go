package build

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/squeaker/squeaker/internal/cache"
	"github.com/squeaker/squeaker/internal/stage"
)

// MissingParentError reports a stored stage whose parent record is
// gone; without the parent the stage cannot be replayed.
type MissingParentError struct {
	Child  string
	Parent string
}

func (e *MissingParentError) Error() string {
	return fmt.Sprintf("stage %.12s references parent %.12s which is not in the cache", e.Child, e.Parent)
}

// EnsureImagePresent makes certain the record's image blob exists,
// replaying the stage (and, recursively, its ancestors) when it does
// not. The returned record may differ from the input: a replay that is
// not bit-identical to the lost blob produces a new image digest and
// therefore a new stage digest. Stage records are hints, discarded
// whenever reality disagrees with them.
func (r *Resolver) EnsureImagePresent(ctx context.Context, rec *stage.Record) (*stage.Record, error) {
	if r.Store.HasBlob(rec.ImageDigest) {
		return rec, nil
	}
	r.Log.Info("image blob missing, replaying stage", "type", string(rec.Type), "stage", short(rec.Digest))

	// Drop the stale record first so no later lookup can observe a
	// pointer at a blob that is gone.
	if err := r.Store.Delete(cache.Stages, rec.Digest); err != nil {
		return nil, err
	}

	switch rec.Type {
	case stage.TypeURL:
		return r.FetchURL(ctx, rec.URL)
	case stage.TypeChunk:
		parent, err := r.loadParent(rec)
		if err != nil {
			return nil, err
		}
		return r.applyChunk(ctx, parent, rec.Chunk, rec.VM)
	case stage.TypeResource:
		parent, err := r.loadParent(rec)
		if err != nil {
			return nil, err
		}
		return r.DependOnResource(ctx, parent, rec.ResourcePath)
	default:
		return nil, fmt.Errorf("internal: unknown stage type %q in record %.12s", rec.Type, rec.Digest)
	}
}

func (r *Resolver) loadParent(rec *stage.Record) (*stage.Record, error) {
	parent, err := r.Store.LoadStage(rec.Parent)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &MissingParentError{Child: rec.Digest, Parent: rec.Parent}
	}
	return parent, err
}
