// Package gestalt is the configuration and state store facade.
//
// Values live at slash-separated paths ("bots/bocchi/commands/ping") and are
// JSON-shaped objects. The facade is agnostic to the backing storage; the
// chronicler and kvgestalt subpackages provide a JSON-file tree and a badger
// database respectively.
package gestalt

import (
	"context"
	"fmt"
	"maps"

	"github.com/go-json-experiment/json"
)

// Object is one stored value.
type Object = map[string]any

// StorageService is the persistence capability behind the facade.
type StorageService interface {
	// Get returns the object at path, or nil with no error when nothing is
	// stored there.
	Get(ctx context.Context, path string) (Object, error)
	// Post stores the object at path, replacing any existing value.
	Post(ctx context.Context, path string, payload Object) error
	// Delete removes the object at path. Deleting an absent path is not an
	// error.
	Delete(ctx context.Context, path string) error
}

// Gestalt wraps a StorageService with merge and sync semantics.
type Gestalt struct {
	svc StorageService
}

// New returns a facade over svc.
func New(svc StorageService) *Gestalt {
	return &Gestalt{svc: svc}
}

// Get returns the object at path, or nil when nothing is stored there.
func (g *Gestalt) Get(ctx context.Context, path string) (Object, error) {
	return g.svc.Get(ctx, path)
}

// Post stores payload at path, replacing any existing value.
func (g *Gestalt) Post(ctx context.Context, path string, payload Object) error {
	return g.svc.Post(ctx, path, payload)
}

// Update shallow-merges payload over the stored object at path and writes
// the result back. Keys in payload win. An absent stored object updates
// like an empty one.
func (g *Gestalt) Update(ctx context.Context, path string, payload Object) (Object, error) {
	stored, err := g.svc.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	merged := merge(stored, payload)
	if err := g.svc.Post(ctx, path, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// Delete removes the object at path.
func (g *Gestalt) Delete(ctx context.Context, path string) error {
	return g.svc.Delete(ctx, path)
}

// Sync reconciles a default object with storage. If nothing is stored at
// path, def is stored and returned. Otherwise the stored object is
// shallow-merged over def, stored keys winning on conflict, the merged
// result is written back so new default keys persist, and returned.
func (g *Gestalt) Sync(ctx context.Context, path string, def Object) (Object, error) {
	stored, err := g.svc.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		if err := g.svc.Post(ctx, path, def); err != nil {
			return nil, err
		}
		return def, nil
	}
	merged := merge(def, stored)
	if err := g.svc.Post(ctx, path, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// merge returns base with over's keys laid on top. Neither argument is
// modified.
func merge(base, over Object) Object {
	out := make(Object, len(base)+len(over))
	maps.Copy(out, base)
	maps.Copy(out, over)
	return out
}

// GetValue reads the object at path into a value of type T. The second
// result reports whether anything was stored.
func GetValue[T any](ctx context.Context, g *Gestalt, path string) (T, bool, error) {
	var v T
	obj, err := g.Get(ctx, path)
	if err != nil || obj == nil {
		return v, false, err
	}
	if err := decode(obj, &v); err != nil {
		return v, false, fmt.Errorf("couldn't decode %s: %w", path, err)
	}
	return v, true, nil
}

// PostValue stores a value of type T at path.
func PostValue[T any](ctx context.Context, g *Gestalt, path string, v T) error {
	obj, err := encode(v)
	if err != nil {
		return fmt.Errorf("couldn't encode %s: %w", path, err)
	}
	return g.Post(ctx, path, obj)
}

// SyncValue reconciles a default value of type T with storage, with the
// same semantics as Sync.
func SyncValue[T any](ctx context.Context, g *Gestalt, path string, def T) (T, error) {
	var v T
	obj, err := encode(def)
	if err != nil {
		return v, fmt.Errorf("couldn't encode %s: %w", path, err)
	}
	merged, err := g.Sync(ctx, path, obj)
	if err != nil {
		return v, err
	}
	if err := decode(merged, &v); err != nil {
		return v, fmt.Errorf("couldn't decode %s: %w", path, err)
	}
	return v, nil
}

func encode(v any) (Object, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var obj Object
	if err := json.Unmarshal(b, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func decode(obj Object, v any) error {
	b, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
