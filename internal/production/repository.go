// Package production provides production integrations: saga repositories,
// notification publishing, visualization, tracing and the host coordinator.
package production

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/comalice/sagax/internal/core"
)

type codec struct {
	ext       string
	marshal   func(any) ([]byte, error)
	unmarshal func([]byte, any) error
}

var (
	jsonCodec = codec{
		ext: ".json",
		marshal: func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		},
		unmarshal: json.Unmarshal,
	}
	yamlCodec = codec{
		ext:       ".yaml",
		marshal:   yaml.Marshal,
		unmarshal: yaml.Unmarshal,
	}
)

// FileRepository stores one file per saga instance in a directory.
// Safe for concurrent use across distinct instance ids.
type FileRepository[T any] struct {
	dir   string
	codec codec
}

// NewJSONRepository creates a JSON file repository, ensuring the directory exists.
func NewJSONRepository[T any](dir string) (*FileRepository[T], error) {
	return newFileRepository[T](dir, jsonCodec)
}

// NewYAMLRepository creates a YAML file repository, ensuring the directory exists.
func NewYAMLRepository[T any](dir string) (*FileRepository[T], error) {
	return newFileRepository[T](dir, yamlCodec)
}

func newFileRepository[T any](dir string, c codec) (*FileRepository[T], error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &FileRepository[T]{dir: dir, codec: c}, nil
}

func (r *FileRepository[T]) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("invalid saga id %q", id)
	}
	return filepath.Join(r.dir, id+r.codec.ext), nil
}

func (r *FileRepository[T]) Store(ctx context.Context, rec core.Record[T]) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fn, err := r.path(rec.ID)
	if err != nil {
		return err
	}
	data, err := r.codec.marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal saga %q: %w", rec.ID, err)
	}

	tmp := fn + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, fn); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", fn, err)
	}
	return nil
}

func (r *FileRepository[T]) LoadByEntityID(ctx context.Context, id string) (core.Record[T], error) {
	if err := ctx.Err(); err != nil {
		return core.Record[T]{}, err
	}
	fn, err := r.path(id)
	if err != nil {
		return core.Record[T]{}, err
	}
	rec, err := r.read(fn)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return core.Record[T]{}, fmt.Errorf("saga %q: %w", id, core.ErrNotFound)
		}
		return core.Record[T]{}, err
	}
	rec.ID = id // Ensure ID
	return rec, nil
}

func (r *FileRepository[T]) read(fn string) (core.Record[T], error) {
	data, err := os.ReadFile(fn)
	if err != nil {
		return core.Record[T]{}, fmt.Errorf("read %s: %w", fn, err)
	}
	var rec core.Record[T]
	if err := r.codec.unmarshal(data, &rec); err != nil {
		return core.Record[T]{}, fmt.Errorf("unmarshal %s: %w", fn, err)
	}
	return rec, nil
}

// LoadAll returns every stored instance ordered by id.
func (r *FileRepository[T]) LoadAll(ctx context.Context) ([]core.Record[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matches, err := filepath.Glob(filepath.Join(r.dir, "*"+r.codec.ext))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", r.dir, err)
	}
	sort.Strings(matches)

	recs := make([]core.Record[T], 0, len(matches))
	for _, fn := range matches {
		rec, err := r.read(fn)
		if err != nil {
			return nil, err
		}
		rec.ID = strings.TrimSuffix(filepath.Base(fn), r.codec.ext)
		recs = append(recs, rec)
	}
	return recs, nil
}

// Remove deletes the instance file. Removing a missing instance is not an error.
func (r *FileRepository[T]) Remove(ctx context.Context, rec core.Record[T]) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fn, err := r.path(rec.ID)
	if err != nil {
		return err
	}
	if err := os.Remove(fn); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", fn, err)
	}
	return nil
}

var _ core.Repository[any] = (*FileRepository[any])(nil)
