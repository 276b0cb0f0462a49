// Package objects stores uploaded call recordings under a key prefix.
package objects

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/callinsight/call-pipeline/insights"
)

type Object struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

type Store interface {
	// Upload writes r under the recording prefix and returns its key.
	Upload(ctx context.Context, r io.Reader, filename string) (string, error)
	// List returns the recordings under the prefix.
	List(ctx context.Context) ([]Object, error)
}

// Dir is a Store backed by a local directory laid out like a bucket.
type Dir struct {
	root   string
	prefix string
}

func NewDir(root, prefix string) (*Dir, error) {
	if prefix == "" {
		prefix = "calls/"
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	if err := os.MkdirAll(filepath.Join(root, filepath.FromSlash(prefix)), 0o755); err != nil {
		return nil, fmt.Errorf("objects: %w", err)
	}
	return &Dir{root: root, prefix: prefix}, nil
}

// Path resolves a key to its location on disk.
func (d *Dir) Path(key string) string {
	return filepath.Join(d.root, filepath.FromSlash(key))
}

func (d *Dir) Upload(ctx context.Context, r io.Reader, filename string) (string, error) {
	name := insights.CleanFilename(path.Base(filepath.ToSlash(filename)))
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("objects: invalid filename %q", filename)
	}
	key := d.prefix + name
	dst := d.Path(key)

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("objects upload %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, readerWithContext{ctx, r}); err != nil {
		tmp.Close()
		return "", fmt.Errorf("objects upload %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("objects upload %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("objects upload %s: %w", key, err)
	}
	return key, nil
}

// List returns the .mp3 recordings under the prefix ordered by key.
func (d *Dir) List(ctx context.Context) ([]Object, error) {
	base := d.Path(d.prefix)
	out := []Object{}
	err := filepath.WalkDir(base, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".mp3") {
			return nil
		}
		info, err := e.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		out = append(out, Object{Key: filepath.ToSlash(rel), Size: info.Size(), LastModified: info.ModTime().UTC()})
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("objects list: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

type readerWithContext struct {
	ctx context.Context
	r   io.Reader
}

func (r readerWithContext) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
