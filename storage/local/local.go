// Package local keeps objects as files under one directory.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/kbukum/pilgi/storage"
)

func init() {
	storage.RegisterFactory(storage.ProviderLocal, func(cfg storage.Config) (storage.Storage, error) {
		return Open(cfg.BasePath)
	})
}

var (
	_ storage.Storage     = (*Dir)(nil)
	_ storage.LocalPather = (*Dir)(nil)
)

const partialPrefix = ".partial-"

// Dir is a storage.Storage rooted at a directory. Every file operation goes
// through an os.Root, so symlinks cannot lead outside it either.
type Dir struct {
	base string
	root *os.Root
}

// Open creates base when missing and roots a Dir there.
func Open(base string) (*Dir, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("storage: base path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("storage: base path: %w", err)
	}
	root, err := os.OpenRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: base path: %w", err)
	}
	return &Dir{base: abs, root: root}, nil
}

// rel turns a key into a slash path relative to the root. Leading slashes
// and ".." segments are clamped at the root.
func rel(key string) string {
	return strings.TrimPrefix(path.Clean("/"+key), "/")
}

func (d *Dir) LocalPath(key string) (string, bool) {
	return filepath.Join(d.base, filepath.FromSlash(rel(key))), true
}

// Upload writes to a partial file next to the target and renames it into
// place, so readers never observe a half-written object.
func (d *Dir) Upload(_ context.Context, key string, r io.Reader) error {
	name := rel(key)
	dir := path.Dir(name)
	if err := d.root.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("storage: mkdir %s: %w", dir, err)
	}
	tmp := path.Join(dir, partialPrefix+path.Base(name))
	f, err := d.root.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("storage: create %s: %w", key, err)
	}
	_, err = io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = d.root.Rename(tmp, name)
	}
	if err != nil {
		_ = d.root.Remove(tmp)
		return fmt.Errorf("storage: write %s: %w", key, err)
	}
	return nil
}

func (d *Dir) Download(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := d.root.Open(rel(key))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	case err != nil:
		return nil, fmt.Errorf("storage: open %s: %w", key, err)
	}
	return f, nil
}

// Delete removes the file and then any directories it leaves empty, up to
// the root. A missing file is not an error.
func (d *Dir) Delete(_ context.Context, key string) error {
	name := rel(key)
	if err := d.root.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	for dir := path.Dir(name); dir != "."; dir = path.Dir(dir) {
		if d.root.Remove(dir) != nil {
			break
		}
	}
	return nil
}

func (d *Dir) Exists(_ context.Context, key string) (bool, error) {
	_, err := d.root.Stat(rel(key))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("storage: stat %s: %w", key, err)
	}
	return true, nil
}

// List walks the directory holding prefix and returns files whose key
// starts with it, in lexical order. Partial uploads are skipped.
func (d *Dir) List(_ context.Context, prefix string) ([]storage.FileInfo, error) {
	start := "."
	if i := strings.LastIndex(prefix, "/"); i > 0 {
		start = rel(prefix[:i])
	}
	files := []storage.FileInfo{}
	err := fs.WalkDir(d.root.FS(), start, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if e.IsDir() || strings.HasPrefix(e.Name(), partialPrefix) || !strings.HasPrefix(p, prefix) {
			return nil
		}
		info, err := e.Info()
		if err != nil {
			return err
		}
		files = append(files, storage.FileInfo{Path: p, Size: info.Size(), LastModified: info.ModTime()})
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("storage: list %s: %w", prefix, err)
	}
	return files, nil
}

// Close releases the root directory handle.
func (d *Dir) Close() error {
	return d.root.Close()
}
