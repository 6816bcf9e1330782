package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/aweris/bigfile/internal/pointer"
)

// LocalConfig holds local directory transport settings.
type LocalConfig struct {
	Path string
}

// Local stores objects in a plain directory, typically a shared mount.
type Local struct {
	fs   afero.Fs
	path string
}

// NewLocal creates a local directory transport.
func NewLocal(fs afero.Fs, cfg LocalConfig) *Local {
	return &Local{fs: fs, path: cfg.Path}
}

func (t *Local) Kind() Kind { return KindLocal }

func (t *Local) objectPath(h pointer.Hash) string {
	return filepath.Join(t.path, string(h))
}

func (t *Local) Exists(_ context.Context, h pointer.Hash) (bool, error) {
	info, err := t.fs.Stat(t.objectPath(h))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", h, err)
	}
	return info.Mode().IsRegular(), nil
}

func (t *Local) Get(_ context.Context, h pointer.Hash, dest string) error {
	src, err := t.fs.Open(t.objectPath(h))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, h)
		}
		return fmt.Errorf("open %s: %w", h, err)
	}
	defer src.Close()

	dst, err := t.fs.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("copy %s: %w", h, err)
	}
	return dst.Close()
}

// Put copies src into the directory through a temp file so that other
// clients listing the directory never see a partial object.
func (t *Local) Put(_ context.Context, src string, h pointer.Hash) error {
	in, err := t.fs.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	tmp, err := afero.TempFile(t.fs, t.path, ".bigfile-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", h, err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		t.fs.Remove(tmpName)
		return fmt.Errorf("write %s: %w", h, err)
	}
	if err := tmp.Close(); err != nil {
		t.fs.Remove(tmpName)
		return fmt.Errorf("close temp for %s: %w", h, err)
	}
	if err := t.fs.Rename(tmpName, t.objectPath(h)); err != nil {
		t.fs.Remove(tmpName)
		return fmt.Errorf("rename temp to %s: %w", h, err)
	}
	return nil
}

func (t *Local) List(_ context.Context) (map[pointer.Hash]struct{}, error) {
	infos, err := afero.ReadDir(t.fs, t.path)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t.path, err)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.Mode().IsRegular() {
			names = append(names, info.Name())
		}
	}
	return validNames(names), nil
}

// Close is a no-op for local transports.
func (t *Local) Close() error { return nil }
