package store

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/aweris/bigfile/internal/pointer"
)

// chunkSize bounds how much of an input is held in memory at once.
const chunkSize = 4096

// LocalStore implements Store on a filesystem.
//
// Storage layout:
//
//	root/
//	  objects/
//	    fb2f85c8...  (one file per content hash)
//	  tmp/
//	    put-123...   (in-flight writes, renamed into objects/)
type LocalStore struct {
	fs   afero.Fs
	root string
}

// NewLocalStore opens the store rooted at root, creating its directories.
func NewLocalStore(fs afero.Fs, root string) (*LocalStore, error) {
	s := &LocalStore{fs: fs, root: root}
	for _, dir := range []string{s.objectsDir(), s.tmpDir()} {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return s, nil
}

// Put stores the content of r and returns its hash.
func (s *LocalStore) Put(ctx context.Context, r io.Reader) (pointer.Hash, error) {
	tmp, err := afero.TempFile(s.fs, s.tmpDir(), "put-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	h := sha1.New()
	if _, err := copyChunked(io.MultiWriter(tmp, h), r); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return "", fmt.Errorf("failed to write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	digest := sum(h)
	if err := s.publish(tmpName, digest); err != nil {
		return "", err
	}
	return digest, nil
}

// Open opens an object for streamed reading.
func (s *LocalStore) Open(ctx context.Context, h pointer.Hash) (io.ReadCloser, error) {
	f, err := s.fs.Open(s.Path(h))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, h)
		}
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	return f, nil
}

// Has checks if an object exists.
func (s *LocalStore) Has(ctx context.Context, h pointer.Hash) (bool, error) {
	info, err := s.fs.Stat(s.Path(h))
	if err == nil {
		return info.Mode().IsRegular(), nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Evict removes an object. A missing object is not an error since another
// process may have evicted it first.
func (s *LocalStore) Evict(ctx context.Context, h pointer.Hash) (bool, error) {
	err := s.fs.Remove(s.Path(h))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to remove object: %w", err)
}

// List returns every stored hash in lexical order.
func (s *LocalStore) List(ctx context.Context) ([]pointer.Hash, error) {
	infos, err := afero.ReadDir(s.fs, s.objectsDir())
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	hashes := make([]pointer.Hash, 0, len(infos))
	for _, info := range infos {
		if info.Mode().IsRegular() && pointer.Valid(info.Name()) {
			hashes = append(hashes, pointer.Hash(info.Name()))
		}
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })
	return hashes, nil
}

// CreateTemp creates an empty file in the staging area.
func (s *LocalStore) CreateTemp() (string, error) {
	tmp, err := afero.TempFile(s.fs, s.tmpDir(), "get-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// Adopt rehashes a staged file and renames it into place if it matches h.
// The staged file is removed on any failure.
func (s *LocalStore) Adopt(ctx context.Context, h pointer.Hash, tmpPath string) error {
	f, err := s.fs.Open(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to open staged object: %w", err)
	}
	hasher := sha1.New()
	_, err = copyChunked(hasher, f)
	f.Close()
	if err != nil {
		s.fs.Remove(tmpPath)
		return fmt.Errorf("failed to read staged object: %w", err)
	}

	if got := sum(hasher); got != h {
		s.fs.Remove(tmpPath)
		return fmt.Errorf("%w: expected %s, got %s", ErrCorrupt, h, got)
	}
	return s.publish(tmpPath, h)
}

// Path returns the filesystem path for an object hash.
func (s *LocalStore) Path(h pointer.Hash) string {
	return filepath.Join(s.objectsDir(), string(h))
}

// Root returns the store's base directory.
func (s *LocalStore) Root() string { return s.root }

// publish makes a staged file visible under its hash. The rename is the only
// point where the object becomes observable.
func (s *LocalStore) publish(tmpName string, h pointer.Hash) error {
	if err := s.fs.Rename(tmpName, s.Path(h)); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("failed to publish object %s: %w", h, err)
	}
	return nil
}

func (s *LocalStore) objectsDir() string { return filepath.Join(s.root, "objects") }
func (s *LocalStore) tmpDir() string     { return filepath.Join(s.root, "tmp") }

func copyChunked(dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, chunkSize)
	return io.CopyBuffer(dst, src, buf)
}

func sum(h hash.Hash) pointer.Hash {
	return pointer.Hash(hex.EncodeToString(h.Sum(nil)))
}
