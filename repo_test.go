package bigfile

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeRepo is an in-memory Repository over a real working directory.
type fakeRepo struct {
	root string
	meta string

	mu       sync.Mutex
	tree     []TreeEntry
	blobs    map[string][]byte
	staged   []string
	stageErr map[string]error
	config   map[string]string
	scopes   map[string]Scope
	patterns []string
	rootErr  error
}

func newFakeRepo(t *testing.T) *fakeRepo {
	t.Helper()
	root := t.TempDir()
	return &fakeRepo{
		root:     root,
		meta:     filepath.Join(root, ".git", "bigfile"),
		blobs:    make(map[string][]byte),
		stageErr: make(map[string]error),
		config:   make(map[string]string),
		scopes:   make(map[string]Scope),
	}
}

// commit records content at path in the committed tree.
func (r *fakeRepo) commit(path string, content []byte) {
	sum := sha1.Sum(content)
	id := hex.EncodeToString(sum[:])
	r.blobs[id] = content
	r.tree = append(r.tree, TreeEntry{Path: path, BlobID: id, Size: int64(len(content))})
}

// writeWork writes content to path in the working copy.
func (r *fakeRepo) writeWork(t *testing.T, path string, content []byte) {
	t.Helper()
	full := filepath.Join(r.root, filepath.FromSlash(path))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, content, 0o644))
}

func (r *fakeRepo) readWork(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(r.root, filepath.FromSlash(path)))
	require.NoError(t, err)
	return string(data)
}

func (r *fakeRepo) Root() (string, error) {
	if r.rootErr != nil {
		return "", r.rootErr
	}
	return r.root, nil
}

func (r *fakeRepo) MetadataDir() (string, error) {
	if r.rootErr != nil {
		return "", r.rootErr
	}
	return r.meta, nil
}

func (r *fakeRepo) ListTrackedBigfiles(context.Context) ([]TreeEntry, error) {
	return r.tree, nil
}

func (r *fakeRepo) ReadBlob(_ context.Context, id string) ([]byte, error) {
	data, ok := r.blobs[id]
	if !ok {
		return nil, fmt.Errorf("no blob %s", id)
	}
	return data, nil
}

func (r *fakeRepo) StageFile(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rel, err := filepath.Rel(r.root, path)
	if err != nil {
		return err
	}
	rel = filepath.ToSlash(rel)
	if err := r.stageErr[rel]; err != nil {
		return err
	}
	r.staged = append(r.staged, rel)
	return nil
}

func (r *fakeRepo) ListConfig(context.Context) (map[string]string, error) {
	out := make(map[string]string, len(r.config))
	for k, v := range r.config {
		out[k] = v
	}
	return out, nil
}

func (r *fakeRepo) SetConfig(_ context.Context, key, value string, scope Scope) error {
	r.config[key] = value
	r.scopes[key] = scope
	return nil
}

func (r *fakeRepo) RegisterAttributePattern(_ context.Context, basename string) (string, error) {
	r.patterns = append(r.patterns, basename)
	return filepath.Join(r.root, ".gitattributes"), nil
}
