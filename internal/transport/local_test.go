package transport

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aweris/bigfile/internal/pointer"
)

func TestLocal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tr := NewLocal(afero.NewOsFs(), LocalConfig{Path: dir})
	defer tr.Close()

	assert.Equal(t, KindLocal, tr.Kind())
	exerciseTransport(t, tr)
}

func TestLocalListIgnoresForeignFiles(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/remote/sub", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/remote/"+string(hashOther), []byte("x"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/remote/README", []byte("x"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/remote/.bigfile-1.tmp", []byte("x"), 0o644))

	tr := NewLocal(fs, LocalConfig{Path: "/remote"})
	listing, err := tr.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[pointer.Hash]struct{}{hashOther: {}}, listing)
}

func TestLocalListMissingDirectory(t *testing.T) {
	t.Parallel()

	tr := NewLocal(afero.NewMemMapFs(), LocalConfig{Path: "/nowhere"})
	_, err := tr.List(context.Background())
	assert.Error(t, err)
}
