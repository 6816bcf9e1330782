package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"

	"github.com/aweris/bigfile/internal/pointer"
)

func TestBucket(t *testing.T) {
	t.Parallel()

	tr := NewBucket(memblob.OpenBucket(nil))
	defer tr.Close()

	assert.Equal(t, KindBucket, tr.Kind())
	exerciseTransport(t, tr)
}

func TestBucketListSkipsPrefixesAndForeignKeys(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	b := memblob.OpenBucket(nil)
	require.NoError(t, b.WriteAll(ctx, string(hashOther), []byte("x"), nil))
	require.NoError(t, b.WriteAll(ctx, "notes.txt", []byte("x"), nil))
	require.NoError(t, b.WriteAll(ctx, "nested/"+string(hashABCD), []byte("x"), nil))

	tr := NewBucket(b)
	defer tr.Close()

	listing, err := tr.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[pointer.Hash]struct{}{hashOther: {}}, listing)
}

func TestOpenBucketFile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tr, err := OpenBucket(ctx, BucketConfig{URL: "file://" + t.TempDir()})
	require.NoError(t, err)
	defer tr.Close()

	exerciseTransport(t, tr)
}

func TestOpenBucketRejectsUnknownScheme(t *testing.T) {
	t.Parallel()

	_, err := OpenBucket(context.Background(), BucketConfig{URL: "ftp://example.com/x"})
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Error(), `unsupported bucket scheme "ftp"`)
}
