package bigfile

import (
	"bytes"
	"context"
	"crypto/rand"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/aweris/bigfile/internal/pointer"
	"github.com/aweris/bigfile/internal/store"
)

const hashABCD = Hash("fb2f85c88567f3c8ce9b799c7c54642d0c7b41f6")

func newMemFilter(t testing.TB) (*Filter, *store.LocalStore, *observer.ObservedLogs) {
	s, err := store.NewLocalStore(afero.NewMemMapFs(), "/repo/.git/bigfile")
	require.NoError(t, err)
	core, logs := observer.New(zap.InfoLevel)
	return NewFilter(s, WithLogger(zap.New(core))), s, logs
}

func clean(t require.TestingT, f *Filter, data []byte) []byte {
	var out bytes.Buffer
	require.NoError(t, f.Clean(context.Background(), bytes.NewReader(data), &out))
	return out.Bytes()
}

func smudge(t require.TestingT, f *Filter, data []byte) []byte {
	var out bytes.Buffer
	require.NoError(t, f.Smudge(context.Background(), bytes.NewReader(data), &out))
	return out.Bytes()
}

func TestCleanSmudgeABCD(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f, s, logs := newMemFilter(t)

	ptr := clean(t, f, []byte("ABCD"))
	assert.Equal(t, string(hashABCD)+"\n", string(ptr))
	assert.Len(t, ptr, pointer.Size)
	assert.Equal(t, 1, logs.FilterMessage("saving bigfile").Len())

	cached, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []pointer.Hash{hashABCD}, cached)

	assert.Equal(t, "ABCD", string(smudge(t, f, ptr)))
	assert.Equal(t, 1, logs.FilterMessage("recovering bigfile").Len())

	// Cold cache: the pointer is written back unchanged.
	_, err = s.Evict(ctx, hashABCD)
	require.NoError(t, err)
	assert.Equal(t, ptr, smudge(t, f, ptr))
	assert.Equal(t, 1, logs.FilterMessage("saving placeholder (bigfile not in cache)").Len())
}

func TestCleanRoundTripSizes(t *testing.T) {
	t.Parallel()

	for _, size := range []int{0, 1, 4095, 4096, 1_000_000} {
		f, _, _ := newMemFilter(t)

		data := make([]byte, size)
		_, err := rand.Read(data)
		require.NoError(t, err)

		ptr := clean(t, f, data)
		require.Len(t, ptr, pointer.Size, "size %d", size)
		assert.Equal(t, data, smudge(t, f, ptr), "size %d", size)
	}
}

func TestCleanSmudgeRoundTripProperty(t *testing.T) {
	f, _, _ := newMemFilter(t)

	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOfN(rapid.Byte(), 0, 10_000).Draw(t, "data")

		ptr := clean(t, f, data)
		require.Len(t, ptr, pointer.Size)
		require.Equal(t, data, smudge(t, f, ptr))
	})
}

func TestCleanIsIdempotent(t *testing.T) {
	t.Parallel()

	f, s, _ := newMemFilter(t)
	ptr := clean(t, f, []byte("some large content"))
	assert.Equal(t, ptr, clean(t, f, ptr))

	cached, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, cached, 1)
}

func TestCleanSameContentTwice(t *testing.T) {
	t.Parallel()

	f, s, _ := newMemFilter(t)
	assert.Equal(t, clean(t, f, []byte("ABCD")), clean(t, f, []byte("ABCD")))

	cached, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []pointer.Hash{hashABCD}, cached)
}

func TestCleanAmbiguousHexContent(t *testing.T) {
	t.Parallel()

	// Content that looks exactly like a pointer is left alone.
	f, s, _ := newMemFilter(t)
	looksLikePointer := []byte(strings.Repeat("ab", 20) + "\n")
	assert.Equal(t, looksLikePointer, clean(t, f, looksLikePointer))

	cached, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cached)
}

func TestSmudgeUnknownFormat(t *testing.T) {
	t.Parallel()

	f, _, logs := newMemFilter(t)
	raw := bytes.Repeat([]byte("not a pointer "), 100)
	assert.Equal(t, raw, smudge(t, f, raw))
	assert.Equal(t, 1, logs.FilterMessage("unknown git-bigfile format").Len())
}

func TestConcurrentCleansConverge(t *testing.T) {
	t.Parallel()

	s, err := store.NewLocalStore(afero.NewOsFs(), t.TempDir())
	require.NoError(t, err)
	f := NewFilter(s)

	data := bytes.Repeat([]byte("0123456789"), 50_000)
	var wg sync.WaitGroup
	ptrs := make([][]byte, 8)
	for i := range ptrs {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			var out bytes.Buffer
			assert.NoError(t, f.Clean(context.Background(), bytes.NewReader(data), &out))
			ptrs[i] = out.Bytes()
		}()
	}
	wg.Wait()

	for _, p := range ptrs[1:] {
		assert.Equal(t, ptrs[0], p)
	}
	cached, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, data, smudge(t, f, ptrs[0]))
}
