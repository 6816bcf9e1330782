// Package store implements the local content-addressed cache.
//
// Objects are plain files named by the SHA-1 of their content. Writers stage
// content in a temp file next to the objects directory and publish it with a
// single rename, so concurrent filter processes never observe a partial
// object and identical content written twice converges on the same bytes.
package store

import (
	"context"
	"errors"
	"io"

	"github.com/aweris/bigfile/internal/pointer"
)

var (
	ErrNotFound = errors.New("store: object not found")
	ErrCorrupt  = errors.New("store: content does not match hash")
)

// Store handles local content storage.
type Store interface {
	// Put streams r into the store and returns its hash.
	Put(ctx context.Context, r io.Reader) (pointer.Hash, error)

	// Open returns a reader for the object. ErrNotFound if absent.
	Open(ctx context.Context, h pointer.Hash) (io.ReadCloser, error)

	// Has checks if an object exists.
	Has(ctx context.Context, h pointer.Hash) (bool, error)

	// Evict deletes an object. Returns false if it was already gone.
	Evict(ctx context.Context, h pointer.Hash) (bool, error)

	// List returns the hashes of every stored object.
	List(ctx context.Context) ([]pointer.Hash, error)

	// Path returns the file path of an object, whether or not it exists.
	Path(h pointer.Hash) string

	// CreateTemp creates an empty file in the staging area and returns its path.
	CreateTemp() (string, error)

	// Adopt verifies that the staged file at tmpPath hashes to h and publishes it.
	Adopt(ctx context.Context, h pointer.Hash, tmpPath string) error
}
