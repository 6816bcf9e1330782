package bigfile

import (
	"fmt"
	"path/filepath"

	"github.com/aweris/bigfile/internal/pointer"
	"github.com/aweris/bigfile/internal/store"
	"github.com/aweris/bigfile/internal/transport"
)

// Hash is the SHA-1 hex digest naming a bigfile's content.
type Hash = pointer.Hash

// Store is the local content cache.
// Re-exported from internal/store for convenience.
type Store = store.Store

// Transport is a remote store the cache is synchronized with.
// Re-exported from internal/transport for convenience.
type Transport = transport.Transport

// OpenStore opens the object cache of repo.
func OpenStore(repo Repository, opts ...Option) (*store.LocalStore, error) {
	options := applyOptions(opts)

	dir, err := repo.MetadataDir()
	if err != nil {
		return nil, fmt.Errorf("locate cache: %w", err)
	}
	s, err := store.NewLocalStore(options.Fs, filepath.Clean(dir))
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return s, nil
}

// TransportConfig selects and configures the transport of an Engine.
type TransportConfig = transport.Config

// Transport configuration records, one per kind.
type (
	LocalConfig  = transport.LocalConfig
	SFTPConfig   = transport.SFTPConfig
	OCIConfig    = transport.OCIConfig
	BucketConfig = transport.BucketConfig
)

// Transport kinds.
const (
	TransportLocal  = transport.KindLocal
	TransportSFTP   = transport.KindSFTP
	TransportOCI    = transport.KindOCI
	TransportBucket = transport.KindBucket
)
