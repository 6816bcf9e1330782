package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	gcrtransport "github.com/google/go-containerregistry/pkg/v1/remote/transport"
	"github.com/google/go-containerregistry/pkg/v1/types"
	"go.uber.org/zap"

	"github.com/aweris/bigfile/internal/pointer"
)

const (
	hashLabel      = "dev.bigfile.hash"
	defaultRetries = 3
)

// OCIConfig holds OCI registry transport settings.
type OCIConfig struct {
	Repository string
	Username   string
	Password   string
	Insecure   bool
}

// OCI stores each object as a single-layer image in a registry repository,
// tagged with the object's hash (e.g. "ghcr.io/org/assets:fb2f85c8...").
type OCI struct {
	repo name.Repository
	cfg  OCIConfig
	log  *zap.Logger
}

// NewOCI creates a registry transport for cfg.Repository.
func NewOCI(cfg OCIConfig, log *zap.Logger) (*OCI, error) {
	var opts []name.Option
	if cfg.Insecure {
		opts = append(opts, name.Insecure)
	}
	repo, err := name.NewRepository(cfg.Repository, opts...)
	if err != nil {
		return nil, &ConfigError{Kind: string(KindOCI), Reason: fmt.Sprintf("invalid %s %q: %v", OptionKey(KindOCI, "repository"), cfg.Repository, err)}
	}
	return &OCI{repo: repo, cfg: cfg, log: log}, nil
}

func (r *OCI) Kind() Kind { return KindOCI }

func (r *OCI) String() string { return r.repo.String() }

func (r *OCI) tag(h pointer.Hash) name.Tag {
	return r.repo.Tag(string(h))
}

func (r *OCI) Exists(ctx context.Context, h pointer.Hash) (bool, error) {
	_, err := remote.Head(r.tag(h), r.remoteOptions(ctx)...)
	if err != nil {
		if isRegistryNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("head %s: %w", h, err)
	}
	return true, nil
}

func (r *OCI) Get(ctx context.Context, h pointer.Hash, dest string) error {
	img, err := retry(ctx, defaultRetries, func() (v1.Image, error) {
		return remote.Image(r.tag(h), r.remoteOptions(ctx)...)
	})
	if err != nil {
		if isRegistryNotFound(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, h)
		}
		return fmt.Errorf("fetch image: %w", err)
	}

	layers, err := img.Layers()
	if err != nil {
		return fmt.Errorf("get layers: %w", err)
	}
	if len(layers) != 1 {
		return fmt.Errorf("image %s has %d layers, expected 1", r.tag(h), len(layers))
	}

	rc, err := layers[0].Compressed()
	if err != nil {
		return fmt.Errorf("read layer: %w", err)
	}
	defer rc.Close()

	dst, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := io.Copy(dst, rc); err != nil {
		dst.Close()
		return fmt.Errorf("download %s: %w", h, err)
	}
	return dst.Close()
}

func (r *OCI) Put(ctx context.Context, src string, h pointer.Hash) error {
	img, err := buildImage(&fileLayer{path: src}, h)
	if err != nil {
		return fmt.Errorf("build image: %w", err)
	}
	_, err = retry(ctx, defaultRetries, func() (struct{}, error) {
		return struct{}{}, remote.Write(r.tag(h), img, r.remoteOptions(ctx)...)
	})
	if err != nil {
		return fmt.Errorf("push image: %w", err)
	}
	return nil
}

// List returns the tags of the repository that name objects. A repository
// that does not exist yet is empty.
func (r *OCI) List(ctx context.Context) (map[pointer.Hash]struct{}, error) {
	tags, err := remote.List(r.repo, r.remoteOptions(ctx)...)
	if err != nil {
		if isRegistryNotFound(err) {
			return map[pointer.Hash]struct{}{}, nil
		}
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return validNames(tags), nil
}

// Close is a no-op; registry requests are stateless.
func (r *OCI) Close() error { return nil }

func (r *OCI) remoteOptions(ctx context.Context) []remote.Option {
	return []remote.Option{
		remote.WithContext(ctx),
		remote.WithAuthFromKeychain(registryAuth(r.cfg)),
	}
}

func buildImage(layer v1.Layer, h pointer.Hash) (v1.Image, error) {
	img, err := mutate.AppendLayers(empty.Image, layer)
	if err != nil {
		return nil, err
	}

	cfg, err := img.ConfigFile()
	if err != nil {
		return nil, err
	}
	cfg = cfg.DeepCopy()
	cfg.Config.Labels = map[string]string{hashLabel: string(h)}

	return mutate.ConfigFile(img, cfg)
}

// fileLayer implements v1.Layer over a local file, streamed on demand. The
// layer is stored uncompressed so the blob bytes are the object bytes.
type fileLayer struct {
	path string

	once   sync.Once
	digest v1.Hash
	size   int64
	err    error
}

func (l *fileLayer) compute() {
	f, err := os.Open(l.path)
	if err != nil {
		l.err = err
		return
	}
	defer f.Close()
	l.digest, l.size, l.err = v1.SHA256(f)
}

func (l *fileLayer) Digest() (v1.Hash, error) {
	l.once.Do(l.compute)
	return l.digest, l.err
}

func (l *fileLayer) DiffID() (v1.Hash, error) { return l.Digest() }

func (l *fileLayer) Compressed() (io.ReadCloser, error)   { return os.Open(l.path) }
func (l *fileLayer) Uncompressed() (io.ReadCloser, error) { return os.Open(l.path) }

func (l *fileLayer) Size() (int64, error) {
	l.once.Do(l.compute)
	return l.size, l.err
}

func (l *fileLayer) MediaType() (types.MediaType, error) { return types.OCIUncompressedLayer, nil }

func isRegistryNotFound(err error) bool {
	var terr *gcrtransport.Error
	return errors.As(err, &terr) && terr.StatusCode == http.StatusNotFound
}

// retry runs fn up to maxAttempts times with exponential backoff. Not-found
// responses are returned immediately.
func retry[T any](ctx context.Context, maxAttempts int, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		if isRegistryNotFound(err) {
			return zero, err
		}
		lastErr = err
		if i < maxAttempts-1 {
			delay := time.Duration(1<<i) * 500 * time.Millisecond // 500ms, 1s, 2s, 4s...
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return zero, lastErr
}
