package bigfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/aweris/bigfile/internal/pointer"
	"github.com/aweris/bigfile/internal/store"
	"github.com/aweris/bigfile/internal/transport"
)

// Engine synchronizes the local cache with a remote store and expands
// pointers in the working copy.
type Engine struct {
	repo      Repository
	store     Store
	transport Transport
	root      string

	fs          afero.Fs
	log         *zap.Logger
	concurrency int

	outMu sync.Mutex
	out   io.Writer
}

// Open creates an engine for repo using the transport described by cfg. The
// configuration is validated before anything else happens.
func Open(ctx context.Context, repo Repository, cfg transport.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	options := applyOptions(opts)

	s, err := OpenStore(repo, opts...)
	if err != nil {
		return nil, err
	}
	t, err := transport.New(ctx, cfg, options.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s transport: %w", cfg.Kind, err)
	}

	e, err := NewEngine(repo, s, t, opts...)
	if err != nil {
		t.Close()
		return nil, err
	}
	return e, nil
}

// NewEngine creates an engine over an already opened store and transport.
// The engine takes ownership of t.
func NewEngine(repo Repository, s Store, t Transport, opts ...Option) (*Engine, error) {
	options := applyOptions(opts)

	root, err := repo.Root()
	if err != nil {
		return nil, fmt.Errorf("failed to locate working tree: %w", err)
	}
	return &Engine{
		repo:        repo,
		store:       s,
		transport:   t,
		root:        root,
		fs:          options.Fs,
		log:         options.Logger,
		concurrency: options.Concurrency,
		out:         options.Output,
	}, nil
}

// Close releases the transport.
func (e *Engine) Close() error {
	return e.transport.Close()
}

func (e *Engine) printf(format string, args ...any) {
	e.outMu.Lock()
	defer e.outMu.Unlock()
	fmt.Fprintf(e.out, format, args...)
}

func (e *Engine) workPath(p string) string {
	return filepath.Join(e.root, filepath.FromSlash(p))
}

// Status classifies every tracked bigfile. It does not modify anything.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	tree, err := e.repo.ListTrackedBigfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked files: %w", err)
	}
	pushed, err := e.transport.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list remote objects: %w", err)
	}

	st := &Status{}
	for _, te := range tree {
		if te.Size != pointer.Size {
			continue
		}
		data, err := e.repo.ReadBlob(ctx, te.BlobID)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", te.Path, err)
		}
		h, ok := pointer.Parse(data)
		if !ok {
			continue
		}

		entry := Entry{Path: te.Path, Hash: h}
		_, entry.Pushed = pushed[h]

		info, err := e.fs.Stat(e.workPath(te.Path))
		switch {
		case os.IsNotExist(err):
			entry.State = StateDeleted
		case err != nil:
			return nil, fmt.Errorf("failed to stat %s: %w", te.Path, err)
		case info.Size() == pointer.Size:
			entry.State = StateToExpand
		default:
			entry.State = StateExpanded
			entry.Size = info.Size()
		}
		st.add(entry)
	}
	return st, nil
}

// Pull downloads missing content and expands every unexpanded or deleted
// bigfile in the working copy, staging each expanded path. Content that is
// neither cached nor on the remote is reported and skipped. A failure on one
// entry does not stop the others; all failures are returned together.
func (e *Engine) Pull(ctx context.Context) error {
	st, err := e.Status(ctx)
	if err != nil {
		return err
	}
	targets := append(append([]Entry{}, st.ToExpand...), st.Deleted...)

	var (
		mu     sync.Mutex
		failed = make(map[Hash]error)
		seen   = make(map[Hash]bool)
	)
	p := pool.New().WithMaxGoroutines(e.concurrency).WithContext(ctx)
	for _, entry := range targets {
		if seen[entry.Hash] || !entry.Pushed {
			continue
		}
		seen[entry.Hash] = true

		cached, err := e.store.Has(ctx, entry.Hash)
		if err != nil {
			mu.Lock()
			failed[entry.Hash] = err
			mu.Unlock()
			continue
		}
		if cached {
			continue
		}
		entry := entry
		p.Go(func(ctx context.Context) error {
			e.printf("Downloading %s : %s\n", entry.Hash.Short(), entry.Path)
			if err := e.download(ctx, entry.Hash); err != nil {
				mu.Lock()
				failed[entry.Hash] = err
				mu.Unlock()
			}
			return nil
		})
	}
	_ = p.Wait()

	var errs *multierror.Error
	for _, entry := range targets {
		if err := ctx.Err(); err != nil {
			errs = multierror.Append(errs, err)
			break
		}
		if err := failed[entry.Hash]; err != nil {
			e.printf("Could not get %s\n", entry.Path)
			errs = multierror.Append(errs, fmt.Errorf("download %s: %w", entry.Path, err))
			continue
		}

		e.printf("Expanding %s : %s\n", entry.Hash.Short(), entry.Path)
		err := e.expand(ctx, entry)
		if errors.Is(err, store.ErrNotFound) {
			e.printf("Could not get %s\n", entry.Path)
			continue
		}
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("expand %s: %w", entry.Path, err))
			continue
		}
		if err := e.repo.StageFile(ctx, e.workPath(entry.Path)); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("stage %s: %w", entry.Path, err))
		}
	}
	return errs.ErrorOrNil()
}

func (e *Engine) download(ctx context.Context, h Hash) error {
	tmp, err := e.store.CreateTemp()
	if err != nil {
		return err
	}
	if err := e.transport.Get(ctx, h, tmp); err != nil {
		e.fs.Remove(tmp)
		return err
	}
	return e.store.Adopt(ctx, h, tmp)
}

// expand writes the cached content of entry over its working copy path
// through a temp file in the same directory.
func (e *Engine) expand(ctx context.Context, entry Entry) error {
	src, err := e.store.Open(ctx, entry.Hash)
	if err != nil {
		return err
	}
	defer src.Close()

	target := e.workPath(entry.Path)
	dir := filepath.Dir(target)
	mode := os.FileMode(0o644)
	if info, err := e.fs.Stat(target); err == nil {
		mode = info.Mode().Perm()
	} else if err := e.fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := afero.TempFile(e.fs, dir, ".bigfile-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		e.fs.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		e.fs.Remove(tmpName)
		return err
	}
	if err := e.fs.Chmod(tmpName, mode); err != nil {
		e.fs.Remove(tmpName)
		return err
	}
	if err := e.fs.Rename(tmpName, target); err != nil {
		e.fs.Remove(tmpName)
		return err
	}
	return nil
}

// Push uploads every cached object the remote store does not hold and
// returns how many were uploaded. Uploads are independent: a failure is
// collected and the remaining objects are still attempted.
func (e *Engine) Push(ctx context.Context) (int, error) {
	unpushed, err := e.unpushed(ctx)
	if err != nil {
		return 0, err
	}

	var (
		mu       sync.Mutex
		errs     *multierror.Error
		uploaded atomic.Int64
	)
	p := pool.New().WithMaxGoroutines(e.concurrency).WithContext(ctx)
	for _, h := range unpushed {
		h := h
		p.Go(func(ctx context.Context) error {
			e.printf("Uploading %s\n", h.Short())
			if err := e.transport.Put(ctx, e.store.Path(h), h); err != nil {
				e.log.Debug("upload failed", zap.String("hash", h.String()), zap.Error(err))
				mu.Lock()
				errs = multierror.Append(errs, fmt.Errorf("upload %s: %w", h.Short(), err))
				mu.Unlock()
				return nil
			}
			uploaded.Add(1)
			return nil
		})
	}
	_ = p.Wait()

	return int(uploaded.Load()), errs.ErrorOrNil()
}

// unpushed returns the cached hashes missing from the live remote listing.
func (e *Engine) unpushed(ctx context.Context) ([]Hash, error) {
	cached, err := e.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache: %w", err)
	}
	remote, err := e.transport.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list remote objects: %w", err)
	}

	var out []Hash
	for _, h := range cached {
		if _, ok := remote[h]; !ok {
			out = append(out, h)
		}
	}
	return out, nil
}

// Clear evicts from the cache every object the remote store holds, and
// returns how many were evicted. Objects missing from the remote listing are
// never touched.
func (e *Engine) Clear(ctx context.Context) (int, error) {
	remote, err := e.transport.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list remote objects: %w", err)
	}

	hashes := make([]Hash, 0, len(remote))
	for h := range remote {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })

	evicted := 0
	for _, h := range hashes {
		ok, err := e.store.Evict(ctx, h)
		if err != nil {
			return evicted, fmt.Errorf("failed to evict %s: %w", h.Short(), err)
		}
		if ok {
			e.printf("Removing %s from cache\n", h.Short())
			evicted++
		}
	}
	return evicted, nil
}

// Add tracks path as a bigfile. See the package level Add.
func (e *Engine) Add(ctx context.Context, path string) error {
	return Add(ctx, e.repo, path, WithFs(e.fs), WithOutput(e.out))
}

// Add registers the base name of path as a bigfile pattern, then stages the
// attributes file and path. Add needs no transport.
func Add(ctx context.Context, repo Repository, path string, opts ...Option) error {
	options := applyOptions(opts)

	info, err := options.Fs.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return fmt.Errorf("%s %w", path, ErrNoSuchFile)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	base := filepath.Base(path)
	attrs, err := repo.RegisterAttributePattern(ctx, base)
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", base, err)
	}
	fmt.Fprintf(options.Output, "Adding %s to %s\n", base, attrs)
	if err := repo.StageFile(ctx, attrs); err != nil {
		return err
	}

	fmt.Fprintf(options.Output, "Adding %s to the index\n", path)
	return repo.StageFile(ctx, abs)
}
