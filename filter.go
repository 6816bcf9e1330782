package bigfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/aweris/bigfile/internal/pointer"
	"github.com/aweris/bigfile/internal/store"
)

// Filter implements the git clean and smudge filters over a local cache.
// Filters never need a transport.
type Filter struct {
	store Store
	log   *zap.Logger
}

// NewFilter creates a filter backed by s.
func NewFilter(s Store, opts ...Option) *Filter {
	options := applyOptions(opts)
	return &Filter{store: s, log: options.Logger}
}

// Clean replaces content read from r with its pointer, written to w. Input
// that already is a pointer is copied unchanged.
func (f *Filter) Clean(ctx context.Context, r io.Reader, w io.Writer) error {
	prefix, h, ok, err := pointer.Peek(r)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	if ok {
		_, err := w.Write(prefix)
		return err
	}

	h, err = f.store.Put(ctx, io.MultiReader(bytes.NewReader(prefix), r))
	if err != nil {
		return fmt.Errorf("store bigfile: %w", err)
	}
	f.log.Info("saving bigfile", zap.String("hash", h.String()))

	_, err = w.Write(pointer.Format(h))
	return err
}

// Smudge replaces a pointer read from r with the cached content. A pointer
// whose content is not cached is written back unchanged so that checkout
// succeeds; anything that is not a pointer is copied through.
func (f *Filter) Smudge(ctx context.Context, r io.Reader, w io.Writer) error {
	prefix, h, ok, err := pointer.Peek(r)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	if !ok {
		f.log.Warn("unknown git-bigfile format")
		if _, err := w.Write(prefix); err != nil {
			return err
		}
		_, err := io.Copy(w, r)
		return err
	}

	rc, err := f.store.Open(ctx, h)
	if errors.Is(err, store.ErrNotFound) {
		f.log.Warn("saving placeholder (bigfile not in cache)", zap.String("hash", h.String()))
		_, err := w.Write(prefix)
		return err
	}
	if err != nil {
		return fmt.Errorf("open bigfile %s: %w", h.Short(), err)
	}
	defer rc.Close()

	f.log.Info("recovering bigfile", zap.String("hash", h.String()))
	if _, err := io.Copy(w, rc); err != nil {
		return fmt.Errorf("write bigfile %s: %w", h.Short(), err)
	}
	return nil
}
