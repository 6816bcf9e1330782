package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/azureblob" // azblob://
	_ "gocloud.dev/blob/fileblob"  // file://
	_ "gocloud.dev/blob/gcsblob"   // gs://
	_ "gocloud.dev/blob/memblob"   // mem://
	_ "gocloud.dev/blob/s3blob"    // s3://
	"gocloud.dev/gcerrors"

	"github.com/aweris/bigfile/internal/pointer"
)

// BucketConfig holds cloud bucket transport settings.
type BucketConfig struct {
	// URL is a go-cloud bucket URL such as "s3://assets/bigfiles?region=eu-west-1".
	// For object store schemes the URL path selects a key prefix.
	URL string
}

// Bucket stores objects as keys of a go-cloud blob bucket.
type Bucket struct {
	bucket *blob.Bucket
}

// OpenBucket opens the bucket named by cfg.URL.
func OpenBucket(ctx context.Context, cfg BucketConfig) (*Bucket, error) {
	mux := blob.DefaultURLMux()

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, &ConfigError{Kind: string(KindBucket), Reason: fmt.Sprintf("invalid %s %q: %v", OptionKey(KindBucket, "url"), cfg.URL, err)}
	}
	if !mux.ValidBucketScheme(u.Scheme) {
		return nil, &ConfigError{
			Kind: string(KindBucket),
			Reason: fmt.Sprintf("unsupported bucket scheme %q; expected one of: %s",
				u.Scheme, strings.Join(mux.BucketSchemes(), ", ")),
		}
	}

	bucket, err := mux.OpenBucket(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("unable to open bucket %s: %w", cfg.URL, err)
	}

	if u.Scheme != "file" {
		if prefix := strings.Trim(u.Path, "/"); prefix != "" {
			bucket = blob.PrefixedBucket(bucket, prefix+"/")
		}
	}
	return NewBucket(bucket), nil
}

// NewBucket wraps an already opened bucket. The transport owns it.
func NewBucket(bucket *blob.Bucket) *Bucket {
	return &Bucket{bucket: bucket}
}

func (t *Bucket) Kind() Kind { return KindBucket }

func (t *Bucket) Exists(ctx context.Context, h pointer.Hash) (bool, error) {
	ok, err := t.bucket.Exists(ctx, string(h))
	if err != nil {
		return false, fmt.Errorf("check %s: %w", h, err)
	}
	return ok, nil
}

func (t *Bucket) Get(ctx context.Context, h pointer.Hash, dest string) error {
	r, err := t.bucket.NewReader(ctx, string(h), nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, h)
		}
		return fmt.Errorf("open %s: %w", h, err)
	}
	defer r.Close()

	dst, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := io.Copy(dst, r); err != nil {
		dst.Close()
		return fmt.Errorf("download %s: %w", h, err)
	}
	return dst.Close()
}

// Put uploads src. Bucket writes become visible only when the writer is
// closed successfully, so a failed upload leaves no partial object behind.
func (t *Bucket) Put(ctx context.Context, src string, h pointer.Hash) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := t.bucket.NewWriter(ctx, string(h), &blob.WriterOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("create %s: %w", h, err)
	}
	if _, err := io.Copy(w, in); err != nil {
		// Cancelling before Close aborts the upload.
		cancel()
		w.Close()
		return fmt.Errorf("upload %s: %w", h, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish upload %s: %w", h, err)
	}
	return nil
}

func (t *Bucket) List(ctx context.Context) (map[pointer.Hash]struct{}, error) {
	var names []string
	iter := t.bucket.List(&blob.ListOptions{Delimiter: "/"})
	for {
		obj, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list bucket: %w", err)
		}
		if !obj.IsDir {
			names = append(names, obj.Key)
		}
	}
	return validNames(names), nil
}

func (t *Bucket) Close() error {
	return t.bucket.Close()
}
