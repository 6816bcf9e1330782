package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/aweris/bigfile"
	"github.com/aweris/bigfile/internal/pointer"
)

func (r *Repo) open() (*git.Repository, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo != nil {
		return r.repo, nil
	}
	repo, err := git.PlainOpenWithOptions(r.dir, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("%w: %s", ErrNotRepository, r.dir)
	}
	if err != nil {
		return nil, fmt.Errorf("reading git repository: %w", err)
	}
	r.repo = repo
	return repo, nil
}

// ListTrackedBigfiles returns the regular files of the HEAD tree whose blob
// has the size of a pointer.
func (r *Repo) ListTrackedBigfiles(ctx context.Context) ([]bigfile.TreeEntry, error) {
	repo, err := r.open()
	if err != nil {
		return nil, err
	}

	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("read HEAD commit: %w", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("read HEAD tree: %w", err)
	}

	var entries []bigfile.TreeEntry
	err = tree.Files().ForEach(func(f *object.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if f.Mode != filemode.Regular && f.Mode != filemode.Executable {
			return nil
		}
		if f.Size != pointer.Size {
			return nil
		}
		entries = append(entries, bigfile.TreeEntry{
			Path:   f.Name,
			BlobID: f.Hash.String(),
			Size:   f.Size,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk HEAD tree: %w", err)
	}
	return entries, nil
}

// ReadBlob returns the content of the blob with the given id.
func (r *Repo) ReadBlob(_ context.Context, id string) ([]byte, error) {
	repo, err := r.open()
	if err != nil {
		return nil, err
	}
	blob, err := repo.BlobObject(plumbing.NewHash(id))
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", id, err)
	}
	rc, err := blob.Reader()
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", id, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
