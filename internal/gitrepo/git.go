// Package gitrepo implements bigfile.Repository for a git working tree.
//
// Commands that change the repository (staging, config writes) and the
// repository discovery run the git binary so that hooks, filters and config
// includes behave exactly as they do for the user. Tree and blob reads go
// through go-git.
package gitrepo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/aweris/bigfile"
)

var (
	// ErrNotRepository indicates the directory is not inside a git working tree.
	ErrNotRepository = errors.New("not a git repository")

	// ErrGitNotFound indicates git is not installed.
	ErrGitNotFound = errors.New("git executable not found")
)

const metadataDirName = "bigfile"

// Repo is a git working tree.
type Repo struct {
	// dir is where git commands run until the root is known.
	dir string
	fs  afero.Fs
	log *zap.Logger

	mu     sync.Mutex
	root   string
	gitDir string
	repo   *git.Repository
}

var _ bigfile.Repository = (*Repo)(nil)

// Open returns the repository containing dir. The directory does not need to
// be inside a working tree until an operation needs one, so global config
// can be written from anywhere.
func Open(dir string, log *zap.Logger) (*Repo, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return nil, ErrGitNotFound
	}
	if log == nil {
		log = zap.NewNop()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &Repo{dir: abs, fs: afero.NewOsFs(), log: log}, nil
}

// Root returns the absolute path of the working tree.
func (r *Repo) Root() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.root == "" {
		out, err := r.gitOutput(context.Background(), r.dir, "rev-parse", "--show-toplevel")
		if err != nil {
			return "", err
		}
		r.root = filepath.Clean(strings.TrimSpace(out))
	}
	return r.root, nil
}

// MetadataDir returns <git-dir>/bigfile.
func (r *Repo) MetadataDir() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.gitDir == "" {
		out, err := r.gitOutput(context.Background(), r.dir, "rev-parse", "--absolute-git-dir")
		if err != nil {
			return "", err
		}
		r.gitDir = filepath.Clean(strings.TrimSpace(out))
	}
	return filepath.Join(r.gitDir, metadataDirName), nil
}

// StageFile runs `git add` on path, which goes through the clean filter.
func (r *Repo) StageFile(ctx context.Context, path string) error {
	root, err := r.Root()
	if err != nil {
		return err
	}
	r.log.Debug("staging", zap.String("path", path))
	return r.git(ctx, root, "add", "--", path)
}

// ListConfig returns every setting visible from the working directory. Keys
// are lower-cased by git except for the subsection part.
func (r *Repo) ListConfig(ctx context.Context) (map[string]string, error) {
	out, err := r.gitOutput(ctx, r.dir, "config", "--list", "-z")
	if err != nil {
		return nil, err
	}
	return parseConfigList(out), nil
}

// SetConfig writes key in the repository or global config.
func (r *Repo) SetConfig(ctx context.Context, key, value string, scope bigfile.Scope) error {
	args := []string{"config"}
	if scope == bigfile.ScopeGlobal {
		args = append(args, "--global")
	}
	args = append(args, key, value)
	return r.git(ctx, r.dir, args...)
}

// parseConfigList parses `git config --list -z` output: entries separated by
// NUL, key and value separated by the first newline. Later entries win.
func parseConfigList(out string) map[string]string {
	settings := make(map[string]string)
	for _, entry := range strings.Split(out, "\x00") {
		if entry == "" {
			continue
		}
		key, value, _ := strings.Cut(entry, "\n")
		settings[key] = value
	}
	return settings
}

func (r *Repo) git(ctx context.Context, dir string, args ...string) error {
	_, err := r.gitOutput(ctx, dir, args...)
	return err
}

// gitOutput runs git in dir and returns its stdout. A failure carries git's
// stderr.
func (r *Repo) gitOutput(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if strings.Contains(msg, "not a git repository") {
			return "", fmt.Errorf("%w: %s", ErrNotRepository, msg)
		}
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, msg)
	}
	return stdout.String(), nil
}
