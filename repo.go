package bigfile

import "context"

// Scope selects where a configuration value is written.
type Scope int

const (
	// ScopeRepository writes to the current repository's config.
	ScopeRepository Scope = iota
	// ScopeGlobal writes to the user's global config.
	ScopeGlobal
)

func (s Scope) String() string {
	if s == ScopeGlobal {
		return "global"
	}
	return "repository"
}

// TreeEntry is a file of the committed tree.
type TreeEntry struct {
	Path   string // slash-separated, relative to the repository root
	BlobID string
	Size   int64 // size of the committed blob
}

// Repository is the version control host the bigfile core works against.
type Repository interface {
	// Root returns the absolute path of the working tree.
	Root() (string, error)

	// MetadataDir returns the directory holding the object cache.
	MetadataDir() (string, error)

	// ListTrackedBigfiles returns the files of the committed tree whose blob
	// size matches a pointer. An unborn HEAD yields no entries.
	ListTrackedBigfiles(ctx context.Context) ([]TreeEntry, error)

	// ReadBlob returns the content of a committed blob.
	ReadBlob(ctx context.Context, id string) ([]byte, error)

	// StageFile adds path to the index.
	StageFile(ctx context.Context, path string) error

	// ListConfig returns the merged configuration visible from the working directory.
	ListConfig(ctx context.Context) (map[string]string, error)

	// SetConfig writes a configuration value.
	SetConfig(ctx context.Context, key, value string, scope Scope) error

	// RegisterAttributePattern marks files named basename as bigfiles and
	// returns the path of the attributes file it changed.
	RegisterAttributePattern(ctx context.Context, basename string) (string, error)
}
