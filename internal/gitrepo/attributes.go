package gitrepo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/aweris/bigfile"
)

const attributesFile = ".gitattributes"

// RegisterAttributePattern appends "<basename> filter=bigfile -crlf" to the
// .gitattributes file at the root of the working tree, unless the exact line
// is already there. It returns the path of the attributes file.
func (r *Repo) RegisterAttributePattern(_ context.Context, basename string) (string, error) {
	root, err := r.Root()
	if err != nil {
		return "", err
	}
	path := filepath.Join(root, attributesFile)
	line := basename + " " + bigfile.AttributePattern

	existing, err := afero.ReadFile(r.fs, path)
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("read %s: %w", attributesFile, err)
	}
	for _, l := range strings.Split(string(existing), "\n") {
		if strings.TrimSpace(l) == line {
			return path, nil
		}
	}

	f, err := r.fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", attributesFile, err)
	}
	if len(existing) > 0 && existing[len(existing)-1] != '\n' {
		line = "\n" + line
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", attributesFile, err)
	}
	return path, f.Close()
}
