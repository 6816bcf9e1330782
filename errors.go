package bigfile

import "errors"

var (
	// ErrNoSuchFile is returned by Add when the path is not a regular file.
	ErrNoSuchFile = errors.New("did not match any file")
)
