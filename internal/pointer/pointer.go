// Package pointer implements the fixed-size record that replaces a big file
// in the versioned tree.
//
// A pointer is the 40 character hex SHA-1 of the file content followed by a
// newline. Detection only looks at the total length and the hex pattern, so a
// regular file that happens to hold exactly that is indistinguishable from a
// real pointer.
package pointer

import (
	"errors"
	"io"
	"regexp"
	"strings"
)

const (
	// Size is the exact byte length of a pointer record.
	Size = 41

	// HashLen is the length of a hex encoded SHA-1 digest.
	HashLen = 40

	peekSize = 64
)

var (
	hexPattern  = regexp.MustCompile(`^[0-9a-fA-F]+$`)
	hashPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)
)

// Hash is the hex encoded digest identifying stored content.
type Hash string

func (h Hash) String() string { return string(h) }

// Short returns the abbreviated form used in progress output.
func (h Hash) Short() string {
	if len(h) < 8 {
		return string(h)
	}
	return string(h[:8])
}

// Valid reports whether s is a well-formed object name (40 lowercase hex characters).
func Valid(s string) bool {
	return hashPattern.MatchString(s)
}

// Format returns the pointer record for h.
func Format(h Hash) []byte {
	return []byte(string(h) + "\n")
}

// Parse reports whether data is a pointer record and returns the hash it holds.
func Parse(data []byte) (Hash, bool) {
	if len(data) != Size {
		return "", false
	}
	sha := strings.TrimSpace(string(data))
	if !hexPattern.MatchString(sha) {
		return "", false
	}
	return Hash(sha), true
}

// Peek reads up to 64 bytes from r and classifies them. The returned prefix
// must be replayed by the caller when the input is not a pointer.
func Peek(r io.Reader) (prefix []byte, h Hash, ok bool, err error) {
	buf := make([]byte, peekSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return buf[:n], "", false, err
	}
	h, ok = Parse(buf[:n])
	return buf[:n], h, ok, nil
}
