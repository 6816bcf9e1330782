// Package bigfile keeps large files out of a git repository while letting
// git track them.
//
// The clean filter replaces a file's bytes with a 41-byte pointer (its
// SHA-1 hex digest and a newline) and moves the bytes into a local
// content-addressed cache under the git directory. The smudge filter turns
// pointers back into content when it is cached. An Engine synchronizes the
// cache with a shared remote store reached through a transport.
//
// Filters (local only):
//
//	s, _ := bigfile.OpenStore(repo)
//	f := bigfile.NewFilter(s)
//	f.Clean(ctx, os.Stdin, os.Stdout)
//
// With a remote store:
//
//	cfg, _ := config.Resolve(settings)
//	e, _ := bigfile.Open(ctx, repo, cfg, bigfile.WithConcurrency(8))
//	defer e.Close()
//	e.Push(ctx)
//	e.Pull(ctx)
package bigfile
