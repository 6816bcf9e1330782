package cmd

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aweris/bigfile"
)

// execute runs the root command with args and stdin, returning stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func requireGitRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	out, err := exec.Command("git", "init", "-q", dir).CombinedOutput()
	require.NoError(t, err, string(out))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func gitConfig(t *testing.T, key string) string {
	t.Helper()
	out, err := exec.Command("git", "config", "--get", key).Output()
	require.NoError(t, err)
	return strings.TrimSpace(string(out))
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "git-bigfile dev\n", out)
}

func TestConfigPromptsForMissingValues(t *testing.T) {
	requireGitRepo(t)
	remote := t.TempDir()

	out, err := execute(t, "rsync\nlocal\n"+remote+"\n", "config", "--transport", "", "--global=false")
	require.NoError(t, err)

	assert.Contains(t, out, "Enter transport [local|sftp|oci|bucket]: Invalid transport rsync\n")
	assert.Contains(t, out, "Enter local path: ")
	assert.Contains(t, out, `git-bigfile.transport set to "local"`)
	assert.Equal(t, "git-bigfile filter-clean", gitConfig(t, "filter.bigfile.clean"))
	assert.Equal(t, "local", gitConfig(t, "git-bigfile.transport"))
	assert.Equal(t, remote, gitConfig(t, "git-bigfile.local.path"))
}

func TestConfigWithFlags(t *testing.T) {
	requireGitRepo(t)

	_, err := execute(t, "", "config", "--transport", "bucket", "-o", "url=mem://", "--global=false")
	require.NoError(t, err)
	assert.Equal(t, "mem://", gitConfig(t, "git-bigfile.bucket.url"))

	out, err := execute(t, "", "config", "--transport", "bucket", "-o", "url=mem://", "--global=false")
	require.NoError(t, err)
	assert.Contains(t, out, `git-bigfile.bucket.url already set to "mem://"`)
}

func TestPushWithoutTransport(t *testing.T) {
	requireGitRepo(t)

	_, err := execute(t, "", "push")
	require.EqualError(t, err, "git-bigfile.transport is not set")
}

func TestAddMissingFile(t *testing.T) {
	dir := requireGitRepo(t)

	_, err := execute(t, "", "add", "nothing.bin")
	require.ErrorIs(t, err, bigfile.ErrNoSuchFile)
	assert.NoFileExists(t, filepath.Join(dir, ".gitattributes"))
}

func TestPrompterEOF(t *testing.T) {
	p := &prompter{in: bufio.NewScanner(strings.NewReader("")), out: io.Discard}
	_, err := p.ask("Enter transport: ")
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}
