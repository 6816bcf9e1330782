package cmd

import (
	"bufio"
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/aweris/bigfile"
	"github.com/aweris/bigfile/internal/logging"
)

var filterCleanCmd = &cobra.Command{
	Use:    "filter-clean",
	Short:  "Git clean filter: replace content on stdin with its pointer",
	Args:   cobra.NoArgs,
	Hidden: true,
	RunE:   runFilterClean,
}

var filterSmudgeCmd = &cobra.Command{
	Use:    "filter-smudge",
	Short:  "Git smudge filter: replace a pointer on stdin with its cached content",
	Args:   cobra.NoArgs,
	Hidden: true,
	RunE:   runFilterSmudge,
}

func init() {
	rootCmd.AddCommand(filterCleanCmd)
	rootCmd.AddCommand(filterSmudgeCmd)
}

type filterFunc func(f *bigfile.Filter, ctx context.Context, r io.Reader, w io.Writer) error

func runFilterClean(cmd *cobra.Command, _ []string) error {
	return runFilter(cmd, (*bigfile.Filter).Clean)
}

func runFilterSmudge(cmd *cobra.Command, _ []string) error {
	return runFilter(cmd, (*bigfile.Filter).Smudge)
}

// runFilter streams stdin to stdout through fn. Filters only need the local
// cache, never the transport.
func runFilter(cmd *cobra.Command, fn filterFunc) (err error) {
	repo, err := openRepo()
	if err != nil {
		return err
	}
	s, err := bigfile.OpenStore(repo)
	if err != nil {
		return err
	}
	f := bigfile.NewFilter(s, bigfile.WithLogger(logging.L()))

	out := bufio.NewWriter(cmd.OutOrStdout())
	defer func() {
		if ferr := out.Flush(); ferr != nil && err == nil {
			err = ferr
		}
	}()
	return fn(f, cmd.Context(), bufio.NewReader(cmd.InOrStdin()), out)
}
