package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Expand bigfiles, downloading content from the remote store",
	Long:  "Replace pointers in the working copy with their content, downloading what the cache is missing.",
	Args:  cobra.NoArgs,
	RunE:  runPull,
}

func init() {
	rootCmd.AddCommand(pullCmd)
}

func runPull(cmd *cobra.Command, _ []string) (err error) {
	e, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer closeEngine(e, &err)

	if err := e.Pull(cmd.Context()); err != nil {
		return fmt.Errorf("pull failed: %w", err)
	}
	return nil
}
