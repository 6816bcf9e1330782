package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload cached content to the remote store",
	Long:  "Upload every cached object the remote store does not hold yet.",
	Args:  cobra.NoArgs,
	RunE:  runPush,
}

func init() {
	rootCmd.AddCommand(pushCmd)
}

func runPush(cmd *cobra.Command, _ []string) (err error) {
	e, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer closeEngine(e, &err)

	if _, err := e.Push(cmd.Context()); err != nil {
		return fmt.Errorf("push failed: %w", err)
	}
	return nil
}
