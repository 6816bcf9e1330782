package cmd

import (
	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove pushed content from the local cache",
	Long:  "Evict from the local cache every object the remote store holds. Unpushed objects are kept.",
	Args:  cobra.NoArgs,
	RunE:  runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, _ []string) (err error) {
	e, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer closeEngine(e, &err)

	_, err = e.Clear(cmd.Context())
	return err
}
