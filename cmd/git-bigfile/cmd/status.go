package cmd

import (
	"github.com/spf13/cobra"

	"github.com/aweris/bigfile"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of tracked bigfiles",
	Long:  "List tracked bigfiles grouped as unexpanded, expanded and deleted, with their pushed state.",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) (err error) {
	e, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer closeEngine(e, &err)

	st, err := e.Status(cmd.Context())
	if err != nil {
		return err
	}
	return bigfile.WriteStatus(cmd.OutOrStdout(), st)
}
