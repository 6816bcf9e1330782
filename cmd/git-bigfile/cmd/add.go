package cmd

import (
	"github.com/spf13/cobra"

	"github.com/aweris/bigfile"
)

var addCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Track a file as a bigfile",
	Long:  "Register the file's name in .gitattributes and stage both.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdd,
}

func init() {
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	repo, err := openRepo()
	if err != nil {
		return err
	}
	return bigfile.Add(cmd.Context(), repo, args[0], bigfile.WithOutput(cmd.OutOrStdout()))
}
