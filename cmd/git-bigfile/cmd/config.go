package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aweris/bigfile"
	"github.com/aweris/bigfile/internal/transport"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configure the bigfile filter and transport",
	Long: `Register the clean and smudge filters and select the transport used to
reach the remote store. Values not given as flags are prompted for.

Examples:
  git-bigfile config --transport local --option path=/mnt/share/bigfiles
  git-bigfile config --global --transport sftp -o hostname=files.example.com -o username=git -o path=/srv/bigfiles`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func init() {
	configCmd.Flags().Bool("global", false, "write to the global git config")
	configCmd.Flags().String("transport", "", "transport kind ("+strings.Join(kindNames(), ", ")+")")
	configCmd.Flags().StringToStringP("option", "o", nil, "transport option as name=value (repeatable)")
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, _ []string) error {
	global, _ := cmd.Flags().GetBool("global")
	kind, _ := cmd.Flags().GetString("transport")
	options, _ := cmd.Flags().GetStringToString("option")

	repo, err := openRepo()
	if err != nil {
		return err
	}

	setup := bigfile.Setup{Scope: bigfile.ScopeRepository, Options: map[string]string{}}
	if global {
		setup.Scope = bigfile.ScopeGlobal
	} else if _, err := repo.Root(); err != nil {
		return err
	}
	for k, v := range options {
		setup.Options[strings.ToLower(k)] = v
	}

	p := &prompter{in: bufio.NewScanner(cmd.InOrStdin()), out: cmd.OutOrStdout()}
	k, ok := transport.ParseKind(kind)
	for !ok {
		if kind != "" {
			fmt.Fprintf(p.out, "Invalid transport %s\n", kind)
		}
		if kind, err = p.ask(fmt.Sprintf("Enter transport [%s]: ", strings.Join(kindNames(), "|"))); err != nil {
			return err
		}
		k, ok = transport.ParseKind(kind)
	}
	setup.Transport = string(k)

	for _, option := range transport.MandatoryOptions(k) {
		if setup.Options[option] != "" {
			continue
		}
		value, err := p.ask(fmt.Sprintf("Enter %s %s: ", k, option))
		if err != nil {
			return err
		}
		setup.Options[option] = value
	}

	return bigfile.Configure(cmd.Context(), repo, setup, cmd.OutOrStdout())
}

type prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

func (p *prompter) ask(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	return strings.TrimSpace(p.in.Text()), nil
}

func kindNames() []string {
	names := make([]string, 0, len(transport.Kinds))
	for _, k := range transport.Kinds {
		names = append(names, string(k))
	}
	return names
}
