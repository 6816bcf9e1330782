package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aweris/bigfile"
	"github.com/aweris/bigfile/internal/config"
	"github.com/aweris/bigfile/internal/gitrepo"
	"github.com/aweris/bigfile/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "git-bigfile",
	Short: "Track big files in git without storing their content",
	Long: `git-bigfile replaces big files in the repository with 41-byte pointers and
keeps their content in a local cache, synchronized with a shared remote store.

Set it up with "git-bigfile config", then track files with "git-bigfile add".`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		logging.L().Error(err.Error())
	}
	_ = logging.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	logging.Init(logging.Config{})
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().Int("concurrency", bigfile.DefaultConcurrency, "parallel transfers for push and pull")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("concurrency", rootCmd.PersistentFlags().Lookup("concurrency"))
}

func initConfig() {
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.AutomaticEnv()
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "console")
	viper.SetDefault("concurrency", bigfile.DefaultConcurrency)

	logging.Init(logging.Config{
		Level:  viper.GetString("log_level"),
		Format: viper.GetString("log_format"),
	})
}

func openRepo() (*gitrepo.Repo, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return gitrepo.Open(dir, logging.L())
}

// openEngine resolves the transport from git config and opens an engine
// printing progress to the command's output.
func openEngine(cmd *cobra.Command) (*bigfile.Engine, error) {
	repo, err := openRepo()
	if err != nil {
		return nil, err
	}
	if _, err := repo.Root(); err != nil {
		return nil, err
	}

	settings, err := repo.ListConfig(cmd.Context())
	if err != nil {
		return nil, err
	}
	cfg, err := config.Resolve(settings)
	if err != nil {
		return nil, err
	}

	return bigfile.Open(cmd.Context(), repo, cfg,
		bigfile.WithConcurrency(viper.GetInt("concurrency")),
		bigfile.WithOutput(cmd.OutOrStdout()),
		bigfile.WithLogger(logging.L()),
	)
}

// closeEngine folds the close error into err.
func closeEngine(e *bigfile.Engine, err *error) {
	if cerr := e.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}
