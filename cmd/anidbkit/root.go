package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/varoOP/anidbkit/internal/app"
	"github.com/varoOP/anidbkit/internal/config"
	"github.com/varoOP/anidbkit/internal/logger"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
	cfgFile string
	envFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "anidbkit",
	Short: "A local client for the AniDB HTTP API and title catalog",
	Long: `anidbkit keeps a local copy of the AniDB title catalog, searches it with
typo tolerance, and fetches anime records from the AniDB HTTP API through a
persistent response cache and request rate limit.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()

	flags.StringVar(&cfgFile, "config", "", "config file (default is ./anidbkit.yaml or $HOME/anidbkit.yaml)")
	flags.StringVar(&envFile, "env-file", ".env", "optional dotenv file")
	flags.String("client", "", "registered AniDB client name")
	flags.Int("client-version", 0, "registered AniDB client version")
	flags.String("cache-path", "", "directory for cached responses and rate limit state")
	flags.String("download-path", "", "directory for catalog snapshots")
	flags.String("store", "", "store backend: file or sqlite")
	flags.String("log-level", "", "log level: trace, debug, info, warn or error")
	flags.StringP("output", "o", "table", "output format: table, json or yaml")
	flags.Bool("stats", false, "print metrics after the command")

	// Bind flags to viper
	viper.BindPFlag("client", flags.Lookup("client"))
	viper.BindPFlag("client_version", flags.Lookup("client-version"))
	viper.BindPFlag("cache_path", flags.Lookup("cache-path"))
	viper.BindPFlag("download_path", flags.Lookup("download-path"))
	viper.BindPFlag("store.backend", flags.Lookup("store"))
	viper.BindPFlag("log_level", flags.Lookup("log-level"))
}

// initConfig reads the dotenv file, the config file and ANIDBKIT_* variables.
func initConfig() error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}
	return config.Setup(viper.GetViper(), cfgFile)
}

// runWithApp loads the configuration, builds the application and hands it to fn. The
// application is closed afterwards and metrics are printed when --stats is set.
func runWithApp(fn func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}

		log := logger.NewLoggerWithLevel(cfg.LogLevel)

		a, err := app.NewApp(log, cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		defer func() {
			if cerr := a.Close(); cerr != nil {
				log.Warn().Err(cerr).Msg("failed to close application")
			}
		}()

		if err := fn(cmd.Context(), cmd, args, a); err != nil {
			return err
		}

		if stats, _ := cmd.Flags().GetBool("stats"); stats {
			return printStats(cmd, a)
		}

		return nil
	}
}
