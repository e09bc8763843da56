package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"match-workers/internal/app"
	"match-workers/internal/common/config"
	"match-workers/internal/common/logger"
	"match-workers/internal/common/observability"
)

const name = "matchctl"

// Actual version can be specified in build command.
var version = "unknown"

var (
	cfgFile string

	rootCmd = &cobra.Command{
		Use:           name,
		Short:         "matchctl scores candidate/job pairs and inspects match records",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is configs/config.yaml)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().Bool("dry-run", false, "log alerts instead of sending them")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("dry-run", rootCmd.PersistentFlags().Lookup("dry-run"))

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s version: %s\n", name, version)
	},
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFromFile(cfgFile)
	}
	return config.Load()
}

func newLogger() logger.Logger {
	opts := logger.Options{Level: "info", Format: "console", Output: "stderr"}
	if viper.GetBool("debug") {
		opts.Level = "debug"
	}
	if viper.GetBool("json") {
		opts.Format = "json"
	}
	return logger.NewStructured(opts)
}

// session is one command's view of the assembled pipeline.
type session struct {
	ctx    context.Context
	cancel context.CancelFunc
	app    *app.App
	obs    *observability.Observability
	log    logger.Logger
}

func openSession(opts app.Options) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := newLogger()
	obs := observability.New(name, observability.WithLogger(log))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	opts.DryRun = opts.DryRun || viper.GetBool("dry-run")
	if opts.Retries == 0 {
		opts.Retries = 1
	}

	a, err := app.Build(ctx, cfg, log, obs, opts)
	if err != nil {
		cancel()
		obs.Shutdown()
		return nil, err
	}
	return &session{ctx: ctx, cancel: cancel, app: a, obs: obs, log: log}, nil
}

func (s *session) Close() {
	s.app.Close()
	s.obs.Shutdown()
	s.cancel()
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
