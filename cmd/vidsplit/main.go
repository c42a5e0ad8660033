package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/bdougie/vidsplit/internal/config"
	"github.com/bdougie/vidsplit/internal/encoder"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.LookupEnv).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app carries what every subcommand needs once flags are parsed
type app struct {
	cfg    config.Config
	logger *slog.Logger

	// runner replaces the ffmpeg subprocess when set
	runner encoder.Runner
}

func newRootCmd(lookupEnv func(string) (string, bool)) *cobra.Command {
	return newRootCmdWithApp(&app{}, lookupEnv)
}

func newRootCmdWithApp(a *app, lookupEnv func(string) (string, bool)) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "vidsplit",
		Short:         "Split frame batches into parts and encode each part",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path, lookupEnv)
			if err != nil {
				return err
			}
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				cfg.LogLevel = "debug"
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			level, _ := cfg.Level()

			// Configure logger
			a.cfg = cfg
			a.logger = slog.New(
				tint.NewHandler(cmd.ErrOrStderr(), &tint.Options{
					Level:      level,
					TimeFormat: "15:04:05",
				}),
			)
			return nil
		},
	}

	cmd.PersistentFlags().String("config", "", "path to a YAML config file (default ./"+config.DefaultFile+" if present)")
	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.AddCommand(
		newSplitCmd(a),
		newFormatsCmd(a),
		newSchemaCmd(a),
		newRunsCmd(a),
	)
	return cmd
}
