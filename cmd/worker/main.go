// Package main is the entry point for the cineplexx-rss worker.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/flemzord/cineplexx-rss/internal/worker"
	"github.com/flemzord/cineplexx-rss/pkg/app"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, intr, stop := app.WithInterrupt(context.Background())
	err := rootCmd().ExecuteContext(ctx)
	stop()

	reportError(os.Stderr, err, intr)
	os.Exit(app.ExitCode(err, intr))
}

// reportError prints err unless an interrupt caused it or the loop already
// logged it as a failed run.
func reportError(w io.Writer, err error, intr *app.Interrupt) {
	if err == nil || intr.Signal() != nil {
		return
	}
	var runErr *worker.RunError
	if errors.As(err, &runErr) {
		return
	}
	fmt.Fprintln(w, "Error:", err)
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "worker",
		Short:         "Build Cineplexx repertoire and Telegram RSS feeds on a schedule",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runLoop,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	root.AddCommand(versionCmd(), loopCmd(), runCmd(), serveCmd(), serviceCmd(), configCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cineplexx-rss %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func loopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "loop",
		Short: "Run the feed build every INTERVAL_MINUTES until it fails",
		Long: `Run the feed build, sleep INTERVAL_MINUTES and repeat until a run fails.

INTERVAL_MINUTES defaults to 360 and must be a whole number of at least 1.
Zero, negative or non-numeric values stop the worker at startup.`,
		RunE: runLoop,
	}
}

func runLoop(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		return a.RunLoop(ctx)
	})
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Build the feeds once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				return a.RunOnce(ctx)
			})
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the published feeds, health, status and metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				return a.Serve(ctx)
			})
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate configuration and print the effective values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, err := app.LoadConfig(cfgPath, nil, nil)
			if err != nil {
				return err
			}
			out, err := app.RenderConfig(cfg)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "Configuration OK")
			_, err = w.Write(out)
			return err
		},
	})
	return cmd
}

// withApp builds the App for cmd, runs fn and releases the App.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	ctx := cmd.Context()

	a, err := app.New(ctx, app.Params{
		ConfigPath: cfgPath,
		Version:    version,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(context.Background()); cerr != nil {
			a.Logger.Warn("shutdown incomplete", "error", cerr)
		}
	}()

	return fn(ctx, a)
}
