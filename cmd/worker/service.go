package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/flemzord/cineplexx-rss/pkg/app"
)

// program runs the loop under a service manager.
type program struct {
	cfgPath string
	cancel  context.CancelFunc
	done    chan struct{}
}

func (p *program) Start(_ service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		a, err := app.New(ctx, app.Params{ConfigPath: p.cfgPath, Version: version})
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		err = a.RunLoop(ctx)
		_ = a.Close(context.Background())
		if err != nil && ctx.Err() == nil {
			// The loop only returns on failure; the service exits with it.
			reportError(os.Stderr, err, nil)
			os.Exit(app.ExitCode(err, nil))
		}
	}()
	return nil
}

func (p *program) Stop(_ service.Service) error {
	if p.cancel != nil {
		p.cancel()
		<-p.done
	}
	return nil
}

func serviceCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "service <install|uninstall|start|stop|restart|run>",
		Short:     "Manage the worker as a system service",
		Args:      cobra.ExactArgs(1),
		ValidArgs: append(service.ControlAction[:], "run"),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			if cfgPath != "" {
				abs, err := filepath.Abs(cfgPath)
				if err != nil {
					return err
				}
				cfgPath = abs
			}

			svcArgs := []string{"service", "run"}
			if cfgPath != "" {
				svcArgs = append(svcArgs, "--config", cfgPath)
			}
			svc, err := service.New(&program{cfgPath: cfgPath}, &service.Config{
				Name:        "cineplexx-rss",
				DisplayName: "Cineplexx RSS worker",
				Description: "Builds Cineplexx repertoire and Telegram RSS feeds on a schedule.",
				Arguments:   svcArgs,
			})
			if err != nil {
				return fmt.Errorf("service: %w", err)
			}

			if args[0] == "run" {
				return svc.Run()
			}
			if err := service.Control(svc, args[0]); err != nil {
				return fmt.Errorf("service %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", args[0])
			return nil
		},
	}
}
