package main

import (
	"fmt"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/telegate-io/telegate/pkg/app"
)

// serviceCmd manages telegate as a system service (systemd, launchd,
// Windows SCM) via kardianos/service.
func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service [install|uninstall|start|stop|restart|run]",
		Short: "Manage telegate as a system service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfgPath = app.ResolveConfigPath(cfgPath)

			svc, err := newSystemService(cfgPath)
			if err != nil {
				return err
			}

			action := args[0]
			if action == "run" {
				// Invoked by the service manager itself.
				return svc.Run()
			}
			if err := service.Control(svc, action); err != nil {
				return fmt.Errorf("service %s: %w", action, err)
			}
			fmt.Printf("Service %s: done\n", action)
			return nil
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}

func newSystemService(cfgPath string) (service.Service, error) {
	cfg := &service.Config{
		Name:        "telegate",
		DisplayName: "telegate",
		Description: "Telegram identity gateway",
		Arguments:   []string{"service", "run", "--config", cfgPath},
	}
	return service.New(&program{configPath: cfgPath}, cfg)
}

// program adapts app.Run to the service lifecycle. Start must not
// block, so the process runs in a goroutine; Stop lets the signal
// handling inside Run finish the shutdown.
type program struct {
	configPath string
	errCh      chan error
}

// Start implements service.Interface.
func (p *program) Start(service.Service) error {
	p.errCh = make(chan error, 1)
	go func() {
		p.errCh <- app.Run(app.RunParams{
			ConfigPath: p.configPath,
			Version:    version,
			Commit:     commit,
			Date:       date,
		})
	}()
	return nil
}

// Stop implements service.Interface.
func (p *program) Stop(service.Service) error {
	// app.Run exits on SIGTERM, which the service manager sends right
	// after calling Stop. Nothing extra to do here.
	return nil
}
