package cmd

import (
	"context"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/navidrome/renderd/internal/orchestrator"
	"github.com/navidrome/renderd/log"
)

// program adapts orchestrator.Renderer to kardianos/service's Start/Stop
// contract, so renderd can install itself as a systemd unit, a Windows
// service, or a launchd daemon and run at startup without a terminal
// attached.
type program struct {
	cancel context.CancelFunc
	done   chan error
}

func (p *program) Start(s service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)
	go func() {
		r, err := orchestrator.New()
		if err != nil {
			p.done <- err
			return
		}
		err = r.Run(ctx)
		r.Shutdown()
		p.done <- err
	}()
	return nil
}

func (p *program) Stop(s service.Service) error {
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
	return nil
}

func newService() (service.Service, error) {
	cfg := &service.Config{
		Name:        "renderd",
		DisplayName: "renderd media renderer",
		Description: "UPnP/DLNA media renderer backed by an external player process",
	}
	return service.New(&program{}, cfg)
}

var serviceCmd = &cobra.Command{
	Use:   "service [install|uninstall|start|stop|restart]",
	Short: "Manage renderd as an OS-level background service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		action := args[0]
		if action == "run" {
			return svc.Run()
		}
		if err := service.Control(svc, action); err != nil {
			return err
		}
		log.Info(cmd.Context(), "service command completed", "action", action)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serviceCmd)
}
