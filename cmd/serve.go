package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/navidrome/renderd/internal/orchestrator"
	"github.com/navidrome/renderd/log"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the renderer: SSDP discovery, SOAP control, eventing and the player driver",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		r, err := orchestrator.New()
		if err != nil {
			return err
		}
		log.Info(ctx, "starting renderd")
		err = r.Run(ctx)
		r.Shutdown()
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	}
}
