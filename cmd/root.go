// Package cmd wires renderd's cobra command tree: serve (the long-running
// renderer), history (query the local event log), service (OS service
// install/start/stop), and version.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/navidrome/renderd/conf"
	"github.com/navidrome/renderd/log"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "renderd",
	Short: "A UPnP/DLNA media renderer backed by an external player process",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := conf.Load(cfgFile); err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(context.Background(), "renderd exited with an error", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./renderd.toml, $HOME/.config/renderd, /etc/renderd)")
}
