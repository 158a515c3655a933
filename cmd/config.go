package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/navidrome/renderd/conf"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration after merging defaults, file and environment",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := yaml.Marshal(conf.Server)
		if err != nil {
			return fmt.Errorf("rendering configuration: %w", err)
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
