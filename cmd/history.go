package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/navidrome/renderd/conf"
	"github.com/navidrome/renderd/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently recorded transport/volume transitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := history.Open(conf.Server.DataFolder, conf.Server.History.Retain)
		if err != nil {
			return err
		}
		defer store.Close()

		events, err := store.List(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		for _, e := range events {
			fmt.Printf("%s  %-18s %-10s %-24s %s\n", e.CreatedAt.Format("2006-01-02 15:04:05"), e.Service, e.Kind, e.Name, e.Detail)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "maximum number of events to show")
	rootCmd.AddCommand(historyCmd)
}
