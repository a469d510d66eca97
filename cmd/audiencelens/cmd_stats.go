package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print catalog and configuration statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		svc := buildService(cfg)

		stats, err := svc.Stats()
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}
