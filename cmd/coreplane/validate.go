package main

import (
	"fmt"

	"github.com/artpar/coreplane/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("configuration invalid: %w", err)
		}

		fmt.Println("Configuration valid")
		fmt.Printf("  Listen:         %s\n", cfg.Server.Addr())
		fmt.Printf("  Database:       %s\n", cfg.Database.DSN)
		fmt.Printf("  Snapshot TTL:   %s\n", cfg.Snapshot.TTL)
		fmt.Printf("  Check interval: %s\n", cfg.Suspension.CheckInterval)
		fmt.Printf("  Session TTL:    %s\n", cfg.BreakGlass.SessionTTL)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
