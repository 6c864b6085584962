package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "coreplane",
	Short: "Multi-tenant platform control plane",
	Long: `Coreplane is the control plane for a multi-tenant hosting platform.

It serves cached project configuration snapshots to the data-plane
services, enforces usage quotas, drives the project suspension state
machine, and authorizes break-glass overrides during incidents.

Quick start:
  coreplane serve       # Start the control plane server

Operations:
  coreplane suspend     # Run the suspension check once
  coreplane breakglass  # Manage break-glass override sessions
  coreplane validate    # Validate configuration`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "coreplane.yaml", "config file path")
}
