package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/artpar/coreplane/bootstrap"
	"github.com/spf13/cobra"
)

var suspendCmd = &cobra.Command{
	Use:   "suspend",
	Short: "Suspension state machine operations",
}

var suspendRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the suspension check and auto-resume once",
	Long: `Run one pass of the suspension check and the auto-resume sweep,
then print both reports as JSON. Safe to run while a server is up: the
store-level guards make overlapping runs idempotent.`,
	RunE: runSuspendOnce,
}

func init() {
	rootCmd.AddCommand(suspendCmd)
	suspendCmd.AddCommand(suspendRunCmd)
}

func runSuspendOnce(cmd *cobra.Command, args []string) error {
	app, err := bootstrap.New(bootstrap.Options{ConfigPath: cfgFile, Version: version})
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer app.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	check, err := app.Suspensions.RunCheck(ctx)
	if err != nil {
		return fmt.Errorf("suspension check: %w", err)
	}

	resume, err := app.Suspensions.RunAutoResume(ctx)
	if err != nil {
		return fmt.Errorf("auto-resume: %w", err)
	}

	out := map[string]any{
		"check":  check,
		"resume": resume,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
