package main

import (
	"context"
	"fmt"
	"time"

	"github.com/artpar/coreplane/bootstrap"
	"github.com/spf13/cobra"
)

var (
	grantAdminID  string
	grantReason   string
	grantMethod   string
	grantIssuedBy string
	grantTTL      time.Duration
)

var breakglassCmd = &cobra.Command{
	Use:   "breakglass",
	Short: "Manage break-glass override sessions",
}

var breakglassGrantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Grant a break-glass session and print the token",
	Long: `Grant a break-glass override session. The raw token is printed
exactly once and never stored in clear; only its hash is persisted.

Examples:
  coreplane breakglass grant --admin alice --reason "INC-142 customer locked out"
  coreplane breakglass grant --admin bob --reason "billing dispute" --ttl 30m`,
	RunE: runBreakglassGrant,
}

var breakglassCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove expired break-glass sessions",
	RunE:  runBreakglassCleanup,
}

func init() {
	rootCmd.AddCommand(breakglassCmd)
	breakglassCmd.AddCommand(breakglassGrantCmd)
	breakglassCmd.AddCommand(breakglassCleanupCmd)

	breakglassGrantCmd.Flags().StringVar(&grantAdminID, "admin", "", "admin identifier (required)")
	breakglassGrantCmd.Flags().StringVar(&grantReason, "reason", "", "reason for the override (required)")
	breakglassGrantCmd.Flags().StringVar(&grantMethod, "method", "cli", "access method")
	breakglassGrantCmd.Flags().StringVar(&grantIssuedBy, "issued-by", "cli", "who approved the grant")
	breakglassGrantCmd.Flags().DurationVar(&grantTTL, "ttl", 0, "session lifetime (default from config)")
	breakglassGrantCmd.MarkFlagRequired("admin")
	breakglassGrantCmd.MarkFlagRequired("reason")
}

func runBreakglassGrant(cmd *cobra.Command, args []string) error {
	app, err := bootstrap.New(bootstrap.Options{ConfigPath: cfgFile, Version: version})
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer app.Shutdown()

	ttl := grantTTL
	if ttl == 0 {
		ttl = app.Config.BreakGlass.SessionTTL
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	raw, sess, err := app.BreakGlass.Grant(ctx, grantAdminID, grantReason, grantMethod, grantIssuedBy, ttl)
	if err != nil {
		return fmt.Errorf("grant session: %w", err)
	}

	fmt.Printf("Session %s granted to %s, expires %s\n", sess.ID, sess.AdminID, sess.ExpiresAt.Format(time.RFC3339))
	fmt.Println()
	fmt.Println("Token (shown once, store it now):")
	fmt.Println("  " + raw)
	return nil
}

func runBreakglassCleanup(cmd *cobra.Command, args []string) error {
	app, err := bootstrap.New(bootstrap.Options{ConfigPath: cfgFile, Version: version})
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer app.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	n, err := app.BreakGlass.CleanupExpired(ctx)
	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}

	fmt.Printf("Removed %d expired sessions\n", n)
	return nil
}
