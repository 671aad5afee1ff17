package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hamrah",
		Short: "Session and route-authorization frontend for the hamrah app",
		Long: `Hamrah serves the personal-management frontend's session layer.

Every navigation is intercepted before render: a cheap cookie rule
for protected pages, a server-verified role check for admin pages.
Privileged UI re-checks reactively against the session store after
mount, and state transitions propagate to all open tabs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
