package command

// root.go defines the root command for the flichub CLI.
// set up the global flags here.

import (
	"context"
	"fmt"
	"os"
	"time"

	"flichub/cmd/cli/command/client"

	"github.com/spf13/cobra"
)

const defaultServer = "localhost:8124"

var (
	serverAddr string        // Global flag for relay address
	timeout    time.Duration // per-command reply timeout
	jsonOutput bool          // print raw JSON instead of formatted output
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "flichub",
	Short: "flichub - Flic hub relay command line client",
	Long: `flichub talks to a flichub relay over its TCP line protocol. Use it to:
- List buttons and their battery levels
- Inspect the hub's network state
- Stream button events as they happen

Use "flichub command --help" to see all available commands.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err) // Print error to standard error
		os.Exit(1)
	}
}

func init() {
	defaultAddr := defaultServer
	if v := os.Getenv("FLICHUB_SERVER"); v != "" {
		defaultAddr = v
	}

	// Global persistent flags = available to all subcommands
	rootCmd.PersistentFlags().StringVarP(&serverAddr, "server", "s", defaultAddr, "relay address (host:port)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", client.DefaultRequestTimeout, "reply timeout")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print raw JSON")
}

// dialRelay connects a one-shot client for query commands.
func dialRelay(ctx context.Context, opts client.Options) (*client.RelayClient, error) {
	opts.RequestTimeout = timeout
	c := client.NewRelayClient(serverAddr, opts)
	if err := c.Connect(ctx); err != nil {
		return nil, fmt.Errorf("cannot reach relay at %s: %w", serverAddr, err)
	}
	return c, nil
}
