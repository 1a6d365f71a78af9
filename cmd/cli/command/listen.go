package command

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flichub/cmd/cli/command/client"
	"flichub/internal/relay"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var listenFilter string

// listenCmd streams button events until interrupted
var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Stream button events",
	Long: `Connect to the relay and print every button event as it arrives.
The connection is re-established automatically if the relay goes away.

Press Ctrl+C to stop listening.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		opts := client.Options{
			AutoReconnect:  true,
			ConnectRetries: 3,
			OnEvent: func(ev relay.EventMessage) {
				if listenFilter != "" && ev.Button != listenFilter {
					return
				}
				if jsonOutput {
					printJSON(ev)
					return
				}
				fmt.Println(formatEvent(ev, time.Now()))
			},
			OnConnected: func() {
				color.Green("connected to %s", serverAddr)
			},
			OnDisconnected: func(err error) {
				color.Yellow("disconnected from %s, reconnecting...", serverAddr)
			},
		}

		c, err := dialRelay(ctx, opts)
		if err != nil {
			return err
		}
		defer c.Close()

		<-ctx.Done()
		fmt.Println()
		return nil
	},
}

func init() {
	listenCmd.Flags().StringVar(&listenFilter, "button", "", "only show events for this bdaddr")
	rootCmd.AddCommand(listenCmd)
}
