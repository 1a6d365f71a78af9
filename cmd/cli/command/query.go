package command

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"flichub/cmd/cli/command/client"

	"github.com/spf13/cobra"
)

var buttonsCmd = &cobra.Command{
	Use:   "buttons",
	Short: "List buttons known to the hub",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dialRelay(cmd.Context(), client.Options{})
		if err != nil {
			return err
		}
		defer c.Close()

		buttons, err := c.Buttons(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(buttons)
		}
		printButtons(os.Stdout, buttons)
		return nil
	},
}

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Show the hub's network state",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dialRelay(cmd.Context(), client.Options{})
		if err != nil {
			return err
		}
		defer c.Close()

		info, err := c.Network(cmd.Context())
		if err != nil {
			return err
		}
		// network state is opaque, always print as JSON
		return printJSON(info)
	},
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Show relay server info",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dialRelay(cmd.Context(), client.Options{})
		if err != nil {
			return err
		}
		defer c.Close()

		info, err := c.Server(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(info)
		}
		fmt.Printf("relay %s (version %s)\n", serverAddr, info.Version)
		return nil
	},
}

var batteryCmd = &cobra.Command{
	Use:   "battery <bdaddr>",
	Short: "Show one button's battery level",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dialRelay(cmd.Context(), client.Options{})
		if err != nil {
			return err
		}
		defer c.Close()

		level, err := c.Battery(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(level)
		}
		fmt.Printf("%s  %s\n", args[0], batteryLabel(level))
		return nil
	},
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the relay answers",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dialRelay(cmd.Context(), client.Options{})
		if err != nil {
			return err
		}
		defer c.Close()

		rtt, err := c.Ping(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("pong from %s in %s\n", serverAddr, rtt.Round(100*time.Microsecond))
		return nil
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.AddCommand(buttonsCmd, networkCmd, serverCmd, batteryCmd, pingCmd)
}
