package command

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"flichub/internal/discovery"

	"github.com/spf13/cobra"
)

var browseFor time.Duration

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find relays on the local network via mDNS",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), browseFor)
		defer cancel()

		services, err := discovery.Browse(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(services)
		}
		if len(services) == 0 {
			fmt.Println("no relays found")
			return nil
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "INSTANCE\tADDRESS\tVERSION\tALL ADDRESSES")
		for _, s := range services {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Instance, s.Addr(), orDash(s.Version), strings.Join(s.Addresses, ","))
		}
		return tw.Flush()
	},
}

func init() {
	discoverCmd.Flags().DurationVar(&browseFor, "wait", 3*time.Second, "how long to browse")
	rootCmd.AddCommand(discoverCmd)
}
