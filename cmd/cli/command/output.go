package command

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"flichub/internal/hub"
	"flichub/internal/relay"

	"github.com/fatih/color"
)

func printButtons(w io.Writer, buttons []hub.Button) {
	if len(buttons) == 0 {
		fmt.Fprintln(w, "no buttons")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BDADDR\tNAME\tCOLOR\tSTATE\tBATTERY")
	for _, b := range buttons {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", b.BdAddr, orDash(b.Name), orDash(b.Color), buttonState(b), batteryLabel(b.BatteryStatus))
	}
	tw.Flush()
}

func buttonState(b hub.Button) string {
	switch {
	case b.Ready:
		return color.GreenString("ready")
	case b.Connected:
		return color.YellowString("connected")
	default:
		return color.RedString("offline")
	}
}

func batteryLabel(level int) string {
	label := fmt.Sprintf("%d%%", level)
	switch {
	case level <= 15:
		return color.RedString(label)
	case level <= 40:
		return color.YellowString(label)
	default:
		return color.GreenString(label)
	}
}

// formatEvent renders one event line for listen.
func formatEvent(ev relay.EventMessage, at time.Time) string {
	ts := at.Format("15:04:05.000")
	if ev.Event != relay.EventButton {
		return fmt.Sprintf("%s  %s  %s", ts, ev.Button, color.MagentaString(ev.Event))
	}

	var action string
	switch ev.Action {
	case relay.ActionSingle, relay.ActionDouble, relay.ActionHold:
		action = color.New(color.FgCyan, color.Bold).Sprint(ev.Action)
	case relay.ActionIdle:
		action = color.HiBlackString(ev.Action)
	default:
		action = ev.Action
	}
	return fmt.Sprintf("%s  %s  %s", ts, ev.Button, action)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
