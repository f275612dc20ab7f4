package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cptspacemanspiff/power-notify/internal/collector"
	"github.com/cptspacemanspiff/power-notify/internal/monitor"
	"github.com/cptspacemanspiff/power-notify/internal/notify"
)

func NewStatusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Read the batteries once and print the result",
		Long: `Read every configured battery once, print the combined level and whether
the critical-battery condition holds. No notification is sent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			logger, err := loggerFor(cmd.ErrOrStderr(), opts)
			if err != nil {
				return err
			}
			m := newMonitor(cfg, notify.LogNotifier{Log: logger}, logger)
			printSnapshot(cmd.OutOrStdout(), m.Sample(), cfg.Battery.ThresholdPct)
			return nil
		},
	}
}

func printSnapshot(w io.Writer, snap monitor.Snapshot, threshold int) {
	fmt.Fprintln(w, bold("Batteries:"))
	for _, b := range snap.Batteries {
		if b.Err != nil {
			fmt.Fprintf(w, "  %s: %s\n", b.ID, color.RedString("%v", b.Err))
			continue
		}
		fmt.Fprintf(w, "  %s: %s\n", b.ID, statusText(b.Status))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, bold("Combined:"))
	if snap.LevelErr != nil {
		fmt.Fprintf(w, "  Level: %s\n", color.RedString("%v", snap.LevelErr))
	} else {
		fmt.Fprintf(w, "  Level: %s\n", bold("%d%%", snap.Combined.Percent))
	}
	fmt.Fprintf(w, "  Charging: %s\n", bool2Text(snap.Combined.AnyCharging))
	fmt.Fprintf(w, "  Threshold: %s\n", bold("%d%%", threshold))

	switch {
	case snap.LevelErr != nil:
		fmt.Fprintf(w, "  Critical: %s\n", color.YellowString("unknown"))
	case snap.Alert:
		fmt.Fprintf(w, "  Critical: %s\n", color.New(color.Bold, color.FgRed).Sprint("yes"))
	default:
		fmt.Fprintf(w, "  Critical: %s\n", color.GreenString("no"))
	}
}

func statusText(s collector.Status) string {
	switch s {
	case collector.Charging:
		return color.GreenString("charging")
	case collector.Discharging:
		return color.YellowString("discharging")
	default:
		return "unknown"
	}
}

func bool2Text(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("yes")
	}
	return color.New(color.Bold, color.FgRed).Sprint("no")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}
