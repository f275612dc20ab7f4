package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cptspacemanspiff/power-notify/internal/collector"
	"github.com/cptspacemanspiff/power-notify/internal/config"
	"github.com/cptspacemanspiff/power-notify/internal/logind"
	"github.com/cptspacemanspiff/power-notify/internal/monitor"
	"github.com/cptspacemanspiff/power-notify/internal/notify"
)

// options holds the raw command-line values shared by all subcommands.
type options struct {
	configPath string
	verbose    bool
	logTopics  string
	dryRun     bool

	batteries    []string
	sysfsRoot    string
	threshold    int
	timeout      int
	interval     int
	icon         string
	pollOnResume bool
}

func main() {
	if err := NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	opts := &options{}
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "power-notify",
		Short: "Get notifications on critical battery levels",
		Long: `power-notify polls the batteries in /sys/class/power_supply and shows a
desktop notification when none of them is charging and their combined
charge is below the threshold.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd, opts)
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.configPath, "config", "", "config file path (default $XDG_CONFIG_HOME/power-notify/config.toml)")
	f.BoolVar(&opts.verbose, "verbose", false, "enable all verbose logging (equivalent to --log=all)")
	f.StringVar(&opts.logTopics, "log", "", "comma-separated log topics: battery,notify,resume (or 'all')")
	f.StringSliceVarP(&opts.batteries, "bats", "b", defaults.Battery.Names, "battery names in /sys/class/power_supply")
	f.StringVar(&opts.sysfsRoot, "sysfs-root", defaults.Battery.SysfsRoot, "sysfs mount point")
	f.IntVar(&opts.threshold, "threshold", defaults.Battery.ThresholdPct, "battery threshold in percent all batteries have to be under to trigger notifications on discharge")
	f.IntVar(&opts.timeout, "timeout", defaults.Notification.TimeoutSeconds, "notification timeout in seconds, 0 makes it stay until closed")
	f.IntVar(&opts.interval, "polling-interval", defaults.Polling.IntervalSeconds, "polling interval in seconds")
	f.StringVar(&opts.icon, "icon", defaults.Notification.Icon, "notification icon name")
	f.BoolVar(&opts.pollOnResume, "poll-on-resume", defaults.Polling.OnResume, "poll immediately when the system resumes from sleep")

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "log notifications instead of displaying them")

	cmd.AddCommand(
		NewStatusCommand(opts),
		NewConfigCommand(opts),
	)

	return cmd
}

// loadConfig builds the effective configuration: defaults, then the config
// file, then any flag the user set explicitly.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg := config.DefaultConfig()

	path := opts.configPath
	explicit := path != ""
	if !explicit {
		if p, err := config.DefaultPath(); err == nil {
			path = p
		}
	}
	if path != "" {
		loaded, err := config.Load(path)
		switch {
		case err == nil:
			cfg = loaded
		case explicit || !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	return applyFlags(cmd, opts, cfg)
}

// applyFlags overrides cfg with every flag set on the command line and
// validates the result.
func applyFlags(cmd *cobra.Command, opts *options, cfg *config.Config) (*config.Config, error) {
	flags := cmd.Flags()
	if flags.Changed("bats") {
		cfg.Battery.Names = opts.batteries
	}
	if flags.Changed("sysfs-root") {
		cfg.Battery.SysfsRoot = opts.sysfsRoot
	}
	if flags.Changed("threshold") {
		cfg.Battery.ThresholdPct = opts.threshold
	}
	if flags.Changed("timeout") {
		cfg.Notification.TimeoutSeconds = opts.timeout
	}
	if flags.Changed("polling-interval") {
		cfg.Polling.IntervalSeconds = opts.interval
	}
	if flags.Changed("icon") {
		cfg.Notification.Icon = opts.icon
	}
	if flags.Changed("poll-on-resume") {
		cfg.Polling.OnResume = opts.pollOnResume
	}

	return config.NormalizeAndValidate(cfg)
}

func newMonitor(cfg *config.Config, notifier notify.Notifier, logger *slog.Logger) *monitor.Monitor {
	return monitor.New(monitor.Settings{
		Batteries: cfg.Battery.Names,
		Threshold: cfg.Battery.ThresholdPct,
		Timeout:   cfg.NotificationTimeout(),
		Interval:  cfg.PollingInterval(),
		Icon:      cfg.Notification.Icon,
	}, collector.NewReader(cfg.Battery.SysfsRoot, nil), notifier, logger)
}

func runDaemon(cmd *cobra.Command, opts *options) error {
	logger, err := loggerFor(cmd.ErrOrStderr(), opts)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	var notifier notify.Notifier = notify.NewDBusNotifier(cfg.Notification.AppName)
	if opts.dryRun {
		notifier = notify.LogNotifier{Log: logger}
	}

	var wake <-chan struct{}
	if cfg.Polling.OnResume {
		resume, err := logind.NewResumeMonitor(logger.With("topic", topicResume))
		if err != nil {
			logger.Warn("resume monitor unavailable", "err", err)
		} else {
			wake = resume.Resumed()
			defer resume.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("power-notify started",
		"batteries", cfg.Battery.Names,
		"threshold_pct", cfg.Battery.ThresholdPct,
		"interval", cfg.PollingInterval(),
		"dry_run", opts.dryRun)

	err = newMonitor(cfg, notifier, logger).Run(ctx, wake)
	logger.Info("shutting down")
	return err
}
