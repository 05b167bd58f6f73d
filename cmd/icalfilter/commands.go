package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"icalfilter/internal/atomicfile"
	"icalfilter/internal/config"
	"icalfilter/internal/feed"
	"icalfilter/internal/ics"
	appLog "icalfilter/internal/log"
	"icalfilter/internal/metrics"
	"icalfilter/internal/watch"
	"icalfilter/internal/web"
)

// rootFlags holds the persistent flag values shared by all subcommands.
type rootFlags struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	var rf rootFlags

	root := &cobra.Command{
		Use:           "icalfilter",
		Short:         "Remove unwanted events from an iCalendar feed",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&rf.configPath, "config", "", "Path to a YAML config file")
	root.PersistentFlags().String(config.FlagLogLevel, "", "Log level: debug, info, warn or error")

	root.AddCommand(
		newRunCmd(&rf),
		newServeCmd(&rf),
		newWatchCmd(&rf),
		newConfigCmd(),
	)
	return root
}

// addFilterFlags registers the flags every pipeline command understands.
func addFilterFlags(fs *pflag.FlagSet) {
	fs.StringArrayP(config.FlagBlacklist, "b", nil, "Blacklist rule FIELD=PATTERN (repeatable)")
	fs.BoolP(config.FlagDedup, "d", false, "Drop events with the same start, end and summary")
	fs.String(config.FlagFormat, "", "Output format: ics or json")
	fs.String(config.FlagTimeout, "", "Source fetch timeout, e.g. 15s")
}

// loader builds the config loader for cmd. The first positional argument,
// if any, is the source.
func loader(cmd *cobra.Command, rf *rootFlags, args []string) config.Loader {
	l := config.Loader{Path: rf.configPath, Flags: cmd.Flags()}
	if len(args) > 0 {
		l.Source = args[0]
	}
	return l
}

// resolve loads the configuration once and applies its log level.
func resolve(l config.Loader) (*config.Config, error) {
	cfg, err := l.Load()
	if err != nil {
		return nil, err
	}
	level, err := appLog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	appLog.SetLevel(level)

	appLog.Debug("effective config",
		"source", ics.RedactURL(cfg.Source),
		"rules", len(cfg.Blacklist),
		"dedup", cfg.Dedup,
		"format", cfg.Format,
		"listen", cfg.Listen,
		"refresh", cfg.Refresh,
	)
	return cfg, nil
}

func newFetcher(cfg *config.Config) feed.Fetcher {
	timeout, _ := cfg.TimeoutDuration()
	return ics.NewFetcher(timeout)
}

func newRunCmd(rf *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [SOURCE]",
		Short: "Fetch, filter and print the calendar once",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolve(loader(cmd, rf, args))
			if err != nil {
				return err
			}

			res, err := feed.Run(cmd.Context(), newFetcher(cfg), cfg)
			if err != nil {
				return err
			}

			if cfg.Output != "" {
				return atomicfile.Write(cfg.Output, res.Body, 0o644)
			}
			_, err = cmd.OutOrStdout().Write(res.Body)
			return err
		},
	}
	addFilterFlags(cmd.Flags())
	cmd.Flags().StringP(config.FlagOutput, "o", "", "Write to this file instead of stdout")
	return cmd
}

func newServeCmd(rf *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [SOURCE]",
		Short: "Serve the filtered calendar over HTTP",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l := loader(cmd, rf, args)
			cfg, err := resolve(l)
			if err != nil {
				return err
			}

			s := web.NewServer(cfg, l, web.Options{Fetcher: newFetcher, Registry: newRegistry()})
			return web.StartServer(cmd.Context(), s)
		},
	}
	addFilterFlags(cmd.Flags())
	cmd.Flags().String(config.FlagListen, "", "HTTP listen address (default 0.0.0.0:3000)")
	return cmd
}

func newWatchCmd(rf *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [SOURCE]",
		Short: "Keep a filtered copy of the calendar on disk",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l := loader(cmd, rf, args)
			cfg, err := resolve(l)
			if err != nil {
				return err
			}
			if cfg.Output == "" {
				return fmt.Errorf("watch needs --%s", config.FlagOutput)
			}

			var m *metrics.Metrics
			if cfg.MetricsListen != "" {
				reg := newRegistry()
				m = metrics.New(reg)
				go func() {
					if err := web.StartMetricsServer(cmd.Context(), cfg.MetricsListen, reg); err != nil {
						appLog.Error("metrics server stopped", err, "listen", cfg.MetricsListen)
					}
				}()
			}

			return watch.New(l, newFetcher, m).Run(cmd.Context(), cfg.Refresh)
		},
	}
	addFilterFlags(cmd.Flags())
	cmd.Flags().StringP(config.FlagOutput, "o", "", "File to keep up to date")
	cmd.Flags().String(config.FlagRefresh, "", "Cron schedule (default \"*/15 * * * *\")")
	cmd.Flags().String(config.FlagMetricsListen, "", "Serve /metrics on this address while watching")
	return cmd
}

// newRegistry returns a registry with the Go runtime and process collectors.
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init PATH",
		Short: "Write a default configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err == nil {
				return fmt.Errorf("%s already exists", args[0])
			}
			if err := config.DefaultConfig().Save(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", args[0])
			return nil
		},
	})
	return cmd
}
