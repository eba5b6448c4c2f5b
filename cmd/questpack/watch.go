package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/questpack/internal/lint"
	"github.com/MrWong99/questpack/internal/observe"
	"github.com/MrWong99/questpack/internal/suggest"
	"github.com/MrWong99/questpack/internal/watch"
)

func (c *cli) watchCmd() *cobra.Command {
	var (
		interval time.Duration
		listen   string
	)
	cmd := &cobra.Command{
		Use:   "watch PATH",
		Short: "Reload and lint a package whenever it changes",
		Long: `watch polls a package archive or directory and reloads it when its content
changes, logging the lint findings of every reload. A reload that fails keeps
the last good package.

With --listen (or watch.listen_addr in the config file) an HTTP server serves
/healthz, /readyz, /metrics and a JSON summary of the package at /package.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				interval = c.cfg.Watch.Interval
			}
			if listen == "" {
				listen = c.cfg.Watch.ListenAddr
			}

			provider, err := observe.InitProvider(cmd.Context(), observe.ProviderConfig{
				ServiceName: c.cfg.Telemetry.ServiceName,
			})
			if err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := provider.Shutdown(ctx); err != nil {
					c.log.Warn("telemetry shutdown failed", "err", err)
				}
			}()
			metrics := observe.DefaultMetrics()

			w := watch.New(args[0],
				watch.WithInterval(interval),
				watch.WithLogger(c.log),
				watch.WithMetrics(metrics),
				watch.WithArchiveOptions(c.archiveOptions()...),
				watch.WithLinter(lint.New(
					lint.WithLogger(c.log),
					lint.WithMetrics(metrics),
					lint.WithMatcher(suggest.New(
						suggest.WithPhoneticThreshold(c.cfg.Lint.PhoneticThreshold),
						suggest.WithFuzzyThreshold(c.cfg.Lint.FuzzyThreshold),
					)),
				)),
				watch.OnReload(func(r watch.Result) {
					for _, f := range r.Findings {
						c.log.Info("lint finding", "severity", f.Severity.String(), "code", f.Code,
							"location", f.Location, "message", f.Message, "suggestion", f.Suggestion)
					}
				}),
			)

			c.log.Info("watching package", "path", args[0], "interval", interval, "listen_addr", listen)

			eg, ctx := errgroup.WithContext(cmd.Context())
			eg.Go(func() error { return w.Run(ctx) })
			if listen != "" {
				h := watch.Handler(w, provider.MetricsHandler(), metrics)
				eg.Go(func() error { return watch.Serve(ctx, listen, h, c.log, nil) })
			}
			return eg.Wait()
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "polling interval (default from config)")
	cmd.Flags().StringVar(&listen, "listen", "", "address of the health and metrics listener, e.g. :9090 (default from config)")
	return cmd
}
