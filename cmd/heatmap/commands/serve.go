package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/heatmap/pkg/observability"
	"github.com/Sumatoshi-tech/heatmap/pkg/server"
)

// errEmptyCatalog fails the readiness check when no project has data.
var errEmptyCatalog = errors.New("catalog is empty")

// meterName is the instrumentation scope of the Prometheus meter.
const meterName = "heatmap"

// NewServeCommand creates the HTTP server command.
func NewServeCommand(global *GlobalOptions) *cobra.Command {
	var (
		addr      string
		accessLog bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve calendars over HTTP",
		Long: `Serve calendars over HTTP.

Endpoints:
  GET /api/projects                         project list (?recent, ?support)
  GET /api/projects/{key}/calendar          calendar snapshot (?mode, ?overlay)
  GET /api/projects/{key}/days/{date}       day detail (?mode)
  GET /api/projects/{key}/heatmap.html      interactive page (?mode, ?overlay)
  GET /healthz, /readyz, /metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			sess, err := global.openSession(ctx, observability.ModeServe, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			defer func() {
				closeErr := sess.Close(ctx)
				if closeErr != nil {
					sess.logger().Warn("shutdown failed", "error", closeErr)
				}
			}()

			meterProvider, metricsHandler, err := observability.NewPrometheusProvider()
			if err != nil {
				return err
			}

			defer func() {
				_ = meterProvider.Shutdown(context.WithoutCancel(ctx))
			}()

			catalog := sess.repo.Catalog()

			opts := server.Options{
				DefaultMode:     sess.cfg.DefaultMode(),
				ShowTemperature: sess.cfg.Calendar.ShowTemperature,
				CacheEntries:    sess.cfg.Calendar.CacheEntries,
				Tracer:          sess.providers.Tracer,
				Meter:           meterProvider.Meter(meterName),
				Logger:          sess.logger(),
				MetricsHandler:  metricsHandler,
				ReadyChecks: map[string]observability.ReadyCheck{
					"catalog": func(context.Context) error {
						if catalog.Len() == 0 {
							return errEmptyCatalog
						}

						return nil
					},
				},
			}

			if accessLog {
				opts.AccessLog = cmd.ErrOrStderr()
			}

			srv, err := server.New(sess.repo, opts)
			if err != nil {
				return fmt.Errorf("create server: %w", err)
			}

			if addr == "" {
				addr = sess.cfg.Server.Addr()
			}

			sess.logger().InfoContext(ctx, "serving", "addr", addr, "projects", catalog.Len())

			return srv.ListenAndServe(ctx, addr, server.Timeouts{
				Read:  sess.cfg.Server.ReadTimeout,
				Write: sess.cfg.Server.WriteTimeout,
				Idle:  sess.cfg.Server.IdleTimeout,
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: server.host:server.port)")
	cmd.Flags().BoolVar(&accessLog, "access-log", false, "Write combined access logs to stderr")

	return cmd
}
