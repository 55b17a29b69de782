// Package commands implements CLI command handlers for heatmap.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/heatmap/pkg/config"
	"github.com/Sumatoshi-tech/heatmap/pkg/datasource"
	"github.com/Sumatoshi-tech/heatmap/pkg/observability"
	"github.com/Sumatoshi-tech/heatmap/pkg/version"
)

// GlobalOptions holds the persistent flags shared by all commands.
type GlobalOptions struct {
	ConfigPath string
	DataDir    string
	DataURL    string
	Verbose    bool
	Quiet      bool
}

// NewRootCommand creates the heatmap command tree.
func NewRootCommand() *cobra.Command {
	global := &GlobalOptions{}

	rootCmd := &cobra.Command{
		Use:   "heatmap",
		Short: "Heatmap - calendar views of project commit activity",
		Long: `Heatmap aggregates per-day commit activity of projects into yearly
calendar heatmaps.

Commands:
  render    Render the calendar of a project (html, text, json, yaml)
  projects  List the projects with commit data
  serve     Serve calendars over HTTP
  mcp       Start an MCP server on stdio`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&global.ConfigPath, "config", "c", "", "Config file (default: heatmap.yaml in ., ./config, /etc/heatmap)")
	flags.StringVar(&global.DataDir, "data-dir", "", "Directory holding the data documents")
	flags.StringVar(&global.DataURL, "data-url", "", "Base URL of the data documents; wins over --data-dir")
	flags.BoolVarP(&global.Verbose, "verbose", "v", false, "verbose output")
	flags.BoolVarP(&global.Quiet, "quiet", "q", false, "suppress output")

	rootCmd.AddCommand(NewRenderCommand(global))
	rootCmd.AddCommand(NewProjectsCommand(global))
	rootCmd.AddCommand(NewServeCommand(global))
	rootCmd.AddCommand(NewMCPCommand(global))
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

// loadConfig reads the configuration and applies the global flag overrides.
func (g *GlobalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(g.ConfigPath)
	if err != nil {
		return nil, err
	}

	if g.DataDir != "" {
		cfg.Data.Dir = g.DataDir
		cfg.Data.BaseURL = ""
	}

	if g.DataURL != "" {
		cfg.Data.BaseURL = g.DataURL
	}

	switch {
	case g.Verbose:
		cfg.Logging.Level = "debug"
	case g.Quiet:
		cfg.Logging.Level = "error"
	}

	return cfg, nil
}

// session is the state shared by one command invocation.
type session struct {
	cfg       *config.Config
	providers observability.Providers
	repo      *datasource.Repository
	closers   []func() error
}

// openSession loads configuration, initializes observability for appMode
// and opens the data repository. logs receives the log output.
func (g *GlobalOptions) openSession(ctx context.Context, appMode observability.AppMode, logs io.Writer) (*session, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}

	obsCfg := cfg.Observability(appMode, version.Version)
	obsCfg.LogWriter = logs

	if appMode == observability.ModeMCP {
		obsCfg.LogJSON = true
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	sess := &session{cfg: cfg, providers: providers}

	fetcher, err := sess.newFetcher()
	if err != nil {
		return nil, errors.Join(err, sess.Close(ctx))
	}

	repo, err := datasource.Open(ctx, fetcher, cfg.CalendarSettings(), providers.Logger)
	if err != nil {
		return nil, errors.Join(err, sess.Close(ctx))
	}

	sess.repo = repo

	providers.Logger.DebugContext(ctx, "data loaded", "projects", repo.Catalog().Len())

	return sess, nil
}

// newFetcher builds the document fetcher described by the data and cache
// sections.
func (s *session) newFetcher() (datasource.Fetcher, error) {
	var fetcher datasource.Fetcher

	if s.cfg.Data.BaseURL != "" {
		httpFetcher, err := datasource.NewHTTPFetcher(s.cfg.Data.BaseURL, datasource.HTTPOptions{
			Timeout:   s.cfg.Data.Timeout,
			RateLimit: s.cfg.Data.RateLimit,
			Tracer:    s.providers.Tracer,
		})
		if err != nil {
			return nil, err
		}

		fetcher = httpFetcher
	} else {
		fetcher = datasource.NewDirFetcher(s.cfg.Data.Dir)
	}

	if !s.cfg.Cache.Enabled {
		return fetcher, nil
	}

	cached, err := datasource.OpenCache(s.cfg.Cache.Path, fetcher, datasource.CacheOptions{
		TTL:    s.cfg.Cache.TTL,
		Logger: s.providers.Logger,
	})
	if err != nil {
		return nil, err
	}

	s.closers = append(s.closers, cached.Close)

	return cached, nil
}

func (s *session) logger() *slog.Logger {
	return s.providers.Logger
}

// Close releases the cache and flushes telemetry.
func (s *session) Close(ctx context.Context) error {
	var errs []error

	for _, closer := range s.closers {
		errs = append(errs, closer())
	}

	errs = append(errs, s.providers.Shutdown(context.WithoutCancel(ctx)))

	return errors.Join(errs...)
}
