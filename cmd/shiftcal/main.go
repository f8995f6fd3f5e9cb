package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"shiftcal/internal/config"
	"shiftcal/internal/ics"
	appLog "shiftcal/internal/log"
	"shiftcal/internal/pattern"
	"shiftcal/internal/store"
	"shiftcal/internal/web"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "shiftcal",
		Short:        "Rotating shift calendar: generate, export and import shifts.",
		Long:         `shiftcal resolves cyclic shift patterns into calendar months, aggregates work statistics, and exchanges shift records as iCalendar files.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "/etc/shiftcal/config.yaml", "Path to config file")

	root.AddCommand(
		newServeCmd(opts),
		newMonthCmd(opts),
		newNextCmd(opts),
		newExportCmd(opts),
		newImportCmd(opts),
	)
	return root
}

// app is the wired set of components a command works with.
type app struct {
	cfg  *config.Config
	calc *pattern.Calculator
}

// loadApp reads the config file, applies environment overrides, configures
// logging and builds the calculator. The store is opened on demand.
func loadApp(opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", opts.configPath, err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("apply environment: %w", err)
	}
	appLog.Setup(cfg.Log.Format, appLog.ParseLevel(cfg.Log.Level), nil)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	repo, err := cfg.Repository()
	if err != nil {
		return nil, err
	}

	calc := pattern.NewCalculator(repo,
		pattern.WithResolver(pattern.NewCachedResolver(0)),
		pattern.WithLocation(loc),
	)
	return &app{cfg: cfg, calc: calc}, nil
}

func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	st, err := store.Open(ctx, a.cfg.Store.Driver, a.cfg.Store.DSN, a.cfg.QueryTimeout())
	if err != nil {
		return nil, fmt.Errorf("open store (%s): %w", a.cfg.Store.Driver, err)
	}
	return st, nil
}

func (a *app) importer(st ics.ShiftStore) *ics.Importer {
	fetcher := ics.NewFetcher(nil, a.cfg.Import.CacheDir)
	return ics.NewImporter(st, fetcher, ics.ImporterOptions{
		Location:     a.calc.Location(),
		HorizonDays:  a.cfg.Import.HorizonDays,
		BackfillDays: a.cfg.Import.BackfillDays,
	})
}

func (a *app) exportOptions() ics.ExportOptions {
	return ics.ExportOptions{
		CalendarName: a.cfg.CalendarName,
		UIDDomain:    a.cfg.UIDDomain,
		Location:     a.calc.Location(),
	}
}

// responseCache prefers Redis when an address is configured.
func (a *app) responseCache() (web.ResponseCache, func() error) {
	if a.cfg.Cache.RedisAddr == "" {
		return web.NewMemoryCache(a.cfg.CacheTTL()), func() error { return nil }
	}
	client := redis.NewClient(&redis.Options{
		Addr:        a.cfg.Cache.RedisAddr,
		DialTimeout: 5 * time.Second,
	})
	appLog.Info("using redis response cache", "addr", a.cfg.Cache.RedisAddr)
	return web.NewRedisCache(client, a.cfg.CacheTTL()), client.Close
}
