package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	appLog "shiftcal/internal/log"
	"shiftcal/internal/subscribe"
	"shiftcal/internal/web"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		listen  string
		syncNow bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the subscription scheduler.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(root)
			if err != nil {
				return err
			}
			// CLI --listen overrides config file listen if provided.
			if listen != "" {
				a.cfg.Listen = listen
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, syncNow)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	cmd.Flags().BoolVar(&syncNow, "sync-now", false, "Import every subscription once at startup")
	return cmd
}

func (a *app) serve(ctx context.Context, syncNow bool) error {
	appLog.Info("shiftcal starting",
		"version", version,
		"listen", a.cfg.Listen,
		"timezone", a.cfg.Timezone,
		"store", a.cfg.Store.Driver,
		"teams", len(a.cfg.Teams),
		"subscriptions", len(a.cfg.Subscriptions),
	)

	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	importer := a.importer(st)

	sched, err := subscribe.New(importer, a.cfg.Subscriptions)
	if err != nil {
		return err
	}
	if syncNow {
		sched.RunOnce(ctx)
	}
	sched.Start(ctx)
	defer func() { <-sched.Stop().Done() }()

	cache, closeCache := a.responseCache()
	defer closeCache()

	srv := &http.Server{
		Addr: a.cfg.Listen,
		Handler: web.NewServer(web.Options{
			Calculator: a.calc,
			Records:    st,
			Importer:   importer,
			Cache:      cache,
			Export:     a.exportOptions(),
			BasicAuth:  a.cfg.BasicAuth,
		}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(appLog.Logger().Handler(), slog.LevelError),
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+a.cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("HTTP server shutdown failed", err)
		return err
	}
	appLog.Info("shiftcal exiting")
	return nil
}
