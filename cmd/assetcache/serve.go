package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/meigma/assetcache"
	assethttp "github.com/meigma/assetcache/http"
)

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Install, activate, then serve the site cache-first",
		Long: `Installs the manifest, removes caches from other versions, then serves
requests for the origin. Cached assets are answered without touching the
origin; anything else is fetched live and not cached. The server shuts down
gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", a.cfg.Listen)
			if err != nil {
				return err
			}
			return a.serve(ctx, ln)
		},
	}
	cmd.Flags().StringVar(&a.cfg.Listen, "listen", a.cfg.Listen, "address to serve on")
	cmd.Flags().DurationVar(&a.cfg.ShutdownTimeout, "shutdown-timeout", a.cfg.ShutdownTimeout, "grace period for in-flight requests on shutdown")
	return cmd
}

// serve runs the lifecycle through the event dispatcher and serves on ln
// until ctx is done.
func (a *app) serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()

	storage, err := a.openStorage()
	if err != nil {
		return err
	}
	defer storage.Close()

	m, err := a.newManager(storage)
	if err != nil {
		return err
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	events := make(chan *assetcache.Event)
	runDone := make(chan error, 1)
	go func() { runDone <- m.Run(runCtx, events) }()
	defer func() {
		cancelRun()
		<-runDone
	}()

	for _, ev := range []*assetcache.Event{assetcache.InstallEvent(), assetcache.ActivateEvent()} {
		select {
		case events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
		res := ev.Wait(ctx)
		if res.Err != nil {
			return res.Err
		}
		for _, name := range res.Removed {
			a.logger.Info("removed old cache", slog.String("cache", name))
		}
	}

	origin, err := a.cfg.OriginURL()
	if err != nil {
		return err
	}
	handler, err := assethttp.NewHandler(m, origin, assethttp.WithLogger(a.logger))
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()

	a.logger.Info("serving",
		slog.String("addr", ln.Addr().String()),
		slog.String("origin", origin.String()),
		slog.String("version", m.Version()))
	fmt.Fprintf(a.out, "serving %s on %s\n", m.Version(), ln.Addr())

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
