package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/webterm/webterm/internal/core"
	"github.com/webterm/webterm/internal/core/complete"
	"github.com/webterm/webterm/internal/gateway"
	"github.com/webterm/webterm/internal/storage"
)

func getServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the browser terminal API",
		Long:  "Start the HTTP and WebSocket server the browser terminal talks to.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, logger)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (overrides server.addr)")
	return cmd
}

// runServe serves until ctx is done, then stops every live process, the
// listener and the open streams within the shutdown timeout.
func runServe(ctx context.Context, c *storage.Config, log *zap.Logger) error {
	srv, gw, engine, err := newServer(ctx, c, log)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", c.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", c.Server.Addr, err)
		}
		return nil
	})
	if idle := c.Session.IdleTimeout; idle > 0 {
		g.Go(func() error {
			engine.Sessions().RunJanitor(gctx, janitorInterval(idle), idle)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return shutdown(c.Server.ShutdownTimeout, srv, gw, engine, log)
	})
	return g.Wait()
}

func newServer(ctx context.Context, c *storage.Config, log *zap.Logger) (*http.Server, *gateway.Server, *core.Engine, error) {
	engine, err := newEngine(ctx, c, log, "")
	if err != nil {
		return nil, nil, nil, err
	}

	gw := gateway.NewServer(gateway.Options{
		Engine: engine,
		Completer: complete.New(complete.Options{
			Verbs:          engine.Verbs(),
			MaxSuggestions: c.Complete.MaxSuggestions,
		}),
		AllowedOrigins: c.Server.AllowedOrigins,
		Logger:         log.Named("gateway"),
	})

	srv := &http.Server{
		Addr:              c.Server.Addr,
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv, gw, engine, nil
}

// janitorInterval sweeps at least twice per idle period, and no less often
// than once a minute.
func janitorInterval(idle time.Duration) time.Duration {
	return min(idle/2, time.Minute)
}

// shutdown cancels processes first: synchronous requests are blocked on
// them, so the HTTP server cannot drain until they end.
func shutdown(timeout time.Duration, srv *http.Server, gw *gateway.Server, engine *core.Engine, log *zap.Logger) error {
	log.Info("shutting down", zap.Duration("timeout", timeout))
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := engine.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("processes: %w", err))
	}
	if err := srv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}
	if err := gw.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("streams: %w", err))
	}
	return errors.Join(errs...)
}
