// Command server runs the reference todo application.
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

	"github.com/aiman-zohra3/todo/internal/config"
	"github.com/aiman-zohra3/todo/internal/obs"
	"github.com/aiman-zohra3/todo/internal/web"
)

const shutdownTimeout = 10 * time.Second

func main() {
	obs.Init()
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	addr, testMode, err := config.ParseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := config.LoadAppConfig(addr, testMode)
	if err != nil {
		return err
	}
	obs.SetLevel(obs.ParseLevel(cfg.LogLevel))
	cfg.PrintStartupSummary()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app, err := web.NewApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("start application: %w", err)
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return serve(ctx, srv)
}

// serve runs srv until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server) error {
	logger := obs.Pkg("server")
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
