package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cyp0633/lumencal/calendar/live"
	"github.com/cyp0633/lumencal/calendar/storage/memory"
	"github.com/cyp0633/lumencal/internal/generator"
	"github.com/cyp0633/lumencal/server"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand(a *app) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON view API, the live stream and the iCalendar feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listen != "" {
				a.cfg.Listen = listen
			}
			return a.serve(cmd)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides the configuration)")
	return cmd
}

func (a *app) serve(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := live.NewBus(live.WithLogger(a.logger))
	defer bus.Close()

	store := memory.New(
		memory.WithCapacity(a.cfg.StoreCapacity),
		memory.WithPublisher(bus),
		memory.WithLogger(a.logger),
	)
	if err := a.seed(cmd, store, a.cfg.SeedFile); err != nil {
		return err
	}

	engine, err := a.engine()
	if err != nil {
		return err
	}
	defer engine.Close()

	viewOpts, err := a.viewOptions()
	if err != nil {
		return err
	}
	srv, err := server.New(store, bus,
		server.WithLogger(a.logger),
		server.WithEngine(engine),
		server.WithViewOptions(viewOpts...),
	)
	if err != nil {
		return err
	}

	if a.cfg.Generator.Enabled {
		c := cron.New()
		gen := generator.New(store, store, generator.WithLogger(a.logger))
		if _, err := gen.Schedule(ctx, c, a.cfg.Generator.Schedule); err != nil {
			return err
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
	}

	httpServer := &http.Server{
		Addr:              a.cfg.Listen,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", a.cfg.Listen)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	// Closing the bus ends open streams so Shutdown does not wait on them.
	bus.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("graceful shutdown failed", "error", err)
		return err
	}
	return nil
}
