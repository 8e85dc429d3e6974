package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"newshub/adapter/httpapi"
	"newshub/app"
	"newshub/cli/control"
)

// Serve runs the API, the ingestion schedule and the control server until
// SIGINT or SIGTERM.
func Serve(args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}

	listener, err := control.TryListen(e.cfg.ControlAddr)
	if err != nil {
		if errors.Is(err, control.ErrAlreadyRunning) {
			fmt.Println("Background process is already running")
			return err
		}
		return fmt.Errorf("failed to start control server: %w", err)
	}
	defer listener.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := e.openStore(ctx); err != nil {
		return err
	}
	defer e.close()

	ingest, err := e.ingestService()
	if err != nil {
		return err
	}
	runner, err := app.NewRunner(ingest, e.cfg.FetchSchedule, e.log)
	if err != nil {
		return err
	}

	ctrl := &http.Server{Handler: control.NewServer(runner, e.log), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := ctrl.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Error("control server error", "error", err)
		}
	}()

	api := &http.Server{
		Addr:              e.cfg.ListenAddr(),
		Handler:           httpapi.NewServer(app.NewQueryService(e.repo, e.log), e.log).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	apiErr := make(chan error, 1)
	go func() {
		if err := api.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			apiErr <- err
		}
		close(apiErr)
	}()

	if err := runner.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	e.log.Info("newshub started",
		"addr", api.Addr,
		"control_addr", e.cfg.ControlAddr,
		"store", e.cfg.StoreDriver,
		"schedule", runner.CurrentSchedule(),
		"workers", runner.CurrentWorkers(),
	)

	select {
	case <-ctx.Done():
	case err := <-apiErr:
		if err != nil {
			e.log.Error("api server error", "error", err)
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := api.Shutdown(shutdownCtx); err != nil {
		e.log.Warn("api shutdown", "error", err)
	}
	if err := ctrl.Shutdown(shutdownCtx); err != nil {
		e.log.Warn("control shutdown", "error", err)
	}
	if err := runner.Stop(); err != nil {
		e.log.Warn("scheduler shutdown", "error", err)
	}
	e.log.Info("graceful shutdown complete")
	return nil
}
