// Command queuectl is queuectl's single binary. Run with no special
// argument it is the server process: it opens the job store, brings up
// the worker pool and scheduler, and serves the control-plane HTTP API
// until it receives a shutdown signal. Run with the hidden "__worker"
// argument, it is instead the worker-child target the server re-execs
// itself as for each worker, keeping the whole system a single deployable artifact
// instead of two.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/queuectl/queuectl"
	"github.com/queuectl/queuectl/api"
	"github.com/queuectl/queuectl/pool"
	"github.com/queuectl/queuectl/store"
	"github.com/queuectl/queuectl/workerchild"
)

const workerArg = "__worker"

func main() {
	if len(os.Args) > 1 && os.Args[1] == workerArg {
		if err := workerchild.Run(context.Background(), os.Stdin, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "queuectl worker: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := runServer(); err != nil {
		fmt.Fprintf(os.Stderr, "queuectl: %v\n", err)
		os.Exit(1)
	}
}

func runServer() error {
	stateDir := flag.String("state-dir", "./queuectl-data", "directory holding queue.db and its snapshot staging file")
	addr := flag.String("addr", "127.0.0.1:7337", "address the control-plane HTTP API listens on")
	workers := flag.Int("workers", 3, "number of worker-child processes to maintain")
	shutdownTimeout := flag.Duration("shutdown-timeout", 30*time.Second, "how long to wait for in-flight jobs to finish during shutdown")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, *stateDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	selfPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable path: %w", err)
	}
	spawner := pool.NewProcessSpawner(selfPath, []string{workerArg}, os.Stderr)
	workerPool := pool.New(spawner, *workers, log)

	core := queuectl.NewCore(st, workerPool, log)
	server := api.NewServer(core, *addr, log)

	// The signal context only triggers the select below. The core gets
	// its own context: canceling the core's context kills the worker
	// children outright, and a graceful shutdown must let them drain.
	if err := core.Start(context.Background()); err != nil {
		st.Close()
		return fmt.Errorf("start core: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.ListenAndServe() }()

	log.Info("queuectl: serving", "addr", *addr, "workers", *workers, "state_dir", *stateDir)

	select {
	case <-ctx.Done():
		log.Info("queuectl: signal received, shutting down")
	case <-server.ShutdownRequested():
		log.Info("queuectl: shutdown requested via control API")
	case err := <-serveErr:
		if err != nil {
			log.Error("queuectl: http server error", "err", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), *shutdownTimeout+5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("queuectl: http listener shutdown failed", "err", err)
	}

	coreErr := core.Shutdown(shutdownCtx, *shutdownTimeout)
	closeErr := st.Close()

	if coreErr != nil {
		return fmt.Errorf("core shutdown: %w", coreErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close store: %w", closeErr)
	}
	return nil
}
