package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"videoshelf/internal/config"
	"videoshelf/internal/handlers"
	"videoshelf/internal/indexer"
	"videoshelf/internal/logging"
	"videoshelf/internal/middleware"
)

func newServeCommand(configFlag *string) *cobra.Command {
	var skipInitialScan bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the library server",
		Long: `Serve runs the HTTP API, watches the configuration file for
changes, and rescans the library on the configured interval.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFlag)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, *configFlag, skipInitialScan)
		},
	}

	cmd.Flags().BoolVar(&skipInitialScan, "skip-initial-scan", false, "Do not scan the library on startup")
	return cmd
}

func runServe(parent context.Context, cfg config.Config, configPath string, skipInitialScan bool) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ix := buildIndexer(cfg, st)

	// The current roots can change under a running server, so everything
	// reads them through the guard.
	roots := newRootsGuard(cfg.Library.ScanRoots)

	router := mux.NewRouter()
	handlers.New(st, ix, roots.get).Register(router)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.Use(middleware.Logging, middleware.Metrics)

	srv := &http.Server{
		Addr:              cfg.Server.Bind,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("listening on %s", cfg.Server.Bind)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if !skipInitialScan {
		go runScanLogged(ctx, ix, roots.get())
	}

	stopWatch := watchConfig(ctx, configPath, roots, ix)
	defer stopWatch()

	rescan, err := cfg.RescanInterval()
	if err != nil {
		return err
	}
	ticker := time.NewTicker(rescan)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			runScanLogged(ctx, ix, roots.get())
		case err := <-errCh:
			return fmt.Errorf("http server: %w", err)
		case <-ctx.Done():
			logging.Info("shutting down")
			ix.Cancel()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	}
}

// runScanLogged runs one scan and logs the outcome; concurrent requests
// are expected during periodic rescans and are not failures.
func runScanLogged(ctx context.Context, ix *indexer.Indexer, roots []string) {
	res, err := ix.Scan(ctx, roots)
	if errors.Is(err, indexer.ErrScanInProgress) {
		logging.Debug("rescan skipped, previous scan still running")
		return
	}
	if err != nil {
		logging.Error("scan failed: %v", err)
		return
	}
	logging.Info("scan %s finished: %s", res.RunID, res.Outcome)
}

// watchConfig reloads scan roots when the configuration file changes and
// reconciles the store against the new roots.
func watchConfig(ctx context.Context, configPath string, roots *rootsGuard, ix *indexer.Indexer) func() {
	if configPath == "" {
		return func() {}
	}

	watcher, err := config.NewWatcher(configPath)
	if err != nil {
		logging.Warn("configuration watching disabled: %v", err)
		return func() {}
	}

	updates := watcher.Subscribe()
	go func() {
		for cfg := range updates {
			logging.Info("configuration reloaded, %d scan roots", len(cfg.Library.ScanRoots))
			roots.set(cfg.Library.ScanRoots)
			if err := ix.Reconcile(ctx, cfg.Library.ScanRoots); err != nil && !errors.Is(err, indexer.ErrScanInProgress) {
				logging.Error("reconcile after config change failed: %v", err)
			}
		}
	}()

	return func() { watcher.Close() }
}
