// Command datahubd runs the resource tree as a standalone process: it
// loads configuration and a startup manifest, then serves the admin
// HTTP surface until terminated.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/flowmesh/datahub/internal/config"
	"github.com/flowmesh/datahub/internal/hub"
	"github.com/flowmesh/datahub/internal/logging"
	"github.com/flowmesh/datahub/internal/metrics"
	"github.com/flowmesh/datahub/internal/resource"
	"github.com/flowmesh/datahub/internal/tree"
)

var (
	cfgFile  string
	debugLog bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "datahubd",
		Short: "Resource tree data hub daemon",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	root.PersistentFlags().BoolVar(&debugLog, "debug", false, "enable debug-level console logging")

	root.AddCommand(serveCmd(), treeCmd())
	return root
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Load the configured manifest and serve the admin HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			reg := prometheus.NewRegistry()
			m := metrics.New(reg)
			h := hub.New(cfg, logger, m)

			manifest, err := hub.LoadManifest(cfg.ManifestPath)
			if err != nil {
				return err
			}
			if err := manifest.Apply(h); err != nil {
				return err
			}
			logger.Info("manifest applied", zap.String("path", cfg.ManifestPath), zap.Int("resources", len(manifest.Resources)))

			mux := hub.NewMux(h)
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

			server := &http.Server{
				Addr:              cfg.HTTP.ListenAddr,
				Handler:           mux,
				ReadTimeout:       5 * time.Second,
				WriteTimeout:      5 * time.Second,
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("listening", zap.String("addr", cfg.HTTP.ListenAddr))
				errCh <- server.ListenAndServe()
			}()

			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				if err != nil && err != http.ErrServerClosed {
					return err
				}
			case <-sigs:
				logger.Info("shutting down")
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return server.Shutdown(ctx)
			}
			return nil
		},
	}
}

func treeCmd() *cobra.Command {
	var manifestPath string
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Resolve a manifest against a fresh tree and print its shape, without serving",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			m := metrics.New(prometheus.NewRegistry())
			h := hub.New(cfg, logger, m)

			path := manifestPath
			if path == "" {
				path = cfg.ManifestPath
			}
			manifest, err := hub.LoadManifest(path)
			if err != nil {
				return err
			}
			if err := manifest.Apply(h); err != nil {
				return err
			}

			h.Tree().ForEachResource(func(p string, k tree.Kind, _ resource.Handle) {
				fmt.Printf("%s\t%s\n", p, k.String())
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "manifest file to resolve (overrides config)")
	return cmd
}

func newLogger() (*zap.Logger, error) {
	return logging.New(debugLog)
}
