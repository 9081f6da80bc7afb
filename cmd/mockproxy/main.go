// mockproxy - programmable HTTP mock server with a hybrid proxy mode.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmockd/mockproxy/pkg/engine"
	"github.com/getmockd/mockproxy/pkg/logging"
	"github.com/getmockd/mockproxy/pkg/mockconfig"
)

// shutdownTimeout is the maximum time to wait for graceful shutdown.
const shutdownTimeout = 30 * time.Second

// Build-time variables set via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

// serveFlags holds the flag values bound to the root command.
type serveFlags struct {
	host            string
	port            int
	defaultProxyURL string
	logLevel        string
	logFormat       string
}

var flagVals serveFlags

var rootCmd = &cobra.Command{
	Use:   "mockproxy",
	Short: "Programmable HTTP mock server with a hybrid proxy mode",
	Long: `mockproxy serves canned responses for registered routes and
transparently proxies unmatched requests to an upstream origin.
The admin API under /__mock manages routes, request logs, OpenAPI
import/export, and the default proxy URL.`,
	Example: `  # Start with defaults (0.0.0.0:8090)
  mockproxy

  # Custom port with a default upstream
  mockproxy --port 3000 --default-proxy-url http://localhost:8080

  # Ingest an OpenAPI spec at startup
  OPENAPI_FILE=./api.yaml mockproxy`,
	Version:       fmt.Sprintf("%s (%s)", Version, Commit),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(&flagVals)
	},
}

func init() {
	rootCmd.Flags().StringVar(&flagVals.host, "host", mockconfig.DefaultHost, "Listen address")
	rootCmd.Flags().IntVarP(&flagVals.port, "port", "p", mockconfig.DefaultPort, "Listen port")
	rootCmd.Flags().StringVar(&flagVals.defaultProxyURL, "default-proxy-url", "", "Upstream base URL for unmatched requests")
	rootCmd.Flags().StringVar(&flagVals.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.Flags().StringVar(&flagVals.logFormat, "log-format", "text", "Log format (text, json)")
}

func runServe(f *serveFlags) error {
	cfg := &mockconfig.ServerConfig{
		Host:            f.host,
		Port:            f.port,
		DefaultProxyURL: f.defaultProxyURL,
	}
	cfg.ApplyEnv()

	log := logging.New(logging.Config{
		Level:  logging.ParseLevel(f.logLevel),
		Format: logging.ParseFormat(f.logFormat),
	})

	srv := engine.NewServer(cfg, engine.WithLogger(log))

	if cfg.DefaultProxyURL != "" {
		if err := srv.ProxyConfig().Set(cfg.DefaultProxyURL); err != nil {
			return fmt.Errorf("invalid default proxy URL: %s", err.Message)
		}
	}

	if cfg.OpenAPIFile != "" {
		data, err := os.ReadFile(cfg.OpenAPIFile)
		if err != nil {
			return fmt.Errorf("failed to read spec file %s: %w", cfg.OpenAPIFile, err)
		}
		count, ierr := srv.LoadSpec(data)
		if ierr != nil {
			return fmt.Errorf("failed to import spec file %s: %s", cfg.OpenAPIFile, ierr.Message)
		}
		log.Info("spec imported at startup", "file", cfg.OpenAPIFile, "count", count)
	}

	if err := srv.Start(); err != nil {
		return err
	}
	log.Info("mockproxy started", "addr", srv.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
