// Package servecmder provides the serve command for running the canary
// API server and expiry sweeper.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arcanumlabs/canary/api"
	"github.com/arcanumlabs/canary/cmd/canary/bootstrap"
	"github.com/arcanumlabs/canary/pkg/config"
)

const serveLongDesc string = `Run the canary API server.

Serves the deployment HTTP API and lifecycle metrics on /metrics. A
background sweeper expires deployments past their duration every sweep
interval, so unattended canaries never serve traffic indefinitely.

Examples:
  canary serve
  canary serve --api-listen :9000 --sqlite ./canary.db`

const serveShortDesc string = "Run the canary API server"

type ServeCommander struct {
	apiListen     string
	sqlitePath    string
	specsDir      string
	promURL       string
	sweepInterval time.Duration
	logger        *zap.Logger
}

var flagSet = config.FlagSet{
	config.FlagAPIListen: {
		Name:        "api-listen",
		Shorthand:   "a",
		ViperKey:    "api.listen",
		Description: "Address for the API server to listen on",
	},
	config.FlagSQLite: {
		Name:        "sqlite",
		Shorthand:   "s",
		ViperKey:    "storage.sqlite_path",
		Description: "Path to SQLite database (default: in-memory)",
	},
	config.FlagSpecsDir: {
		Name:        "specs-dir",
		ViperKey:    "specs.dir",
		Description: "Directory holding agent spec YAML files",
	},
	config.FlagPrometheusURL: {
		Name:        "prometheus-url",
		ViperKey:    "metrics.prometheus_url",
		Description: "Prometheus base URL for live metrics",
	},
}

var boundFlags = []string{
	config.FlagAPIListen,
	config.FlagSQLite,
	config.FlagSpecsDir,
	config.FlagPrometheusURL,
}

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, debug, err := bootstrap.Resolve(cmd, flagSet, boundFlags)
			if err != nil {
				return err
			}

			rt, err := bootstrap.New(v, debug)
			if err != nil {
				return err
			}
			defer rt.Close()

			return cmder.run(rt, v.GetString("api.listen"))
		},
	}

	config.AddStringFlag(cmd, flagSet, config.FlagAPIListen, &cmder.apiListen)
	config.AddStringFlag(cmd, flagSet, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, flagSet, config.FlagSpecsDir, &cmder.specsDir)
	config.AddStringFlag(cmd, flagSet, config.FlagPrometheusURL, &cmder.promURL)
	cmd.Flags().DurationVar(&cmder.sweepInterval, "sweep-interval", time.Minute, "How often the expiry sweeper runs")

	return cmd
}

func (c *ServeCommander) run(rt *bootstrap.Runtime, listen string) error {
	c.logger = rt.Logger

	apiConfig := api.Config{
		ListenAddr: listen,
	}
	server := api.NewServer(apiConfig, rt.Manager, rt.Specs, rt.Registry, c.logger)

	// Channel to capture errors from goroutines
	errChan := make(chan error, 1)

	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Expiry sweeper: expire overdue deployments even when nobody calls
	// check-expired by hand.
	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	defer cancelSweep()
	go c.sweep(sweepCtx, rt)

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancelSweep()
		return server.Shutdown()
	}
}

func (c *ServeCommander) sweep(ctx context.Context, rt *bootstrap.Runtime) {
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept, err := rt.Manager.CheckExpired(ctx)
			if err != nil {
				c.logger.Warn("expiry sweep failed", zap.Error(err))
				continue
			}
			if len(swept) > 0 {
				c.logger.Info("expired deployments", zap.Int("count", len(swept)))
			}
		}
	}
}
