// Package bootstrap wires the configured storage driver, spec store,
// metrics accessor, and event publisher into a deployment manager for CLI
// commands. Commands resolve their settings through viper first so flags,
// environment variables, and config.toml share one precedence chain.
package bootstrap

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/arcanumlabs/canary/pkg/agentspec"
	"github.com/arcanumlabs/canary/pkg/canary"
	"github.com/arcanumlabs/canary/pkg/eventstream"
	"github.com/arcanumlabs/canary/pkg/eventstream/kafka"
	"github.com/arcanumlabs/canary/pkg/eventstream/nop"
	"github.com/arcanumlabs/canary/pkg/logger"
	"github.com/arcanumlabs/canary/pkg/metrics"
	"github.com/arcanumlabs/canary/pkg/storage"
	"github.com/arcanumlabs/canary/pkg/storage/inmemory"
	"github.com/arcanumlabs/canary/pkg/storage/sqlite"
)

// Runtime bundles everything a command needs to act on deployments.
type Runtime struct {
	Logger    *zap.Logger
	Driver    storage.Driver
	Specs     *agentspec.Store
	Accessor  metrics.Accessor
	Publisher eventstream.Publisher
	Registry  *prometheus.Registry
	Manager   *canary.Manager
}

// New builds a Runtime from resolved viper settings.
func New(v *viper.Viper, debug bool) (*Runtime, error) {
	log := logger.NewLogger(debug)

	driver, err := newStorageDriver(v, log)
	if err != nil {
		return nil, err
	}

	specs := agentspec.NewStore(v.GetString("specs.dir"))
	accessor := newAccessor(v, log)

	publisher, err := newPublisher(v, log)
	if err != nil {
		driver.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()

	manager, err := canary.NewManager(&canary.Config{
		Driver:           driver,
		Specs:            specs,
		Accessor:         accessor,
		Publisher:        publisher,
		Window:           v.GetDuration("metrics.window"),
		EvaluateCooldown: v.GetDuration("deploy.evaluate_cooldown"),
		Metrics:          canary.NewMetrics(registry),
		Logger:           log,
	})
	if err != nil {
		driver.Close()
		publisher.Close()
		return nil, fmt.Errorf("creating deployment manager: %w", err)
	}

	return &Runtime{
		Logger:    log,
		Driver:    driver,
		Specs:     specs,
		Accessor:  accessor,
		Publisher: publisher,
		Registry:  registry,
		Manager:   manager,
	}, nil
}

// Close releases the runtime's resources.
func (r *Runtime) Close() {
	if r.Publisher != nil {
		r.Publisher.Close()
	}
	if r.Driver != nil {
		r.Driver.Close()
	}
	if r.Logger != nil {
		_ = r.Logger.Sync()
	}
}

func newStorageDriver(v *viper.Viper, log *zap.Logger) (storage.Driver, error) {
	path := v.GetString("storage.sqlite_path")
	if path != "" {
		driver, err := sqlite.NewDriver(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite driver: %w", err)
		}
		log.Debug("using SQLite storage", zap.String("path", path))
		return driver, nil
	}

	log.Debug("using in-memory storage")
	return inmemory.NewDriver(), nil
}

func newAccessor(v *viper.Viper, log *zap.Logger) metrics.Accessor {
	url := v.GetString("metrics.prometheus_url")
	if url != "" {
		log.Debug("using Prometheus metrics", zap.String("url", url))
		return metrics.NewPromAccessor(url)
	}

	log.Debug("using static metrics accessor")
	return metrics.NewStaticAccessor()
}

func newPublisher(v *viper.Viper, log *zap.Logger) (eventstream.Publisher, error) {
	if !v.GetBool("events.enabled") {
		return nop.NewPublisher(), nil
	}

	brokers := v.GetStringSlice("events.brokers")
	topic := v.GetString("events.topic")
	publisher, err := kafka.NewPublisher(kafka.Config{
		Brokers: brokers,
		Topic:   topic,
	})
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}

	log.Debug("publishing deployment events",
		zap.Strings("brokers", brokers),
		zap.String("topic", topic),
	)

	return publisher, nil
}
