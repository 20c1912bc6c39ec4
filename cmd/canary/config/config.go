// Package configcmder provides the config command for managing persistent
// canary configuration stored in the .canary/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent canary configuration.

Configuration is stored as config.toml in the .canary/ directory and
provides default values for command flags. CLI flags always take
precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  storage.sqlite_path, specs.dir,
  deploy.default_split_percent, deploy.default_duration,
  deploy.min_sample_size, deploy.evaluate_cooldown,
  metrics.prometheus_url, metrics.window,
  api.listen, client.api_target,
  events.enabled, events.topic

Use subcommands to get, set, or list configuration values:
  canary config set <key> <value>    Set a configuration value
  canary config get <key>            Get a configuration value
  canary config list                 List all configuration values

Examples:
  canary config set metrics.prometheus_url http://localhost:9090
  canary config set deploy.default_duration 2h
  canary config get deploy.min_sample_size
  canary config list`

const configShortDesc string = "Manage persistent canary configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
