package bootstrap

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/arcanumlabs/canary/pkg/config"
)

// Resolve reads the global flags, initializes viper from the resolved
// .canary directory, and binds the command's registered flags so the
// flag > env > file > default precedence chain applies.
func Resolve(cmd *cobra.Command, fs config.FlagSet, registryKeys []string) (*viper.Viper, bool, error) {
	debug, err := cmd.Flags().GetBool("debug")
	if err != nil {
		return nil, false, fmt.Errorf("could not get debug flag: %v", err)
	}

	configDir, err := cmd.Flags().GetString("config-dir")
	if err != nil {
		return nil, false, fmt.Errorf("could not get config-dir flag: %v", err)
	}

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, false, err
	}

	if len(registryKeys) > 0 {
		config.BindRegisteredFlags(v, cmd, fs, registryKeys)
	}

	return v, debug, nil
}
