// Package agentscmder provides the agents command for listing and
// validating agent specifications.
package agentscmder

import (
	"github.com/spf13/cobra"

	"github.com/arcanumlabs/canary/pkg/config"
)

const agentsLongDesc string = `Inspect the agent specification store.

Agent specs are YAML files in the specs directory, one per agent. Every
read re-validates the file, so edits that break a spec surface the next
time any command touches it.

Use subcommands to list or validate specs:
  canary agents list        List all valid agent specs
  canary agents validate    Validate every spec and report violations

Examples:
  canary agents list
  canary agents validate --specs-dir ./agents`

const agentsShortDesc string = "Inspect agent specifications"

// flagSet defines the flags shared by the agents subcommands.
var flagSet = config.FlagSet{
	config.FlagSpecsDir: {
		Name:        "specs-dir",
		ViperKey:    "specs.dir",
		Description: "Directory holding agent spec YAML files",
	},
}

func NewAgentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: agentsShortDesc,
		Long:  agentsLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newValidateCmd())

	return cmd
}
