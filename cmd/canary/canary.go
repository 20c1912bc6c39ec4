// Package canarycmder
package canarycmder

import (
	"github.com/spf13/cobra"

	agentscmder "github.com/arcanumlabs/canary/cmd/canary/agents"
	checkexpiredcmder "github.com/arcanumlabs/canary/cmd/canary/checkexpired"
	configcmder "github.com/arcanumlabs/canary/cmd/canary/config"
	deploycmder "github.com/arcanumlabs/canary/cmd/canary/deploy"
	evaluatecmder "github.com/arcanumlabs/canary/cmd/canary/evaluate"
	gatescmder "github.com/arcanumlabs/canary/cmd/canary/gates"
	listcmder "github.com/arcanumlabs/canary/cmd/canary/list"
	promotecmder "github.com/arcanumlabs/canary/cmd/canary/promote"
	rollbackcmder "github.com/arcanumlabs/canary/cmd/canary/rollback"
	servecmder "github.com/arcanumlabs/canary/cmd/canary/serve"
	statuscmder "github.com/arcanumlabs/canary/cmd/canary/status"
	versioncmder "github.com/arcanumlabs/canary/cmd/version"
)

const canaryLongDesc string = `Canary manages staged rollouts of AI agent configurations.

Deploy a changed agent config as a canary, route a slice of traffic to it,
evaluate quality gates against live metrics, and promote or roll back:
  canary deploy <agent> <config.yaml>   Open a canary deployment
  canary evaluate <id>                  Run quality gates
  canary promote <id>                   Make the canary the new baseline
  canary rollback <id>                  Revert to the baseline
  canary serve                          Run the HTTP API and expiry sweeper`

const canaryShortDesc string = "Canary - staged rollouts for AI agents"

func NewCanaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "canary",
		Short: canaryShortDesc,
		Long:  canaryLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .canary config directory")

	// Add subcommands
	cmd.AddCommand(agentscmder.NewAgentsCmd())
	cmd.AddCommand(deploycmder.NewDeployCmd())
	cmd.AddCommand(listcmder.NewListCmd())
	cmd.AddCommand(evaluatecmder.NewEvaluateCmd())
	cmd.AddCommand(promotecmder.NewPromoteCmd())
	cmd.AddCommand(rollbackcmder.NewRollbackCmd())
	cmd.AddCommand(checkexpiredcmder.NewCheckExpiredCmd())
	cmd.AddCommand(gatescmder.NewGatesCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
