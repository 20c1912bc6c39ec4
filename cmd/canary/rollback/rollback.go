// Package rollbackcmder provides the rollback command for reverting a
// canary deployment.
package rollbackcmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arcanumlabs/canary/cmd/canary/bootstrap"
	"github.com/arcanumlabs/canary/pkg/cliui"
	"github.com/arcanumlabs/canary/pkg/config"
)

const rollbackLongDesc string = `Roll back a canary deployment.

All traffic returns to the baseline config. The rollback and its reason
are appended to the deployment's decision log.

Examples:
  canary rollback 3f1a...
  canary rollback 3f1a... --reason "operator judgment: latency trending up"`

const rollbackShortDesc string = "Roll back a canary deployment"

type rollbackCommander struct {
	reason     string
	sqlitePath string
}

var flagSet = config.FlagSet{
	config.FlagSQLite: {
		Name:        "sqlite",
		Shorthand:   "s",
		ViperKey:    "storage.sqlite_path",
		Description: "Path to SQLite database (default: in-memory)",
	},
}

func NewRollbackCmd() *cobra.Command {
	cmder := &rollbackCommander{}

	cmd := &cobra.Command{
		Use:   "rollback <deployment-id>",
		Short: rollbackShortDesc,
		Long:  rollbackLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, debug, err := bootstrap.Resolve(cmd, flagSet, []string{config.FlagSQLite})
			if err != nil {
				return err
			}

			rt, err := bootstrap.New(v, debug)
			if err != nil {
				return err
			}
			defer rt.Close()

			return cmder.run(rt, args[0])
		},
	}

	config.AddStringFlag(cmd, flagSet, config.FlagSQLite, &cmder.sqlitePath)
	cmd.Flags().StringVarP(&cmder.reason, "reason", "r", "", "Reason recorded in the decision log")

	return cmd
}

func (c *rollbackCommander) run(rt *bootstrap.Runtime, id string) error {
	rec, err := rt.Manager.Rollback(context.Background(), id, c.reason)
	if err != nil {
		return err
	}

	fmt.Printf("\n  %s %s rolled back\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(rec.AgentName),
	)

	return nil
}
