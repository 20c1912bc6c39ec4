// Package promotecmder provides the promote command for making a canary
// config the agent's new baseline.
package promotecmder

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arcanumlabs/canary/cmd/canary/bootstrap"
	"github.com/arcanumlabs/canary/pkg/canary"
	"github.com/arcanumlabs/canary/pkg/cliui"
	"github.com/arcanumlabs/canary/pkg/config"
)

const promoteLongDesc string = `Promote a canary deployment to baseline.

Promotion requires an active deployment whose most recent evaluation,
if any, passed; a failing verdict on record blocks promotion until the
deployment is rolled back or re-evaluated. On success the canary config
becomes the agent's baseline and the deployment reaches its PROMOTED
terminal state.

Examples:
  canary promote 3f1a...`

const promoteShortDesc string = "Promote a canary to baseline"

type promoteCommander struct {
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

func NewPromoteCmd() *cobra.Command {
	cmder := &promoteCommander{}

	cmd := &cobra.Command{
		Use:   "promote <deployment-id>",
		Short: promoteShortDesc,
		Long:  promoteLongDesc,
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

	return cmd
}

func (c *promoteCommander) run(rt *bootstrap.Runtime, id string) error {
	rec, err := rt.Manager.Promote(context.Background(), id)
	if err != nil {
		var invalid canary.InvalidStateError
		if errors.As(err, &invalid) {
			return fmt.Errorf("cannot promote: %s", invalid.Reason)
		}
		return err
	}

	fmt.Printf("\n  %s %s promoted to baseline\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(rec.AgentName),
	)

	return nil
}
