// Package checkexpiredcmder provides the check-expired command for
// sweeping deployments past their expiry.
package checkexpiredcmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arcanumlabs/canary/cmd/canary/bootstrap"
	"github.com/arcanumlabs/canary/pkg/cliui"
	"github.com/arcanumlabs/canary/pkg/config"
)

const checkExpiredLongDesc string = `Sweep active deployments whose duration has elapsed into EXPIRED.

The sweep is idempotent: running it again has no further effect, so it is
safe to schedule from cron alongside the built-in sweeper in "canary serve".

Examples:
  canary check-expired`

const checkExpiredShortDesc string = "Expire deployments past their duration"

type checkExpiredCommander struct {
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

func NewCheckExpiredCmd() *cobra.Command {
	cmder := &checkExpiredCommander{}

	cmd := &cobra.Command{
		Use:   "check-expired",
		Short: checkExpiredShortDesc,
		Long:  checkExpiredLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, debug, err := bootstrap.Resolve(cmd, flagSet, []string{config.FlagSQLite})
			if err != nil {
				return err
			}

			rt, err := bootstrap.New(v, debug)
			if err != nil {
				return err
			}
			defer rt.Close()

			return cmder.run(rt)
		},
	}

	config.AddStringFlag(cmd, flagSet, config.FlagSQLite, &cmder.sqlitePath)

	return cmd
}

func (c *checkExpiredCommander) run(rt *bootstrap.Runtime) error {
	swept, err := rt.Manager.CheckExpired(context.Background())
	if err != nil {
		return fmt.Errorf("expiry sweep: %w", err)
	}

	if len(swept) == 0 {
		fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("No deployments to expire."))
		return nil
	}

	fmt.Println()
	for _, rec := range swept {
		fmt.Printf("  %s %s %s expired\n",
			cliui.SuccessMark,
			cliui.IDStyle.Render(rec.ID),
			cliui.NameStyle.Render(rec.AgentName),
		)
	}
	fmt.Println()

	return nil
}
