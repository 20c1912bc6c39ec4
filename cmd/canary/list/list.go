// Package listcmder provides the list command for showing canary
// deployments.
package listcmder

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/arcanumlabs/canary/cmd/canary/bootstrap"
	"github.com/arcanumlabs/canary/pkg/cliui"
	"github.com/arcanumlabs/canary/pkg/config"
	"github.com/arcanumlabs/canary/pkg/deployment"
	"github.com/arcanumlabs/canary/pkg/storage"
)

const listLongDesc string = `List canary deployments, newest first.

Filter by agent or lifecycle state:
  canary list
  canary list --agent code-reviewer
  canary list --state ACTIVE`

const listShortDesc string = "List canary deployments"

type listCommander struct {
	agentName  string
	state      string
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

func NewListCmd() *cobra.Command {
	cmder := &listCommander{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
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
	cmd.Flags().StringVar(&cmder.agentName, "agent", "", "Only show deployments for this agent")
	cmd.Flags().StringVar(&cmder.state, "state", "", "Only show deployments in this state")

	return cmd
}

func (c *listCommander) run(rt *bootstrap.Runtime) error {
	records, err := rt.Manager.List(context.Background(), storage.Filter{
		AgentName: c.agentName,
		State:     deployment.State(c.state),
	})
	if err != nil {
		return fmt.Errorf("listing deployments: %w", err)
	}

	if len(records) == 0 {
		fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("No deployments found."))
		return nil
	}

	now := time.Now().UTC()
	fmt.Println()
	for _, rec := range records {
		fmt.Printf("  %s  %s  %s\n",
			cliui.IDStyle.Render(rec.ID),
			cliui.NameStyle.Render(rec.AgentName),
			cliui.RenderState(string(rec.State)),
		)
		fmt.Printf("      %s\n", cliui.DimStyle.Render(fmt.Sprintf(
			"traffic %d%%  age %s  decisions %d",
			rec.TrafficSplitPercent,
			cliui.FormatDuration(rec.Age(now)),
			len(rec.DecisionLog),
		)))
	}
	fmt.Println()

	return nil
}
