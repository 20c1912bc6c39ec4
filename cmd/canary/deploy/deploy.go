// Package deploycmder provides the deploy command for opening a canary
// deployment from a changed agent config.
package deploycmder

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arcanumlabs/canary/cmd/canary/bootstrap"
	"github.com/arcanumlabs/canary/pkg/agentspec"
	"github.com/arcanumlabs/canary/pkg/canary"
	"github.com/arcanumlabs/canary/pkg/cliui"
	"github.com/arcanumlabs/canary/pkg/config"
	"github.com/arcanumlabs/canary/pkg/storage"
)

const deployLongDesc string = `Open a canary deployment for an agent.

The config file is the proposed new agent spec. It is validated the same
way specs in the store are: required fields, semver version, SLO bounds,
and a scan for embedded credentials. All violations are reported at once.

Each agent can have at most one live deployment. The new canary starts
ACTIVE with the configured traffic split and expires after the configured
duration unless promoted or rolled back first.

Examples:
  canary deploy code-reviewer ./code-reviewer-v2.yaml
  canary deploy code-reviewer ./cr.yaml --split 25 --duration 2h`

const deployShortDesc string = "Open a canary deployment"

type deployCommander struct {
	splitPercent int
	duration     string
	minSamples   int
	sqlitePath   string
	specsDir     string
	expireNow    bool
}

var flagSet = config.FlagSet{
	config.FlagSplitPercent: {
		Name:        "split",
		ViperKey:    "deploy.default_split_percent",
		Description: "Percent of traffic routed to the canary (1-100)",
	},
	config.FlagDuration: {
		Name:        "duration",
		ViperKey:    "deploy.default_duration",
		Description: "How long the canary may run before expiring (e.g. 4h)",
	},
	config.FlagMinSamples: {
		Name:        "min-samples",
		ViperKey:    "deploy.min_sample_size",
		Description: "Minimum canary requests before an automated verdict",
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
}

var boundFlags = []string{
	config.FlagSplitPercent,
	config.FlagDuration,
	config.FlagMinSamples,
	config.FlagSQLite,
	config.FlagSpecsDir,
}

func NewDeployCmd() *cobra.Command {
	cmder := &deployCommander{}

	cmd := &cobra.Command{
		Use:   "deploy <agent> <config.yaml>",
		Short: deployShortDesc,
		Long:  deployLongDesc,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, debug, err := bootstrap.Resolve(cmd, flagSet, boundFlags)
			if err != nil {
				return err
			}

			rt, err := bootstrap.New(v, debug)
			if err != nil {
				return err
			}
			defer rt.Close()

			opts := canary.CreateOptions{
				SplitPercent:  v.GetInt("deploy.default_split_percent"),
				Duration:      v.GetDuration("deploy.default_duration"),
				MinSampleSize: v.GetInt64("deploy.min_sample_size"),
			}
			if cmder.expireNow {
				opts.Duration = 0
				opts.ExpireImmediately = true
			}

			return cmder.run(rt, args[0], args[1], opts)
		},
	}

	config.AddIntFlag(cmd, flagSet, config.FlagSplitPercent, &cmder.splitPercent)
	config.AddStringFlag(cmd, flagSet, config.FlagDuration, &cmder.duration)
	config.AddIntFlag(cmd, flagSet, config.FlagMinSamples, &cmder.minSamples)
	config.AddStringFlag(cmd, flagSet, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, flagSet, config.FlagSpecsDir, &cmder.specsDir)
	cmd.Flags().BoolVar(&cmder.expireNow, "expire-now", false, "Create the deployment already past its expiry (for sweeper drills)")

	return cmd
}

func (c *deployCommander) run(rt *bootstrap.Runtime, agentName, configPath string, opts canary.CreateOptions) error {
	canaryConfig, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("reading canary config: %w", err)
	}

	rec, err := rt.Manager.Create(context.Background(), agentName, canaryConfig, opts)
	if err != nil {
		var invalid agentspec.ValidationError
		if errors.As(err, &invalid) {
			fmt.Printf("\n  %s canary config failed validation:\n", cliui.FailMark)
			for _, reason := range invalid.Verdict.Reasons {
				fmt.Printf("      %s\n", cliui.FailStyle.Render(reason.String()))
			}
			fmt.Println()
			return errors.New("canary config failed validation")
		}

		var conflict storage.ConflictError
		if errors.As(err, &conflict) {
			return fmt.Errorf("agent %s already has a live deployment (%s); promote or roll it back first",
				agentName, conflict.ExistingID)
		}

		return err
	}

	fmt.Printf("\n  %s canary deployed\n\n", cliui.SuccessMark)
	fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("ID:     "), cliui.IDStyle.Render(rec.ID))
	fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Agent:  "), cliui.NameStyle.Render(rec.AgentName))
	fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("State:  "), cliui.RenderState(string(rec.State)))
	fmt.Printf("  %s  %d%%\n", cliui.KeyStyle.Render("Traffic:"), rec.TrafficSplitPercent)
	fmt.Printf("  %s  %s\n\n", cliui.KeyStyle.Render("Expires:"), rec.ExpiresAt.Format("2006-01-02 15:04:05 MST"))

	return nil
}
