// Package evaluatecmder provides the evaluate command for running quality
// gates against a live canary deployment.
package evaluatecmder

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

const evaluateLongDesc string = `Run the quality gates for a deployment against live metrics.

All gates are checked and every violation reported: success rate, p95
latency, hourly cost, security findings, and regression against the
baseline variant. A failing verdict rolls the canary back automatically.

If the canary has not yet served the minimum number of requests, the
evaluation is refused and the deployment stays active.

Examples:
  canary evaluate 3f1a...`

const evaluateShortDesc string = "Evaluate a deployment's quality gates"

type evaluateCommander struct {
	sqlitePath string
	specsDir   string
	promURL    string
}

var flagSet = config.FlagSet{
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
	config.FlagPrometheusURL: {
		Name:        "prometheus-url",
		ViperKey:    "metrics.prometheus_url",
		Description: "Prometheus base URL for live metrics",
	},
}

var boundFlags = []string{config.FlagSQLite, config.FlagSpecsDir, config.FlagPrometheusURL}

func NewEvaluateCmd() *cobra.Command {
	cmder := &evaluateCommander{}

	cmd := &cobra.Command{
		Use:   "evaluate <deployment-id>",
		Short: evaluateShortDesc,
		Long:  evaluateLongDesc,
		Args:  cobra.ExactArgs(1),
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

			return cmder.run(rt, args[0])
		},
	}

	config.AddStringFlag(cmd, flagSet, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, flagSet, config.FlagSpecsDir, &cmder.specsDir)
	config.AddStringFlag(cmd, flagSet, config.FlagPrometheusURL, &cmder.promURL)

	return cmd
}

func (c *evaluateCommander) run(rt *bootstrap.Runtime, id string) error {
	eval, err := rt.Manager.Evaluate(context.Background(), id)
	if err != nil {
		var insufficient canary.InsufficientSamplesError
		if errors.As(err, &insufficient) {
			fmt.Printf("\n  %s %s\n\n",
				cliui.WarnStyle.Render("…"),
				fmt.Sprintf("not enough samples yet: %d of %d required", insufficient.SampleSize, insufficient.MinSampleSize),
			)
			return nil
		}
		return err
	}

	fmt.Println()
	if eval.Verdict.Passed {
		fmt.Printf("  %s quality gates passed %s\n",
			cliui.SuccessMark,
			cliui.DimStyle.Render(fmt.Sprintf("(%d samples)", eval.Verdict.SampleSize)),
		)
	} else {
		fmt.Printf("  %s quality gates failed %s\n",
			cliui.FailMark,
			cliui.DimStyle.Render(fmt.Sprintf("(%d samples)", eval.Verdict.SampleSize)),
		)
		for _, reason := range eval.Verdict.Reasons {
			fmt.Printf("      %s\n", cliui.FailStyle.Render(reason.String()))
		}
	}

	if eval.RolledBack {
		fmt.Printf("\n  %s deployment rolled back automatically\n", cliui.WarnStyle.Render("↩"))
	}
	if eval.Cached {
		fmt.Printf("  %s\n", cliui.DimStyle.Render("(cached verdict from recent evaluation)"))
	}

	fmt.Printf("\n  %s  %s\n\n", cliui.KeyStyle.Render("State:"), cliui.RenderState(string(eval.Record.State)))

	return nil
}
