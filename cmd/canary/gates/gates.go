// Package gatescmder provides the gates command for a read-only quality
// gate check against an agent's live metrics.
package gatescmder

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/arcanumlabs/canary/cmd/canary/bootstrap"
	"github.com/arcanumlabs/canary/pkg/cliui"
	"github.com/arcanumlabs/canary/pkg/config"
	"github.com/arcanumlabs/canary/pkg/gate"
	"github.com/arcanumlabs/canary/pkg/metrics"
)

const gatesLongDesc string = `Check an agent's quality gates without touching any deployment.

Queries live metrics for the given variant and evaluates the agent's SLO
thresholds against them. Nothing is rolled back or recorded; this is a
dry run of the same gates "canary evaluate" enforces.

Examples:
  canary gates code-reviewer
  canary gates code-reviewer --variant canary`

const gatesShortDesc string = "Dry-run an agent's quality gates"

type gatesCommander struct {
	variant  string
	specsDir string
	promURL  string
}

var flagSet = config.FlagSet{
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

var boundFlags = []string{config.FlagSpecsDir, config.FlagPrometheusURL}

func NewGatesCmd() *cobra.Command {
	cmder := &gatesCommander{}

	cmd := &cobra.Command{
		Use:   "gates <agent>",
		Short: gatesShortDesc,
		Long:  gatesLongDesc,
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

			window := v.GetDuration("metrics.window")
			return cmder.run(rt, args[0], window)
		},
	}

	config.AddStringFlag(cmd, flagSet, config.FlagSpecsDir, &cmder.specsDir)
	config.AddStringFlag(cmd, flagSet, config.FlagPrometheusURL, &cmder.promURL)
	cmd.Flags().StringVar(&cmder.variant, "variant", string(metrics.VariantBaseline), "Metrics variant to check (baseline or canary)")

	return cmd
}

func (c *gatesCommander) run(rt *bootstrap.Runtime, agentName string, window time.Duration) error {
	spec, err := rt.Specs.Get(agentName)
	if err != nil {
		return err
	}

	variant := metrics.Variant(c.variant)
	if variant != metrics.VariantBaseline && variant != metrics.VariantCanary {
		return fmt.Errorf("unknown variant %q (expected baseline or canary)", c.variant)
	}

	snap, err := rt.Accessor.Query(context.Background(), agentName, variant, window)
	if err != nil {
		return fmt.Errorf("querying metrics: %w", err)
	}

	verdict := gate.Evaluate(spec.Thresholds(), snap, nil)

	fmt.Println()
	fmt.Printf("  %s  %s %s\n",
		cliui.NameStyle.Render(agentName),
		cliui.DimStyle.Render(string(variant)),
		cliui.DimStyle.Render(fmt.Sprintf("(%d samples over %s)", snap.Count, window)),
	)
	fmt.Printf("      success rate %.3f  p95 %.0fms  cost %.1f¢\n",
		snap.SuccessRate, snap.P95LatencyMs, snap.CostCentsTotal,
	)

	fmt.Println()
	if verdict.Passed {
		fmt.Printf("  %s all gates passed\n\n", cliui.SuccessMark)
		return nil
	}

	fmt.Printf("  %s gates failed:\n", cliui.FailMark)
	for _, reason := range verdict.Reasons {
		fmt.Printf("      %s\n", cliui.FailStyle.Render(reason.String()))
	}
	fmt.Println()

	return nil
}
