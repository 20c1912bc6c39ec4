// Package statuscmder provides the status command for querying a running
// canary API server.
package statuscmder

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/arcanumlabs/canary/cmd/canary/bootstrap"
	"github.com/arcanumlabs/canary/pkg/cliui"
	"github.com/arcanumlabs/canary/pkg/config"
)

const statusLongDesc string = `Show the state of a running canary API server.

Pings the server and lists its current deployments. The target defaults
to client.api_target from config.toml.

Examples:
  canary status
  canary status --api-target http://localhost:8085`

const statusShortDesc string = "Show a running server's deployments"

type statusCommander struct {
	apiTarget string
}

var flagSet = config.FlagSet{
	config.FlagAPITarget: {
		Name:        "api-target",
		ViperKey:    "client.api_target",
		Description: "Base URL of the canary API server",
	},
}

func NewStatusCmd() *cobra.Command {
	cmder := &statusCommander{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, _, err := bootstrap.Resolve(cmd, flagSet, []string{config.FlagAPITarget})
			if err != nil {
				return err
			}
			return cmder.run(v.GetString("client.api_target"))
		},
	}

	config.AddStringFlag(cmd, flagSet, config.FlagAPITarget, &cmder.apiTarget)

	return cmd
}

type deploymentSummary struct {
	ID                  string `json:"id"`
	AgentName           string `json:"agent_name"`
	State               string `json:"state"`
	TrafficSplitPercent int    `json:"traffic_split_percent"`
}

type deploymentsResponse struct {
	Count       int                 `json:"count"`
	Deployments []deploymentSummary `json:"deployments"`
}

func (c *statusCommander) run(target string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target + "/ping")
	if err != nil {
		return fmt.Errorf("canary server unreachable at %s: %w", target, err)
	}
	resp.Body.Close()

	resp, err = client.Get(target + "/deployments")
	if err != nil {
		return fmt.Errorf("listing deployments: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("listing deployments: unexpected status %s", resp.Status)
	}

	var body deploymentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decoding deployments: %w", err)
	}

	fmt.Printf("\n  %s %s\n\n", cliui.SuccessMark, cliui.DimStyle.Render("server up at "+target))

	if body.Count == 0 {
		fmt.Printf("  %s\n\n", cliui.DimStyle.Render("No deployments."))
		return nil
	}

	for _, rec := range body.Deployments {
		fmt.Printf("  %s  %s  %s  %s\n",
			cliui.IDStyle.Render(rec.ID),
			cliui.NameStyle.Render(rec.AgentName),
			cliui.RenderState(rec.State),
			cliui.DimStyle.Render(fmt.Sprintf("%d%%", rec.TrafficSplitPercent)),
		)
	}
	fmt.Println()

	return nil
}
