package agentscmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arcanumlabs/canary/cmd/canary/bootstrap"
	"github.com/arcanumlabs/canary/pkg/agentspec"
	"github.com/arcanumlabs/canary/pkg/cliui"
	"github.com/arcanumlabs/canary/pkg/config"
	"github.com/arcanumlabs/canary/pkg/utils"
)

const listLongDesc string = `List all valid agent specifications, sorted by name.

Specs that fail validation are skipped; run "canary agents validate" to
see their violations.

Examples:
  canary agents list`

const listShortDesc string = "List agent specifications"

type listCommander struct {
	specsDir string
}

func newListCmd() *cobra.Command {
	cmder := &listCommander{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, _, err := bootstrap.Resolve(cmd, flagSet, []string{config.FlagSpecsDir})
			if err != nil {
				return err
			}
			return cmder.run(v.GetString("specs.dir"))
		},
	}

	config.AddStringFlag(cmd, flagSet, config.FlagSpecsDir, &cmder.specsDir)

	return cmd
}

func (c *listCommander) run(specsDir string) error {
	store := agentspec.NewStore(specsDir)

	specs, err := store.List()
	if err != nil {
		return fmt.Errorf("listing agent specs: %w", err)
	}

	if len(specs) == 0 {
		fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("No agent specs found in "+specsDir))
		return nil
	}

	fmt.Println()
	for _, spec := range specs {
		fmt.Printf("  %s %s\n",
			cliui.NameStyle.Render(spec.Name),
			cliui.DimStyle.Render(fmt.Sprintf("v%s  %s/%s  #%s", spec.Version, spec.Provider, spec.Model, spec.Hash())),
		)
		fmt.Printf("    %s\n", cliui.PreviewStyle.Render(utils.Truncate(spec.Purpose, 72)))
	}
	fmt.Println()

	return nil
}
