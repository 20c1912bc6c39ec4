package agentscmder

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/arcanumlabs/canary/cmd/canary/bootstrap"
	"github.com/arcanumlabs/canary/pkg/agentspec"
	"github.com/arcanumlabs/canary/pkg/cliui"
	"github.com/arcanumlabs/canary/pkg/config"
)

const validateLongDesc string = `Validate every agent specification and report all violations.

Every spec is checked for required fields, semver version format, SLO
bounds, and embedded credential material. All violations are reported at
once rather than stopping at the first.

Exits non-zero if any spec fails validation.

Examples:
  canary agents validate`

const validateShortDesc string = "Validate agent specifications"

type validateCommander struct {
	specsDir string
}

func newValidateCmd() *cobra.Command {
	cmder := &validateCommander{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: validateShortDesc,
		Long:  validateLongDesc,
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

func (c *validateCommander) run(specsDir string) error {
	store := agentspec.NewStore(specsDir)

	verdicts, err := store.Verify()
	if err != nil {
		return fmt.Errorf("validating agent specs: %w", err)
	}

	names := make([]string, 0, len(verdicts))
	for name := range verdicts {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := 0
	fmt.Println()
	for _, name := range names {
		verdict := verdicts[name]
		if verdict.Passed {
			fmt.Printf("  %s %s\n", cliui.SuccessMark, name)
			continue
		}

		failed++
		fmt.Printf("  %s %s\n", cliui.FailMark, cliui.NameStyle.Render(name))
		for _, reason := range verdict.Reasons {
			fmt.Printf("      %s\n", cliui.FailStyle.Render(reason.String()))
		}
	}
	fmt.Println()

	if failed > 0 {
		return fmt.Errorf("%d of %d specs failed validation", failed, len(names))
	}

	return nil
}
