package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keboola/devgate/internal/pkg/gate"
)

const evaluateShortDescription = `Decide whether the task should run`
const evaluateLongDescription = `Command "evaluate"

Evaluates conditions of the task and its cached result.
The decision is printed to stdout and reported by the exit code:
  0  run the task
  3  skip the task, or reuse a cached pass
  4  reuse a cached failure
`

func evaluateCommand(root *rootCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate <task>",
		Short: evaluateShortDescription,
		Long:  evaluateLongDescription,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := root.project.Gate()
			if err != nil {
				return err
			}

			t, err := g.Task(args[0])
			if err != nil {
				return err
			}

			vars, _ := cmd.Flags().GetStringToString("var")
			outcome := g.Decide(cmd.Context(), t, root.input(vars))

			line := outcome.Decision.String()
			if outcome.Reason != "" {
				line += ": " + outcome.Reason
			}
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), line); err != nil {
				return err
			}

			root.exitCode = exitCode(outcome.Decision)
			return nil
		},
	}

	cmd.Flags().StringToString("var", nil, "contextual variable, for example --var ticket=DEV-123")
	return cmd
}

func exitCode(d gate.Decision) int {
	switch d {
	case gate.DecisionRun:
		return ExitCodeOk
	case gate.DecisionCachedFail:
		return ExitCodeCachedFail
	default:
		return ExitCodeSkip
	}
}
