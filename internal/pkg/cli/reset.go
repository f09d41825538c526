package cli

import (
	"github.com/spf13/cobra"
)

const resetShortDescription = `Reset state of a task`
const resetLongDescription = `Command "reset"

Removes the watermark, the gross churn counter and the last run of the task.
The churn is counted from the first commit again.
`

func resetCommand(root *rootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <task>",
		Short: resetShortDescription,
		Long:  resetLongDescription,
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
			return g.Reset(cmd.Context(), t)
		},
	}
}
