package cli

import (
	"github.com/spf13/cobra"

	"github.com/keboola/devgate/internal/pkg/resultcache"
)

const completeShortDescription = `Record the verdict of an executed task`
const completeLongDescription = `Command "complete"

Records the verdict of the task after it has been executed.
A pass moves the watermark to HEAD. A failure keeps it,
or moves it to a snapshot of the working tree if the task has "resetOnFail".
`

func completeCommand(root *rootCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete <task>",
		Short: completeShortDescription,
		Long:  completeLongDescription,
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

			result, _ := cmd.Flags().GetString("result")
			return g.Complete(cmd.Context(), t, root.input(nil), resultcache.Verdict(result))
		},
	}

	cmd.Flags().String("result", "", `verdict of the task, "pass" or "fail"`)
	_ = cmd.MarkFlagRequired("result")
	return cmd
}
