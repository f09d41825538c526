package cli

import (
	"github.com/spf13/cobra"

	"github.com/keboola/devgate/internal/pkg/encoding/json"
)

const statusShortDescription = `Print state of all tasks`
const statusLongDescription = `Command "status"

Prints the watermark, churn counters and the last run of each task as JSON.
`

func statusCommand(root *rootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: statusShortDescription,
		Long:  statusLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := root.project.Gate()
			if err != nil {
				return err
			}

			out, err := json.Encode(g.Status(cmd.Context(), root.input(nil)), true)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
