package cli

import (
	"github.com/spf13/cobra"
)

const recordWriteShortDescription = `Record lines written to a file`
const recordWriteLongDescription = `Command "record-write"

Adds written lines to the session total and to the gross churn
of each task whose files match the path.
The path is absolute or relative to the project dir.
`

func recordWriteCommand(root *rootCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record-write",
		Short: recordWriteShortDescription,
		Long:  recordWriteLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := root.project.Gate()
			if err != nil {
				return err
			}

			path, _ := cmd.Flags().GetString("path")
			lines, _ := cmd.Flags().GetInt64("lines")
			return g.RecordWrite(cmd.Context(), root.input(nil), path, lines)
		},
	}

	cmd.Flags().String("path", "", "path of the written file")
	cmd.Flags().Int64("lines", 0, "count of written lines")
	_ = cmd.MarkFlagRequired("path")
	_ = cmd.MarkFlagRequired("lines")
	return cmd
}
