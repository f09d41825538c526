package cli

import (
	"github.com/spf13/cobra"

	"github.com/keboola/devgate/internal/pkg/env"
)

const pruneShortDescription = `Remove expired sessions`
const pruneLongDescription = `Command "prune"

Removes counters of sessions without a write for longer than ` + env.Prefix + `SESSION_TTL.
`

func pruneCommand(root *rootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: pruneShortDescription,
		Long:  pruneLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := root.project.SessionCounter()
			if err != nil {
				return err
			}

			count, err := sessions.Prune(cmd.Context(), root.config.SessionTTL)
			if err != nil {
				return err
			}
			root.logger.Infof(cmd.Context(), `Removed %d expired sessions.`, count)
			return nil
		},
	}
}
