// Package cli implements the "devgate" command, a thin surface over the gate used by host hooks.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/keboola/devgate/internal/pkg/config"
	"github.com/keboola/devgate/internal/pkg/dependencies"
	"github.com/keboola/devgate/internal/pkg/env"
	"github.com/keboola/devgate/internal/pkg/filesystem/aferofs"
	"github.com/keboola/devgate/internal/pkg/gate"
	"github.com/keboola/devgate/internal/pkg/log"
	"github.com/keboola/devgate/internal/pkg/utils/errors"
	"github.com/keboola/devgate/internal/pkg/version"
)

const description = `
Devgate

Decides whether a check bound to a development event
should run now, or be skipped as redundant.

Watermarks are stored as git refs, the result cache
in the state dir of the project.
`

// Exit codes.
const (
	ExitCodeOk         = 0
	ExitCodeError      = 1
	ExitCodeSkip       = 3
	ExitCodeCachedFail = 4
)

type rootCommand struct {
	cmd         *cobra.Command
	stderr      io.Writer
	envs        *env.Map                  // ENVs from OS
	clock       clockwork.Clock           // real clock, a fake one in tests
	config      config.Config             // parsed from envs and ".env" files
	project     dependencies.ProjectScope // set by the init method
	logger      log.Logger                // log to stderr, stdout is reserved for results
	initialized bool                      // init method was called
	exitCode    int                       // set by a sub-command
}

// NewRootCommand creates parent of all sub-commands.
func NewRootCommand(stdin io.Reader, stdout io.Writer, stderr io.Writer, envs *env.Map) *rootCommand {
	root := &rootCommand{
		stderr: stderr,
		envs:   envs,
		clock:  clockwork.NewRealClock(),
	}

	// Command definition
	root.cmd = &cobra.Command{
		Use:           "devgate",
		Version:       version.Version(),
		Short:         description,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Print help if no command specified
			return root.cmd.Help()
		},
	}

	// Setup in/out
	root.cmd.SetIn(stdin)
	root.cmd.SetOut(stdout)
	root.cmd.SetErr(stderr)
	root.cmd.SetVersionTemplate("{{.Version}}")

	// Persistent flags for all sub-commands
	flags := root.cmd.PersistentFlags()
	flags.SortFlags = true
	flags.BoolP("help", "h", false, "print help for command")
	flags.StringP("working-dir", "d", "", "use other working directory")
	flags.StringP("session", "s", "", "session id of the agent, overrides "+env.Prefix+"SESSION_ID")
	flags.BoolP("verbose", "v", false, "print details")

	// Root command flags
	root.cmd.Flags().SortFlags = true
	root.cmd.Flags().BoolP("version", "V", false, "print version")

	// Init when flags are parsed
	root.cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return root.init(cmd.Context())
	}

	// Sub-commands
	root.cmd.AddCommand(
		evaluateCommand(root),
		completeCommand(root),
		recordWriteCommand(root),
		statusCommand(root),
		resetCommand(root),
		pruneCommand(root),
	)

	return root
}

// Execute command or sub-command.
func (root *rootCommand) Execute(ctx context.Context) (exitCode int) {
	defer root.tearDown(ctx)
	if err := root.cmd.ExecuteContext(ctx); err != nil {
		// Logger can be uninitialized, if error occurred before PersistentPreRun call
		root.setupLogger(false)
		root.logger.Error(ctx, err.Error())
		return ExitCodeError
	}
	return root.exitCode
}

// init sets config and dependencies after flags are parsed.
func (root *rootCommand) init(ctx context.Context) error {
	if root.initialized {
		return nil
	}

	// Run only once
	root.initialized = true

	flags := root.cmd.PersistentFlags()
	workingDir, _ := flags.GetString("working-dir")
	if workingDir == "" {
		var err error
		if workingDir, err = os.Getwd(); err != nil {
			return errors.PrefixError(err, "cannot get working dir")
		}
	}
	workingDir, err := filepath.Abs(workingDir)
	if err != nil {
		return err
	}
	projectDir := dependencies.ProjectDir(workingDir)

	// ".env" files are loaded with a temporary logger, the verbosity is not known yet
	projectFs, err := aferofs.NewLocalFs(projectDir)
	if err != nil {
		return err
	}
	envs := env.LoadDotEnv(ctx, log.NewNopLogger(), root.envs, projectFs, []string{"."})

	root.config, err = config.Parse(ctx, envs, projectDir)
	if err != nil {
		return err
	}
	if flags.Changed("session") {
		root.config.SessionID, _ = flags.GetString("session")
	}

	verbose, _ := flags.GetBool("verbose")
	root.setupLogger(verbose || root.config.Verbose)
	root.logger.Debugf(ctx, `Project dir "%s".`, projectDir)

	base := dependencies.NewBaseScope(root.clock, envs, root.logger)
	root.project, err = dependencies.NewProjectScope(ctx, base, root.config, projectDir)
	return err
}

func (root *rootCommand) setupLogger(verbose bool) {
	if root.logger == nil {
		root.logger = log.NewCliLogger(root.stderr, root.stderr, verbose)
	}
}

// input of the gate, built from flags and envs.
func (root *rootCommand) input(vars map[string]string) gate.Input {
	return gate.Input{SessionID: root.config.SessionID, Vars: vars}
}

// tearDown closes the session database.
func (root *rootCommand) tearDown(ctx context.Context) {
	if root.project == nil {
		return
	}
	if err := root.project.Close(); err != nil {
		root.logger.Warnf(ctx, `Cannot close session database: %s`, err.Error())
	}
}
