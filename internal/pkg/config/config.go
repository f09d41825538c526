// Package config contains settings of the gate, read from environment variables with the "DEVGATE_" prefix.
// Values from ".env" files in the project dir are used, if the variable is not set in the OS environment.
package config

import (
	"context"
	"path/filepath"
	"time"

	caarlosenv "github.com/caarlos0/env/v11"

	"github.com/keboola/devgate/internal/pkg/churn"
	"github.com/keboola/devgate/internal/pkg/env"
	"github.com/keboola/devgate/internal/pkg/filesystem"
	"github.com/keboola/devgate/internal/pkg/session"
	"github.com/keboola/devgate/internal/pkg/utils/errors"
	"github.com/keboola/devgate/internal/pkg/validator"
)

type Config struct {
	// StateDir contains the result cache, relative paths are resolved from the project dir.
	StateDir string `env:"STATE_DIR" envDefault:".devgate" validate:"required"`
	// SessionDB is the path of the session counters database.
	SessionDB string `env:"SESSION_DB"`
	// TasksFile contains task definitions, relative paths are resolved from the project dir.
	TasksFile    string        `env:"TASKS_FILE" envDefault:"devgate.yml" validate:"required"`
	RefNamespace string        `env:"REF_NAMESPACE" envDefault:"refs/devgate/watermarks" validate:"required,startswith=refs/"`
	SessionID    string        `env:"SESSION_ID"`
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"72h" validate:"gt=0"`
	Verbose      bool          `env:"VERBOSE"`
}

// Parse the config from the envs, relative paths are resolved from the projectDir.
func Parse(ctx context.Context, envs env.Provider, projectDir string) (Config, error) {
	cfg := Config{}
	err := caarlosenv.ParseWithOptions(&cfg, caarlosenv.Options{
		Prefix:      env.Prefix,
		Environment: envs.ToMap(),
	})
	if err != nil {
		return Config{}, errors.PrefixError(err, "invalid configuration")
	}

	if err := validator.New().Validate(ctx, cfg); err != nil {
		return Config{}, errors.PrefixError(err, "invalid configuration")
	}

	cfg.StateDir = absPath(projectDir, cfg.StateDir)
	cfg.TasksFile = absPath(projectDir, cfg.TasksFile)
	if cfg.SessionDB == "" {
		cfg.SessionDB = session.DefaultPath()
	} else {
		cfg.SessionDB = absPath(projectDir, cfg.SessionDB)
	}
	return cfg, nil
}

// Default config, as if no variable was set.
func Default(projectDir string) Config {
	return Config{
		StateDir:     absPath(projectDir, filesystem.MetadataDir),
		SessionDB:    session.DefaultPath(),
		TasksFile:    absPath(projectDir, "devgate.yml"),
		RefNamespace: churn.DefaultRefNamespace,
		SessionTTL:   72 * time.Hour,
	}
}

func absPath(base, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}
