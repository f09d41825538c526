package env

import (
	"context"

	"github.com/joho/godotenv"

	"github.com/keboola/devgate/internal/pkg/filesystem"
	"github.com/keboola/devgate/internal/pkg/log"
	"github.com/keboola/devgate/internal/pkg/utils/errors"
)

// LoadDotEnv loads envs from ".env" files if they exist. Existing envs take precedence.
func LoadDotEnv(ctx context.Context, logger log.Logger, osEnvs *Map, fs filesystem.Fs, dirs []string) *Map {
	envs := osEnvs.Clone()

	for _, dir := range dirs {
		for _, file := range Files() {
			path := filesystem.Join(dir, file)
			if !fs.IsFile(path) {
				continue
			}

			fileEnvs, err := LoadEnvFile(fs, path)
			if err != nil {
				logger.Warn(ctx, err.Error())
				continue
			}
			logger.Debugf(ctx, `Loaded env file "%s".`, path)

			// Merge ENVs, existing keys take precedence.
			envs.Merge(fileEnvs, false)
		}
	}

	return envs
}

func LoadEnvFile(fs filesystem.Fs, path string) (*Map, error) {
	content, err := fs.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf(`cannot read env file "%s": %w`, path, err)
	}

	envs, err := LoadEnvString(string(content))
	if err != nil {
		return nil, errors.Errorf(`cannot parse env file "%s": %w`, path, err)
	}

	return envs, nil
}

func LoadEnvString(str string) (*Map, error) {
	envsMap, err := godotenv.Unmarshal(str)
	if err != nil {
		return nil, err
	}
	// A line without "=" is parsed as a value with an empty key.
	if value, found := envsMap[""]; found {
		return nil, errors.Errorf(`missing key for value "%s"`, value)
	}
	return FromMap(envsMap), nil
}
