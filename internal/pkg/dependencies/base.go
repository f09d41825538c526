// Package dependencies provides dependencies containers shared by the CLI commands and tests.
//
// Each package declares a small "dependencies" interface with only the getters it needs,
// the containers in this package implement all of them.
package dependencies

import (
	"github.com/jonboulle/clockwork"

	"github.com/keboola/devgate/internal/pkg/env"
	"github.com/keboola/devgate/internal/pkg/log"
)

// BaseScope contains dependencies available in every command, they do not depend on a project.
type BaseScope interface {
	Clock() clockwork.Clock
	Envs() env.Provider
	Logger() log.Logger
}

// baseScope dependencies container implements BaseScope interface.
type baseScope struct {
	clock  clockwork.Clock
	envs   env.Provider
	logger log.Logger
}

func NewBaseScope(clock clockwork.Clock, envs env.Provider, logger log.Logger) BaseScope {
	return newBaseScope(clock, envs, logger)
}

func newBaseScope(clock clockwork.Clock, envs env.Provider, logger log.Logger) *baseScope {
	return &baseScope{
		clock:  clock,
		envs:   envs,
		logger: logger,
	}
}

func (v *baseScope) Clock() clockwork.Clock {
	return v.clock
}

func (v *baseScope) Envs() env.Provider {
	return v.envs
}

func (v *baseScope) Logger() log.Logger {
	return v.logger
}
