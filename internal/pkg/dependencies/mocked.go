package dependencies

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/keboola/devgate/internal/pkg/env"
	"github.com/keboola/devgate/internal/pkg/log"
)

// Mocked contains dependencies for unit tests: a fake clock, an env map and a debug logger.
type Mocked interface {
	BaseScope
	MockedClock() *clockwork.FakeClock
	MockedEnvs() *env.Map
	DebugLogger() log.DebugLogger
}

type mocked struct {
	*baseScope
	clock       *clockwork.FakeClock
	envs        *env.Map
	debugLogger log.DebugLogger
}

// MockedStartTime is the initial time of the fake clock.
var MockedStartTime = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC) // nolint: gochecknoglobals

func NewMocked() Mocked {
	clock := clockwork.NewFakeClockAt(MockedStartTime)
	envs := env.Empty()
	logger := log.NewDebugLogger()
	return &mocked{
		baseScope:   newBaseScope(clock, envs, logger),
		clock:       clock,
		envs:        envs,
		debugLogger: logger,
	}
}

func (v *mocked) MockedClock() *clockwork.FakeClock {
	return v.clock
}

func (v *mocked) MockedEnvs() *env.Map {
	return v.envs
}

func (v *mocked) DebugLogger() log.DebugLogger {
	return v.debugLogger
}
