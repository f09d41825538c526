// Package condition decides whether a task should run now.
//
// Conditions of a task are split into prerequisites and triggers.
// All prerequisites must hold, otherwise the task is skipped and triggers are not measured.
// If there is at least one trigger, at least one of them must reach its threshold.
// A task without conditions always runs.
package condition

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/keboola/devgate/internal/pkg/env"
	"github.com/keboola/devgate/internal/pkg/filesystem"
	"github.com/keboola/devgate/internal/pkg/log"
	"github.com/keboola/devgate/internal/pkg/task"
)

// ChurnReader measures line churn since the task watermark.
type ChurnReader interface {
	NetChurnSince(ctx context.Context, key string, patterns []string) int64
	GrossChurnSince(ctx context.Context, key string) int64
}

// SessionReader measures lines written in the session since the task last fired.
type SessionReader interface {
	SinceLastRun(ctx context.Context, sessionID, taskKey string) int64
}

// RunHistory provides the time of the last recorded run of a task.
type RunHistory interface {
	LastRun(ctx context.Context, taskName string) (time.Time, bool)
}

// Files is the subset of filesystem.Fs needed by file conditions, paths are relative to the project root.
type Files interface {
	Exists(path string) bool
	Glob(pattern string) ([]string, error)
	Stat(path string) (filesystem.FileInfo, error)
}

// Context is the state of the current invocation, it replaces global state like the current session.
type Context struct {
	// SessionID of the agent session, it may be empty.
	SessionID string
	// Files restrict net churn, no patterns means all files.
	Files []string
	// Vars are contextual variables known to the host, a present key with an empty value is "resolved empty".
	Vars map[string]string
}

type Evaluator struct {
	logger   log.Logger
	churn    ChurnReader
	sessions SessionReader
	runs     RunHistory
	files    Files
	envs     env.Provider
}

type dependencies interface {
	Logger() log.Logger
	Envs() env.Provider
}

func NewEvaluator(d dependencies, churn ChurnReader, sessions SessionReader, runs RunHistory, files Files) *Evaluator {
	return &Evaluator{
		logger:   d.Logger().WithComponent("condition"),
		churn:    churn,
		sessions: sessions,
		runs:     runs,
		files:    files,
		envs:     d.Envs(),
	}
}

// Evaluate returns Run, or Skip with a one-line reason.
// The evaluator only reads state, it never advances it.
func (e *Evaluator) Evaluate(ctx context.Context, conditions task.Conditions, evalCtx Context, taskName string) Result {
	logger := e.logger.With(attribute.String("task", taskName))
	result := e.evaluate(ctx, conditions, evalCtx, taskName)
	if result.Run {
		logger.Debugf(ctx, `Task "%s" should run.`, taskName)
	} else {
		logger.Debugf(ctx, `Task "%s" skipped: %s`, taskName, result.Reason)
	}
	return result
}

func (e *Evaluator) evaluate(ctx context.Context, conditions task.Conditions, evalCtx Context, taskName string) Result {
	if len(conditions) == 0 {
		return Run()
	}

	// Configuration errors are reported before anything is measured
	if raw, found := conditions[task.MalformedKey]; found {
		return Skip(fmt.Sprintf(`invalid condition "when": expected a map of conditions, found %s`, describe(raw)))
	}
	values := make(map[string]parsed, len(conditions))
	for _, key := range conditions.Keys() {
		def, ok := definitionOf(key)
		if !ok {
			return Skip(fmt.Sprintf(`unknown condition "%s"`, key))
		}
		value, err := parseValue(def, conditions[key])
		if err != nil {
			return Skip(fmt.Sprintf(`invalid condition "%s": %s`, key, strings.ReplaceAll(err.Error(), "\n", " ")))
		}
		values[key] = value
	}

	for _, def := range definitions {
		value, found := values[def.name]
		if !found || def.kind != kindPrerequisite {
			continue
		}
		if reason, ok := e.checkPrerequisite(def.name, value.names, evalCtx); !ok {
			return Skip(fmt.Sprintf("prerequisite %s: %s", def.name, reason))
		}
	}

	var measurements []Measurement
	for _, def := range definitions {
		value, found := values[def.name]
		if !found || def.kind != kindTrigger {
			continue
		}
		m := Measurement{Key: def.name, Threshold: value.threshold}
		m.Value = e.measure(ctx, def.name, value.names, evalCtx, taskName)
		measurements = append(measurements, m)
		if m.Met() {
			return Result{Run: true, Measurements: measurements}
		}
	}

	if len(measurements) == 0 {
		return Run()
	}

	parts := make([]string, 0, len(measurements))
	for _, m := range measurements {
		parts = append(parts, m.String())
	}
	return Result{Reason: "no trigger met: " + strings.Join(parts, ", "), Measurements: measurements}
}

func (e *Evaluator) checkPrerequisite(key string, names []string, evalCtx Context) (string, bool) {
	for _, name := range names {
		switch key {
		case KeyFileExists:
			if !e.files.Exists(filesystem.NormalizePattern(name)) {
				return fmt.Sprintf(`file "%s" does not exist`, name), false
			}
		case KeyEnvSet:
			if value, _ := e.envs.Lookup(name); value == "" {
				return fmt.Sprintf(`environment variable "%s" is not set`, name), false
			}
		case KeyEnvNotSet:
			if value, _ := e.envs.Lookup(name); value != "" {
				return fmt.Sprintf(`environment variable "%s" is set`, name), false
			}
		case KeyVarSet:
			value, known := evalCtx.Vars[name]
			if !known {
				return fmt.Sprintf(`"%s" is not a known variable`, name), false
			}
			if strings.TrimSpace(value) == "" {
				return fmt.Sprintf(`variable "%s" resolved empty`, name), false
			}
		}
	}
	return "", true
}

func (e *Evaluator) measure(ctx context.Context, key string, patterns []string, evalCtx Context, taskName string) int64 {
	taskKey := task.Key(taskName)
	switch key {
	case KeyLinesChanged:
		return e.churn.NetChurnSince(ctx, taskKey, evalCtx.Files)
	case KeyLinesWritten:
		return e.churn.GrossChurnSince(ctx, taskKey)
	case KeySessionLinesWritten:
		return e.sessions.SinceLastRun(ctx, evalCtx.SessionID, taskKey)
	case KeyFilesChanged:
		return e.changedFiles(ctx, patterns, taskName)
	default:
		return 0
	}
}

// changedFiles counts files matching the patterns modified after the last run.
// If the task has never run, every matching file counts.
func (e *Evaluator) changedFiles(ctx context.Context, patterns []string, taskName string) int64 {
	lastRun, hasRun := e.runs.LastRun(ctx, taskName)

	seen := make(map[string]bool)
	var count int64
	for _, pattern := range patterns {
		matches, err := e.files.Glob(pattern)
		if err != nil {
			e.logger.With(attribute.String("task", taskName)).Warnf(ctx, `Cannot list files "%s": %s`, pattern, err.Error())
			continue
		}
		for _, path := range matches {
			if seen[path] {
				continue
			}
			seen[path] = true

			info, err := e.files.Stat(path)
			if err != nil {
				continue
			}
			if !hasRun || info.ModTime().After(lastRun) {
				count++
			}
		}
	}
	return count
}
