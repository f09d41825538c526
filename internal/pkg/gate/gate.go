// Package gate applies the run policy of tasks.
//
// The dispatcher calls Decide before a check is executed and Complete with its verdict afterwards.
// Writes of the agent are reported by RecordWrite.
package gate

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/keboola/devgate/internal/pkg/churn"
	"github.com/keboola/devgate/internal/pkg/condition"
	"github.com/keboola/devgate/internal/pkg/filesystem"
	"github.com/keboola/devgate/internal/pkg/log"
	"github.com/keboola/devgate/internal/pkg/resultcache"
	"github.com/keboola/devgate/internal/pkg/session"
	"github.com/keboola/devgate/internal/pkg/task"
	"github.com/keboola/devgate/internal/pkg/utils/errors"
)

type Decision int

const (
	DecisionRun Decision = iota
	DecisionSkip
	DecisionCachedPass
	DecisionCachedFail
)

func (d Decision) String() string {
	switch d {
	case DecisionRun:
		return "run"
	case DecisionSkip:
		return "skip"
	case DecisionCachedPass:
		return "cached-pass"
	case DecisionCachedFail:
		return "cached-fail"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// Input describes the current invocation.
type Input struct {
	SessionID string
	// Vars are contextual variables resolved by the host, for the "varSet" prerequisite.
	Vars map[string]string
}

// Outcome of Decide.
type Outcome struct {
	Decision Decision
	// Reason is a one-line diagnostic of a skip or a cached verdict.
	Reason    string
	Condition condition.Result
	Cached    *resultcache.Record
}

type Gate struct {
	logger    log.Logger
	files     filesystem.Fs
	tasks     *task.Tasks
	churn     *churn.Store
	cache     *resultcache.Cache
	sessions  *session.Counter
	evaluator *condition.Evaluator
}

type dependencies interface {
	Logger() log.Logger
	ProjectFs() filesystem.Fs
	Tasks() (*task.Tasks, error)
	ChurnStore() *churn.Store
	ResultCache() *resultcache.Cache
	SessionCounter() (*session.Counter, error)
	Evaluator() (*condition.Evaluator, error)
}

func New(d dependencies) (*Gate, error) {
	tasks, err := d.Tasks()
	if err != nil {
		return nil, err
	}
	sessions, err := d.SessionCounter()
	if err != nil {
		return nil, err
	}
	evaluator, err := d.Evaluator()
	if err != nil {
		return nil, err
	}
	return &Gate{
		logger:    d.Logger().WithComponent("gate"),
		files:     d.ProjectFs(),
		tasks:     tasks,
		churn:     d.ChurnStore(),
		cache:     d.ResultCache(),
		sessions:  sessions,
		evaluator: evaluator,
	}, nil
}

func (g *Gate) Tasks() *task.Tasks {
	return g.tasks
}

// Task returns the task definition by name.
func (g *Gate) Task(name string) (task.Task, error) {
	t, found := g.tasks.Get(name)
	if !found {
		return task.Task{}, errors.Errorf(`task "%s" not found`, name)
	}
	return t, nil
}

// Decide evaluates conditions of the task, then the result cache, if it is enabled for the task.
func (g *Gate) Decide(ctx context.Context, t task.Task, in Input) Outcome {
	result := g.evaluator.Evaluate(ctx, t.When, condition.Context{SessionID: in.SessionID, Files: t.Files, Vars: in.Vars}, t.Name)
	if !result.Run {
		return Outcome{Decision: DecisionSkip, Reason: result.Reason, Condition: result}
	}

	if !t.Cache {
		return Outcome{Decision: DecisionRun, Condition: result}
	}

	lookup := g.cache.Lookup(ctx, t.Name, t.Files)
	switch lookup.Status {
	case resultcache.StatusHitPass:
		reason := fmt.Sprintf("passed at %s, no tracked file changed since", formatTime(lookup.Record.At))
		return Outcome{Decision: DecisionCachedPass, Reason: reason, Condition: result, Cached: lookup.Record}
	case resultcache.StatusHitFail:
		reason := fmt.Sprintf("failed at %s, no tracked file changed since", formatTime(lookup.Record.At))
		return Outcome{Decision: DecisionCachedFail, Reason: reason, Condition: result, Cached: lookup.Record}
	default:
		return Outcome{Decision: DecisionRun, Condition: result}
	}
}

// Complete records the verdict of an executed task.
// A pass advances the watermark to HEAD. A failure freezes it, or moves it to a snapshot
// of the working tree if the task resets on failure. The session counter of the task is reset,
// and the run is recorded for the result cache and the "filesChanged" trigger.
func (g *Gate) Complete(ctx context.Context, t task.Task, in Input, verdict resultcache.Verdict) error {
	logger := g.logger.With(attribute.String("task", t.Name), attribute.String("verdict", string(verdict)))
	errs := errors.NewMultiError()

	switch verdict {
	case resultcache.VerdictPass:
		if err := g.churn.AdvanceToHead(ctx, t.Key()); errors.Is(err, churn.ErrRegress) {
			// HEAD moved back, for example by a reset, the watermark stays
			logger.Warn(ctx, err.Error())
		} else if err != nil {
			errs.AppendWithPrefix(err, "cannot advance watermark")
		}
	case resultcache.VerdictFail:
		if t.ResetOnFail {
			if _, err := g.churn.SnapshotReset(ctx, t.Key()); err != nil {
				errs.AppendWithPrefix(err, "cannot reset watermark")
			}
		} else {
			logger.Debugf(ctx, `Task "%s" failed, watermark is unchanged.`, t.Name)
		}
	default:
		return errors.Errorf(`unexpected verdict "%s", expected "pass" or "fail"`, verdict)
	}

	if err := g.sessions.RecordTaskRun(ctx, in.SessionID, t.Key()); err != nil {
		errs.Append(err)
	}

	if _, err := g.cache.Store(ctx, t.Name, verdict); err != nil {
		errs.AppendWithPrefix(err, "cannot store run record")
	}

	if err := errs.ErrorOrNil(); err != nil {
		return errors.PrefixErrorf(err, `cannot complete task "%s"`, t.Name)
	}
	logger.Infof(ctx, `Task "%s" completed: %s.`, t.Name, verdict)
	return nil
}

// RecordWrite adds lines written to the path to the session total
// and to the gross churn of each task watching the path.
// The path is absolute or relative to the project dir.
func (g *Gate) RecordWrite(ctx context.Context, in Input, path string, lines int64) error {
	if lines <= 0 {
		return nil
	}

	relPath, err := g.relPath(path)
	if err != nil {
		return err
	}

	errs := errors.NewMultiError()
	if err := g.sessions.RecordWrite(ctx, in.SessionID, lines); err != nil {
		errs.Append(err)
	}
	if relPath == ".." || strings.HasPrefix(relPath, "../") {
		g.logger.Debugf(ctx, `Path "%s" is outside the project dir, only the session total is updated.`, path)
		return errs.ErrorOrNil()
	}
	for _, t := range g.tasks.Matching(relPath) {
		if err := g.churn.IncrementGross(ctx, t.Key(), lines); err != nil {
			errs.AppendWithPrefixf(err, `cannot update gross churn of task "%s"`, t.Name)
		}
	}
	return errs.ErrorOrNil()
}

// Reset drops the watermark, the gross churn counter and the run record of the task.
// The next evaluation starts from the repository origin.
func (g *Gate) Reset(ctx context.Context, t task.Task) error {
	errs := errors.NewMultiError()
	if err := g.churn.Reset(ctx, t.Key()); err != nil {
		errs.Append(err)
	}
	if err := g.cache.Remove(ctx, t.Name); err != nil {
		errs.AppendWithPrefix(err, "cannot remove run record")
	}
	if err := errs.ErrorOrNil(); err != nil {
		return errors.PrefixErrorf(err, `cannot reset task "%s"`, t.Name)
	}
	g.logger.Infof(ctx, `Task "%s" has been reset.`, t.Name)
	return nil
}

func (g *Gate) relPath(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return filesystem.NormalizePattern(path), nil
	}
	rel, err := filepath.Rel(g.files.BasePath(), path)
	if err != nil {
		return "", errors.Errorf(`path "%s" is not in the project dir "%s"`, path, g.files.BasePath())
	}
	return filesystem.ToSlash(rel), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
