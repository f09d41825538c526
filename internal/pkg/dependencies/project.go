package dependencies

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/keboola/devgate/internal/pkg/churn"
	"github.com/keboola/devgate/internal/pkg/condition"
	"github.com/keboola/devgate/internal/pkg/config"
	"github.com/keboola/devgate/internal/pkg/filesystem"
	"github.com/keboola/devgate/internal/pkg/filesystem/aferofs"
	"github.com/keboola/devgate/internal/pkg/gate"
	"github.com/keboola/devgate/internal/pkg/git"
	"github.com/keboola/devgate/internal/pkg/resultcache"
	"github.com/keboola/devgate/internal/pkg/session"
	"github.com/keboola/devgate/internal/pkg/task"
	"github.com/keboola/devgate/internal/pkg/utils/errors"
)

// ProjectScope contains dependencies bound to a project dir.
// The session database and tasks are opened lazily, so a command uses only what it needs.
type ProjectScope interface {
	BaseScope
	Config() config.Config
	ProjectDir() string
	ProjectFs() filesystem.Fs
	Tasks() (*task.Tasks, error)
	ChurnStore() *churn.Store
	ResultCache() *resultcache.Cache
	SessionCounter() (*session.Counter, error)
	Evaluator() (*condition.Evaluator, error)
	Gate() (*gate.Gate, error)
	Close() error
}

type projectScope struct {
	BaseScope
	config     config.Config
	projectDir string
	projectFs  filesystem.Fs
	churnStore *churn.Store
	cache      *resultcache.Cache
	tasks      lazy[*task.Tasks]
	sessions   lazy[*session.Counter]
	evaluator  lazy[*condition.Evaluator]
	gate       lazy[*gate.Gate]
}

// ProjectDir returns the root of the git working tree containing the working dir, or the working dir itself.
func ProjectDir(workingDir string) string {
	if root, found := git.FindRoot(workingDir); found {
		return root
	}
	return workingDir
}

func NewProjectScope(ctx context.Context, base BaseScope, cfg config.Config, projectDir string) (ProjectScope, error) {
	projectFs, err := aferofs.NewLocalFs(projectDir)
	if err != nil {
		return nil, errors.PrefixError(err, "cannot open project dir")
	}

	// Files written by the gate itself are never tracked
	if rel, err := filepath.Rel(projectDir, cfg.StateDir); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		projectFs = projectFs.WithIgnored(rel)
	}

	stateFs, err := aferofs.NewLocalFs(cfg.StateDir)
	if err != nil {
		return nil, errors.PrefixError(err, "cannot open state dir")
	}

	churnStore, err := churn.Open(ctx, base, projectDir, cfg.RefNamespace)
	if err != nil {
		return nil, err
	}

	return &projectScope{
		BaseScope:  base,
		config:     cfg,
		projectDir: projectDir,
		projectFs:  projectFs,
		churnStore: churnStore,
		cache:      resultcache.New(base, stateFs, projectFs),
	}, nil
}

func (v *projectScope) Config() config.Config {
	return v.config
}

func (v *projectScope) ProjectDir() string {
	return v.projectDir
}

func (v *projectScope) ProjectFs() filesystem.Fs {
	return v.projectFs
}

func (v *projectScope) Tasks() (*task.Tasks, error) {
	return v.tasks.InitAndGet(func() (*task.Tasks, error) {
		fs, err := aferofs.NewLocalFs(filepath.Dir(v.config.TasksFile))
		if err != nil {
			return nil, err
		}
		return task.Load(context.Background(), fs, filepath.Base(v.config.TasksFile))
	})
}

func (v *projectScope) ChurnStore() *churn.Store {
	return v.churnStore
}

func (v *projectScope) ResultCache() *resultcache.Cache {
	return v.cache
}

func (v *projectScope) SessionCounter() (*session.Counter, error) {
	return v.sessions.InitAndGet(func() (*session.Counter, error) {
		ctx := context.Background()
		sessions, err := session.Open(ctx, v, v.config.SessionDB)
		if err != nil {
			// Session triggers evaluate to 0, other triggers keep working
			v.Logger().Warnf(ctx, `Session counter is disabled: %s`, err.Error())
			return session.Disabled(v), nil
		}
		return sessions, nil
	})
}

func (v *projectScope) Evaluator() (*condition.Evaluator, error) {
	return v.evaluator.InitAndGet(func() (*condition.Evaluator, error) {
		sessions, err := v.SessionCounter()
		if err != nil {
			return nil, err
		}
		return condition.NewEvaluator(v, v.churnStore, sessions, v.cache, v.projectFs), nil
	})
}

func (v *projectScope) Gate() (*gate.Gate, error) {
	return v.gate.InitAndGet(func() (*gate.Gate, error) {
		return gate.New(v)
	})
}

// Close the session database, if it has been opened.
func (v *projectScope) Close() error {
	sessions, err := v.sessions.InitAndGet(func() (*session.Counter, error) {
		return nil, nil
	})
	if err != nil || sessions == nil {
		return nil
	}
	return sessions.Close()
}
