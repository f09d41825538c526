package task

import (
	"bytes"
	"context"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/keboola/devgate/internal/pkg/filesystem"
	"github.com/keboola/devgate/internal/pkg/utils/errors"
	"github.com/keboola/devgate/internal/pkg/validator"
)

var ErrInvalidDefinition = errors.New("invalid task definition")

// Tasks are task definitions in the declared order.
type Tasks struct {
	byName map[string]Task
	all    []Task
}

type file struct {
	Tasks []Task `yaml:"tasks" validate:"dive"`
}

func NewTasks(tasks ...Task) (*Tasks, error) {
	out := &Tasks{byName: make(map[string]Task)}
	keys := make(map[string]string)
	errs := errors.NewMultiError()
	for _, t := range tasks {
		if _, found := out.byName[t.Name]; found {
			errs.Append(errors.Errorf(`task "%s" is defined more than once`, t.Name))
			continue
		}
		if other, found := keys[t.Key()]; found {
			errs.Append(errors.Errorf(`tasks "%s" and "%s" have the same key "%s"`, other, t.Name, t.Key()))
			continue
		}
		keys[t.Key()] = t.Name
		out.byName[t.Name] = t
		out.all = append(out.all, t)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, errors.NewNestedError(ErrInvalidDefinition, err)
	}
	return out, nil
}

// Load tasks from a YAML file, JSON is accepted too.
func Load(ctx context.Context, fs filesystem.Fs, path string) (*Tasks, error) {
	content, err := fs.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf(`cannot read tasks file "%s": %w`, path, err)
	}

	tasks, err := Parse(ctx, content)
	if err != nil {
		return nil, errors.PrefixErrorf(err, `cannot load tasks file "%s"`, path)
	}
	return tasks, nil
}

func Parse(ctx context.Context, content []byte) (*Tasks, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)

	var f file
	if err := decoder.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.NewNestedError(ErrInvalidDefinition, err)
	}

	if err := validator.New().Validate(ctx, f); err != nil {
		return nil, errors.NewNestedError(ErrInvalidDefinition, err)
	}

	for i := range f.Tasks {
		for j, pattern := range f.Tasks[i].Files {
			f.Tasks[i].Files[j] = filesystem.NormalizePattern(pattern)
		}
	}

	return NewTasks(f.Tasks...)
}

func (v *Tasks) All() []Task {
	out := make([]Task, len(v.all))
	copy(out, v.all)
	return out
}

func (v *Tasks) Get(name string) (Task, bool) {
	t, found := v.byName[name]
	return t, found
}

// Matching returns tasks watching the path.
func (v *Tasks) Matching(path string) []Task {
	var out []Task
	for _, t := range v.all {
		if t.MatchPath(path) {
			out = append(out, t)
		}
	}
	return out
}
