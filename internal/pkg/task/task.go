// Package task contains definitions of gated checks and their storage keys.
package task

import (
	"sort"

	"github.com/umisama/go-regexpcache"
	"gopkg.in/yaml.v3"

	"github.com/keboola/devgate/internal/pkg/filesystem"
)

// Task is a check bound to a lifecycle event, it is executed only when its conditions hold.
type Task struct {
	Name string `yaml:"name" validate:"required"`
	// Files are glob patterns, relative to the repository root.
	// They restrict net churn, match recorded writes and are tracked by the result cache,
	// so they are required if the cache is enabled.
	Files []string `yaml:"files" validate:"required_if=Cache true,dive,glob"`
	// When maps condition keys to their values, see the condition package.
	When Conditions `yaml:"when"`
	// Cache enables the result cache for idempotent checks.
	Cache bool `yaml:"cache"`
	// ResetOnFail moves the watermark to a snapshot of the working tree after a failed run.
	ResetOnFail bool `yaml:"resetOnFail"`
}

// Conditions are raw values as they were decoded, they are interpreted by the evaluator.
type Conditions map[string]any

// MalformedKey holds the raw "when" value, if it is not a map.
// The evaluator reports it, so one malformed task does not break loading of the others.
const MalformedKey = ""

func (c *Conditions) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	if node.Kind == yaml.MappingNode {
		m := make(map[string]any)
		if err := node.Decode(&m); err != nil {
			return err
		}
		*c = m
		return nil
	}

	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*c = Conditions{MalformedKey: raw}
	return nil
}

// Key is the task name usable as a ref or file name.
func (t Task) Key() string {
	return Key(t.Name)
}

// MatchPath reports whether a written path, relative to the repository root, belongs to the task.
func (t Task) MatchPath(path string) bool {
	return filesystem.MatchAny(t.Files, path)
}

// Keys of the conditions, sorted.
func (c Conditions) Keys() []string {
	out := make([]string, 0, len(c))
	for k := range c {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Key replaces each character other than an ASCII letter or a digit with "_".
func Key(name string) string {
	return regexpcache.MustCompile(`[^a-zA-Z0-9]`).ReplaceAllString(name, "_")
}
