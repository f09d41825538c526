package condition

import (
	"strings"

	"github.com/spf13/cast"

	"github.com/keboola/devgate/internal/pkg/filesystem"
	"github.com/keboola/devgate/internal/pkg/utils/errors"
)

// Prerequisites are ANDed, they are evaluated in the declared order.
const (
	KeyFileExists = "fileExists"
	KeyEnvSet     = "envSet"
	KeyEnvNotSet  = "envNotSet"
	KeyVarSet     = "varSet"
)

// Triggers are ORed.
const (
	KeyLinesChanged        = "linesChanged"
	KeyLinesWritten        = "linesWritten"
	KeySessionLinesWritten = "sessionLinesWritten"
	KeyFilesChanged        = "filesChanged"
)

type kind int

const (
	kindPrerequisite kind = iota
	kindTrigger
)

type valueType int

const (
	valueNames valueType = iota
	valueThreshold
	valuePatterns
)

type keyDefinition struct {
	name      string
	kind      kind
	valueType valueType
}

// nolint: gochecknoglobals
var definitions = []keyDefinition{
	{name: KeyFileExists, kind: kindPrerequisite, valueType: valueNames},
	{name: KeyEnvSet, kind: kindPrerequisite, valueType: valueNames},
	{name: KeyEnvNotSet, kind: kindPrerequisite, valueType: valueNames},
	{name: KeyVarSet, kind: kindPrerequisite, valueType: valueNames},
	{name: KeyLinesChanged, kind: kindTrigger, valueType: valueThreshold},
	{name: KeyLinesWritten, kind: kindTrigger, valueType: valueThreshold},
	{name: KeySessionLinesWritten, kind: kindTrigger, valueType: valueThreshold},
	{name: KeyFilesChanged, kind: kindTrigger, valueType: valuePatterns},
}

func definitionOf(key string) (keyDefinition, bool) {
	for _, def := range definitions {
		if def.name == key {
			return def, true
		}
	}
	return keyDefinition{}, false
}

// parsed is a validated condition value.
type parsed struct {
	names     []string
	threshold int64
}

func parseValue(def keyDefinition, value any) (parsed, error) {
	switch def.valueType {
	case valueThreshold:
		return parseThreshold(value)
	case valuePatterns:
		names, err := parseNames(value)
		if err != nil {
			return parsed{}, err
		}
		if err := filesystem.ValidatePatterns(names); err != nil {
			return parsed{}, err
		}
		for i, n := range names {
			names[i] = filesystem.NormalizePattern(n)
		}
		return parsed{names: names, threshold: 1}, nil
	default:
		names, err := parseNames(value)
		return parsed{names: names}, err
	}
}

func parseThreshold(value any) (parsed, error) {
	switch value.(type) {
	case bool, nil, []any, map[string]any:
		return parsed{}, errors.Errorf(`expected a number, found %s`, describe(value))
	}
	n, err := cast.ToInt64E(value)
	if err != nil {
		return parsed{}, errors.Errorf(`expected a number, found %s`, describe(value))
	}
	if n < 0 {
		return parsed{}, errors.Errorf(`threshold cannot be negative, found %d`, n)
	}
	return parsed{threshold: n}, nil
}

// parseNames accepts a string or a non-empty list of strings.
func parseNames(value any) ([]string, error) {
	var items []any
	switch v := value.(type) {
	case string:
		items = []any{v}
	case []string:
		for _, item := range v {
			items = append(items, item)
		}
	case []any:
		items = v
	default:
		return nil, errors.Errorf(`expected a string or a list of strings, found %s`, describe(value))
	}

	if len(items) == 0 {
		return nil, errors.New(`expected a string or a list of strings, found an empty list`)
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		str, ok := item.(string)
		if !ok || strings.TrimSpace(str) == "" {
			return nil, errors.Errorf(`expected a non-empty string, found %s`, describe(item))
		}
		out = append(out, strings.TrimSpace(str))
	}
	return out, nil
}

func describe(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		if v == "" {
			return "an empty string"
		}
		return `"` + v + `"`
	case []any, []string:
		return "a list"
	case map[string]any:
		return "an object"
	default:
		return cast.ToString(v)
	}
}
