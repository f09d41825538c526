package filesystem

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/keboola/devgate/internal/pkg/utils/errors"
)

// NormalizePattern converts a user defined glob to the internal form, "./src/*.js" -> "src/*.js".
func NormalizePattern(pattern string) string {
	pattern = ToSlash(strings.TrimSpace(pattern))
	for strings.HasPrefix(pattern, "./") {
		pattern = strings.TrimPrefix(pattern, "./")
	}
	return pattern
}

// ValidatePatterns returns an error for each malformed glob.
func ValidatePatterns(patterns []string) error {
	errs := errors.NewMultiError()
	for _, pattern := range patterns {
		normalized := NormalizePattern(pattern)
		if normalized == "" {
			errs.Append(errors.New("pattern cannot be empty"))
			continue
		}
		if !doublestar.ValidatePattern(normalized) {
			errs.Append(errors.Errorf(`pattern "%s" is not valid`, pattern))
		}
	}
	return errs.ErrorOrNil()
}

// MatchAny reports whether the relative path matches at least one pattern.
// No pattern means no restriction, so everything matches.
func MatchAny(patterns []string, p string) bool {
	if len(patterns) == 0 {
		return true
	}
	p = NormalizePattern(p)
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(NormalizePattern(pattern), p); err == nil && ok {
			return true
		}
	}
	return false
}
