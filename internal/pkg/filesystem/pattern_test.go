package filesystem

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePattern(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "src/*.js", NormalizePattern("./src/*.js"))
	assert.Equal(t, "**/*.go", NormalizePattern(" **/*.go "))
	assert.Equal(t, "a.txt", NormalizePattern("././a.txt"))
}

func TestValidatePatterns(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidatePatterns([]string{"**/*.js", "src/[a-z]*.go"}))

	err := ValidatePatterns([]string{"src/[a-z.go", ""})
	if assert.Error(t, err) {
		assert.Equal(t, "- pattern \"src/[a-z.go\" is not valid\n- pattern cannot be empty", err.Error())
	}
}

func TestMatchAny(t *testing.T) {
	t.Parallel()

	cases := []struct {
		patterns []string
		path     string
		expected bool
	}{
		{patterns: nil, path: "anything.txt", expected: true},
		{patterns: []string{"**/*.js"}, path: "index.js", expected: true},
		{patterns: []string{"**/*.js"}, path: "src/lib/util.js", expected: true},
		{patterns: []string{"**/*.js"}, path: "src/lib/util.ts", expected: false},
		{patterns: []string{"src/*.go"}, path: "src/sub/main.go", expected: false},
		{patterns: []string{"docs/**", "src/*.go"}, path: "./src/main.go", expected: true},
	}

	for _, c := range cases {
		assert.Equal(t, c.expected, MatchAny(c.patterns, c.path), "%v %s", c.patterns, c.path)
	}
}
