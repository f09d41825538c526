package validator

import (
	"context"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testTask struct {
	Name  string   `yaml:"name" validate:"required"`
	Files []string `yaml:"files" validate:"dive,glob"`
	Other string   `json:"other" validate:"required"`
	Plain string   `validate:"required"`
}

func TestValidateStruct(t *testing.T) {
	t.Parallel()
	err := New().Validate(context.Background(), testTask{Files: []string{"src/**/*.go", "[abc"}})
	expected := `
- "name" is a required field
- "files[1]" is not a valid glob pattern
- "other" is a required field
- "Plain" is a required field
`
	require.Error(t, err)
	assert.Equal(t, strings.TrimSpace(expected), err.Error())
}

func TestValidateStruct_Valid(t *testing.T) {
	t.Parallel()
	err := New().Validate(context.Background(), &testTask{Name: "lint", Other: "x", Plain: "y"})
	assert.NoError(t, err)
}

func TestValidateValue(t *testing.T) {
	t.Parallel()
	err := New().ValidateValue("", "required")
	require.Error(t, err)
	assert.Equal(t, `is a required field`, err.Error())
}

func TestValidateValueAddNamespace(t *testing.T) {
	t.Parallel()
	err := New().ValidateCtx(context.Background(), "", "required", "my.value")
	require.Error(t, err)
	assert.Equal(t, `"my.value" is a required field`, err.Error())
}

func TestValidateErrorMsgFunc(t *testing.T) {
	t.Parallel()
	rule := Rule{
		Tag: "my_rule",
		Func: func(_ context.Context, fl validator.FieldLevel) bool {
			return false
		},
		ErrorMsgFunc: func(fe validator.FieldError) string {
			if fe.Value() == "foo" {
				return "error message for foo"
			}
			return "other error message"
		},
	}

	err := New(rule).ValidateCtx(context.Background(), "foo", "my_rule", "my.value")
	require.Error(t, err)
	assert.Equal(t, `"my.value" error message for foo`, err.Error())

	err = New(rule).ValidateCtx(context.Background(), "other", "my_rule", "my.value")
	require.Error(t, err)
	assert.Equal(t, `"my.value" other error message`, err.Error())
}

func TestValidatorRequiredNotEmpty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	v := New()

	// String
	require.NoError(t, v.ValidateCtx(ctx, `value`, `required_not_empty`, `some_field`))
	err := v.ValidateCtx(ctx, ``, `required_not_empty`, `some_field`)
	require.Error(t, err)
	assert.Equal(t, `"some_field" is a required field`, err.Error())

	// Array
	require.NoError(t, v.ValidateCtx(ctx, []int{1, 2, 3}, `required_not_empty`, `some_field`))
	err = v.ValidateCtx(ctx, []int{}, `required_not_empty`, `some_field`)
	require.Error(t, err)
	assert.Equal(t, `"some_field" is a required field`, err.Error())
}

func TestValidatorGlob(t *testing.T) {
	t.Parallel()
	cases := []struct {
		value string
		valid bool
	}{
		{"**/*.js", true},
		{"./src/*.go", true},
		{"docs/{a,b}.md", true},
		{"[abc", false},
		{"", false},
	}

	v := New()
	for i, c := range cases {
		err := v.ValidateCtx(context.Background(), c.value, `glob`, `files`)
		if c.valid {
			require.NoError(t, err, `case: %d`, i+1)
		} else {
			require.Error(t, err, `case: %d`, i+1)
			assert.Equal(t, `"files" is not a valid glob pattern`, err.Error(), `case: %d`, i+1)
		}
	}
}

func TestValidatorStartsWith(t *testing.T) {
	t.Parallel()
	v := New()

	require.NoError(t, v.ValidateCtx(context.Background(), "refs/devgate", "startswith=refs/", "namespace"))

	err := v.ValidateCtx(context.Background(), "heads/devgate", "startswith=refs/", "namespace")
	require.Error(t, err)
	assert.Equal(t, `"namespace" must start with text 'refs/'`, err.Error())
}
