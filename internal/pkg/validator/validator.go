// Package validator wraps go-playground/validator with English error messages
// and field names taken from "yaml" or "json" struct tags.
package validator

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslation "github.com/go-playground/validator/v10/translations/en"

	"github.com/keboola/devgate/internal/pkg/filesystem"
	"github.com/keboola/devgate/internal/pkg/utils/errors"
)

type Rule struct {
	Tag          string
	Func         validator.FuncCtx
	ErrorMsg     string
	ErrorMsgFunc func(fe validator.FieldError) string
}

type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func New(rules ...Rule) *Validator {
	v := &Validator{validate: validator.New()}

	// Register default EN translator
	enLocale := en.New()
	translator, found := ut.New(enLocale, enLocale).GetTranslator("en")
	if !found {
		panic(errors.New("en translator was not found"))
	}
	if err := enTranslation.RegisterDefaultTranslations(v.validate, translator); err != nil {
		panic(errors.Errorf("translator was not registered: %w", err))
	}
	v.translator = translator

	// Use "yaml" or "json" field name in error messages
	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if fld.Anonymous {
			return "__nested__"
		}
		for _, tag := range []string{"yaml", "json"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return fld.Name
	})

	v.registerRules(defaultRules()...)
	v.registerRules(rules...)
	return v
}

// Validate struct or slice of structs.
func (v *Validator) Validate(ctx context.Context, value any) error {
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Struct {
		return v.wrapErr(v.validate.StructCtx(ctx, value), "")
	}
	return v.ValidateCtx(ctx, value, "dive", "")
}

// ValidateValue validates a single value against the tag.
func (v *Validator) ValidateValue(value any, tag string) error {
	return v.ValidateCtx(context.Background(), value, tag, "")
}

// ValidateCtx validates the value, error messages are prefixed by the namespace.
func (v *Validator) ValidateCtx(ctx context.Context, value any, tag string, namespace string) error {
	return v.wrapErr(v.validate.VarCtx(ctx, value, tag), namespace)
}

func (v *Validator) wrapErr(err error, namespace string) error {
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return v.processValidateErrors(validationErrs, namespace)
	}
	return errors.Errorf("validation failed: %w", err)
}

func (v *Validator) registerRules(rules ...Rule) {
	for _, rule := range rules {
		if err := v.validate.RegisterValidationCtx(rule.Tag, rule.Func); err != nil {
			panic(err)
		}

		rule := rule
		registerFn := func(ut ut.Translator) error {
			return ut.Add(rule.Tag, "{0} "+rule.ErrorMsg, true)
		}
		translationFn := func(ut ut.Translator, fe validator.FieldError) string {
			if rule.ErrorMsgFunc != nil {
				return fe.Field() + " " + rule.ErrorMsgFunc(fe)
			}
			t, _ := ut.T(fe.Tag(), fe.Field())
			return t
		}
		if err := v.validate.RegisterTranslation(rule.Tag, v.translator, registerFn, translationFn); err != nil {
			panic(err)
		}
	}
}

func (v *Validator) processValidateErrors(errs validator.ValidationErrors, namespace string) error {
	result := errors.NewMultiError()
	for _, e := range errs {
		field := fieldPath(namespace, e.Namespace())
		msg := strings.TrimSpace(strings.TrimPrefix(e.Translate(v.translator), e.Field()))
		if field == "" {
			result.Append(errors.New(msg))
		} else {
			result.Append(errors.Errorf(`"%s" %s`, field, msg))
		}
	}

	if result.Len() == 1 {
		return result.WrappedErrors()[0]
	}
	return result.ErrorOrNil()
}

// fieldPath removes the struct name (first part) and __nested__ parts from the validator namespace.
func fieldPath(prefix, namespace string) string {
	namespace = strings.ReplaceAll(namespace, "__nested__.", "")
	parts := strings.SplitN(namespace, ".", 2)

	var path string
	switch {
	case len(parts) == 2:
		path = parts[1]
	case strings.HasPrefix(namespace, "["):
		path = namespace
	}

	switch {
	case prefix == "":
		return path
	case path == "":
		return prefix
	case strings.HasPrefix(path, "["):
		return prefix + path
	default:
		return fmt.Sprintf("%s.%s", prefix, path)
	}
}

func defaultRules() []Rule {
	return []Rule{
		{
			Tag: "required_not_empty",
			Func: func(_ context.Context, fl validator.FieldLevel) bool {
				return fl.Field().IsValid() && !fl.Field().IsZero() && (!isCollection(fl.Field()) || fl.Field().Len() > 0)
			},
			ErrorMsg: "is a required field",
		},
		{
			Tag: "glob",
			Func: func(_ context.Context, fl validator.FieldLevel) bool {
				return filesystem.ValidatePatterns([]string{fl.Field().String()}) == nil
			},
			ErrorMsg: "is not a valid glob pattern",
		},
		{
			// The EN translations have no message for the builtin "startswith" tag.
			Tag: "startswith",
			Func: func(_ context.Context, fl validator.FieldLevel) bool {
				return strings.HasPrefix(fl.Field().String(), fl.Param())
			},
			ErrorMsgFunc: func(fe validator.FieldError) string {
				return fmt.Sprintf("must start with text '%s'", fe.Param())
			},
		},
	}
}

func isCollection(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return true
	default:
		return false
	}
}
