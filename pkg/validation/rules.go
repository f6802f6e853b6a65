package validation

import (
	"context"
	"fmt"
	"strings"
)

// Rule types form a closed enumeration. An unrecognized type never passes
// silently: the engine reports it as an unsupported-type failure.
const (
	TypeRequired = "required"
	TypeEmail    = "email"
	TypePhone    = "phone"
	TypeNumber   = "number"
	TypeInteger  = "integer"
	TypeString   = "string"
	TypeText     = "text"
	TypeRegex    = "regex"
	TypeURL      = "url"
	TypeDate     = "date"
	TypeBoolean  = "boolean"
	TypeEnum     = "enum"
	TypeCustom   = "custom"
)

// Rule is a single declarative constraint on one field. Rules are stateless;
// the same rule value may be evaluated concurrently.
type Rule struct {
	Field    string   `json:"field" yaml:"field"`
	Type     string   `json:"type" yaml:"type"`
	Required bool     `json:"required,omitempty" yaml:"required,omitempty"`
	Pattern  string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Min      *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max      *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Options  []string `json:"options,omitempty" yaml:"options,omitempty"`
	// Validator names a registered custom validator for TypeCustom rules.
	Validator string `json:"validator,omitempty" yaml:"validator,omitempty"`
	// Message overrides the default failure message.
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

// FieldError is one rule failure.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Result is the outcome of validating a value or a record.
type Result struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors,omitempty"`
	// Data holds transformed values keyed by field (lower-cased emails,
	// coerced numbers, ISO dates, ...).
	Data map[string]any `json:"data,omitempty"`
}

// Message returns the first failure message, or empty when valid.
func (r Result) Message() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0].Message
}

// ErrorMessages flattens all failure messages into one string.
func (r Result) ErrorMessages() string {
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}

// Outcome is the result of a custom validator.
type Outcome struct {
	Valid       bool
	Message     string
	Transformed any
}

// CustomValidator is the plugin surface for caller-supplied validation logic,
// dispatched by name from TypeCustom rules.
type CustomValidator interface {
	Validate(ctx context.Context, value any, data map[string]any) (Outcome, error)
}

// ValidatorResolver looks custom validators up by name. The registry package
// provides the standard implementation.
type ValidatorResolver interface {
	ResolveValidator(name string) (CustomValidator, bool)
}

// CustomValidatorFunc adapts a function to the CustomValidator interface.
type CustomValidatorFunc func(ctx context.Context, value any, data map[string]any) (Outcome, error)

// Validate implements CustomValidator.
func (f CustomValidatorFunc) Validate(ctx context.Context, value any, data map[string]any) (Outcome, error) {
	return f(ctx, value, data)
}
