package validation

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/awoulbe/chatflow/internal/logging"
)

// Config controls engine-wide evaluation behavior. It can be swapped at
// runtime through UpdateConfig.
type Config struct {
	// StopOnFirstError halts rule evaluation at the first failure, for both
	// single-value and schema validation.
	StopOnFirstError bool
	// TrimStrings trims surrounding whitespace before evaluating string input.
	TrimStrings bool
	// ConvertTypes stores coerced values (numbers, booleans, dates) in the
	// result data instead of the raw input.
	ConvertTypes bool
	// StrictMode is reported to callers but carries no internal branch.
	StrictMode bool
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		TrimStrings:  true,
		ConvertTypes: true,
	}
}

// Engine evaluates declarative rules against raw values. It is safe for
// concurrent use.
type Engine struct {
	mu       sync.RWMutex
	cfg      Config
	resolver ValidatorResolver
	logger   *slog.Logger
}

// Option configures the Engine.
type Option func(*Engine)

// WithConfig sets the initial configuration.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithResolver injects the custom validator lookup.
func WithResolver(r ValidatorResolver) Option {
	return func(e *Engine) { e.resolver = r }
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates a validation engine with defaults.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	return e
}

// Config returns the current configuration.
func (e *Engine) Config() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// UpdateConfig replaces the configuration.
func (e *Engine) UpdateConfig(cfg Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
}

// Validate evaluates all rules against a single value. The data map carries
// already-collected fields for custom validators; it may be nil.
func (e *Engine) Validate(ctx context.Context, value any, rules []Rule, data map[string]any) Result {
	cfg := e.Config()
	result := Result{Valid: true, Data: make(map[string]any)}

	for _, rule := range rules {
		transformed, ferr := e.evalRule(ctx, cfg, value, rule, data)
		if ferr != nil {
			result.Valid = false
			result.Errors = append(result.Errors, *ferr)
			if cfg.StopOnFirstError {
				break
			}
			continue
		}
		key := rule.Field
		if key == "" {
			key = "value"
		}
		result.Data[key] = transformed
	}
	return result
}

// ValidateSchema validates a record field by field against a schema of rules.
// Field order is deterministic (lexicographic) so StopOnFirstError behaves
// predictably.
func (e *Engine) ValidateSchema(ctx context.Context, record map[string]any, schema map[string][]Rule) Result {
	cfg := e.Config()
	result := Result{Valid: true, Data: make(map[string]any)}

	fields := make([]string, 0, len(schema))
	for f := range schema {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, field := range fields {
		value := record[field]
		for _, rule := range schema[field] {
			if rule.Field == "" {
				rule.Field = field
			}
			transformed, ferr := e.evalRule(ctx, cfg, value, rule, record)
			if ferr != nil {
				result.Valid = false
				result.Errors = append(result.Errors, *ferr)
				if cfg.StopOnFirstError {
					return result
				}
				continue
			}
			result.Data[field] = transformed
		}
	}
	return result
}

// evalRule runs one rule. A panic inside the evaluation is converted into a
// field error rather than propagated.
func (e *Engine) evalRule(ctx context.Context, cfg Config, value any, rule Rule, data map[string]any) (transformed any, ferr *FieldError) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("rule evaluation panicked", "field", rule.Field, "rule", rule.Type, "panic", r)
			transformed = nil
			ferr = rule.fail("validation failed, please try again")
		}
	}()

	prepared := value
	if s, ok := value.(string); ok && cfg.TrimStrings {
		prepared = strings.TrimSpace(s)
	}

	if isEmpty(prepared) {
		if rule.Required || rule.Type == TypeRequired {
			return nil, rule.fail(fmt.Sprintf("%s is required", rule.fieldName()))
		}
		return prepared, nil
	}

	switch rule.Type {
	case TypeRequired:
		return prepared, nil
	case TypeEmail:
		return e.checkEmail(prepared, rule)
	case TypePhone:
		return e.checkPhone(prepared, rule)
	case TypeNumber:
		return e.checkNumber(cfg, prepared, rule)
	case TypeInteger:
		return e.checkInteger(cfg, prepared, rule)
	case TypeString, TypeText:
		return e.checkString(prepared, rule)
	case TypeRegex:
		return e.checkRegex(prepared, rule)
	case TypeURL:
		return e.checkURL(prepared, rule)
	case TypeDate:
		return e.checkDate(cfg, prepared, rule)
	case TypeBoolean:
		return e.checkBoolean(cfg, prepared, rule)
	case TypeEnum:
		return e.checkEnum(prepared, rule)
	case TypeCustom:
		return e.checkCustom(ctx, prepared, rule, data)
	default:
		return nil, rule.fail(fmt.Sprintf("unsupported rule type %q", rule.Type))
	}
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func (e *Engine) checkEmail(value any, rule Rule) (any, *FieldError) {
	s := asString(value)
	if !emailPattern.MatchString(s) {
		return nil, rule.fail(fmt.Sprintf("%s must be a valid email address", rule.fieldName()))
	}
	return strings.ToLower(s), nil
}

// phonePattern matches Cameroonian mobile numbers, with or without the
// country prefix: +237 6XX XX XX XX.
var phonePattern = regexp.MustCompile(`^(\+?237)?6\d{8}$`)

func (e *Engine) checkPhone(value any, rule Rule) (any, *FieldError) {
	s := asString(value)
	stripped := strings.NewReplacer(" ", "", "-", "").Replace(s)
	if !phonePattern.MatchString(stripped) {
		return nil, rule.fail(fmt.Sprintf("%s must be a valid phone number", rule.fieldName()))
	}
	return stripped, nil
}

func (e *Engine) checkNumber(cfg Config, value any, rule Rule) (any, *FieldError) {
	n, ok := toFloat(value)
	if !ok {
		return nil, rule.fail(fmt.Sprintf("%s must be a number", rule.fieldName()))
	}
	if rule.Min != nil && n < *rule.Min {
		return nil, rule.fail(fmt.Sprintf("%s must be at least %v", rule.fieldName(), *rule.Min))
	}
	if rule.Max != nil && n > *rule.Max {
		return nil, rule.fail(fmt.Sprintf("%s must be at most %v", rule.fieldName(), *rule.Max))
	}
	if cfg.ConvertTypes {
		return n, nil
	}
	return value, nil
}

func (e *Engine) checkInteger(cfg Config, value any, rule Rule) (any, *FieldError) {
	n, ok := toInt(value)
	if !ok {
		return nil, rule.fail(fmt.Sprintf("%s must be a whole number", rule.fieldName()))
	}
	if rule.Min != nil && float64(n) < *rule.Min {
		return nil, rule.fail(fmt.Sprintf("%s must be at least %d", rule.fieldName(), int64(*rule.Min)))
	}
	if rule.Max != nil && float64(n) > *rule.Max {
		return nil, rule.fail(fmt.Sprintf("%s must be at most %d", rule.fieldName(), int64(*rule.Max)))
	}
	if cfg.ConvertTypes {
		return n, nil
	}
	return value, nil
}

func (e *Engine) checkString(value any, rule Rule) (any, *FieldError) {
	s := asString(value)
	length := float64(len([]rune(s)))
	if rule.Min != nil && length < *rule.Min {
		return nil, rule.fail(fmt.Sprintf("%s must be at least %d characters", rule.fieldName(), int64(*rule.Min)))
	}
	if rule.Max != nil && length > *rule.Max {
		return nil, rule.fail(fmt.Sprintf("%s must be at most %d characters", rule.fieldName(), int64(*rule.Max)))
	}
	return s, nil
}

func (e *Engine) checkRegex(value any, rule Rule) (any, *FieldError) {
	if rule.Pattern == "" {
		return nil, rule.fail("regex rule requires a pattern")
	}
	re, err := regexp.Compile(rule.Pattern)
	if err != nil {
		e.logger.Error("invalid rule pattern", "field", rule.Field, "pattern", rule.Pattern, "err", err)
		return nil, rule.fail("invalid validation pattern")
	}
	s := asString(value)
	if !re.MatchString(s) {
		return nil, rule.fail(fmt.Sprintf("%s has an invalid format", rule.fieldName()))
	}
	return s, nil
}

func (e *Engine) checkURL(value any, rule Rule) (any, *FieldError) {
	s := asString(value)
	u, err := url.ParseRequestURI(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, rule.fail(fmt.Sprintf("%s must be a valid URL", rule.fieldName()))
	}
	return s, nil
}

var dateLayouts = []string{"02/01/2006", "2006-01-02", "02-01-2006"}

func (e *Engine) checkDate(cfg Config, value any, rule Rule) (any, *FieldError) {
	if t, ok := value.(time.Time); ok {
		return t.Format("2006-01-02"), nil
	}
	s := asString(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if cfg.ConvertTypes {
				return t.Format("2006-01-02"), nil
			}
			return s, nil
		}
	}
	return nil, rule.fail(fmt.Sprintf("%s must be a valid date (DD/MM/YYYY)", rule.fieldName()))
}

// Boolean vocabulary: native booleans plus true/false, yes/no, oui/non, 1/0.
var (
	truthyTokens = map[string]bool{"true": true, "yes": true, "oui": true, "1": true}
	falsyTokens  = map[string]bool{"false": true, "no": true, "non": true, "0": true}
)

func (e *Engine) checkBoolean(cfg Config, value any, rule Rule) (any, *FieldError) {
	if b, ok := value.(bool); ok {
		return b, nil
	}
	token := strings.ToLower(asString(value))
	switch {
	case truthyTokens[token]:
		if cfg.ConvertTypes {
			return true, nil
		}
		return value, nil
	case falsyTokens[token]:
		if cfg.ConvertTypes {
			return false, nil
		}
		return value, nil
	}
	return nil, rule.fail(fmt.Sprintf("%s must be yes or no", rule.fieldName()))
}

func (e *Engine) checkEnum(value any, rule Rule) (any, *FieldError) {
	if len(rule.Options) == 0 {
		return nil, rule.fail("enum rule requires options")
	}
	s := asString(value)
	for _, opt := range rule.Options {
		if strings.EqualFold(s, opt) {
			return opt, nil
		}
	}
	return nil, rule.fail(fmt.Sprintf("%s must be one of: %s", rule.fieldName(), strings.Join(rule.Options, ", ")))
}

func (e *Engine) checkCustom(ctx context.Context, value any, rule Rule, data map[string]any) (any, *FieldError) {
	if rule.Validator == "" {
		return nil, rule.fail("custom rule requires a validator name")
	}
	if e.resolver == nil {
		return nil, rule.fail(fmt.Sprintf("unknown custom validator %q", rule.Validator))
	}
	validator, ok := e.resolver.ResolveValidator(rule.Validator)
	if !ok {
		return nil, rule.fail(fmt.Sprintf("unknown custom validator %q", rule.Validator))
	}
	outcome, err := validator.Validate(ctx, value, data)
	if err != nil {
		e.logger.Error("custom validator failed", "validator", rule.Validator, "field", rule.Field, "err", err)
		return nil, rule.fail("validation failed, please try again")
	}
	if !outcome.Valid {
		msg := outcome.Message
		if msg == "" {
			msg = fmt.Sprintf("%s is invalid", rule.fieldName())
		}
		return nil, rule.fail(msg)
	}
	if outcome.Transformed != nil {
		return outcome.Transformed, nil
	}
	return value, nil
}

// fail builds the rule's failure, honoring a configured message override.
func (r Rule) fail(defaultMsg string) *FieldError {
	msg := r.Message
	if msg == "" {
		msg = defaultMsg
	}
	return &FieldError{Field: r.Field, Rule: r.Type, Message: msg}
}

func (r Rule) fieldName() string {
	if r.Field == "" {
		return "value"
	}
	return r.Field
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	default:
		return false
	}
}

func asString(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func toInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		if v == float64(int64(v)) {
			return int(v), true
		}
		return 0, false
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return int(n), err == nil
	default:
		return 0, false
	}
}
