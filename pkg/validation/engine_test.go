package validation_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awoulbe/chatflow/pkg/registry"
	"github.com/awoulbe/chatflow/pkg/validation"
)

func floatPtr(f float64) *float64 { return &f }

func TestEngine_Validate_Types(t *testing.T) {
	engine := validation.NewEngine()
	ctx := context.Background()

	t.Run("Email", func(t *testing.T) {
		rules := []validation.Rule{{Field: "email", Type: validation.TypeEmail}}

		res := engine.Validate(ctx, "User@Example.COM", rules, nil)
		require.True(t, res.Valid)
		assert.Equal(t, "user@example.com", res.Data["email"])

		res = engine.Validate(ctx, "not-an-email", rules, nil)
		assert.False(t, res.Valid)
		assert.Contains(t, res.Message(), "valid email")
	})

	t.Run("Phone", func(t *testing.T) {
		rules := []validation.Rule{{Field: "phone", Type: validation.TypePhone}}

		for _, input := range []string{"677123456", "+237 677 123 456", "237677123456", "677-12-34-56-"} {
			res := engine.Validate(ctx, input, rules, nil)
			assert.True(t, res.Valid, "input %q should be valid", input)
		}
		// Separators are stripped in the stored value.
		res := engine.Validate(ctx, "+237 677 123 456", rules, nil)
		require.True(t, res.Valid)
		assert.Equal(t, "+237677123456", res.Data["phone"])

		for _, input := range []string{"577123456", "67712345", "abc"} {
			res := engine.Validate(ctx, input, rules, nil)
			assert.False(t, res.Valid, "input %q should be invalid", input)
		}
	})

	t.Run("Number Bounds", func(t *testing.T) {
		rules := []validation.Rule{{Field: "amount", Type: validation.TypeNumber, Min: floatPtr(100), Max: floatPtr(500000)}}

		res := engine.Validate(ctx, "2500.50", rules, nil)
		require.True(t, res.Valid)
		assert.Equal(t, 2500.50, res.Data["amount"])

		res = engine.Validate(ctx, "50", rules, nil)
		assert.False(t, res.Valid)

		res = engine.Validate(ctx, "600000", rules, nil)
		assert.False(t, res.Valid)
	})

	t.Run("Integer Conversion", func(t *testing.T) {
		rules := []validation.Rule{{Field: "qty", Type: validation.TypeInteger, Min: floatPtr(1)}}

		res := engine.Validate(ctx, "50", rules, nil)
		require.True(t, res.Valid)
		assert.Equal(t, 50, res.Data["qty"])

		res = engine.Validate(ctx, "0", rules, nil)
		assert.False(t, res.Valid)

		res = engine.Validate(ctx, "2.5", rules, nil)
		assert.False(t, res.Valid)
	})

	t.Run("Boolean Tokens", func(t *testing.T) {
		rules := []validation.Rule{{Field: "confirm", Type: validation.TypeBoolean}}

		for _, input := range []string{"true", "Yes", "OUI", "1"} {
			res := engine.Validate(ctx, input, rules, nil)
			require.True(t, res.Valid, "input %q", input)
			assert.Equal(t, true, res.Data["confirm"])
		}
		for _, input := range []string{"false", "no", "Non", "0"} {
			res := engine.Validate(ctx, input, rules, nil)
			require.True(t, res.Valid, "input %q", input)
			assert.Equal(t, false, res.Data["confirm"])
		}

		res := engine.Validate(ctx, "peut-être", rules, nil)
		assert.False(t, res.Valid)
	})

	t.Run("Date Normalization", func(t *testing.T) {
		rules := []validation.Rule{{Field: "due", Type: validation.TypeDate}}

		res := engine.Validate(ctx, "25/12/2026", rules, nil)
		require.True(t, res.Valid)
		assert.Equal(t, "2026-12-25", res.Data["due"])

		res = engine.Validate(ctx, "2026-12-25", rules, nil)
		assert.True(t, res.Valid)

		res = engine.Validate(ctx, "12/25/2026", rules, nil)
		assert.False(t, res.Valid, "month 25 should not parse")
	})

	t.Run("Enum Case Insensitive", func(t *testing.T) {
		rules := []validation.Rule{{Field: "size", Type: validation.TypeEnum, Options: []string{"small", "medium", "large"}}}

		res := engine.Validate(ctx, "MEDIUM", rules, nil)
		require.True(t, res.Valid)
		assert.Equal(t, "medium", res.Data["size"], "canonical option is stored")

		res = engine.Validate(ctx, "huge", rules, nil)
		assert.False(t, res.Valid)
		assert.Contains(t, res.Message(), "small, medium, large")
	})

	t.Run("String Length", func(t *testing.T) {
		rules := []validation.Rule{{Field: "name", Type: validation.TypeString, Min: floatPtr(2), Max: floatPtr(5)}}

		assert.True(t, engine.Validate(ctx, "Ana", rules, nil).Valid)
		assert.False(t, engine.Validate(ctx, "A", rules, nil).Valid)
		assert.False(t, engine.Validate(ctx, "Anastasia", rules, nil).Valid)
	})

	t.Run("URL", func(t *testing.T) {
		rules := []validation.Rule{{Field: "site", Type: validation.TypeURL}}

		assert.True(t, engine.Validate(ctx, "https://example.com/x", rules, nil).Valid)
		assert.False(t, engine.Validate(ctx, "example.com", rules, nil).Valid)
	})

	t.Run("Unknown Type", func(t *testing.T) {
		rules := []validation.Rule{{Field: "x", Type: "telepathy"}}

		res := engine.Validate(ctx, "anything", rules, nil)
		require.False(t, res.Valid)
		assert.Contains(t, res.Message(), `unsupported rule type "telepathy"`)
	})
}

func TestEngine_Validate_Required(t *testing.T) {
	engine := validation.NewEngine()
	ctx := context.Background()

	rules := []validation.Rule{{Field: "email", Type: validation.TypeEmail, Required: true}}

	res := engine.Validate(ctx, "   ", rules, nil)
	require.False(t, res.Valid)
	assert.Equal(t, "email is required", res.Message())

	// Optional empty values pass without touching the type check.
	optional := []validation.Rule{{Field: "email", Type: validation.TypeEmail}}
	res = engine.Validate(ctx, "", optional, nil)
	assert.True(t, res.Valid)
}

func TestEngine_Validate_StopOnFirstError(t *testing.T) {
	engine := validation.NewEngine(validation.WithConfig(validation.Config{
		StopOnFirstError: true,
		TrimStrings:      true,
		ConvertTypes:     true,
	}))
	ctx := context.Background()

	rules := []validation.Rule{
		{Field: "v", Type: validation.TypeInteger},
		{Field: "v", Type: validation.TypeEmail},
	}
	res := engine.Validate(ctx, "abc", rules, nil)
	require.False(t, res.Valid)
	assert.Len(t, res.Errors, 1, "evaluation stops at the first failure")

	all := validation.NewEngine()
	res = all.Validate(ctx, "abc", rules, nil)
	assert.Len(t, res.Errors, 2)
}

func TestEngine_Validate_MessageOverride(t *testing.T) {
	engine := validation.NewEngine()

	rules := []validation.Rule{{Field: "age", Type: validation.TypeInteger, Message: "Veuillez entrer un nombre entier."}}
	res := engine.Validate(context.Background(), "abc", rules, nil)
	require.False(t, res.Valid)
	assert.Equal(t, "Veuillez entrer un nombre entier.", res.Message())
}

func TestEngine_Validate_CustomValidator(t *testing.T) {
	validators := registry.NewValidatorRegistry()
	validators.Register("sufficient_balance", validation.CustomValidatorFunc(
		func(ctx context.Context, value any, data map[string]any) (validation.Outcome, error) {
			balance, _ := data["balance"].(float64)
			amount, _ := value.(string)
			if amount == "" || balance < 1000 {
				return validation.Outcome{Valid: false, Message: "Solde insuffisant."}, nil
			}
			return validation.Outcome{Valid: true}, nil
		}))

	engine := validation.NewEngine(validation.WithResolver(validators))
	ctx := context.Background()
	rules := []validation.Rule{{Field: "amount", Type: validation.TypeCustom, Validator: "sufficient_balance"}}

	res := engine.Validate(ctx, "500", rules, map[string]any{"balance": 5000.0})
	assert.True(t, res.Valid)

	res = engine.Validate(ctx, "500", rules, map[string]any{"balance": 10.0})
	require.False(t, res.Valid)
	assert.Equal(t, "Solde insuffisant.", res.Message())

	t.Run("Unknown Validator", func(t *testing.T) {
		rules := []validation.Rule{{Field: "x", Type: validation.TypeCustom, Validator: "missing"}}
		res := engine.Validate(ctx, "v", rules, nil)
		require.False(t, res.Valid)
		assert.Contains(t, res.Message(), `unknown custom validator "missing"`)
	})

	t.Run("Panicking Validator", func(t *testing.T) {
		validators.Register("explosive", validation.CustomValidatorFunc(
			func(ctx context.Context, value any, data map[string]any) (validation.Outcome, error) {
				panic("boom")
			}))
		rules := []validation.Rule{{Field: "x", Type: validation.TypeCustom, Validator: "explosive"}}

		res := engine.Validate(ctx, "v", rules, nil)
		require.False(t, res.Valid, "panic becomes a field error, not a crash")
		assert.Contains(t, res.Message(), "try again")
	})
}

func TestEngine_ValidateSchema(t *testing.T) {
	engine := validation.NewEngine()
	ctx := context.Background()

	schema := map[string][]validation.Rule{
		"email": {{Type: validation.TypeEmail, Required: true}},
		"age":   {{Type: validation.TypeInteger, Min: floatPtr(18)}},
	}

	t.Run("Valid Record", func(t *testing.T) {
		res := engine.ValidateSchema(ctx, map[string]any{"email": "a@b.cm", "age": "30"}, schema)
		require.True(t, res.Valid)
		assert.Equal(t, 30, res.Data["age"])
		assert.Equal(t, "a@b.cm", res.Data["email"])
	})

	t.Run("Errors Carry Field Names", func(t *testing.T) {
		res := engine.ValidateSchema(ctx, map[string]any{"email": "bad", "age": "12"}, schema)
		require.False(t, res.Valid)
		require.Len(t, res.Errors, 2)
		// Lexicographic order: age before email.
		assert.Equal(t, "age", res.Errors[0].Field)
		assert.Equal(t, "email", res.Errors[1].Field)
	})

	t.Run("Stop On First Error Is Deterministic", func(t *testing.T) {
		strict := validation.NewEngine(validation.WithConfig(validation.Config{StopOnFirstError: true, TrimStrings: true, ConvertTypes: true}))
		res := strict.ValidateSchema(ctx, map[string]any{"email": "bad", "age": "12"}, schema)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, "age", res.Errors[0].Field)
	})
}

func TestEngine_UpdateConfig(t *testing.T) {
	engine := validation.NewEngine()
	require.True(t, engine.Config().ConvertTypes)

	cfg := engine.Config()
	cfg.ConvertTypes = false
	engine.UpdateConfig(cfg)

	res := engine.Validate(context.Background(), "42", []validation.Rule{{Field: "n", Type: validation.TypeInteger}}, nil)
	require.True(t, res.Valid)
	assert.Equal(t, "42", res.Data["n"], "raw value kept when conversion is off")
}

func ExampleEngine_Validate() {
	engine := validation.NewEngine()
	res := engine.Validate(context.Background(), "677123456",
		[]validation.Rule{{Field: "phone", Type: validation.TypePhone, Required: true}}, nil)
	fmt.Println(res.Valid, res.Data["phone"])
	// Output: true 677123456
}
