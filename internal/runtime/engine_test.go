package runtime_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awoulbe/chatflow/internal/runtime"
	"github.com/awoulbe/chatflow/pkg/adapters/memory"
	"github.com/awoulbe/chatflow/pkg/domain"
	"github.com/awoulbe/chatflow/pkg/observability"
	"github.com/awoulbe/chatflow/pkg/ports"
	"github.com/awoulbe/chatflow/pkg/registry"
	"github.com/awoulbe/chatflow/pkg/validation"
)

func floatPtr(f float64) *float64 { return &f }

func newEngine(t *testing.T, handlers *registry.HandlerRegistry) *runtime.Engine {
	t.Helper()
	opts := []runtime.Option{}
	if handlers != nil {
		opts = append(opts, runtime.WithHandlers(handlers))
	}
	return runtime.NewEngine(memory.NewStore(), opts...)
}

func purchaseWorkflow() *domain.WorkflowDefinition {
	return &domain.WorkflowDefinition{
		ID:           "purchase",
		Name:         "Achat",
		InitialState: "ask_product",
		Active:       true,
		States: []domain.State{
			{ID: "ask_product", Type: domain.StateInput, Prompt: "Quel produit ?", NextState: "ask_qty",
				Rules: []validation.Rule{{Field: "produit", Type: validation.TypeString, Required: true}}},
			{ID: "ask_qty", Type: domain.StateInput, Prompt: "Quelle quantité ?", NextState: "confirm",
				Rules: []validation.Rule{{Field: "quantite", Type: validation.TypeInteger, Required: true, Min: floatPtr(1)}}},
			{ID: "confirm", Type: domain.StateProcessing, Handler: "confirm", NextState: "done"},
			{ID: "done", Type: domain.StateCompleted, Prompt: "Merci {{produit}} !"},
		},
	}
}

func TestRegisterWorkflow_Validation(t *testing.T) {
	eng := newEngine(t, nil)

	base := func() *domain.WorkflowDefinition {
		return &domain.WorkflowDefinition{
			ID: "wf", Name: "WF", InitialState: "a", Active: true,
			States: []domain.State{{ID: "a", Type: domain.StateOutput, Prompt: "x"}},
		}
	}

	cases := []struct {
		name   string
		mutate func(*domain.WorkflowDefinition)
		reason string
	}{
		{"Missing ID", func(d *domain.WorkflowDefinition) { d.ID = "" }, "id is required"},
		{"Missing Name", func(d *domain.WorkflowDefinition) { d.Name = "" }, "name is required"},
		{"No States", func(d *domain.WorkflowDefinition) { d.States = nil }, "at least one state"},
		{"Undeclared Initial", func(d *domain.WorkflowDefinition) { d.InitialState = "ghost" }, `initial state "ghost"`},
		{"Duplicate State", func(d *domain.WorkflowDefinition) {
			d.States = append(d.States, domain.State{ID: "a", Type: domain.StateOutput})
		}, `duplicate state id "a"`},
		{"Undeclared NextState", func(d *domain.WorkflowDefinition) {
			d.States[0].NextState = "ghost"
		}, `next state "ghost"`},
		{"Undeclared Transition Source", func(d *domain.WorkflowDefinition) {
			d.Transitions = []domain.Transition{{From: "ghost", To: "a"}}
		}, `source "ghost"`},
		{"Undeclared Transition Destination", func(d *domain.WorkflowDefinition) {
			d.Transitions = []domain.Transition{{From: "a", To: "ghost"}}
		}, `destination "ghost"`},
		{"Invalid Condition", func(d *domain.WorkflowDefinition) {
			d.Transitions = []domain.Transition{{From: "a", To: "a", Condition: "data.x >"}}
		}, "invalid condition"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			def := base()
			tc.mutate(def)
			err := eng.RegisterWorkflow(def)
			var derr *domain.DefinitionError
			require.ErrorAs(t, err, &derr)
			assert.Contains(t, derr.Reason, tc.reason)
		})
	}

	t.Run("Valid", func(t *testing.T) {
		require.NoError(t, eng.RegisterWorkflow(base()))
		def, ok := eng.Workflow("wf")
		require.True(t, ok)
		assert.Equal(t, "WF", def.Name)
	})
}

func TestStartWorkflow(t *testing.T) {
	handlers := registry.NewHandlerRegistry()
	handlers.Register("confirm", ports.HandlerFunc(
		func(ctx context.Context, wctx *domain.WorkflowContext, input string) (*domain.HandlerResult, error) {
			return &domain.HandlerResult{Output: "Commande confirmée."}, nil
		}))
	eng := newEngine(t, handlers)
	require.NoError(t, eng.RegisterWorkflow(purchaseWorkflow()))
	ctx := context.Background()

	t.Run("Unknown Workflow", func(t *testing.T) {
		_, err := eng.StartWorkflow(ctx, "u1", "ghost", nil)
		assert.ErrorIs(t, err, domain.ErrWorkflowNotFound)
	})

	t.Run("Inactive Workflow", func(t *testing.T) {
		def := purchaseWorkflow()
		def.ID = "disabled"
		def.Active = false
		require.NoError(t, eng.RegisterWorkflow(def))
		_, err := eng.StartWorkflow(ctx, "u1", "disabled", nil)
		assert.ErrorIs(t, err, domain.ErrWorkflowInactive)
	})

	t.Run("Initial Prompt", func(t *testing.T) {
		res, err := eng.StartWorkflow(ctx, "u1", "purchase", nil)
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, "Quel produit ?", res.Message)
		assert.Equal(t, "ask_product", res.StateID)
		assert.False(t, res.Completed)
	})

	t.Run("Supersedes Active Context", func(t *testing.T) {
		_, err := eng.StartWorkflow(ctx, "u2", "purchase", nil)
		require.NoError(t, err)
		first, err := eng.ActiveContext(ctx, "u2")
		require.NoError(t, err)

		_, err = eng.StartWorkflow(ctx, "u2", "purchase", nil)
		require.NoError(t, err)
		second, err := eng.ActiveContext(ctx, "u2")
		require.NoError(t, err)

		assert.NotEqual(t, first.ID, second.ID)
		assert.Equal(t, domain.StatusActive, second.Status)
		assert.Equal(t, "ask_product", second.CurrentState)
	})

	t.Run("Initial Data", func(t *testing.T) {
		_, err := eng.StartWorkflow(ctx, "u3", "purchase", map[string]any{"canal": "whatsapp"})
		require.NoError(t, err)
		wctx, err := eng.ActiveContext(ctx, "u3")
		require.NoError(t, err)
		assert.Equal(t, "whatsapp", wctx.Data["canal"])
	})
}

func TestExecuteStep_FullFlow(t *testing.T) {
	handlers := registry.NewHandlerRegistry()
	handlers.Register("confirm", ports.HandlerFunc(
		func(ctx context.Context, wctx *domain.WorkflowContext, input string) (*domain.HandlerResult, error) {
			return &domain.HandlerResult{Output: "Commande confirmée."}, nil
		}))
	eng := newEngine(t, handlers)
	require.NoError(t, eng.RegisterWorkflow(purchaseWorkflow()))
	ctx := context.Background()

	_, err := eng.StartWorkflow(ctx, "u1", "purchase", nil)
	require.NoError(t, err)

	// Valid product answer chains into the quantity prompt.
	res, err := eng.ExecuteStep(ctx, "u1", "Livre")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Quelle quantité ?", res.Message)
	assert.Equal(t, "ask_qty", res.StateID)

	// Invalid quantity stays in place with the failure message.
	res, err = eng.ExecuteStep(ctx, "u1", "beaucoup")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "quantite")
	assert.Equal(t, "ask_qty", res.StateID)

	wctx, err := eng.ActiveContext(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, wctx.Status, "validation failure does not terminate")

	// Valid quantity runs the handler and completes through the terminal state.
	res, err = eng.ExecuteStep(ctx, "u1", "2")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Completed)
	assert.Equal(t, "done", res.StateID)
	assert.Equal(t, "Commande confirmée.\nMerci Livre !", res.Message)

	wctx, err = eng.ActiveContext(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, wctx.Status)
	assert.Equal(t, 2, wctx.Data["quantite"])
	assert.Equal(t, "Livre", wctx.Data["produit"])

	t.Run("Terminal Context Rejects Steps", func(t *testing.T) {
		_, err := eng.ExecuteStep(ctx, "u1", "encore")
		assert.ErrorIs(t, err, domain.ErrContextTerminal)
	})

	t.Run("No Context", func(t *testing.T) {
		_, err := eng.ExecuteStep(ctx, "nobody", "bonjour")
		assert.ErrorIs(t, err, domain.ErrContextNotFound)
	})
}

func TestExecuteStep_HandlerFailure(t *testing.T) {
	calls := 0
	handlers := registry.NewHandlerRegistry()
	handlers.Register("flaky", ports.HandlerFunc(
		func(ctx context.Context, wctx *domain.WorkflowContext, input string) (*domain.HandlerResult, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("boom")
			}
			return &domain.HandlerResult{Output: "OK"}, nil
		}))
	eng := newEngine(t, handlers)
	require.NoError(t, eng.RegisterWorkflow(&domain.WorkflowDefinition{
		ID: "flow", Name: "Flow", InitialState: "start", Active: true,
		States: []domain.State{
			{ID: "start", Type: domain.StateInput, Prompt: "Donnez une valeur", NextState: "mid"},
			{ID: "mid", Type: domain.StateProcessing, Handler: "flaky", NextState: "end"},
			{ID: "end", Type: domain.StateOutput, Prompt: "Fin"},
		},
	}))
	ctx := context.Background()

	_, err := eng.StartWorkflow(ctx, "u1", "flow", nil)
	require.NoError(t, err)

	// The handler fails: the step reports failure but the workflow survives
	// in the processing state.
	res, err := eng.ExecuteStep(ctx, "u1", "x")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "boom", res.Message)
	assert.Equal(t, "mid", res.StateID)

	wctx, err := eng.ActiveContext(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, wctx.Status)
	last := wctx.History[len(wctx.History)-1]
	assert.Equal(t, "boom", last.Error)

	// The retry succeeds and the flow runs to completion.
	res, err = eng.ExecuteStep(ctx, "u1", "encore")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Completed)
	assert.Equal(t, "OK\nFin", res.Message)
}

func TestExecuteStep_HandlerSteering(t *testing.T) {
	handlers := registry.NewHandlerRegistry()
	handlers.Register("router", ports.HandlerFunc(
		func(ctx context.Context, wctx *domain.WorkflowContext, input string) (*domain.HandlerResult, error) {
			return &domain.HandlerResult{NextState: "special"}, nil
		}))
	handlers.Register("lost", ports.HandlerFunc(
		func(ctx context.Context, wctx *domain.WorkflowContext, input string) (*domain.HandlerResult, error) {
			return &domain.HandlerResult{NextState: "nowhere"}, nil
		}))
	handlers.Register("panicky", ports.HandlerFunc(
		func(ctx context.Context, wctx *domain.WorkflowContext, input string) (*domain.HandlerResult, error) {
			panic("unexpected")
		}))
	eng := newEngine(t, handlers)

	def := func(handler string) *domain.WorkflowDefinition {
		return &domain.WorkflowDefinition{
			ID: "route-" + handler, Name: "Route", InitialState: "start", Active: true,
			States: []domain.State{
				{ID: "start", Type: domain.StateProcessing, Handler: handler, NextState: "normal"},
				{ID: "normal", Type: domain.StateOutput, Prompt: "normal"},
				{ID: "special", Type: domain.StateOutput, Prompt: "special"},
			},
		}
	}

	t.Run("Override Next State", func(t *testing.T) {
		require.NoError(t, eng.RegisterWorkflow(def("router")))
		res, err := eng.StartWorkflow(context.Background(), "u1", "route-router", nil)
		require.NoError(t, err)
		assert.Contains(t, res.Message, "special")
		assert.True(t, res.Completed)
	})

	t.Run("Unknown Next State Fails The Step", func(t *testing.T) {
		require.NoError(t, eng.RegisterWorkflow(def("lost")))
		res, err := eng.StartWorkflow(context.Background(), "u2", "route-lost", nil)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, "Une erreur est survenue, veuillez réessayer.", res.Message)

		wctx, err := eng.ActiveContext(context.Background(), "u2")
		require.NoError(t, err)
		assert.Contains(t, wctx.History[len(wctx.History)-1].Error, `unknown state "nowhere"`)
	})

	t.Run("Handler Panic Is Contained", func(t *testing.T) {
		require.NoError(t, eng.RegisterWorkflow(def("panicky")))
		res, err := eng.StartWorkflow(context.Background(), "u3", "route-panicky", nil)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "handler panicked")

		wctx, err := eng.ActiveContext(context.Background(), "u3")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusActive, wctx.Status)
	})
}

func TestExecuteStep_ConditionalTransitions(t *testing.T) {
	eng := newEngine(t, nil)
	require.NoError(t, eng.RegisterWorkflow(&domain.WorkflowDefinition{
		ID: "transfer", Name: "Transfert", InitialState: "amount", Active: true,
		States: []domain.State{
			{ID: "amount", Type: domain.StateInput, Prompt: "Quel montant ?",
				Rules: []validation.Rule{{Field: "amount", Type: validation.TypeNumber, Required: true}}},
			{ID: "high", Type: domain.StateOutput, Prompt: "Validation manuelle requise."},
			{ID: "low", Type: domain.StateOutput, Prompt: "Transfert immédiat."},
		},
		Transitions: []domain.Transition{
			{From: "amount", To: "high", Condition: "data.amount > 1000", Priority: 10},
			{From: "amount", To: "low"},
		},
	}))
	ctx := context.Background()

	t.Run("Condition Matches", func(t *testing.T) {
		_, err := eng.StartWorkflow(ctx, "u1", "transfer", nil)
		require.NoError(t, err)
		res, err := eng.ExecuteStep(ctx, "u1", "5000")
		require.NoError(t, err)
		assert.Contains(t, res.Message, "Validation manuelle")
		assert.True(t, res.Completed)
	})

	t.Run("Falls Through To Unconditioned", func(t *testing.T) {
		_, err := eng.StartWorkflow(ctx, "u2", "transfer", nil)
		require.NoError(t, err)
		res, err := eng.ExecuteStep(ctx, "u2", "200")
		require.NoError(t, err)
		assert.Contains(t, res.Message, "Transfert immédiat")
	})
}

func TestExecuteStep_DecisionState(t *testing.T) {
	eng := newEngine(t, nil)
	require.NoError(t, eng.RegisterWorkflow(&domain.WorkflowDefinition{
		ID: "confirm", Name: "Confirmation", InitialState: "choice", Active: true,
		States: []domain.State{
			{ID: "choice", Type: domain.StateDecision, Prompt: "Confirmer ? (oui/non)"},
			{ID: "yes", Type: domain.StateOutput, Prompt: "Confirmé."},
			{ID: "no", Type: domain.StateOutput, Prompt: "Abandonné."},
		},
		Transitions: []domain.Transition{
			{From: "choice", To: "yes", Condition: `data.decision == "oui"`, Priority: 1},
			{From: "choice", To: "no"},
		},
	}))
	ctx := context.Background()

	res, err := eng.StartWorkflow(ctx, "u1", "confirm", nil)
	require.NoError(t, err)
	assert.Equal(t, "Confirmer ? (oui/non)", res.Message)

	res, err = eng.ExecuteStep(ctx, "u1", "oui")
	require.NoError(t, err)
	assert.Contains(t, res.Message, "Confirmé")
	assert.True(t, res.Completed)
}

func TestExecuteStep_AIPlaceholder(t *testing.T) {
	eng := newEngine(t, nil)
	require.NoError(t, eng.RegisterWorkflow(&domain.WorkflowDefinition{
		ID: "ai", Name: "AI", InitialState: "think", Active: true,
		States: []domain.State{
			{ID: "think", Type: domain.StateAIProcessing, NextState: "done"},
			{ID: "done", Type: domain.StateCompleted},
		},
	}))

	res, err := eng.StartWorkflow(context.Background(), "u1", "ai", nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.Completed, "without a handler the state waits")
	assert.Contains(t, res.Message, "en cours de traitement")
}

func TestStateTimeout(t *testing.T) {
	eng := newEngine(t, nil)
	require.NoError(t, eng.RegisterWorkflow(&domain.WorkflowDefinition{
		ID: "timed", Name: "Timed", InitialState: "ask", Active: true,
		States: []domain.State{
			{ID: "ask", Type: domain.StateInput, Prompt: "Vite !", Timeout: 20 * time.Millisecond, NextState: "done"},
			{ID: "done", Type: domain.StateCompleted},
		},
	}))
	ctx := context.Background()

	_, err := eng.StartWorkflow(ctx, "u1", "timed", nil)
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)

	_, err = eng.ExecuteStep(ctx, "u1", "trop tard")
	require.ErrorIs(t, err, domain.ErrStateTimeout)

	wctx, err := eng.ActiveContext(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, wctx.Status)
	assert.Equal(t, domain.ErrStateTimeout.Error(), wctx.Error)
}

func TestPauseResumeCancel(t *testing.T) {
	eng := newEngine(t, nil)
	require.NoError(t, eng.RegisterWorkflow(purchaseWorkflow()))
	ctx := context.Background()

	t.Run("Pause And Resume", func(t *testing.T) {
		_, err := eng.StartWorkflow(ctx, "u1", "purchase", nil)
		require.NoError(t, err)

		require.NoError(t, eng.PauseWorkflow(ctx, "u1"))
		_, err = eng.ExecuteStep(ctx, "u1", "Livre")
		assert.ErrorIs(t, err, domain.ErrContextPaused)

		res, err := eng.ResumeWorkflow(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "Quel produit ?", res.Message, "resume repeats the pending prompt")

		_, err = eng.ExecuteStep(ctx, "u1", "Livre")
		assert.NoError(t, err)
	})

	t.Run("Resume Requires Paused", func(t *testing.T) {
		_, err := eng.StartWorkflow(ctx, "u2", "purchase", nil)
		require.NoError(t, err)
		_, err = eng.ResumeWorkflow(ctx, "u2")
		assert.ErrorIs(t, err, domain.ErrNotPaused)
	})

	t.Run("Cancel", func(t *testing.T) {
		_, err := eng.StartWorkflow(ctx, "u3", "purchase", nil)
		require.NoError(t, err)
		require.NoError(t, eng.CancelWorkflow(ctx, "u3", "changement d'avis"))

		wctx, err := eng.ActiveContext(ctx, "u3")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, wctx.Status)
		assert.Equal(t, "changement d'avis", wctx.Error)

		_, err = eng.ExecuteStep(ctx, "u3", "Livre")
		assert.ErrorIs(t, err, domain.ErrContextTerminal)

		err = eng.CancelWorkflow(ctx, "u3", "encore")
		assert.ErrorIs(t, err, domain.ErrContextTerminal)
	})
}

func TestRollback(t *testing.T) {
	eng := newEngine(t, nil)
	def := purchaseWorkflow()
	def.States[2] = domain.State{ID: "confirm", Type: domain.StateOutput, Prompt: "Confirmé", NextState: "done"}
	require.NoError(t, eng.RegisterWorkflow(def))
	ctx := context.Background()

	_, err := eng.StartWorkflow(ctx, "u1", "purchase", nil)
	require.NoError(t, err)
	_, err = eng.ExecuteStep(ctx, "u1", "Livre")
	require.NoError(t, err)

	t.Run("Invalid Count", func(t *testing.T) {
		_, err := eng.Rollback(ctx, "u1", 0)
		assert.Error(t, err)
	})

	t.Run("One Step Back", func(t *testing.T) {
		res, err := eng.Rollback(ctx, "u1", 1)
		require.NoError(t, err)
		assert.Equal(t, "ask_product", res.StateID)
		assert.Equal(t, "Quel produit ?", res.Message)

		// The product can be answered again.
		res, err = eng.ExecuteStep(ctx, "u1", "Stylo")
		require.NoError(t, err)
		assert.Equal(t, "ask_qty", res.StateID)

		wctx, err := eng.ActiveContext(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "Stylo", wctx.Data["produit"])
	})

	t.Run("Past The Beginning", func(t *testing.T) {
		res, err := eng.Rollback(ctx, "u1", 100)
		require.NoError(t, err)
		assert.Equal(t, "ask_product", res.StateID, "history exhausted falls back to the initial state")
	})
}

func TestChainBound(t *testing.T) {
	// Two output states pointing at each other never wait; the chain bound
	// must stop the step instead of spinning forever.
	eng := newEngine(t, nil)
	require.NoError(t, eng.RegisterWorkflow(&domain.WorkflowDefinition{
		ID: "loop", Name: "Loop", InitialState: "a", Active: true,
		States: []domain.State{
			{ID: "a", Type: domain.StateOutput, Prompt: "a", NextState: "b"},
			{ID: "b", Type: domain.StateOutput, Prompt: "b", NextState: "a"},
		},
	}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		res, err := eng.StartWorkflow(context.Background(), "u1", "loop", nil)
		require.NoError(t, err)
		assert.True(t, res.Success)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("step did not terminate")
	}
}

func TestActiveContextsGauge(t *testing.T) {
	gaugeValue := func(t *testing.T, reg *prometheus.Registry) float64 {
		t.Helper()
		families, err := reg.Gather()
		require.NoError(t, err)
		for _, mf := range families {
			if mf.GetName() == "chatflow_active_contexts" {
				return mf.GetMetric()[0].GetGauge().GetValue()
			}
		}
		t.Fatal("chatflow_active_contexts not registered")
		return 0
	}

	t.Run("Ongoing Workflow Counts As Active", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		eng := runtime.NewEngine(memory.NewStore(),
			runtime.WithMetrics(observability.NewMetrics(reg)))
		require.NoError(t, eng.RegisterWorkflow(&domain.WorkflowDefinition{
			ID: "ask", Name: "Ask", InitialState: "input", Active: true,
			States: []domain.State{
				{ID: "input", Type: domain.StateInput, Prompt: "Votre nom ?", NextState: "done",
					Rules: []validation.Rule{{Field: "name", Type: validation.TypeString, Required: true}}},
				{ID: "done", Type: domain.StateCompleted},
			},
		}))

		_, err := eng.StartWorkflow(context.Background(), "u1", "ask", nil)
		require.NoError(t, err)
		assert.Equal(t, 1.0, gaugeValue(t, reg))

		_, err = eng.ExecuteStep(context.Background(), "u1", "Awa")
		require.NoError(t, err)
		assert.Equal(t, 0.0, gaugeValue(t, reg))
	})

	t.Run("First Step Completion Never Dips Below Zero", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		handlers := registry.NewHandlerRegistry()
		eng := runtime.NewEngine(memory.NewStore(),
			runtime.WithHandlers(handlers),
			runtime.WithMetrics(observability.NewMetrics(reg)))

		// The handler runs inside the very first step, so it sees the gauge
		// as the outside world would mid-execution.
		var during float64
		handlers.Register("observe", ports.HandlerFunc(func(ctx context.Context, wctx *domain.WorkflowContext, input string) (*domain.HandlerResult, error) {
			during = gaugeValue(t, reg)
			return &domain.HandlerResult{Output: "Fait."}, nil
		}))

		require.NoError(t, eng.RegisterWorkflow(&domain.WorkflowDefinition{
			ID: "one_shot", Name: "One shot", InitialState: "run", Active: true,
			States: []domain.State{
				{ID: "run", Type: domain.StateProcessing, Handler: "observe", NextState: "done"},
				{ID: "done", Type: domain.StateCompleted},
			},
		}))

		res, err := eng.StartWorkflow(context.Background(), "u1", "one_shot", nil)
		require.NoError(t, err)
		assert.True(t, res.Completed)
		assert.Equal(t, 1.0, during, "context counts as active while its first step runs")
		assert.Equal(t, 0.0, gaugeValue(t, reg))
	})
}

func ExampleEngine_StartWorkflow() {
	eng := runtime.NewEngine(memory.NewStore())
	_ = eng.RegisterWorkflow(&domain.WorkflowDefinition{
		ID: "hello", Name: "Hello", InitialState: "greet", Active: true,
		States: []domain.State{
			{ID: "greet", Type: domain.StateOutput, Prompt: "Bonjour {{name}} !", NextState: "done"},
			{ID: "done", Type: domain.StateCompleted},
		},
	})
	res, _ := eng.StartWorkflow(context.Background(), "u1", "hello", map[string]any{"name": "Awa"})
	fmt.Println(res.Message)
	// Output: Bonjour Awa !
}
