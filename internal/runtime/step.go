package runtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/awoulbe/chatflow/pkg/domain"
	"github.com/awoulbe/chatflow/pkg/ports"
)

// maxChainedStates bounds how many states one inbound message may traverse.
// Non-waiting states (processing, output) execute in sequence until a state
// waits for user input or the workflow terminates; the bound protects against
// definition cycles that never wait.
const maxChainedStates = 16

// decisionKey is where a decision state stores the raw choice when it
// declares no validation rules.
const decisionKey = "decision"

// genericRetryMessage is the only internally-generated user-facing error
// text. Internal error detail stays in logs and step records.
const genericRetryMessage = "Une erreur est survenue, veuillez réessayer."

// aiPlaceholderMessage is emitted by ai_processing states with no handler.
const aiPlaceholderMessage = "Un instant, votre demande est en cours de traitement..."

// outcome is the intermediate result of executing a single state.
type outcome struct {
	success bool
	// stay means the workflow waits in the current state for the next
	// message (prompt emitted, validation failed, ai placeholder).
	stay    bool
	message string
	data    map[string]any
	// overrideNext is set when a handler steered the transition directly.
	overrideNext string
	// consumed reports whether the user input was actually used.
	consumed bool
	// errText carries internal failure detail for the step record.
	errText string
}

// step runs one inbound message against the workflow: it executes the
// current state, resolves transitions, chains through non-waiting states and
// persists the context exactly once at the end. It must be called with the
// user's session lock held.
func (e *Engine) step(ctx context.Context, cw *compiledWorkflow, wctx *domain.WorkflowContext, input string) (*domain.StepResult, error) {
	def := cw.def
	start := time.Now()

	state := def.StateByID(wctx.CurrentState)
	if state == nil {
		return nil, fmt.Errorf("workflow %q: current state %q is not declared", def.ID, wctx.CurrentState)
	}

	// State deadline enforcement: a message arriving after the deadline
	// fails the interaction as a whole.
	if state.Timeout > 0 && time.Since(wctx.StateEnteredAt) > state.Timeout {
		wctx.Terminate(domain.StatusFailed, domain.ErrStateTimeout.Error())
		wctx.AppendStep(domain.Step{
			StateID:   state.ID,
			Timestamp: start,
			Input:     input,
			Success:   false,
			Error:     domain.ErrStateTimeout.Error(),
			Duration:  time.Since(start),
		})
		if err := e.persist(ctx, wctx); err != nil {
			return nil, err
		}
		e.metrics.ObserveStep(def.ID, "timeout", time.Since(start))
		e.metrics.ContextFinished()
		e.logger.Warn("state deadline exceeded",
			"user_id", wctx.UserID, "workflow_id", def.ID, "state", state.ID)
		return nil, fmt.Errorf("workflow %q state %q: %w", def.ID, state.ID, domain.ErrStateTimeout)
	}

	var messages []string
	collected := make(map[string]any)
	result := &domain.StepResult{}

	for hop := 0; hop < maxChainedStates; hop++ {
		// Terminal state reached directly (e.g. a workflow starting on one):
		// report completion without dispatching.
		if state.IsTerminal() {
			if msg := renderPrompt(state.Prompt, wctx.Data); msg != "" {
				messages = append(messages, msg)
			}
			status := domain.StatusCompleted
			if state.Type == domain.StateCancelled {
				status = domain.StatusCancelled
			}
			wctx.Terminate(status, "")
			wctx.AppendStep(domain.Step{
				StateID:   state.ID,
				Timestamp: time.Now(),
				Output:    state.Prompt,
				Success:   true,
			})
			result.Completed = true
			e.metrics.ContextFinished()
			break
		}

		hopStart := time.Now()
		out := e.executeState(ctx, def, state, wctx, input)

		rec := domain.Step{
			StateID:   state.ID,
			Timestamp: hopStart,
			Output:    out.message,
			Success:   out.success,
			Error:     out.errText,
			Duration:  time.Since(hopStart),
		}
		if out.consumed {
			rec.Input = input
		}
		wctx.AppendStep(rec)

		if out.message != "" {
			messages = append(messages, out.message)
		}
		for k, v := range out.data {
			collected[k] = v
		}

		if !out.success {
			if err := e.persist(ctx, wctx); err != nil {
				return nil, err
			}
			e.metrics.ObserveStep(def.ID, "failure", time.Since(start))
			result.Success = false
			result.Message = out.message
			result.StateID = wctx.CurrentState
			result.Data = collected
			return result, nil
		}

		if out.stay {
			break
		}

		// Resolve the destination and leave the current state.
		next := out.overrideNext
		if next == "" {
			next = e.resolveNext(cw, state, wctx)
		}
		e.runHook(ctx, state.OnExit, wctx, input)

		if next == "" {
			// No transition, no declared next state: the workflow is done.
			wctx.Terminate(domain.StatusCompleted, "")
			result.Completed = true
			e.metrics.ContextFinished()
			break
		}

		nextState := def.StateByID(next)
		if nextState == nil {
			// Unreachable after registration validation, kept as a guard.
			return nil, fmt.Errorf("workflow %q: resolved state %q is not declared", def.ID, next)
		}
		wctx.CurrentState = next
		wctx.StateEnteredAt = time.Now()

		// Validation states wait for the next message: emit their prompt
		// but do not run them against the already-consumed input.
		if nextState.Type == domain.StateValidation {
			if msg := renderPrompt(nextState.Prompt, wctx.Data); msg != "" {
				messages = append(messages, msg)
			}
			break
		}

		state = nextState
	}

	if err := e.persist(ctx, wctx); err != nil {
		return nil, err
	}
	e.metrics.ObserveStep(def.ID, "success", time.Since(start))

	result.Success = true
	result.Message = strings.Join(messages, "\n")
	result.StateID = wctx.CurrentState
	result.Data = collected
	return result, nil
}

// executeState dispatches on the state type. The entry hook runs first; its
// side effects are not observed by the step result.
func (e *Engine) executeState(ctx context.Context, def *domain.WorkflowDefinition, state *domain.State, wctx *domain.WorkflowContext, input string) outcome {
	e.runHook(ctx, state.OnEntry, wctx, input)

	switch state.Type {
	case domain.StateInput:
		return e.execInput(ctx, def, state, wctx, input)
	case domain.StateValidation:
		return e.execValidation(ctx, def, state, wctx, input)
	case domain.StateProcessing:
		return e.execProcessing(ctx, def, state, wctx, input)
	case domain.StateOutput:
		return e.execOutput(ctx, def, state, wctx, input)
	case domain.StateDecision:
		return e.execDecision(ctx, def, state, wctx, input)
	case domain.StateAIProcessing:
		return e.execAIProcessing(ctx, def, state, wctx, input)
	default:
		e.logger.Error("unknown state type",
			"user_id", wctx.UserID, "workflow_id", def.ID, "state", state.ID, "type", state.Type)
		return outcome{
			success: false, stay: true,
			message: genericRetryMessage,
			errText: fmt.Sprintf("unknown state type %q", state.Type),
		}
	}
}

// execInput prompts on the first visit and validates on subsequent ones.
// The prompt-only pass never consumes the triggering input.
func (e *Engine) execInput(ctx context.Context, def *domain.WorkflowDefinition, state *domain.State, wctx *domain.WorkflowContext, input string) outcome {
	if !wctx.Visited(state.ID) {
		return outcome{
			success: true, stay: true,
			message: renderPrompt(state.Prompt, wctx.Data),
		}
	}
	return e.validateInput(ctx, def, state, wctx, input, false)
}

// execValidation always validates; there is no prompt-only pass. On failure
// the prompt is re-rendered after the error message.
func (e *Engine) execValidation(ctx context.Context, def *domain.WorkflowDefinition, state *domain.State, wctx *domain.WorkflowContext, input string) outcome {
	return e.validateInput(ctx, def, state, wctx, input, true)
}

// validateInput runs the state's rules against the input, stores validated
// data on success, and stays in-state with a message on failure.
func (e *Engine) validateInput(ctx context.Context, def *domain.WorkflowDefinition, state *domain.State, wctx *domain.WorkflowContext, input string, repeatPrompt bool) outcome {
	if len(state.Rules) == 0 {
		// No rules: accept the raw input under the state id.
		wctx.SetData(state.ID, input)
		return outcome{success: true, consumed: true, data: map[string]any{state.ID: input}}
	}

	res := e.validator.Validate(ctx, input, state.Rules, wctx.Data)
	if !res.Valid {
		e.metrics.ObserveValidationFailure(def.ID)
		msg := res.Message()
		if repeatPrompt {
			if prompt := renderPrompt(state.Prompt, wctx.Data); prompt != "" {
				msg = msg + "\n" + prompt
			}
		}
		return outcome{
			success: false, stay: true, consumed: true,
			message: msg,
			errText: res.ErrorMessages(),
		}
	}

	wctx.MergeData(res.Data)
	return outcome{success: true, consumed: true, data: res.Data}
}

// execProcessing invokes the named handler; without one it renders the
// prompt and advances. The handler may steer the transition via NextState.
func (e *Engine) execProcessing(ctx context.Context, def *domain.WorkflowDefinition, state *domain.State, wctx *domain.WorkflowContext, input string) outcome {
	handler, ok := e.resolveHandler(state.Handler)
	if !ok {
		return outcome{success: true, message: renderPrompt(state.Prompt, wctx.Data)}
	}

	res, err := safeExecute(ctx, handler, wctx, input)
	if err != nil {
		e.logger.Error("handler failed",
			"user_id", wctx.UserID, "workflow_id", def.ID, "state", state.ID,
			"handler", state.Handler, "err", err)
		return outcome{
			success: false, stay: true, consumed: true,
			message: err.Error(),
			errText: err.Error(),
		}
	}

	out := outcome{success: true, consumed: true, message: res.Output, data: res.Data}
	wctx.MergeData(res.Data)

	if res.NextState != "" {
		if def.StateByID(res.NextState) == nil {
			e.logger.Error("handler returned unknown next state",
				"user_id", wctx.UserID, "workflow_id", def.ID, "state", state.ID,
				"handler", state.Handler, "next_state", res.NextState)
			return outcome{
				success: false, stay: true, consumed: true,
				message: genericRetryMessage,
				errText: fmt.Sprintf("handler %q returned unknown state %q", state.Handler, res.NextState),
			}
		}
		out.overrideNext = res.NextState
	}
	return out
}

// execOutput emits the handler output or the rendered prompt, then advances.
func (e *Engine) execOutput(ctx context.Context, def *domain.WorkflowDefinition, state *domain.State, wctx *domain.WorkflowContext, input string) outcome {
	handler, ok := e.resolveHandler(state.Handler)
	if !ok {
		return outcome{success: true, message: renderPrompt(state.Prompt, wctx.Data)}
	}

	res, err := safeExecute(ctx, handler, wctx, input)
	if err != nil {
		e.logger.Error("output handler failed",
			"user_id", wctx.UserID, "workflow_id", def.ID, "state", state.ID,
			"handler", state.Handler, "err", err)
		return outcome{
			success: false, stay: true,
			message: err.Error(),
			errText: err.Error(),
		}
	}
	wctx.MergeData(res.Data)
	return outcome{success: true, message: res.Output, data: res.Data}
}

// execDecision prompts on first visit; on the input-bearing visit it
// validates when rules are declared, otherwise it stores the raw choice.
func (e *Engine) execDecision(ctx context.Context, def *domain.WorkflowDefinition, state *domain.State, wctx *domain.WorkflowContext, input string) outcome {
	if !wctx.Visited(state.ID) {
		return outcome{
			success: true, stay: true,
			message: renderPrompt(state.Prompt, wctx.Data),
		}
	}
	if len(state.Rules) > 0 {
		return e.validateInput(ctx, def, state, wctx, input, false)
	}
	wctx.SetData(decisionKey, input)
	return outcome{success: true, consumed: true, data: map[string]any{decisionKey: input}}
}

// execAIProcessing defers to the named handler; without one it emits a
// placeholder and does not advance.
func (e *Engine) execAIProcessing(ctx context.Context, def *domain.WorkflowDefinition, state *domain.State, wctx *domain.WorkflowContext, input string) outcome {
	if _, ok := e.resolveHandler(state.Handler); !ok {
		return outcome{success: true, stay: true, message: aiPlaceholderMessage}
	}
	return e.execProcessing(ctx, def, state, wctx, input)
}

func (e *Engine) resolveHandler(name string) (ports.Handler, bool) {
	if name == "" {
		return nil, false
	}
	return e.handlers.Resolve(name)
}

// persist writes the context through the store. It must be called with the
// user's session lock held; save failures propagate so a context that could
// not be saved is never treated as having progressed.
func (e *Engine) persist(ctx context.Context, wctx *domain.WorkflowContext) error {
	if err := e.sessions.Store().Save(ctx, wctx.UserID, wctx); err != nil {
		e.logger.Error("failed to persist context",
			"user_id", wctx.UserID, "workflow_id", wctx.WorkflowID, "state", wctx.CurrentState, "err", err)
		return fmt.Errorf("persist context: %w", err)
	}
	return nil
}
