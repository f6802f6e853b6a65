package runtime

import (
	"context"
	"fmt"
	"sort"

	"github.com/awoulbe/chatflow/pkg/domain"
	"github.com/awoulbe/chatflow/pkg/ports"
)

// resolveNext evaluates the transitions leaving a state. Conditioned
// transitions are tried highest priority first; unconditioned ones only after
// every condition had its chance. A condition that fails to evaluate (e.g. it
// references a field the user never supplied) is logged and skipped, never
// treated as true. An empty return means "no destination": the caller
// completes the workflow.
func (e *Engine) resolveNext(cw *compiledWorkflow, state *domain.State, wctx *domain.WorkflowContext) string {
	def := cw.def

	type candidate struct {
		idx int
		t   domain.Transition
	}
	var conditioned, unconditioned []candidate
	for i, t := range def.Transitions {
		if t.From != state.ID {
			continue
		}
		if t.Condition == "" {
			unconditioned = append(unconditioned, candidate{i, t})
		} else {
			conditioned = append(conditioned, candidate{i, t})
		}
	}

	sort.SliceStable(conditioned, func(a, b int) bool {
		return conditioned[a].t.Priority > conditioned[b].t.Priority
	})
	for _, c := range conditioned {
		ok, err := cw.conds[c.idx].Eval(wctx.Data)
		if err != nil {
			e.logger.Warn("transition condition skipped",
				"user_id", wctx.UserID, "workflow_id", def.ID, "state", state.ID,
				"condition", c.t.Condition, "err", err)
			continue
		}
		if ok {
			return c.t.To
		}
	}

	sort.SliceStable(unconditioned, func(a, b int) bool {
		return unconditioned[a].t.Priority > unconditioned[b].t.Priority
	})
	if len(unconditioned) > 0 {
		return unconditioned[0].t.To
	}

	return state.NextState
}

// runHook executes a named entry/exit hook. Hooks are handlers whose side
// effects are not observed by the step result; failures are logged only.
func (e *Engine) runHook(ctx context.Context, name string, wctx *domain.WorkflowContext, input string) {
	handler, ok := e.resolveHandler(name)
	if !ok {
		return
	}
	if _, err := safeExecute(ctx, handler, wctx, input); err != nil {
		e.logger.Warn("hook failed",
			"hook", name, "user_id", wctx.UserID, "workflow_id", wctx.WorkflowID, "err", err)
	}
}

// safeExecute invokes a handler with a panic guard; a panic surfaces as a
// handler error instead of taking the step down.
func safeExecute(ctx context.Context, h ports.Handler, wctx *domain.WorkflowContext, input string) (res *domain.HandlerResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	res, err = h.Execute(ctx, wctx, input)
	if err == nil && res == nil {
		res = &domain.HandlerResult{}
	}
	return res, err
}
