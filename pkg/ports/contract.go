package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awoulbe/chatflow/pkg/domain"
)

// RunContextStoreContract runs a suite of tests verifying that a ContextStore
// implementation adheres to the interface contract. Adapter packages call it
// from their own tests.
func RunContextStoreContract(t *testing.T, store ContextStore) {
	ctx := context.Background()
	userID := "contract-user-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		wctx := domain.NewContext(userID, "onboarding", "welcome")
		wctx.SetData("name", "Ama")
		wctx.AppendStep(domain.Step{StateID: "welcome", Timestamp: time.Now(), Success: true})

		err := store.Save(ctx, userID, wctx)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, userID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, wctx.WorkflowID, loaded.WorkflowID)
		assert.Equal(t, wctx.CurrentState, loaded.CurrentState)
		assert.Equal(t, "Ama", loaded.Data["name"])
		assert.Len(t, loaded.History, 1)
		assert.Equal(t, domain.StatusActive, loaded.Status)
	})

	t.Run("Load Isolation", func(t *testing.T) {
		wctx := domain.NewContext(userID, "onboarding", "welcome")
		require.NoError(t, store.Save(ctx, userID, wctx))

		first, err := store.Load(ctx, userID)
		require.NoError(t, err)
		first.Data["mutated"] = true

		second, err := store.Load(ctx, userID)
		require.NoError(t, err)
		assert.NotContains(t, second.Data, "mutated", "loaded contexts must not share data maps")
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+userID)
		assert.ErrorIs(t, err, domain.ErrContextNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, userID, domain.NewContext(userID, "onboarding", "welcome")))

		err := store.Delete(ctx, userID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, userID)
		assert.ErrorIs(t, err, domain.ErrContextNotFound, "Load after Delete should return ErrContextNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := userID + "-1"
		id2 := userID + "-2"
		_ = store.Save(ctx, id1, domain.NewContext(id1, "onboarding", "welcome"))
		_ = store.Save(ctx, id2, domain.NewContext(id2, "onboarding", "welcome"))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		users, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, users, id1)
		assert.Contains(t, users, id2)
	})
}
