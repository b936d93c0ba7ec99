package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventfin/internal/core"
	"eventfin/internal/log"
)

func TestApproveThenRejectScenario(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t, false)
	_, cat := env.seedCategory(t, 100000)

	first := env.submit(t, cat, 40000)
	second := env.submit(t, cat, 20000)

	approved, err := env.expenses.Approve(ctx, first.ID, "ok")
	require.NoError(t, err)
	assert.Equal(t, core.ExpenseApproved, approved.Status)
	assert.Equal(t, "ok", approved.Comment)
	assert.NotNil(t, approved.DecidedAt)
	assert.Equal(t, int64(40000), env.spent(t, cat.ID))

	rejected, err := env.expenses.Reject(ctx, second.ID, "too expensive")
	require.NoError(t, err)
	assert.Equal(t, core.ExpenseRejected, rejected.Status)
	assert.Equal(t, int64(40000), env.spent(t, cat.ID))

	assert.Equal(t, 2, env.publisher.count())
	msg := env.publisher.msgs[0]
	assert.Equal(t, first.ID, msg.ExpenseID)
	assert.Equal(t, "Gala", msg.EventName)
	assert.Equal(t, "Catering", msg.CategoryName)
	assert.Equal(t, int64(40000), msg.AmountCents)
}

func TestApproveTwiceAddsSpendOnce(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t, false)
	_, cat := env.seedCategory(t, 100000)
	exp := env.submit(t, cat, 25000)

	first, err := env.expenses.Approve(ctx, exp.ID, "first")
	require.NoError(t, err)
	second, err := env.expenses.Approve(ctx, exp.ID, "second")
	require.NoError(t, err)

	assert.Equal(t, int64(25000), env.spent(t, cat.ID))
	assert.Equal(t, "first", second.Comment)
	assert.Equal(t, first.DecidedAt, second.DecidedAt)
	assert.Equal(t, 1, env.publisher.count())
}

func TestTerminalStatesRefuseOppositeDecision(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t, false)
	_, cat := env.seedCategory(t, 100000)
	a := env.submit(t, cat, 1000)
	r := env.submit(t, cat, 2000)

	_, err := env.expenses.Approve(ctx, a.ID, "")
	require.NoError(t, err)
	_, err = env.expenses.Reject(ctx, r.ID, "")
	require.NoError(t, err)

	_, err = env.expenses.Reject(ctx, a.ID, "")
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
	_, err = env.expenses.Approve(ctx, r.ID, "")
	assert.ErrorIs(t, err, core.ErrInvalidTransition)

	again, err := env.expenses.Reject(ctx, r.ID, "again")
	require.NoError(t, err)
	assert.Equal(t, core.ExpenseRejected, again.Status)
	assert.Equal(t, "", again.Comment)

	assert.Equal(t, int64(1000), env.spent(t, cat.ID))
}

func TestDecisionOnMissingExpense(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t, true)
	before, _ := env.stores.Categories.List(ctx)

	_, err := env.expenses.Approve(ctx, 999, "")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = env.expenses.Reject(ctx, 999, "")
	assert.ErrorIs(t, err, core.ErrNotFound)

	after, _ := env.stores.Categories.List(ctx)
	assert.Equal(t, before, after)
	assert.Zero(t, env.publisher.count())
}

func TestApproveWithMissingCategoryMutatesNothing(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t, false)
	_, cat := env.seedCategory(t, 100000)
	exp := env.submit(t, cat, 5000)
	require.NoError(t, env.budget.Delete(ctx, cat.ID))

	_, err := env.expenses.Approve(ctx, exp.ID, "")
	assert.ErrorIs(t, err, core.ErrNotFound)

	stored, err := env.expenses.Get(ctx, exp.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ExpensePending, stored.Status)
	assert.Nil(t, stored.DecidedAt)
}

func TestApproveRevertsWhenSpendFails(t *testing.T) {
	ctx := context.Background()
	base := newEnv(t, false)
	_, cat := base.seedCategory(t, 100000)
	exp := base.submit(t, cat, 5000)

	stores := base.mem.Stores()
	stores.Categories = failingSpend{stores.Categories}
	env := newEnvWith(base.mem, stores)

	_, err := env.expenses.Approve(ctx, exp.ID, "ok")
	require.Error(t, err)

	stored, err := env.expenses.Get(ctx, exp.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ExpensePending, stored.Status)
	assert.Empty(t, stored.Comment)
	assert.Zero(t, env.publisher.count())
}

func TestConcurrentApprovalsSumExactly(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t, false)
	_, cat := env.seedCategory(t, 100000)

	var ids []int64
	for i := 0; i < 20; i++ {
		ids = append(ids, env.submit(t, cat, int64(100+i)).ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		for range 2 {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				_, err := env.expenses.Approve(ctx, id, "")
				assert.NoError(t, err)
			}(id)
		}
	}
	wg.Wait()

	var want int64
	for i := 0; i < 20; i++ {
		want += int64(100 + i)
	}
	assert.Equal(t, want, env.spent(t, cat.ID))
	assert.Equal(t, 20, env.publisher.count())
}

func TestPublishFailureDoesNotFailApproval(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t, false)
	env.publisher.err = errors.New("broker down")
	_, cat := env.seedCategory(t, 100000)
	exp := env.submit(t, cat, 700)

	approved, err := env.expenses.Approve(ctx, exp.ID, "")
	require.NoError(t, err)
	assert.Equal(t, core.ExpenseApproved, approved.Status)
	assert.Equal(t, int64(700), env.spent(t, cat.ID))
}

func TestCreateExpenseForcesWorkflowFields(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t, false)
	_, cat := env.seedCategory(t, 100000)
	now := time.Now()

	exp, err := env.expenses.Create(ctx, core.Expense{
		ID: 77, EventID: cat.EventID, CategoryID: cat.ID, Concept: "c", Provider: "p",
		Amount: core.Money{Cents: 10}, Date: core.NewDate(2024, 1, 1),
		Status: core.ExpenseApproved, SubmittedBy: "42", Comment: "sneaky", DecidedAt: &now,
	})
	require.NoError(t, err)
	assert.Equal(t, core.ExpensePending, exp.Status)
	assert.Equal(t, core.DefaultSubmitter, exp.SubmittedBy)
	assert.Equal(t, core.ExpenseNormal, exp.Type)
	assert.Empty(t, exp.Comment)
	assert.Nil(t, exp.DecidedAt)
	assert.NotEqual(t, int64(77), exp.ID)
	assert.Zero(t, env.spent(t, cat.ID))
}

func TestCreateExpenseChecksReferences(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t, true)
	base := core.Expense{Concept: "c", Provider: "p", Amount: core.Money{Cents: 10}, Date: core.NewDate(2024, 1, 1), Type: core.ExpenseTravel}

	missingEvent := base
	missingEvent.EventID, missingEvent.CategoryID = 99, 1
	_, err := env.expenses.Create(ctx, missingEvent)
	assert.ErrorIs(t, err, core.ErrNotFound)

	mismatch := base
	mismatch.EventID, mismatch.CategoryID = 2, 1 // category 1 belongs to event 1
	_, err = env.expenses.Create(ctx, mismatch)
	assert.ErrorIs(t, err, core.ErrCategoryMismatch)
	assert.True(t, core.IsValidation(err))

	invalid := base
	invalid.EventID, invalid.CategoryID, invalid.Amount = 1, 1, core.Money{}
	_, err = env.expenses.Create(ctx, invalid)
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
}

func TestDeleteOnlyPending(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t, false)
	_, cat := env.seedCategory(t, 100000)
	pending := env.submit(t, cat, 100)
	approved := env.submit(t, cat, 200)
	_, err := env.expenses.Approve(ctx, approved.ID, "")
	require.NoError(t, err)

	require.NoError(t, env.expenses.Delete(ctx, pending.ID))
	assert.ErrorIs(t, env.expenses.Delete(ctx, approved.ID), core.ErrInvalidTransition)
	assert.ErrorIs(t, env.expenses.Delete(ctx, pending.ID), core.ErrNotFound)

	list, err := env.expenses.List(ctx)
	require.NoError(t, err)
	for _, e := range list {
		assert.NotEqual(t, pending.ID, e.ID)
	}

	next := env.submit(t, cat, 300)
	assert.Greater(t, next.ID, approved.ID)
}

func TestPendingAndListByEvent(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t, true)

	pending, err := env.expenses.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 4)

	byEvent, err := env.expenses.ListByEvent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, byEvent, 3)
	for _, e := range byEvent {
		assert.Equal(t, int64(3), e.EventID)
	}
}

func TestLatencyHonorsCancellation(t *testing.T) {
	env := newEnv(t, true)
	slow := NewEventService(env.stores.Events, Latency{List: time.Hour}, log.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	_, err := slow.List(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
