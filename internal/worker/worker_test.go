package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventfin/internal/amqp"
	"eventfin/internal/backend"
	"eventfin/internal/core"
	"eventfin/internal/log"
	"eventfin/internal/sheets"
	"eventfin/internal/sheets/memory"
)

type failingLedger struct{}

func (failingLedger) Append(context.Context, sheets.LedgerRow) (string, error) {
	return "", errors.New("quota exceeded")
}

func decision(id int64) *amqp.ExpenseDecision {
	return &amqp.ExpenseDecision{
		ExpenseID:   id,
		EventID:     1,
		CategoryID:  3,
		Concept:     "Transporte de equipo",
		Provider:    "Fletes Rápidos",
		AmountCents: 420050,
		Status:      core.ExpenseApproved,
		ExpenseDate: "2024-07-02",
		DecidedAt:   time.Date(2024, 7, 25, 12, 0, 0, 0, time.UTC),
	}
}

func TestHandleDecision(t *testing.T) {
	ctx := context.Background()
	ledger := memory.New(log.Discard())
	w := NewLedgerWorker(ledger, nil, log.Discard())

	require.NoError(t, w.HandleDecision(ctx, decision(3)))
	// Redelivery is acknowledged without a second row.
	require.NoError(t, w.HandleDecision(ctx, decision(3)))

	rows, err := ledger.Rows(ctx, 2024)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "#1", rows[0].Event)
	assert.Equal(t, int64(420050), rows[0].Amount.Cents)

	failing := NewLedgerWorker(failingLedger{}, nil, log.Discard())
	err = failing.HandleDecision(ctx, decision(4))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func newRecords(t *testing.T) *backend.BackendResult {
	t.Helper()
	res, err := backend.NewFactory(log.Discard()).CreateBackend(context.Background(),
		backend.Config{Type: backend.MemoryBackend, SeedFixtures: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Cleanup() })
	return res
}

func TestBackfill(t *testing.T) {
	ctx := context.Background()
	res := newRecords(t)
	start := time.Now().UTC().Add(-time.Minute)

	_, err := res.Services.Expenses.Approve(ctx, 3, "ok")
	require.NoError(t, err)
	_, err = res.Services.Expenses.Reject(ctx, 4, "no")
	require.NoError(t, err)

	ledger := memory.New(log.Discard())
	w := NewLedgerWorker(ledger, &res.Services, log.Discard())

	n, err := w.Backfill(ctx, start)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := ledger.Rows(ctx, time.Now().UTC().Year())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	byID := map[int64]sheets.LedgerRow{rows[0].ExpenseID: rows[0], rows[1].ExpenseID: rows[1]}
	assert.Equal(t, "Festival de Verano 2024", byID[3].Event)
	assert.Equal(t, "Logística", byID[3].Category)
	assert.Equal(t, core.ExpenseRejected, byID[4].Status)

	n, err = w.Backfill(ctx, start)
	require.NoError(t, err)
	assert.Zero(t, n, "second backfill must not duplicate rows")

	n, err = w.Backfill(ctx, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBackfillWithoutRecords(t *testing.T) {
	w := NewLedgerWorker(memory.New(log.Discard()), nil, log.Discard())
	_, err := w.Backfill(context.Background(), time.Time{})
	assert.Error(t, err)
}

func TestBackfillReportsFailures(t *testing.T) {
	ctx := context.Background()
	res := newRecords(t)
	_, err := res.Services.Expenses.Approve(ctx, 5, "")
	require.NoError(t, err)

	w := NewLedgerWorker(failingLedger{}, &res.Services, log.Discard())
	n, err := w.Backfill(ctx, time.Time{})
	assert.Error(t, err)
	assert.Zero(t, n)
}

type stubReconciler struct {
	drifts      []core.SpendDrift
	err         error
	checks, fix int
}

func (s *stubReconciler) Check(context.Context) ([]core.SpendDrift, error) {
	s.checks++
	return s.drifts, s.err
}

func (s *stubReconciler) Fix(context.Context) ([]core.SpendDrift, error) {
	s.fix++
	return s.drifts, s.err
}

func TestReconcileJob(t *testing.T) {
	ctx := context.Background()
	r := &stubReconciler{drifts: []core.SpendDrift{{CategoryID: 2, Recorded: core.Money{Cents: 1}, Computed: core.Money{Cents: 2}}}}

	require.NoError(t, ReconcileJob(r, false, log.Discard())(ctx))
	require.NoError(t, ReconcileJob(r, true, log.Discard())(ctx))
	assert.Equal(t, 1, r.checks)
	assert.Equal(t, 1, r.fix)

	r.err = errors.New("db locked")
	assert.ErrorContains(t, ReconcileJob(r, true, log.Discard())(ctx), "db locked")
}

func TestReconcileJobAgainstServices(t *testing.T) {
	res := newRecords(t)
	require.NoError(t, ReconcileJob(res.Services.Reconciler, true, log.Discard())(context.Background()))
}

func TestSchedulerAdd(t *testing.T) {
	s := NewScheduler(time.Second, log.Discard())
	require.NoError(t, s.Add("reconcile", "*/15 * * * *", func(context.Context) error { return nil }))
	require.NoError(t, s.Add("nightly", "@daily", func(context.Context) error { return nil }))
	assert.Error(t, s.Add("broken", "every tuesday", func(context.Context) error { return nil }))
	assert.Equal(t, 2, s.Jobs())

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}

func TestSchedulerRunAppliesTimeout(t *testing.T) {
	s := NewScheduler(20*time.Millisecond, log.Discard())
	var sawDeadline atomic.Bool
	s.run("probe", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		sawDeadline.Store(ok)
		<-ctx.Done()
		return ctx.Err()
	})
	assert.True(t, sawDeadline.Load())
}
