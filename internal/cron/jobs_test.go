package cron

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/fashionstore-backend/internal/wallets"
	"github.com/angelmondragon/fashionstore-backend/pkg/logger"
	"github.com/angelmondragon/fashionstore-backend/pkg/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReconciler struct {
	ids     []uuid.UUID
	drifted map[uuid.UUID]bool
	failing map[uuid.UUID]bool
	pages   int
}

func (f *fakeReconciler) WalletIDsAfter(_ context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	f.pages++
	start := 0
	if after != uuid.Nil {
		for i, id := range f.ids {
			if id == after {
				start = i + 1
			}
		}
	}
	end := start + limit
	if end > len(f.ids) {
		end = len(f.ids)
	}
	return f.ids[start:end], nil
}

func (f *fakeReconciler) Reconcile(_ context.Context, id uuid.UUID) (*wallets.Reconciliation, error) {
	if f.failing[id] {
		return nil, errors.New("db down")
	}
	rec := &wallets.Reconciliation{WalletID: id, Expected: decimal.NewFromInt(100), Actual: decimal.NewFromInt(100), Drift: decimal.Zero}
	if f.drifted[id] {
		rec.Actual = decimal.NewFromInt(150)
		rec.Drift = decimal.NewFromInt(50)
	}
	return rec, nil
}

func gaugeValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			if g := m.GetGauge(); g != nil {
				return g.GetValue()
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
		}
	}
	return -1
}

func TestWalletReconcileJobPagesAndReportsDrift(t *testing.T) {
	ids := make([]uuid.UUID, 5)
	for i := range ids {
		ids[i] = uuid.New()
	}
	fake := &fakeReconciler{
		ids:     ids,
		drifted: map[uuid.UUID]bool{ids[1]: true, ids[4]: true},
		failing: map[uuid.UUID]bool{ids[3]: true},
	}
	buf := &bytes.Buffer{}
	reg := prometheus.NewRegistry()

	job, err := NewWalletReconcileJob(WalletReconcileJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "cron-test", Output: buf}),
		Wallets:   fake,
		Metrics:   metrics.NewWalletMetrics(reg),
		BatchSize: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, "wallet-reconciliation", job.Name())

	err = job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), ids[3].String())
	assert.Equal(t, 3, fake.pages)

	assert.Equal(t, float64(2), gaugeValue(t, reg, "fashionstore_wallet_ledger_drift"))
	assert.Equal(t, float64(4), gaugeValue(t, reg, "fashionstore_wallet_reconciled_total"))
	assert.Contains(t, buf.String(), "wallets.reconcile.drift")
	assert.Contains(t, buf.String(), ids[1].String())
}

type fakeExpirer struct {
	cutoff time.Time
	limit  int
	count  int
	err    error
}

func (f *fakeExpirer) ExpireUnpaid(_ context.Context, cutoff time.Time, limit int) (int, error) {
	f.cutoff = cutoff
	f.limit = limit
	return f.count, f.err
}

func TestUnpaidOrderExpiryJobUsesTTL(t *testing.T) {
	fake := &fakeExpirer{count: 3}
	job, err := NewUnpaidOrderExpiryJob(UnpaidOrderExpiryJobParams{
		Logger: quietLogger(),
		Orders: fake,
		TTL:    2 * time.Hour,
	})
	require.NoError(t, err)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	job.(*unpaidOrderExpiryJob).now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, now.Add(-2*time.Hour), fake.cutoff)
	assert.Equal(t, defaultExpiryBatch, fake.limit)

	fake.err = errors.New("partial")
	assert.Error(t, job.Run(context.Background()))
}

func TestJobConstructorsValidate(t *testing.T) {
	_, err := NewWalletReconcileJob(WalletReconcileJobParams{Logger: quietLogger()})
	assert.Error(t, err)
	_, err = NewUnpaidOrderExpiryJob(UnpaidOrderExpiryJobParams{Logger: quietLogger()})
	assert.Error(t, err)
}
