package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/fashionstore-backend/internal/wallets"
	"github.com/angelmondragon/fashionstore-backend/pkg/logger"
	"github.com/angelmondragon/fashionstore-backend/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

const defaultReconcileBatch = 200

type walletReconciler interface {
	WalletIDsAfter(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
	Reconcile(ctx context.Context, walletID uuid.UUID) (*wallets.Reconciliation, error)
}

// WalletReconcileJobParams configure the ledger replay job.
type WalletReconcileJobParams struct {
	Logger    *logger.Logger
	Wallets   walletReconciler
	Metrics   *metrics.WalletMetrics
	BatchSize int
}

// NewWalletReconcileJob builds the job that replays every wallet ledger and
// reports wallets whose stored balance disagrees with it.
func NewWalletReconcileJob(params WalletReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Wallets == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReconcileBatch
	}
	return &walletReconcileJob{
		logg:    params.Logger,
		wallets: params.Wallets,
		metrics: params.Metrics,
		batch:   batch,
	}, nil
}

type walletReconcileJob struct {
	logg    *logger.Logger
	wallets walletReconciler
	metrics *metrics.WalletMetrics
	batch   int
}

func (j *walletReconcileJob) Name() string { return "wallet-reconciliation" }

// Run walks wallets in id order. Drift is reported, never repaired.
func (j *walletReconcileJob) Run(ctx context.Context) error {
	var (
		after   = uuid.Nil
		checked int
		drifted int
		errs    error
	)
	for {
		ids, err := j.wallets.WalletIDsAfter(ctx, after, j.batch)
		if err != nil {
			return multierr.Append(errs, fmt.Errorf("list wallets: %w", err))
		}
		for _, id := range ids {
			rec, err := j.wallets.Reconcile(ctx, id)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("reconcile wallet %s: %w", id, err))
				continue
			}
			checked++
			if !rec.Consistent() {
				drifted++
				j.logg.Warn(j.logg.WithFields(ctx, map[string]any{
					"wallet_id":        id.String(),
					"expected":         rec.Expected.StringFixed(2),
					"actual":           rec.Actual.StringFixed(2),
					"drift":            rec.Drift.StringFixed(2),
					"broken_snapshots": rec.BrokenSnapshots,
				}), "wallets.reconcile.drift")
			}
		}
		if len(ids) < j.batch {
			break
		}
		after = ids[len(ids)-1]
	}

	j.metrics.AddReconciled(checked)
	j.metrics.SetDrift(drifted)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{"checked": checked, "drifted": drifted}), "wallets.reconcile.done")
	return errs
}
