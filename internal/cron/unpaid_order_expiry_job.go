package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/fashionstore-backend/pkg/logger"
)

const (
	defaultUnpaidTTL   = 24 * time.Hour
	defaultExpiryBatch = 100
)

type unpaidOrderExpirer interface {
	ExpireUnpaid(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// UnpaidOrderExpiryJobParams configure the unpaid order sweep.
type UnpaidOrderExpiryJobParams struct {
	Logger    *logger.Logger
	Orders    unpaidOrderExpirer
	TTL       time.Duration
	BatchSize int
}

// NewUnpaidOrderExpiryJob builds the job that cancels wallet orders left
// unpaid for longer than the TTL, returning their stock to the catalog.
func NewUnpaidOrderExpiryJob(params UnpaidOrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultUnpaidTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	return &unpaidOrderExpiryJob{
		logg:   params.Logger,
		orders: params.Orders,
		ttl:    ttl,
		batch:  batch,
		now:    time.Now,
	}, nil
}

type unpaidOrderExpiryJob struct {
	logg   *logger.Logger
	orders unpaidOrderExpirer
	ttl    time.Duration
	batch  int
	now    func() time.Time
}

func (j *unpaidOrderExpiryJob) Name() string { return "unpaid-order-expiry" }

func (j *unpaidOrderExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	expired, err := j.orders.ExpireUnpaid(ctx, cutoff, j.batch)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"expired": expired,
		"cutoff":  cutoff.Format(time.RFC3339),
	}), "orders.expire_unpaid")
	return err
}
