package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/shopvana/shopvana-backend/pkg/db/models"
	"github.com/shopvana/shopvana-backend/pkg/logger"
)

type expiredOrderReader interface {
	ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type orderCanceller interface {
	Cancel(ctx context.Context, orderID uuid.UUID) error
}

// PaymentWindowJobParams configure the lapsed-order sweep.
type PaymentWindowJobParams struct {
	Logger *logger.Logger
	Orders expiredOrderReader
	Cancel orderCanceller
	Grace  time.Duration
}

// NewPaymentWindowJob builds the job that cancels orders whose payment
// window lapsed more than the grace period ago, returning their stock.
// The grace period keeps a callback that is merely late from losing the
// customer's order.
func NewPaymentWindowJob(params PaymentWindowJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders reader required")
	}
	if params.Cancel == nil {
		return nil, fmt.Errorf("order canceller required")
	}
	if params.Grace < 0 {
		return nil, fmt.Errorf("grace period cannot be negative")
	}
	return &paymentWindowJob{
		logg:   params.Logger,
		orders: params.Orders,
		cancel: params.Cancel,
		grace:  params.Grace,
		now:    time.Now,
	}, nil
}

type paymentWindowJob struct {
	logg   *logger.Logger
	orders expiredOrderReader
	cancel orderCanceller
	grace  time.Duration
	now    func() time.Time
}

func (j *paymentWindowJob) Name() string { return "payment-window" }

func (j *paymentWindowJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.grace)
	expired, err := j.orders.ListExpiredPending(ctx, cutoff, 0)
	if err != nil {
		return fmt.Errorf("query expired pending orders: %w", err)
	}

	var errs error
	cancelled := 0
	for _, order := range expired {
		orderCtx := j.logg.WithOrderID(ctx, order.ID.String())
		if err := j.cancel.Cancel(orderCtx, order.ID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("cancel order %s: %w", order.ID, err))
			continue
		}
		cancelled++
		j.logg.Info(orderCtx, "expired order cancelled")
	}
	if cancelled > 0 {
		j.logg.Info(j.logg.WithField(ctx, "cancelled", cancelled), "payment window sweep complete")
	}
	return errs
}
