package cron

import (
	"context"
	"fmt"

	"github.com/shopvana/shopvana-backend/pkg/logger"
)

type pendingChecker interface {
	CheckPending(ctx context.Context) error
}

// PendingPaymentsJobParams configure the payment poll job.
type PendingPaymentsJobParams struct {
	Logger   *logger.Logger
	Payments pendingChecker
}

// NewPendingPaymentsJob builds the job that verifies every pending payment
// against the gateway. It is the fallback for lost callbacks.
func NewPendingPaymentsJob(params PendingPaymentsJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	return &pendingPaymentsJob{logg: params.Logger, payments: params.Payments}, nil
}

type pendingPaymentsJob struct {
	logg     *logger.Logger
	payments pendingChecker
}

func (j *pendingPaymentsJob) Name() string { return "pending-payments" }

func (j *pendingPaymentsJob) Run(ctx context.Context) error {
	return j.payments.CheckPending(ctx)
}
