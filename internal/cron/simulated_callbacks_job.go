package cron

import (
	"context"
	"fmt"

	"github.com/shopvana/shopvana-backend/pkg/logger"
)

type pendingSimulator interface {
	SimulatePending(ctx context.Context) error
}

// SimulatedCallbacksJobParams configure the gateway-less settlement job.
type SimulatedCallbacksJobParams struct {
	Logger   *logger.Logger
	Payments pendingSimulator
}

// NewSimulatedCallbacksJob builds the job that settles pending payments as
// confirmed without a live gateway. It drives the same reconciliation path
// a real callback would and only runs where the feature flag enables it.
func NewSimulatedCallbacksJob(params SimulatedCallbacksJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	return &simulatedCallbacksJob{logg: params.Logger, payments: params.Payments}, nil
}

type simulatedCallbacksJob struct {
	logg     *logger.Logger
	payments pendingSimulator
}

func (j *simulatedCallbacksJob) Name() string { return "simulated-callbacks" }

func (j *simulatedCallbacksJob) Run(ctx context.Context) error {
	return j.payments.SimulatePending(ctx)
}
