// Package metrics records transfer timings with OpenTelemetry.
package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/go-petr/fund-transfer"

// Instrument names.
const (
	TransactionDuration = "fund_transfer.transaction_duration"
	LockAcquisitionTime = "fund_transfer.lock_acquisition_time"
	TransfersTotal      = "fund_transfer.transfers"
)

// Outcome attribute values.
const (
	OutcomeSuccess   = "success"
	OutcomeDuplicate = "duplicate"
	OutcomeError     = "error"
)

var outcomeKey = attribute.Key("outcome")

// Recorder is the metrics sink of the transfer coordinator.
type Recorder struct {
	transactionDuration metric.Float64Histogram
	lockAcquisitionTime metric.Float64Histogram
	transfers           metric.Int64Counter
}

// New creates the instruments on the provider, the global one when provider is nil.
func New(provider metric.MeterProvider) (*Recorder, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}

	meter := provider.Meter(meterName)

	var (
		r   Recorder
		err error
	)

	r.transactionDuration, err = meter.Float64Histogram(
		TransactionDuration,
		metric.WithDescription("Total time spent handling a transfer request"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s histogram: %w", TransactionDuration, err)
	}

	r.lockAcquisitionTime, err = meter.Float64Histogram(
		LockAcquisitionTime,
		metric.WithDescription("Time spent acquiring both account locks"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s histogram: %w", LockAcquisitionTime, err)
	}

	r.transfers, err = meter.Int64Counter(
		TransfersTotal,
		metric.WithDescription("Number of handled transfer requests"),
		metric.WithUnit("{transfer}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s counter: %w", TransfersTotal, err)
	}

	return &r, nil
}

// NewNop returns Recorder that drops every measurement.
func NewNop() *Recorder {
	r, _ := New(noop.NewMeterProvider()) // noop instruments never fail
	return r
}

// ObserveTransfer records the total handling time of one transfer request.
func (r *Recorder) ObserveTransfer(ctx context.Context, d time.Duration, outcome string) {
	attrs := metric.WithAttributes(outcomeKey.String(outcome))

	r.transactionDuration.Record(ctx, d.Seconds(), attrs)
	r.transfers.Add(ctx, 1, attrs)
}

// ObserveLockAcquisition records the time spent waiting for the account locks.
func (r *Recorder) ObserveLockAcquisition(ctx context.Context, d time.Duration) {
	r.lockAcquisitionTime.Record(ctx, d.Seconds())
}
