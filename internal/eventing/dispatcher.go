package eventing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"confreg/internal/observability/metrics"
)

const (
	defaultBatchSize   = 50
	defaultMaxAttempts = 5
)

// Dispatcher delivers pending outbox envelopes to registered consumers.
// Delivery is at-least-once; the processed store keeps each consumer to one success per event.
type Dispatcher struct {
	outbox      Outbox
	registry    *Registry
	processed   ProcessedStore
	maxAttempts int
	batchSize   int
	logger      *zap.Logger
	wake        chan struct{}
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMaxAttempts sets how many failed attempts mark a record dead.
func WithMaxAttempts(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

// WithBatchSize sets how many records one Dispatch call reads.
func WithBatchSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.batchSize = n
		}
	}
}

// WithLogger sets the dispatcher logger.
func WithLogger(logger *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher constructs a dispatcher.
func NewDispatcher(outbox Outbox, registry *Registry, processed ProcessedStore, opts ...DispatcherOption) (*Dispatcher, error) {
	if outbox == nil {
		return nil, errors.New("dispatcher: nil outbox")
	}
	if registry == nil {
		return nil, errors.New("dispatcher: nil registry")
	}
	if processed == nil {
		return nil, errors.New("dispatcher: nil processed store")
	}
	d := &Dispatcher{
		outbox:      outbox,
		registry:    registry,
		processed:   processed,
		maxAttempts: defaultMaxAttempts,
		batchSize:   defaultBatchSize,
		logger:      zap.NewNop(),
		wake:        make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Wake asks a running dispatcher to poll now.
func (d *Dispatcher) Wake() {
	if d == nil {
		return
	}
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run polls the outbox every interval until ctx is done.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("dispatcher: non-positive interval")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := d.Dispatch(ctx); err != nil && ctx.Err() == nil {
			d.logger.Warn("outbox dispatch failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-d.wake:
		}
	}
}

// Dispatch delivers one batch of pending envelopes and returns how many were completed.
func (d *Dispatcher) Dispatch(ctx context.Context) (int, error) {
	records, err := d.outbox.ListPending(ctx, d.batchSize)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, record := range records {
		if err := d.deliver(ctx, record.Envelope); err != nil {
			dead := record.Attempts+1 >= d.maxAttempts
			if markErr := d.outbox.MarkFailed(ctx, record.ID, err.Error(), dead); markErr != nil {
				return sent, markErr
			}
			level := d.logger.Warn
			if dead {
				level = d.logger.Error
			}
			level("event delivery failed",
				zap.String("event_id", record.Envelope.EventID),
				zap.String("event_type", record.Envelope.EventType),
				zap.Int("attempt", record.Attempts+1),
				zap.Bool("dead", dead),
				zap.Error(err),
			)
			continue
		}
		if err := d.outbox.MarkSent(ctx, record.ID); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

func (d *Dispatcher) deliver(ctx context.Context, env Envelope) error {
	ctx = WithEnvelope(ctx, env)
	var errs []error
	for _, c := range d.registry.handlers(env.EventType) {
		done, err := d.processed.HasProcessed(ctx, env.EventID, c.name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if done {
			continue
		}
		if err := c.handler(ctx, env); err != nil {
			metrics.IncEventDelivery(env.EventType, c.name, metrics.ResultError)
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			continue
		}
		metrics.IncEventDelivery(env.EventType, c.name, metrics.ResultSuccess)
		if err := d.processed.MarkProcessed(ctx, env.EventID, c.name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
