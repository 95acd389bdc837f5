package store

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/tendant/simple-idm-mongo/pkg/domain"
)

// Base carries the disposal flag shared by store implementations.
// The zero value is an open store.
type Base struct {
	disposed atomic.Bool
}

// Guard fails fast when ctx is already done or the store is closed.
// Every store operation calls it before doing anything else.
func (b *Base) Guard(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCancelled, err)
	}
	if b.disposed.Load() {
		return domain.ErrDisposed
	}
	return nil
}

// Close disposes the store. Later calls fail with domain.ErrDisposed.
func (b *Base) Close() error {
	b.disposed.Store(true)
	return nil
}

// Disposed reports whether Close has been called.
func (b *Base) Disposed() bool {
	return b.disposed.Load()
}

// Outcome classifies a finished store operation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeError   Outcome = "error"
)

// Observer receives one call per finished store operation.
type Observer interface {
	ObserveOperation(store, op string, outcome Outcome, elapsed time.Duration)
}

// NopObserver discards observations.
type NopObserver struct{}

// ObserveOperation implements Observer.
func (NopObserver) ObserveOperation(string, string, Outcome, time.Duration) {}

// OutcomeOf classifies a result and error pair.
func OutcomeOf(res domain.Result, err error) Outcome {
	switch {
	case err != nil:
		return OutcomeError
	case !res.Succeeded:
		return OutcomeFailure
	default:
		return OutcomeSuccess
	}
}
