package persist

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/soundprediction/chronograph/pkg/types"
)

// BreakerSettings configures the circuit breaker guarding a Store.
type BreakerSettings struct {
	// MaxRequests allowed through while the breaker is half-open.
	MaxRequests uint32
	// Interval over which failure counts are aggregated while closed.
	Interval time.Duration
	// Timeout before a tripped breaker transitions to half-open.
	Timeout time.Duration
	// ReadyToTripRatio trips the breaker once the failure ratio over at
	// least five requests reaches this value. Defaults to 0.6.
	ReadyToTripRatio float64
}

// Breaker wraps a Store with a circuit breaker so that a failing storage
// backend sheds load quickly instead of stalling every engine write.
type Breaker struct {
	inner Store
	cb    *gobreaker.CircuitBreaker
}

// NewBreaker wraps inner with a circuit breaker.
func NewBreaker(inner Store, settings BreakerSettings) *Breaker {
	ratio := settings.ReadyToTripRatio
	if ratio <= 0 {
		ratio = 0.6
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "chronograph-persist",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		},
	})
	return &Breaker{inner: inner, cb: cb}
}

// SaveSnapshot implements Store.
func (b *Breaker) SaveSnapshot(ctx context.Context, snapshot *types.Snapshot) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.inner.SaveSnapshot(ctx, snapshot)
	})
	return err
}

// AppendChange implements Store.
func (b *Breaker) AppendChange(ctx context.Context, tenantID string, change *types.Change) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.inner.AppendChange(ctx, tenantID, change)
	})
	return err
}

// LoadSnapshots implements Store.
func (b *Breaker) LoadSnapshots(ctx context.Context, tenantID string) ([]*types.Snapshot, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.LoadSnapshots(ctx, tenantID)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*types.Snapshot), nil
}

// LoadChanges implements Store.
func (b *Breaker) LoadChanges(ctx context.Context, tenantID string) ([]*types.Change, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.LoadChanges(ctx, tenantID)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*types.Change), nil
}

// DeleteSnapshotsBefore implements Store.
func (b *Breaker) DeleteSnapshotsBefore(ctx context.Context, tenantID string, cutoff time.Time) (int, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.DeleteSnapshotsBefore(ctx, tenantID, cutoff)
	})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}

// Close implements Store. Close bypasses the breaker.
func (b *Breaker) Close() error {
	return b.inner.Close()
}
