package cache

import (
	"context"
	"errors"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/resilience"
)

// cancelled reports errors caused by the caller giving up, which say
// nothing about the store's health.
func cancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}

type guardedStore struct {
	store Store
	cb    *resilience.CircuitBreaker
}

// WithBreaker routes every store call through a circuit breaker. While the
// breaker is open calls fail at once with resilience.ErrCircuitOpen, which
// the cache treats like any other store error. m may be nil.
func WithBreaker(store Store, cfg resilience.CircuitBreakerConfig, m *metrics.Metrics) Store {
	if m != nil {
		cfg.OnStateChange = func(name string, _, to resilience.State) {
			m.CircuitState.WithLabelValues(name).Set(float64(to))
		}
	}
	return &guardedStore{store: store, cb: resilience.NewCircuitBreaker("result-cache", cfg)}
}

func (g *guardedStore) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	err = g.cb.Execute(func() error {
		var err error
		value, ok, err = g.store.Get(ctx, key)
		return err
	}, cancelled)
	return value, ok, err
}

func (g *guardedStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return g.cb.Execute(func() error {
		return g.store.Set(ctx, key, value, ttl)
	}, cancelled)
}

func (g *guardedStore) FlushByPattern(ctx context.Context, pattern string) (n int64, err error) {
	err = g.cb.Execute(func() error {
		var err error
		n, err = g.store.FlushByPattern(ctx, pattern)
		return err
	}, cancelled)
	return n, err
}

func (g *guardedStore) CountByPattern(ctx context.Context, pattern string) (n int64, err error) {
	err = g.cb.Execute(func() error {
		var err error
		n, err = g.store.CountByPattern(ctx, pattern)
		return err
	}, cancelled)
	return n, err
}
