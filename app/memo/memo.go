// Package memo memoizes expensive or network-bound calls by the structural
// identity of their arguments.
//
// Equal arguments share one in-flight call and, once it succeeds, one
// completed value. Failed calls are never cached so they can be retried.
package memo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// Key returns a structural key for args. Maps are serialized with sorted
// keys and structs in field declaration order, so two values that are
// structurally equal always produce the same key regardless of how they were
// built.
func Key(args ...any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, a := range args {
		if err := enc.Encode(a); err != nil {
			return "", fmt.Errorf("memo: cannot serialize argument %d: %w", i, err)
		}
	}
	return strconv.FormatUint(xxhash.Sum64(buf.Bytes()), 16), nil
}

type Options struct {
	// TTL bounds how long a completed value is reused. Zero means forever.
	TTL time.Duration
	// CallTimeout bounds a shared call once it no longer follows the
	// cancellation of the caller that started it. Zero means no bound.
	CallTimeout time.Duration
	// CleanupInterval is how often expired entries are purged. Ignored when
	// TTL is zero.
	CleanupInterval time.Duration
}

type Option func(*Options)

func WithTTL(ttl time.Duration) Option {
	return func(o *Options) {
		o.TTL = ttl
		if o.CleanupInterval == 0 {
			o.CleanupInterval = 2 * ttl
		}
	}
}

func WithCallTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.CallTimeout = d
	}
}

// Memoizer caches results of type T under string keys.
type Memoizer[T any] struct {
	name        string
	values      *cache.Cache
	flight      singleflight.Group
	callTimeout time.Duration
}

func New[T any](name string, opts ...Option) *Memoizer[T] {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}

	expiry := cache.NoExpiration
	cleanup := time.Duration(0)
	if o.TTL > 0 {
		expiry = o.TTL
		cleanup = o.CleanupInterval
	}

	return &Memoizer[T]{
		name:        name,
		values:      cache.New(expiry, cleanup),
		callTimeout: o.CallTimeout,
	}
}

// Do returns the cached value for key, joins an in-flight call for key, or
// calls f. Only successful results are stored.
//
// The shared call keeps the values of ctx but not its cancellation, so one
// caller giving up does not fail the others that joined it. Each caller
// still returns as soon as its own ctx is done.
func (m *Memoizer[T]) Do(ctx context.Context, key string, f func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if v, ok := m.values.Get(key); ok {
		observe(m.name, resultHit)
		res, _ := v.(T)
		return res, nil
	}

	ch := m.flight.DoChan(key, func() (any, error) {
		// Another caller may have completed between the lookup and here.
		if v, ok := m.values.Get(key); ok {
			return v, nil
		}
		callCtx := context.WithoutCancel(ctx)
		if m.callTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(callCtx, m.callTimeout)
			defer cancel()
		}
		res, err := f(callCtx)
		if err != nil {
			return nil, err
		}
		m.values.Set(key, res, cache.DefaultExpiration)
		return res, nil
	})

	var r singleflight.Result
	select {
	case r = <-ch:
	case <-ctx.Done():
		observe(m.name, resultError)
		return zero, ctx.Err()
	}

	switch {
	case r.Err != nil:
		observe(m.name, resultError)
		return zero, r.Err
	case r.Shared:
		observe(m.name, resultShared)
	default:
		observe(m.name, resultMiss)
	}
	res, _ := r.Val.(T)
	return res, nil
}

// Len is the number of completed values held.
func (m *Memoizer[T]) Len() int {
	return m.values.ItemCount()
}

func (m *Memoizer[T]) Purge() {
	m.values.Flush()
}

// Memoize wraps f so that calls with structurally equal arguments are served
// from one shared result. If the argument cannot be serialized the call goes
// straight to f.
func Memoize[A, T any](name string, f func(ctx context.Context, arg A) (T, error), opts ...Option) func(ctx context.Context, arg A) (T, error) {
	m := New[T](name, opts...)
	return func(ctx context.Context, arg A) (T, error) {
		key, err := Key(arg)
		if err != nil {
			observe(name, resultUncacheable)
			return f(ctx, arg)
		}
		return m.Do(ctx, key, func(ctx context.Context) (T, error) {
			return f(ctx, arg)
		})
	}
}
