// Package loader implements request-scoped batch loaders on top of
// graph-gophers/dataloader.
//
// A Loader queues every Load until Dispatch, then hands the queued keys to
// one call of its fetch function and caches the result per key for the
// lifetime of the Loader. The executor dispatches once per wave, after every
// field of the wave has been started, so a wave costs one fetch per loader no
// matter how many parents it has. Awaiting a thunk that was never dispatched
// dispatches its loader first. Loaders are built fresh for every request and
// must never be shared between requests.
package loader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/graph-gophers/dataloader"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Key is the constraint for loader keys.
type Key interface {
	comparable
	String() string
}

// FetchFunc loads the values for a set of distinct keys in one round trip.
// Keys missing from the returned map resolve to the zero value of V.
type FetchFunc[K Key, V any] func(ctx context.Context, keys []K) (map[K]V, error)

// Thunk blocks until the value for a Load is available.
type Thunk[V any] func() (V, error)

// Options tunes batching.
type Options struct {
	// Wait bounds how long a dispatched batch may sit before its fetch
	// starts. Dispatch fills every batch it creates, so in practice the
	// fetch starts at once.
	Wait time.Duration
	// MaxBatch caps the keys per fetch; 0 means unbounded.
	MaxBatch int
	Logger   *zap.Logger
}

// DefaultOptions mirrors the wait used by the HTTP loaders in production.
func DefaultOptions() Options {
	return Options{Wait: 5 * time.Millisecond}
}

// Loader batches and caches loads of V by K.
type Loader[K Key, V any] struct {
	name    string
	opts    Options
	batchFn dataloader.BatchFunc
	cache   dataloader.Cache
	logger  *zap.Logger
	tracer  trace.Tracer

	mu     sync.Mutex
	queue  []K
	queued map[K]*queuedLoad
}

// queuedLoad is a key waiting for the next Dispatch. ready closes once thunk
// is set.
type queuedLoad struct {
	ready chan struct{}
	thunk dataloader.Thunk
}

type dataKey[K Key] struct {
	key K
}

func (k dataKey[K]) String() string { return k.key.String() }

func (k dataKey[K]) Raw() interface{} { return k.key }

// New creates a loader named name that resolves keys with fetch
func New[K Key, V any](name string, fetch FetchFunc[K, V], opts Options) *Loader[K, V] {
	l := &Loader[K, V]{
		name:   name,
		opts:   opts,
		cache:  dataloader.NewCache(),
		logger: opts.Logger,
		tracer: otel.Tracer("github.com/rpattn/socialql/internal/loader"),
		queued: make(map[K]*queuedLoad),
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}

	l.batchFn = func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		typed := make([]K, len(keys))
		for i, k := range keys {
			typed[i] = k.Raw().(K)
		}

		ctx, span := l.tracer.Start(ctx, "loader."+name, trace.WithAttributes(
			attribute.Int("loader.keys", len(typed)),
		))
		defer span.End()

		start := time.Now()
		found, err := fetch(ctx, typed)
		l.logger.Debug("loader batch",
			zap.String("loader", name),
			zap.Int("keys", len(typed)),
			zap.Duration("took", time.Since(start)),
			zap.Error(err),
		)

		results := make([]*dataloader.Result, len(typed))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			err = fmt.Errorf("loader %s: %w", name, err)
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}
		for i, k := range typed {
			results[i] = &dataloader.Result{Data: found[k]}
		}
		return results
	}
	return l
}

// Name identifies the loader in logs and spans.
func (l *Loader[K, V]) Name() string {
	return l.name
}

// Load queues key for the next Dispatch, or reuses the cached result.
func (l *Loader[K, V]) Load(ctx context.Context, key K) Thunk[V] {
	l.mu.Lock()
	if cached, ok := l.cache.Get(ctx, dataKey[K]{key: key}); ok {
		l.mu.Unlock()
		return l.typed(cached)
	}
	q, ok := l.queued[key]
	if !ok {
		q = &queuedLoad{ready: make(chan struct{})}
		l.queued[key] = q
		l.queue = append(l.queue, key)
	}
	l.mu.Unlock()

	var (
		once  sync.Once
		thunk Thunk[V]
	)
	return func() (V, error) {
		once.Do(func() {
			select {
			case <-q.ready:
			default:
				l.Dispatch(ctx)
				<-q.ready
			}
			thunk = l.typed(q.thunk)
		})
		return thunk()
	}
}

// Pending reports how many keys wait for the next Dispatch.
func (l *Loader[K, V]) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Dispatch fetches every queued key. Keys primed since they were queued are
// served from the cache; the rest go out in one fetch, or in MaxBatch sized
// fetches when MaxBatch is set. Dispatch does not wait for the fetches.
func (l *Loader[K, V]) Dispatch(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return
	}
	keys, queued := l.queue, l.queued
	l.queue, l.queued = nil, make(map[K]*queuedLoad)

	misses := make([]K, 0, len(keys))
	for _, k := range keys {
		if cached, ok := l.cache.Get(ctx, dataKey[K]{key: k}); ok {
			queued[k].thunk = cached
			continue
		}
		misses = append(misses, k)
	}

	size := len(misses)
	if l.opts.MaxBatch > 0 && l.opts.MaxBatch < size {
		size = l.opts.MaxBatch
	}
	for start := 0; start < len(misses); start += size {
		chunk := misses[start:min(start+size, len(misses))]
		// A batcher whose capacity equals the chunk fires as soon as the
		// last key is added.
		dl := dataloader.NewBatchedLoader(l.batchFn,
			dataloader.WithCache(l.cache),
			dataloader.WithBatchCapacity(len(chunk)),
			dataloader.WithInputCapacity(len(chunk)),
			dataloader.WithWait(l.opts.Wait),
		)
		for _, k := range chunk {
			queued[k].thunk = dl.Load(ctx, dataKey[K]{key: k})
		}
	}

	for _, k := range keys {
		close(queued[k].ready)
	}
}

func (l *Loader[K, V]) typed(thunk dataloader.Thunk) Thunk[V] {
	return func() (V, error) {
		var zero V
		data, err := thunk()
		if err != nil {
			return zero, err
		}
		if data == nil {
			return zero, nil
		}
		v, ok := data.(V)
		if !ok {
			return zero, fmt.Errorf("loader %s: unexpected value %T", l.name, data)
		}
		return v, nil
	}
}

// LoadMany schedules every key; the thunk fails with the first error seen.
func (l *Loader[K, V]) LoadMany(ctx context.Context, keys []K) Thunk[[]V] {
	thunks := make([]Thunk[V], len(keys))
	for i, k := range keys {
		thunks[i] = l.Load(ctx, k)
	}
	return func() ([]V, error) {
		out := make([]V, len(thunks))
		for i, thunk := range thunks {
			v, err := thunk()
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
}

// Prime seeds the cache so a later Load of key makes no fetch.
// An existing entry for key is left untouched.
func (l *Loader[K, V]) Prime(ctx context.Context, key K, value V) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := dataKey[K]{key: key}
	if _, ok := l.cache.Get(ctx, k); ok {
		return
	}
	l.cache.Set(ctx, k, func() (interface{}, error) { return value, nil })
}

// LoadAny is Load for callers that only hold the key as an interface value.
func (l *Loader[K, V]) LoadAny(ctx context.Context, key any) func() (any, error) {
	k, ok := key.(K)
	if !ok {
		err := fmt.Errorf("loader %s: key %v has type %T", l.name, key, key)
		return func() (any, error) { return nil, err }
	}
	thunk := l.Load(ctx, k)
	return func() (any, error) {
		return thunk()
	}
}
