// Package schedule partitions an index range across a fixed set of workers
// using static, dynamic or guided chunking.
package schedule

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"fishschool/internal/alloc"
	"fishschool/internal/rng"
)

// Worker is handed to every task body. Rand belongs to this worker alone for
// the lifetime of the pool.
type Worker struct {
	ID   int
	Rand *rng.Stream
}

// Pool runs data-parallel loops with a fixed worker count and policy.
type Pool struct {
	cfg     Config
	streams []rng.Stream
	workers []Worker
}

func New(cfg Config, seed int64) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	streams, err := alloc.Slice[rng.Stream]("rng streams", cfg.Workers, 0)
	if err != nil {
		return nil, err
	}
	workers, err := alloc.Slice[Worker]("workers", cfg.Workers, 0)
	if err != nil {
		return nil, err
	}
	rng.Seed(streams, rng.NewSeeder(seed))
	for i := range workers {
		workers[i] = Worker{ID: i, Rand: &streams[i]}
	}
	return &Pool{cfg: cfg, streams: streams, workers: workers}, nil
}

func (p *Pool) Config() Config {
	return p.cfg
}

func (p *Pool) Workers() int {
	return len(p.workers)
}

type claimFunc func() (lo, hi int, ok bool)

// For calls body once per claimed chunk [lo, hi) of [0, n). Chunks claimed by
// different workers never overlap.
func (p *Pool) For(ctx context.Context, n int, body func(w *Worker, lo, hi int)) error {
	return p.run(ctx, n, func(w *Worker, next claimFunc) {
		for lo, hi, ok := next(); ok; lo, hi, ok = next() {
			body(w, lo, hi)
		}
	})
}

// Reduce folds [0, n) into one value. Each worker keeps its own partial across
// all of its chunks; partials are combined once, in worker id order.
func Reduce[T any](ctx context.Context, p *Pool, n int, identity T, body func(w *Worker, lo, hi int, acc T) T, combine func(a, b T) T) (T, error) {
	partials := make([]T, len(p.workers))
	err := p.run(ctx, n, func(w *Worker, next claimFunc) {
		acc := identity
		for lo, hi, ok := next(); ok; lo, hi, ok = next() {
			acc = body(w, lo, hi, acc)
		}
		partials[w.ID] = acc
	})
	if err != nil {
		return identity, err
	}
	result := identity
	for _, partial := range partials {
		result = combine(result, partial)
	}
	return result, nil
}

func (p *Pool) run(ctx context.Context, n int, work func(w *Worker, next claimFunc)) error {
	if n <= 0 {
		return ctx.Err()
	}
	claimer := p.claimer(n)
	done := ctx.Done()

	var g errgroup.Group
	for i := range p.workers {
		w := &p.workers[i]
		claim := claimer(w.ID)
		var cancelled atomic.Bool
		next := claim
		if done != nil {
			next = func() (int, int, bool) {
				select {
				case <-done:
					cancelled.Store(true)
					return 0, 0, false
				default:
				}
				return claim()
			}
		}
		g.Go(func() error {
			work(w, next)
			if cancelled.Load() {
				return ctx.Err()
			}
			return nil
		})
	}
	return g.Wait()
}

func (p *Pool) claimer(n int) func(worker int) claimFunc {
	// A chunk never needs to exceed the range; clamping keeps the index
	// arithmetic below from overflowing.
	chunk := min(p.cfg.Chunk, n)
	workers := len(p.workers)

	switch p.cfg.Policy {
	case PolicyDynamic:
		var cursor atomic.Int64
		return func(int) claimFunc {
			return func() (int, int, bool) {
				lo := int(cursor.Add(int64(chunk))) - chunk
				if lo >= n {
					return 0, 0, false
				}
				return lo, min(lo+chunk, n), true
			}
		}
	case PolicyGuided:
		var cursor atomic.Int64
		return func(int) claimFunc {
			return func() (int, int, bool) {
				for {
					lo := int(cursor.Load())
					if lo >= n {
						return 0, 0, false
					}
					size := max(chunk, (n-lo+workers-1)/workers)
					hi := min(lo+size, n)
					if cursor.CompareAndSwap(int64(lo), int64(hi)) {
						return lo, hi, true
					}
				}
			}
		}
	default:
		stride := workers * chunk
		return func(worker int) claimFunc {
			start := worker * chunk
			return func() (int, int, bool) {
				if start >= n {
					return 0, 0, false
				}
				lo := start
				if stride > n-lo {
					start = n
				} else {
					start += stride
				}
				return lo, min(lo+chunk, n), true
			}
		}
	}
}
