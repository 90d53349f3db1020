package kernel

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"fishschool/internal/schedule"
	"fishschool/internal/school"
)

// MaxReducer computes max(prev - current) over the population. Every strategy
// starts from -Inf and ignores NaN differences, so all of them agree exactly.
type MaxReducer interface {
	Name() string
	MaxDiff(ctx context.Context, pool *schedule.Pool, fish []school.Fish) (float64, error)
}

const (
	ReducerCritical  = "critical"
	ReducerAtomic    = "atomic"
	ReducerReduction = "reduction"
)

var reducers = map[string]MaxReducer{
	ReducerCritical:  CriticalMax{},
	ReducerAtomic:    AtomicMax{},
	ReducerReduction: PartialMax{},
}

// ReducerByName resolves a strategy name. The empty name selects the
// per-worker reduction.
func ReducerByName(name string) (MaxReducer, error) {
	if name == "" {
		return PartialMax{}, nil
	}
	r, ok := reducers[name]
	if !ok {
		return nil, fmt.Errorf("unsupported max reducer: %q (want one of %v)", name, ReducerNames())
	}
	return r, nil
}

func ReducerNames() []string {
	names := make([]string, 0, len(reducers))
	for name := range reducers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CriticalMax takes one shared lock per element. It serializes the scan and is
// kept as the baseline the other strategies are measured against.
type CriticalMax struct{}

func (CriticalMax) Name() string { return ReducerCritical }

func (CriticalMax) MaxDiff(ctx context.Context, pool *schedule.Pool, fish []school.Fish) (float64, error) {
	var mu sync.Mutex
	maxDiff := math.Inf(-1)
	err := pool.For(ctx, len(fish), func(_ *schedule.Worker, lo, hi int) {
		for i := lo; i < hi; i++ {
			diff := fish[i].PrevObjective - fish[i].CurrentObjective
			mu.Lock()
			if diff > maxDiff {
				maxDiff = diff
			}
			mu.Unlock()
		}
	})
	return maxDiff, err
}

// AtomicMax updates one shared value with a compare-and-swap loop per element.
type AtomicMax struct{}

func (AtomicMax) Name() string { return ReducerAtomic }

func (AtomicMax) MaxDiff(ctx context.Context, pool *schedule.Pool, fish []school.Fish) (float64, error) {
	var bits atomic.Uint64
	bits.Store(math.Float64bits(math.Inf(-1)))
	err := pool.For(ctx, len(fish), func(_ *schedule.Worker, lo, hi int) {
		for i := lo; i < hi; i++ {
			diff := fish[i].PrevObjective - fish[i].CurrentObjective
			for {
				cur := bits.Load()
				if !(diff > math.Float64frombits(cur)) {
					break
				}
				if bits.CompareAndSwap(cur, math.Float64bits(diff)) {
					break
				}
			}
		}
	})
	return math.Float64frombits(bits.Load()), err
}

// PartialMax keeps a per-worker maximum and combines the partials once.
type PartialMax struct{}

func (PartialMax) Name() string { return ReducerReduction }

func (PartialMax) MaxDiff(ctx context.Context, pool *schedule.Pool, fish []school.Fish) (float64, error) {
	return schedule.Reduce(ctx, pool, len(fish), math.Inf(-1), func(_ *schedule.Worker, lo, hi int, acc float64) float64 {
		for i := lo; i < hi; i++ {
			diff := fish[i].PrevObjective - fish[i].CurrentObjective
			if diff > acc {
				acc = diff
			}
		}
		return acc
	}, maxFloat)
}

func maxFloat(a, b float64) float64 {
	if b > a {
		return b
	}
	return a
}
