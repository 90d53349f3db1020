// Package kernel implements the per-round fish school operations: initialize,
// move, eat and collective experience. Every operation is a data-parallel loop
// over the population driven by a schedule.Pool.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"fishschool/internal/schedule"
	"fishschool/internal/school"
)

// ErrDegenerateState reports a zero objective sum, i.e. every fish sits on the
// origin. The barycentre is undefined and the run cannot continue.
var ErrDegenerateState = errors.New("degenerate state: objective sum is zero")

const moveStep = 0.1

type Kernel struct {
	pool    *schedule.Pool
	reducer MaxReducer
	params  school.Params
}

func New(pool *schedule.Pool, reducer MaxReducer, params school.Params) (*Kernel, error) {
	if pool == nil {
		return nil, errors.New("worker pool is required")
	}
	if reducer == nil {
		reducer = PartialMax{}
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Kernel{pool: pool, reducer: reducer, params: params}, nil
}

// Initialize scatters the fish uniformly over the square domain and jitters
// their weights around the base weight. PrevObjective is left untouched; the
// first Move overwrites it.
func (k *Kernel) Initialize(ctx context.Context, s *school.School) error {
	fish := s.Fish()
	width := 2 * k.params.DomainHalfWidth
	base := k.params.BaseWeight
	jitter := k.params.WeightJitter
	return k.pool.For(ctx, len(fish), func(w *schedule.Worker, lo, hi int) {
		r := w.Rand
		for i := lo; i < hi; i++ {
			f := &fish[i]
			f.X = (r.Float64() - 0.5) * width
			f.Y = (r.Float64() - 0.5) * width
			f.Weight = base + (r.Float64()-0.5)*jitter
			f.CurrentObjective = f.Objective()
		}
	})
}

// Move nudges every fish by up to moveStep on each axis. Positions are never
// clamped to the domain.
func (k *Kernel) Move(ctx context.Context, s *school.School) error {
	fish := s.Fish()
	return k.pool.For(ctx, len(fish), func(w *schedule.Worker, lo, hi int) {
		r := w.Rand
		for i := lo; i < hi; i++ {
			f := &fish[i]
			f.X += r.Float64()*2*moveStep - moveStep
			f.Y += r.Float64()*2*moveStep - moveStep
			f.PrevObjective = f.CurrentObjective
			f.CurrentObjective = f.Objective()
		}
	})
}

type EatResult struct {
	MaxDiff float64
	// Reduction is the wall time of the max-reduction phase alone.
	Reduction time.Duration
}

// Eat grows each fish by its improvement normalized by the best improvement of
// the round, then caps the weight at MaxWeight. A zero MaxDiff is not guarded:
// the division yields ±Inf or NaN and those values flow into later rounds.
func (k *Kernel) Eat(ctx context.Context, s *school.School) (EatResult, error) {
	fish := s.Fish()

	start := time.Now()
	maxDiff, err := k.reducer.MaxDiff(ctx, k.pool, fish)
	reduction := time.Since(start)
	if err != nil {
		return EatResult{}, fmt.Errorf("max reduction: %w", err)
	}

	maxWeight := k.params.MaxWeight
	err = k.pool.For(ctx, len(fish), func(_ *schedule.Worker, lo, hi int) {
		for i := lo; i < hi; i++ {
			f := &fish[i]
			f.Weight += (f.PrevObjective - f.CurrentObjective) / maxDiff
			if f.Weight > maxWeight {
				f.Weight = maxWeight
			}
		}
	})
	if err != nil {
		return EatResult{}, fmt.Errorf("weight update: %w", err)
	}
	return EatResult{MaxDiff: maxDiff, Reduction: reduction}, nil
}

type Collective struct {
	Barycentre  float64
	Numerator   float64
	Denominator float64
	// NonFinite counts fish whose weight is ±Inf or NaN.
	NonFinite int
}

type collectiveSums struct {
	num       float64
	den       float64
	nonFinite int
}

// Collect computes the objective-weighted barycentre of the school.
func (k *Kernel) Collect(ctx context.Context, s *school.School) (Collective, error) {
	fish := s.Fish()
	sums, err := schedule.Reduce(ctx, k.pool, len(fish), collectiveSums{}, func(_ *schedule.Worker, lo, hi int, acc collectiveSums) collectiveSums {
		for i := lo; i < hi; i++ {
			f := &fish[i]
			acc.num += f.CurrentObjective * f.Weight
			acc.den += f.CurrentObjective
			if math.IsInf(f.Weight, 0) || math.IsNaN(f.Weight) {
				acc.nonFinite++
			}
		}
		return acc
	}, func(a, b collectiveSums) collectiveSums {
		return collectiveSums{num: a.num + b.num, den: a.den + b.den, nonFinite: a.nonFinite + b.nonFinite}
	})
	if err != nil {
		return Collective{}, fmt.Errorf("barycentre reduction: %w", err)
	}
	if sums.den == 0 {
		return Collective{}, ErrDegenerateState
	}
	return Collective{
		Barycentre:  sums.num / sums.den,
		Numerator:   sums.num,
		Denominator: sums.den,
		NonFinite:   sums.nonFinite,
	}, nil
}

// CollectiveExperience returns the barycentre of the school.
func (k *Kernel) CollectiveExperience(ctx context.Context, s *school.School) (float64, error) {
	c, err := k.Collect(ctx, s)
	if err != nil {
		return 0, err
	}
	return c.Barycentre, nil
}
