package kernel

import (
	"context"
	"errors"
	"math"
	"testing"

	"fishschool/internal/schedule"
	"fishschool/internal/school"
)

var testParams = school.Params{DomainHalfWidth: 200, BaseWeight: 5, WeightJitter: 0.1, MaxWeight: 10}

func newTestKernel(t *testing.T, cfg schedule.Config, reducer string, seed int64) *Kernel {
	t.Helper()
	pool, err := schedule.New(cfg, seed)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	r, err := ReducerByName(reducer)
	if err != nil {
		t.Fatalf("reducer: %v", err)
	}
	k, err := New(pool, r, testParams)
	if err != nil {
		t.Fatalf("new kernel: %v", err)
	}
	return k
}

func newTestSchool(t *testing.T, n int) *school.School {
	t.Helper()
	s, err := school.Allocate(n, 0)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	return s
}

func TestInitializeStaysInsideDomain(t *testing.T) {
	ctx := context.Background()
	k := newTestKernel(t, schedule.Config{Workers: 4, Policy: schedule.PolicyDynamic, Chunk: 16}, "", 3)
	s := newTestSchool(t, 5000)
	if err := k.Initialize(ctx, s); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	for i, f := range s.Fish() {
		if math.Abs(f.X) > testParams.DomainHalfWidth || math.Abs(f.Y) > testParams.DomainHalfWidth {
			t.Fatalf("fish %d outside domain: (%f, %f)", i, f.X, f.Y)
		}
		if math.Abs(f.Weight-testParams.BaseWeight) > testParams.WeightJitter/2+1e-12 {
			t.Fatalf("fish %d weight outside jitter band: %f", i, f.Weight)
		}
		if f.CurrentObjective != math.Hypot(f.X, f.Y) && math.Abs(f.CurrentObjective-math.Hypot(f.X, f.Y)) > 1e-12 {
			t.Fatalf("fish %d objective mismatch: %f", i, f.CurrentObjective)
		}
	}
}

func TestMoveShiftsByAtMostOneStep(t *testing.T) {
	ctx := context.Background()
	k := newTestKernel(t, schedule.Config{Workers: 3, Policy: schedule.PolicyStatic, Chunk: 8}, "", 5)
	s := newTestSchool(t, 2000)
	if err := k.Initialize(ctx, s); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	before := append([]school.Fish(nil), s.Fish()...)
	if err := k.Move(ctx, s); err != nil {
		t.Fatalf("move: %v", err)
	}
	for i, f := range s.Fish() {
		if math.Abs(f.X-before[i].X) > moveStep+1e-12 || math.Abs(f.Y-before[i].Y) > moveStep+1e-12 {
			t.Fatalf("fish %d moved too far: (%f,%f) -> (%f,%f)", i, before[i].X, before[i].Y, f.X, f.Y)
		}
		if f.PrevObjective != before[i].CurrentObjective {
			t.Fatalf("fish %d previous objective not carried over", i)
		}
	}
}

func TestEatKeepsWeightsAtOrBelowMax(t *testing.T) {
	ctx := context.Background()
	for _, seed := range []int64{1, 2, 3, 11, 97} {
		for _, n := range []int{1, 17, 1000, 20000} {
			k := newTestKernel(t, schedule.Config{Workers: 4, Policy: schedule.PolicyGuided, Chunk: 4}, "", seed)
			s := newTestSchool(t, n)
			if err := k.Initialize(ctx, s); err != nil {
				t.Fatalf("initialize: %v", err)
			}
			for round := 0; round < 5; round++ {
				if err := k.Move(ctx, s); err != nil {
					t.Fatalf("move: %v", err)
				}
				if _, err := k.Eat(ctx, s); err != nil {
					t.Fatalf("eat: %v", err)
				}
				for i, f := range s.Fish() {
					if f.Weight > testParams.MaxWeight {
						t.Fatalf("seed=%d n=%d round=%d fish=%d weight %f exceeds max", seed, n, round, i, f.Weight)
					}
				}
			}
		}
	}
}

func TestEatUpdatesWeightsByNormalizedImprovement(t *testing.T) {
	ctx := context.Background()
	k := newTestKernel(t, schedule.Config{Workers: 2, Policy: schedule.PolicyStatic, Chunk: 1}, "", 1)
	s := school.FromFish([]school.Fish{
		{Weight: 5, PrevObjective: 10, CurrentObjective: 8},
		{Weight: 5, PrevObjective: 10, CurrentObjective: 9},
		{Weight: 9.5, PrevObjective: 10, CurrentObjective: 8},
		{Weight: 5, PrevObjective: 10, CurrentObjective: 12},
	})
	res, err := k.Eat(ctx, s)
	if err != nil {
		t.Fatalf("eat: %v", err)
	}
	if res.MaxDiff != 2 {
		t.Fatalf("unexpected max diff: %f", res.MaxDiff)
	}
	want := []float64{6, 5.5, 10, 4}
	for i, f := range s.Fish() {
		if f.Weight != want[i] {
			t.Fatalf("fish %d: weight=%f want=%f", i, f.Weight, want[i])
		}
	}
	if res.Reduction < 0 {
		t.Fatalf("negative reduction time: %s", res.Reduction)
	}
}

func TestEatAllowsNegativeMaxDiff(t *testing.T) {
	ctx := context.Background()
	k := newTestKernel(t, schedule.Config{Workers: 1, Policy: schedule.PolicyStatic, Chunk: 1}, "", 1)
	s := school.FromFish([]school.Fish{
		{Weight: 5, PrevObjective: 10, CurrentObjective: 11},
		{Weight: 5, PrevObjective: 10, CurrentObjective: 12},
	})
	res, err := k.Eat(ctx, s)
	if err != nil {
		t.Fatalf("eat: %v", err)
	}
	if res.MaxDiff != -1 {
		t.Fatalf("unexpected max diff: %f", res.MaxDiff)
	}
	if w := s.Fish()[1].Weight; w != 7 {
		t.Fatalf("moving away with negative max diff should add weight, got %f", w)
	}
}

func TestZeroMaxDiffPropagatesNonFiniteWeights(t *testing.T) {
	ctx := context.Background()
	build := func() *school.School {
		return school.FromFish([]school.Fish{
			{X: 1, Weight: 5, PrevObjective: 1, CurrentObjective: 1},
			{X: 2, Weight: 5, PrevObjective: 1, CurrentObjective: 2},
			{X: 3, Weight: 5, PrevObjective: 3, CurrentObjective: 3},
		})
	}
	var reference []school.Fish
	for _, name := range ReducerNames() {
		for _, policy := range schedule.Policies {
			k := newTestKernel(t, schedule.Config{Workers: 3, Policy: policy, Chunk: 1}, name, 1)
			s := build()
			res, err := k.Eat(ctx, s)
			if err != nil {
				t.Fatalf("eat: %v", err)
			}
			if res.MaxDiff != 0 {
				t.Fatalf("%s/%s: expected zero max diff, got %f", name, policy, res.MaxDiff)
			}
			fish := s.Fish()
			if !math.IsNaN(fish[0].Weight) || !math.IsNaN(fish[2].Weight) {
				t.Fatalf("%s/%s: 0/0 should leave NaN weights, got %f %f", name, policy, fish[0].Weight, fish[2].Weight)
			}
			if !math.IsInf(fish[1].Weight, -1) {
				t.Fatalf("%s/%s: negative diff over zero max should give -Inf, got %f", name, policy, fish[1].Weight)
			}
			if reference == nil {
				reference = append([]school.Fish(nil), fish...)
				continue
			}
			for i := range fish {
				if math.Float64bits(fish[i].Weight) != math.Float64bits(reference[i].Weight) && !(math.IsNaN(fish[i].Weight) && math.IsNaN(reference[i].Weight)) {
					t.Fatalf("%s/%s: fish %d weight differs across strategies: %f vs %f", name, policy, i, fish[i].Weight, reference[i].Weight)
				}
			}

			c, err := k.Collect(ctx, s)
			if err != nil {
				t.Fatalf("collect: %v", err)
			}
			if c.NonFinite != 3 {
				t.Fatalf("expected three non-finite weights, got %d", c.NonFinite)
			}
			if !math.IsNaN(c.Barycentre) {
				t.Fatalf("expected NaN barycentre, got %f", c.Barycentre)
			}
		}
	}
}

func TestPositiveInfinityWeightIsClamped(t *testing.T) {
	ctx := context.Background()
	k := newTestKernel(t, schedule.Config{Workers: 1, Policy: schedule.PolicyStatic, Chunk: 1}, "", 1)
	s := school.FromFish([]school.Fish{{Weight: math.Inf(1), PrevObjective: 2, CurrentObjective: 1}})
	if _, err := k.Eat(ctx, s); err != nil {
		t.Fatalf("eat: %v", err)
	}
	if w := s.Fish()[0].Weight; w != testParams.MaxWeight {
		t.Fatalf("expected +Inf weight clamped to max, got %f", w)
	}
}

func TestCollectiveExperienceWeightedMean(t *testing.T) {
	ctx := context.Background()
	k := newTestKernel(t, schedule.Config{Workers: 2, Policy: schedule.PolicyDynamic, Chunk: 1}, "", 1)
	s := school.FromFish([]school.Fish{
		{Weight: 2, CurrentObjective: 1},
		{Weight: 4, CurrentObjective: 3},
	})
	got, err := k.CollectiveExperience(ctx, s)
	if err != nil {
		t.Fatalf("collective experience: %v", err)
	}
	if want := (1*2 + 3*4) / 4.0; got != want {
		t.Fatalf("unexpected barycentre: got=%f want=%f", got, want)
	}
}

func TestCollectiveExperienceDetectsDegenerateState(t *testing.T) {
	ctx := context.Background()
	k := newTestKernel(t, schedule.Config{Workers: 4, Policy: schedule.PolicyStatic, Chunk: 2}, "", 1)
	fish := make([]school.Fish, 64)
	for i := range fish {
		fish[i].Weight = 5
		fish[i].CurrentObjective = fish[i].Objective()
	}
	_, err := k.CollectiveExperience(ctx, school.FromFish(fish))
	if !errors.Is(err, ErrDegenerateState) {
		t.Fatalf("expected degenerate state, got %v", err)
	}
}

func TestReducersAgreeExactly(t *testing.T) {
	ctx := context.Background()
	seedKernel := newTestKernel(t, schedule.Config{Workers: 1, Policy: schedule.PolicyStatic, Chunk: 1}, "", 21)
	s := newTestSchool(t, 30000)
	if err := seedKernel.Initialize(ctx, s); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := seedKernel.Move(ctx, s); err != nil {
		t.Fatalf("move: %v", err)
	}
	var want float64
	for i, name := range ReducerNames() {
		for _, workers := range []int{1, 3, 8} {
			pool, err := schedule.New(schedule.Config{Workers: workers, Policy: schedule.PolicyDynamic, Chunk: 7}, 1)
			if err != nil {
				t.Fatalf("new pool: %v", err)
			}
			r, _ := ReducerByName(name)
			got, err := r.MaxDiff(ctx, pool, s.Fish())
			if err != nil {
				t.Fatalf("%s: max diff: %v", name, err)
			}
			if i == 0 && workers == 1 {
				want = got
				continue
			}
			if got != want {
				t.Fatalf("%s with %d workers: got=%v want=%v", name, workers, got, want)
			}
		}
	}
}

func TestReductionOrderIndependence(t *testing.T) {
	ctx := context.Background()
	seedKernel := newTestKernel(t, schedule.Config{Workers: 1, Policy: schedule.PolicyStatic, Chunk: 1}, "", 8)
	initial := newTestSchool(t, 50000)
	if err := seedKernel.Initialize(ctx, initial); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := seedKernel.Move(ctx, initial); err != nil {
		t.Fatalf("move: %v", err)
	}

	var reference float64
	first := true
	for _, policy := range schedule.Policies {
		for _, workers := range []int{1, 2, 5, 16} {
			for _, chunk := range []int{1, 64, 4096} {
				k := newTestKernel(t, schedule.Config{Workers: workers, Policy: policy, Chunk: chunk}, "", 1)
				s := school.FromFish(append([]school.Fish(nil), initial.Fish()...))
				if _, err := k.Eat(ctx, s); err != nil {
					t.Fatalf("eat: %v", err)
				}
				got, err := k.CollectiveExperience(ctx, s)
				if err != nil {
					t.Fatalf("collective experience: %v", err)
				}
				if first {
					reference, first = got, false
					continue
				}
				if rel := math.Abs(got-reference) / math.Abs(reference); rel >= 1e-9 {
					t.Fatalf("%s w=%d c=%d: barycentre %v differs from %v (rel=%g)", policy, workers, chunk, got, reference, rel)
				}
			}
		}
	}
}

func TestReducerByNameRejectsUnknown(t *testing.T) {
	if _, err := ReducerByName("lock-free-magic"); err == nil {
		t.Fatal("expected error for unknown reducer")
	}
	r, err := ReducerByName("")
	if err != nil || r.Name() != ReducerReduction {
		t.Fatalf("expected default reduction strategy, got %v %v", r, err)
	}
}
