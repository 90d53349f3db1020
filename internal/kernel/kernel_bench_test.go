package kernel

import (
	"context"
	"fmt"
	"testing"

	"fishschool/internal/schedule"
	"fishschool/internal/school"
)

// BenchmarkEat compares the max-reduction strategies. Run with:
// go test ./internal/kernel -run=^$ -bench=BenchmarkEat
func BenchmarkEat(b *testing.B) {
	ctx := context.Background()
	const agents = 1 << 20
	for _, name := range ReducerNames() {
		for _, workers := range []int{1, 4, 8} {
			b.Run(fmt.Sprintf("%s-workers-%d", name, workers), func(b *testing.B) {
				pool, err := schedule.New(schedule.Config{Workers: workers, Policy: schedule.PolicyStatic, Chunk: 1024}, 1)
				if err != nil {
					b.Fatalf("new pool: %v", err)
				}
				r, _ := ReducerByName(name)
				k, err := New(pool, r, testParams)
				if err != nil {
					b.Fatalf("new kernel: %v", err)
				}
				s, err := school.Allocate(agents, 0)
				if err != nil {
					b.Fatalf("allocate: %v", err)
				}
				if err := k.Initialize(ctx, s); err != nil {
					b.Fatalf("initialize: %v", err)
				}
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					if err := k.Move(ctx, s); err != nil {
						b.Fatalf("move: %v", err)
					}
					if _, err := k.Eat(ctx, s); err != nil {
						b.Fatalf("eat: %v", err)
					}
				}
			})
		}
	}
}

func BenchmarkCollectiveExperience(b *testing.B) {
	ctx := context.Background()
	const agents = 1 << 20
	for _, policy := range schedule.Policies {
		b.Run(policy.String(), func(b *testing.B) {
			pool, err := schedule.New(schedule.Config{Workers: 4, Policy: policy, Chunk: 256}, 1)
			if err != nil {
				b.Fatalf("new pool: %v", err)
			}
			k, err := New(pool, nil, testParams)
			if err != nil {
				b.Fatalf("new kernel: %v", err)
			}
			s, err := school.Allocate(agents, 0)
			if err != nil {
				b.Fatalf("allocate: %v", err)
			}
			if err := k.Initialize(ctx, s); err != nil {
				b.Fatalf("initialize: %v", err)
			}
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := k.CollectiveExperience(ctx, s); err != nil {
					b.Fatalf("collective experience: %v", err)
				}
			}
		})
	}
}
