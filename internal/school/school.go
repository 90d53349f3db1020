// Package school holds the fish population of a single run.
package school

import (
	"errors"
	"fmt"
	"math"

	"fishschool/internal/alloc"
)

// ErrResourceExhaustion is returned when the population cannot be allocated.
var ErrResourceExhaustion = alloc.ErrResourceExhaustion

type Fish struct {
	X                float64
	Y                float64
	Weight           float64
	PrevObjective    float64
	CurrentObjective float64
}

// Objective is the distance of the fish from the origin.
func (f *Fish) Objective() float64 {
	return math.Sqrt(f.X*f.X + f.Y*f.Y)
}

type Params struct {
	DomainHalfWidth float64 `json:"domain_half_width" yaml:"domain_half_width"`
	BaseWeight      float64 `json:"base_weight" yaml:"base_weight"`
	WeightJitter    float64 `json:"weight_jitter" yaml:"weight_jitter"`
	MaxWeight       float64 `json:"max_weight" yaml:"max_weight"`
}

func (p Params) Validate() error {
	if !(p.DomainHalfWidth > 0) || math.IsInf(p.DomainHalfWidth, 0) {
		return fmt.Errorf("domain half width must be finite and > 0, got %v", p.DomainHalfWidth)
	}
	if math.IsNaN(p.BaseWeight) || math.IsInf(p.BaseWeight, 0) {
		return fmt.Errorf("base weight must be finite, got %v", p.BaseWeight)
	}
	if p.WeightJitter < 0 || math.IsNaN(p.WeightJitter) || math.IsInf(p.WeightJitter, 0) {
		return fmt.Errorf("weight jitter must be finite and >= 0, got %v", p.WeightJitter)
	}
	if math.IsNaN(p.MaxWeight) {
		return errors.New("max weight must not be NaN")
	}
	return nil
}

// School is a fixed-size population. Index identity is stable for the run.
type School struct {
	fish []Fish
}

// Allocate reserves n fish. budget caps the population's byte size; zero
// disables the cap.
func Allocate(n int, budget int64) (*School, error) {
	if n <= 0 {
		return nil, fmt.Errorf("agent count must be > 0, got %d", n)
	}
	fish, err := alloc.Slice[Fish]("population", n, budget)
	if err != nil {
		return nil, err
	}
	return &School{fish: fish}, nil
}

// FromFish wraps an existing population without copying it.
func FromFish(fish []Fish) *School {
	return &School{fish: fish}
}

func (s *School) Len() int {
	return len(s.fish)
}

// Fish exposes the backing slice. Callers running in parallel must only touch
// the index range they were assigned.
func (s *School) Fish() []Fish {
	return s.fish
}

// Release drops the population so its memory can be reclaimed.
func (s *School) Release() {
	s.fish = nil
}

// Bytes reports the memory a population of n fish needs.
func Bytes(n int) int64 {
	return alloc.Bytes[Fish](n)
}
