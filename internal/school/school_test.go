package school

import (
	"errors"
	"math"
	"testing"
)

func TestAllocateAndRelease(t *testing.T) {
	s, err := Allocate(10, 0)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if s.Len() != 10 {
		t.Fatalf("unexpected population size: %d", s.Len())
	}
	s.Fish()[3].X = 4
	if s.Fish()[3].X != 4 {
		t.Fatal("expected in-place mutation through Fish()")
	}
	s.Release()
	if s.Len() != 0 {
		t.Fatalf("expected empty population after release, got %d", s.Len())
	}
}

func TestAllocateRejectsNonPositiveCount(t *testing.T) {
	if _, err := Allocate(0, 0); err == nil {
		t.Fatal("expected error for zero agents")
	}
}

func TestAllocateRefusesOverBudget(t *testing.T) {
	_, err := Allocate(1000, Bytes(999))
	if !errors.Is(err, ErrResourceExhaustion) {
		t.Fatalf("expected resource exhaustion, got %v", err)
	}
	if _, err := Allocate(1000, Bytes(1000)); err != nil {
		t.Fatalf("allocation at exact budget should succeed: %v", err)
	}
}

func TestFishObjective(t *testing.T) {
	f := Fish{X: 3, Y: -4}
	if got := f.Objective(); got != 5 {
		t.Fatalf("unexpected objective: %f", got)
	}
}

func TestParamsValidate(t *testing.T) {
	valid := Params{DomainHalfWidth: 200, BaseWeight: 5, WeightJitter: 0.1, MaxWeight: 10}
	if err := valid.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	invalid := []Params{
		{DomainHalfWidth: 0, BaseWeight: 5, MaxWeight: 10},
		{DomainHalfWidth: math.Inf(1), BaseWeight: 5, MaxWeight: 10},
		{DomainHalfWidth: 1, BaseWeight: math.NaN(), MaxWeight: 10},
		{DomainHalfWidth: 1, BaseWeight: 5, WeightJitter: -1, MaxWeight: 10},
		{DomainHalfWidth: 1, BaseWeight: 5, MaxWeight: math.NaN()},
	}
	for _, p := range invalid {
		if err := p.Validate(); err == nil {
			t.Fatalf("expected validation error for %+v", p)
		}
	}
}
