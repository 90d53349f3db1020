// Package sim drives a fish school run: it owns the worker pool, the kernel
// and the population for exactly one configuration and sequences the rounds.
package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fishschool/internal/alloc"
	"fishschool/internal/kernel"
	"fishschool/internal/schedule"
	"fishschool/internal/school"
)

type Config struct {
	Schedule  schedule.Config `json:"schedule" yaml:"schedule"`
	Reduction string          `json:"reduction" yaml:"reduction"`
	Agents    int             `json:"agents" yaml:"agents"`
	Rounds    int             `json:"rounds" yaml:"rounds"`
	Seed      int64           `json:"seed" yaml:"seed"`
	Params    school.Params   `json:"params" yaml:"params"`
	// MemoryBudget caps the population size in bytes; zero disables the cap.
	MemoryBudget int64 `json:"memory_budget,omitempty" yaml:"memory_budget,omitempty"`
}

func (c Config) Validate() error {
	if err := c.Schedule.Validate(); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}
	if _, err := kernel.ReducerByName(c.Reduction); err != nil {
		return err
	}
	if c.Agents <= 0 {
		return errors.New("agents must be > 0")
	}
	if c.Rounds <= 0 {
		return errors.New("rounds must be > 0")
	}
	if c.MemoryBudget < 0 {
		return errors.New("memory budget must be >= 0")
	}
	if err := c.Params.Validate(); err != nil {
		return fmt.Errorf("params: %w", err)
	}
	return nil
}

type State string

const (
	StateNotStarted  State = "not_started"
	StateInitialized State = "initialized"
	StateRunning     State = "running"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
)

type RoundStats struct {
	Round            int           `json:"round"`
	MaxDiff          float64       `json:"max_diff"`
	Barycentre       float64       `json:"barycentre"`
	Move             time.Duration `json:"move"`
	Eat              time.Duration `json:"eat"`
	Reduction        time.Duration `json:"reduction"`
	Collective       time.Duration `json:"collective"`
	NonFiniteWeights int           `json:"non_finite_weights"`
}

func (s RoundStats) Total() time.Duration {
	return s.Move + s.Eat + s.Collective
}

// Observer is notified after every completed round. Observer time is not
// counted in the run's elapsed time.
type Observer interface {
	ObserveRound(cfg Config, stats RoundStats)
}

type ObserverFunc func(cfg Config, stats RoundStats)

func (f ObserverFunc) ObserveRound(cfg Config, stats RoundStats) {
	f(cfg, stats)
}

type Result struct {
	Config     Config    `json:"config"`
	Barycentre []float64 `json:"barycentre"`
	// Setup covers allocation and initialization, which are outside Elapsed.
	Setup   time.Duration `json:"setup"`
	Elapsed time.Duration `json:"elapsed"`
	// Reduction is the summed max-reduction time over all rounds.
	Reduction      time.Duration   `json:"reduction"`
	RoundReduction []time.Duration `json:"round_reduction"`
	Rounds         []RoundStats    `json:"rounds"`
}

// Run is the context of a single simulation run. It is not reusable: once
// Completed or Failed it holds no population.
type Run struct {
	cfg       Config
	state     State
	pool      *schedule.Pool
	kernel    *kernel.Kernel
	school    *school.School
	observers []Observer

	round      int
	barycentre []float64
	rounds     []RoundStats
	setup      time.Duration
	elapsed    time.Duration
	reduction  time.Duration
}

func NewRun(cfg Config, observers ...Observer) (*Run, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Run{cfg: cfg, state: StateNotStarted, observers: observers}, nil
}

func (r *Run) State() State {
	return r.state
}

func (r *Run) Round() int {
	return r.round
}

// Initialize allocates the worker pool, the population and the result buffers,
// then scatters the fish.
func (r *Run) Initialize(ctx context.Context) error {
	if r.state != StateNotStarted {
		return fmt.Errorf("initialize: run is %s", r.state)
	}
	start := time.Now()
	if err := r.initialize(ctx); err != nil {
		r.fail()
		return err
	}
	r.setup = time.Since(start)
	r.state = StateInitialized
	return nil
}

func (r *Run) initialize(ctx context.Context) error {
	pool, err := schedule.New(r.cfg.Schedule, r.cfg.Seed)
	if err != nil {
		return fmt.Errorf("worker pool: %w", err)
	}
	reducer, err := kernel.ReducerByName(r.cfg.Reduction)
	if err != nil {
		return err
	}
	k, err := kernel.New(pool, reducer, r.cfg.Params)
	if err != nil {
		return err
	}
	s, err := school.Allocate(r.cfg.Agents, r.cfg.MemoryBudget)
	if err != nil {
		return err
	}
	barycentre, err := alloc.Slice[float64]("barycentre series", r.cfg.Rounds, 0)
	if err != nil {
		return err
	}
	rounds, err := alloc.Slice[RoundStats]("round stats", r.cfg.Rounds, 0)
	if err != nil {
		return err
	}
	r.pool, r.kernel, r.school = pool, k, s
	r.barycentre, r.rounds = barycentre[:0], rounds[:0]
	if err := k.Initialize(ctx, s); err != nil {
		return fmt.Errorf("initialize population: %w", err)
	}
	return nil
}

// Step runs one round: move, eat, collective experience. Phases and rounds are
// strictly sequential; only the work inside a phase is parallel.
func (r *Run) Step(ctx context.Context) (RoundStats, error) {
	switch r.state {
	case StateInitialized, StateRunning:
	default:
		return RoundStats{}, fmt.Errorf("step: run is %s", r.state)
	}
	if r.round >= r.cfg.Rounds {
		return RoundStats{}, fmt.Errorf("step: all %d rounds completed", r.cfg.Rounds)
	}
	r.state = StateRunning

	stats, err := r.step(ctx)
	if err != nil {
		r.fail()
		return RoundStats{}, fmt.Errorf("round %d: %w", r.round, err)
	}
	r.elapsed += stats.Total()
	r.reduction += stats.Reduction
	r.barycentre = append(r.barycentre, stats.Barycentre)
	r.rounds = append(r.rounds, stats)
	r.round++
	if r.round == r.cfg.Rounds {
		r.state = StateCompleted
	}
	for _, o := range r.observers {
		o.ObserveRound(r.cfg, stats)
	}
	return stats, nil
}

func (r *Run) step(ctx context.Context) (RoundStats, error) {
	stats := RoundStats{Round: r.round}

	start := time.Now()
	if err := r.kernel.Move(ctx, r.school); err != nil {
		return stats, fmt.Errorf("move: %w", err)
	}
	stats.Move = time.Since(start)

	start = time.Now()
	eat, err := r.kernel.Eat(ctx, r.school)
	if err != nil {
		return stats, fmt.Errorf("eat: %w", err)
	}
	stats.Eat = time.Since(start)
	stats.MaxDiff = eat.MaxDiff
	stats.Reduction = eat.Reduction

	start = time.Now()
	collective, err := r.kernel.Collect(ctx, r.school)
	if err != nil {
		return stats, fmt.Errorf("collective experience: %w", err)
	}
	stats.Collective = time.Since(start)
	stats.Barycentre = collective.Barycentre
	stats.NonFiniteWeights = collective.NonFinite
	return stats, nil
}

// Result is only available once every round has completed.
func (r *Run) Result() (Result, error) {
	if r.state != StateCompleted {
		return Result{}, fmt.Errorf("result: run is %s", r.state)
	}
	roundReduction := make([]time.Duration, len(r.rounds))
	for i, s := range r.rounds {
		roundReduction[i] = s.Reduction
	}
	return Result{
		Config:         r.cfg,
		Barycentre:     append([]float64(nil), r.barycentre...),
		Setup:          r.setup,
		Elapsed:        r.elapsed,
		Reduction:      r.reduction,
		RoundReduction: roundReduction,
		Rounds:         append([]RoundStats(nil), r.rounds...),
	}, nil
}

// Release frees the population. It is safe to call more than once.
func (r *Run) Release() {
	if r.school != nil {
		r.school.Release()
	}
	r.school = nil
	r.kernel = nil
	r.pool = nil
}

func (r *Run) fail() {
	r.state = StateFailed
	r.barycentre = nil
	r.rounds = nil
	r.Release()
}

// Execute performs a complete run and releases it. No partial result is
// returned on failure.
func Execute(ctx context.Context, cfg Config, observers ...Observer) (Result, error) {
	run, err := NewRun(cfg, observers...)
	if err != nil {
		return Result{}, err
	}
	defer run.Release()

	if err := run.Initialize(ctx); err != nil {
		return Result{}, err
	}
	for run.Round() < cfg.Rounds {
		if _, err := run.Step(ctx); err != nil {
			return Result{}, err
		}
	}
	return run.Result()
}
