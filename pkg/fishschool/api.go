package fishschool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"fishschool/internal/config"
	"fishschool/internal/kernel"
	"fishschool/internal/logging"
	"fishschool/internal/metrics"
	"fishschool/internal/model"
	"fishschool/internal/schedule"
	"fishschool/internal/school"
	"fishschool/internal/sim"
	"fishschool/internal/stats"
	"fishschool/internal/storage"
)

const (
	defaultDBPath    = "fishschool.db"
	defaultRunsLimit = 20
)

var (
	// ErrResourceExhaustion means the population or a result buffer could not
	// be allocated. It is fatal for the run.
	ErrResourceExhaustion = school.ErrResourceExhaustion
	// ErrDegenerateState means the objective sum of a round was zero. It is
	// fatal for the run.
	ErrDegenerateState = kernel.ErrDegenerateState
	ErrRunNotFound     = errors.New("run not found")
	ErrSweepNotFound   = errors.New("sweep not found")
)

// IsFatal reports whether err must terminate the calling process.
func IsFatal(err error) bool {
	return errors.Is(err, ErrResourceExhaustion) || errors.Is(err, ErrDegenerateState)
}

type Options struct {
	StoreKind string
	DBPath    string
	// ArtifactsDir receives sweep.json and sweep.csv per sweep; empty skips
	// artifact files.
	ArtifactsDir string
	Logger       *slog.Logger
	Metrics      *metrics.Collector
}

type Client struct {
	store   storage.Store
	logger  *slog.Logger
	metrics *metrics.Collector

	artifactsDir string
}

// RunHandle carries the parallelism settings of one run.
type RunHandle struct {
	schedule schedule.Config
}

func (h RunHandle) Schedule() schedule.Config {
	return h.schedule
}

type SimulationRequest struct {
	Agents          int
	Rounds          int
	DomainHalfWidth float64
	BaseWeight      float64
	WeightJitter    float64
	MaxWeight       float64
	// Seed zero selects a time-based seed.
	Seed int64
	// Reduction names the max-reduction strategy; empty selects "reduction".
	Reduction    string
	MemoryBudget int64
}

type SimulationResult struct {
	RunID string
	// Setup covers allocation and initialization; it is not part of ElapsedTotal.
	Setup            time.Duration
	ElapsedTotal     time.Duration
	ElapsedReduction time.Duration
	Barycentre       []float64
	RoundReduction   []time.Duration
	Rounds           []sim.RoundStats
}

type SweepRequest struct {
	Simulation SimulationRequest
	Plan       config.SweepConfig
}

type RunsRequest struct {
	SweepID string
	Policy  string
	Workers int
	Limit   int
}

// ConfigureRun validates the parallelism of a run: worker count, scheduling
// policy and chunk size.
func ConfigureRun(workers int, policy string, chunk int) (RunHandle, error) {
	p, err := schedule.ParsePolicy(policy)
	if err != nil {
		return RunHandle{}, err
	}
	cfg := schedule.Config{Workers: workers, Policy: p, Chunk: chunk}
	if err := cfg.Validate(); err != nil {
		return RunHandle{}, err
	}
	return RunHandle{schedule: cfg}, nil
}

// DefaultSimulationRequest mirrors the simulation defaults of the config file.
func DefaultSimulationRequest() SimulationRequest {
	return SimulationRequestFromConfig(config.Default().Simulation)
}

func SimulationRequestFromConfig(cfg config.SimulationConfig) SimulationRequest {
	return SimulationRequest{
		Agents:          cfg.Agents,
		Rounds:          cfg.Rounds,
		DomainHalfWidth: cfg.Params.DomainHalfWidth,
		BaseWeight:      cfg.Params.BaseWeight,
		WeightJitter:    cfg.Params.WeightJitter,
		MaxWeight:       cfg.Params.MaxWeight,
		Seed:            cfg.Seed,
		Reduction:       cfg.Reduction,
		MemoryBudget:    cfg.MemoryBudget,
	}
}

func (r SimulationRequest) runConfig(h RunHandle) sim.Config {
	return sim.Config{
		Schedule:  h.schedule,
		Reduction: r.Reduction,
		Agents:    r.Agents,
		Rounds:    r.Rounds,
		Seed:      r.Seed,
		Params: school.Params{
			DomainHalfWidth: r.DomainHalfWidth,
			BaseWeight:      r.BaseWeight,
			WeightJitter:    r.WeightJitter,
			MaxWeight:       r.MaxWeight,
		},
		MemoryBudget: r.MemoryBudget,
	}
}

// RunSimulation executes one complete run without recording it.
func RunSimulation(ctx context.Context, handle RunHandle, req SimulationRequest, observers ...sim.Observer) (SimulationResult, error) {
	if err := handle.schedule.Validate(); err != nil {
		return SimulationResult{}, fmt.Errorf("run handle: %w", err)
	}
	res, err := sim.Execute(ctx, req.runConfig(handle), observers...)
	if err != nil {
		return SimulationResult{}, err
	}
	return SimulationResult{
		Setup:            res.Setup,
		ElapsedTotal:     res.Elapsed,
		ElapsedReduction: res.Reduction,
		Barycentre:       res.Barycentre,
		RoundReduction:   res.RoundReduction,
		Rounds:           res.Rounds,
	}, nil
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	collector := opts.Metrics
	if collector == nil {
		collector = metrics.NewCollector()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		logger:       logger,
		metrics:      collector,
		artifactsDir: opts.ArtifactsDir,
	}, nil
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Metrics() *metrics.Collector {
	return c.metrics
}

// RunSimulation executes one run with logging and metrics attached and stores
// its timing record.
func (c *Client) RunSimulation(ctx context.Context, handle RunHandle, req SimulationRequest) (SimulationResult, error) {
	return c.runAndRecord(ctx, handle, req, "", 0)
}

func (c *Client) runAndRecord(ctx context.Context, handle RunHandle, req SimulationRequest, sweepID string, repeat int) (SimulationResult, error) {
	runID := uuid.NewString()
	logger := c.logger.With("run_id", runID)
	cfg := req.runConfig(handle)
	logger.Debug("run starting", "schedule", cfg.Schedule.String(), "agents", cfg.Agents, "rounds", cfg.Rounds, "reduction", cfg.Reduction)

	res, err := RunSimulation(ctx, handle, req, logging.RoundLogger(logger), c.metrics)
	if err != nil {
		logger.Error("run failed", "error", err)
		return SimulationResult{}, err
	}
	res.RunID = runID
	c.metrics.ObserveRun(cfg, res.ElapsedTotal)

	record := model.RunRecord{
		VersionedRecord:  storage.Versioned(),
		ID:               runID,
		SweepID:          sweepID,
		Repeat:           repeat,
		CreatedAt:        time.Now().UTC(),
		Workers:          cfg.Schedule.Workers,
		Policy:           cfg.Schedule.Policy.String(),
		Chunk:            cfg.Schedule.Chunk,
		Reduction:        reducerName(cfg.Reduction),
		Agents:           cfg.Agents,
		Rounds:           cfg.Rounds,
		Seed:             cfg.Seed,
		Setup:            res.Setup,
		Elapsed:          res.ElapsedTotal,
		ElapsedReduction: res.ElapsedReduction,
		RoundReduction:   res.RoundReduction,
		NonFinite:        hasNonFinite(res.Barycentre),
	}
	if err := c.store.SaveRun(ctx, record); err != nil {
		return SimulationResult{}, fmt.Errorf("save run %s: %w", runID, err)
	}
	logger.Info("run complete",
		"schedule", cfg.Schedule.String(),
		"elapsed", res.ElapsedTotal,
		"reduction", res.ElapsedReduction,
		"non_finite", record.NonFinite,
	)
	return res, nil
}

// Sweep runs every point of the plan as a fresh run, worker count outermost,
// then policy, then chunk. onPoint, when set, is called after each run. The
// first run error aborts the sweep.
func (c *Client) Sweep(ctx context.Context, req SweepRequest, onPoint func(stats.SweepPoint)) (stats.SweepReport, error) {
	if err := req.Plan.Validate(); err != nil {
		return stats.SweepReport{}, fmt.Errorf("sweep plan: %w", err)
	}
	sweepID := uuid.NewString()
	points := req.Plan.Points()
	logger := c.logger.With("sweep_id", sweepID)
	logger.Info("sweep starting", "points", len(points), "repeats", req.Plan.Repeats, "agents", req.Simulation.Agents)

	results := make([]stats.SweepPoint, 0, len(points)*req.Plan.Repeats)
	for _, point := range points {
		handle := RunHandle{schedule: point}
		for repeat := 0; repeat < req.Plan.Repeats; repeat++ {
			simReq := req.Simulation
			if simReq.Seed != 0 {
				simReq.Seed += int64(repeat)
			}
			res, err := c.runAndRecord(ctx, handle, simReq, sweepID, repeat)
			if err != nil {
				return stats.SweepReport{}, fmt.Errorf("sweep point %s repeat %d: %w", point, repeat, err)
			}
			p := stats.SweepPoint{
				RunID:     res.RunID,
				Workers:   point.Workers,
				Policy:    point.Policy.String(),
				Chunk:     point.Chunk,
				Repeat:    repeat,
				Elapsed:   res.ElapsedTotal,
				Reduction: res.ElapsedReduction,
				NonFinite: hasNonFinite(res.Barycentre),
			}
			results = append(results, p)
			if onPoint != nil {
				onPoint(p)
			}
		}
	}

	rows := stats.BuildSweepReport(results)
	report := stats.SweepReport{
		SweepID:     sweepID,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Agents:      req.Simulation.Agents,
		Rounds:      req.Simulation.Rounds,
		Rows:        rows,
		Best:        stats.BestByPolicy(rows),
	}

	record := model.SweepRecord{
		VersionedRecord: storage.Versioned(),
		ID:              sweepID,
		CreatedAt:       time.Now().UTC(),
		Agents:          req.Simulation.Agents,
		Rounds:          req.Simulation.Rounds,
		Repeats:         req.Plan.Repeats,
		Points:          len(points),
	}
	if c.artifactsDir != "" {
		dir, err := stats.WriteSweepArtifacts(c.artifactsDir, report)
		if err != nil {
			return stats.SweepReport{}, fmt.Errorf("write sweep artifacts: %w", err)
		}
		record.ArtifactsDir = dir
	}
	if err := c.store.SaveSweep(ctx, record); err != nil {
		return stats.SweepReport{}, fmt.Errorf("save sweep %s: %w", sweepID, err)
	}
	logger.Info("sweep complete", "runs", len(results), "artifacts", record.ArtifactsDir)
	return report, nil
}

// Runs lists stored timing records, newest last.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]model.RunRecord, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	if req.Limit == 0 {
		req.Limit = defaultRunsLimit
	}
	return c.store.ListRuns(ctx, model.RunFilter{
		SweepID: req.SweepID,
		Policy:  req.Policy,
		Workers: req.Workers,
		Limit:   req.Limit,
	})
}

// Show returns one stored run. The id "latest" selects the newest run.
func (c *Client) Show(ctx context.Context, id string) (model.RunRecord, error) {
	if id == "" {
		return model.RunRecord{}, errors.New("run id is required")
	}
	if id == "latest" {
		runs, err := c.store.ListRuns(ctx, model.RunFilter{Limit: 1})
		if err != nil {
			return model.RunRecord{}, err
		}
		if len(runs) == 0 {
			return model.RunRecord{}, ErrRunNotFound
		}
		return runs[0], nil
	}
	run, ok, err := c.store.GetRun(ctx, id)
	if err != nil {
		return model.RunRecord{}, err
	}
	if !ok {
		return model.RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, nil
}

func (c *Client) Sweeps(ctx context.Context) ([]model.SweepRecord, error) {
	return c.store.ListSweeps(ctx)
}

func (c *Client) GetSweep(ctx context.Context, id string) (model.SweepRecord, error) {
	sweep, ok, err := c.store.GetSweep(ctx, id)
	if err != nil {
		return model.SweepRecord{}, err
	}
	if !ok {
		return model.SweepRecord{}, fmt.Errorf("%w: %s", ErrSweepNotFound, id)
	}
	return sweep, nil
}

func reducerName(name string) string {
	if name == "" {
		return kernel.ReducerReduction
	}
	return name
}

func hasNonFinite(series []float64) bool {
	for _, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}
