package stats

import (
	"math"
	"slices"
	"sort"
	"time"

	"fishschool/internal/schedule"
)

// SweepPoint is the timing of one run inside a sweep.
type SweepPoint struct {
	RunID     string        `json:"run_id"`
	Workers   int           `json:"workers"`
	Policy    string        `json:"policy"`
	Chunk     int           `json:"chunk"`
	Repeat    int           `json:"repeat"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	Reduction time.Duration `json:"reduction_ns"`
	NonFinite bool          `json:"non_finite,omitempty"`
}

// SweepRow aggregates the repeats of one (policy, chunk, workers) point.
// Times are in seconds.
type SweepRow struct {
	Policy        string  `json:"policy"`
	Chunk         int     `json:"chunk"`
	Workers       int     `json:"workers"`
	Samples       int     `json:"samples"`
	MeanElapsed   float64 `json:"mean_elapsed_s"`
	StdElapsed    float64 `json:"std_elapsed_s"`
	MinElapsed    float64 `json:"min_elapsed_s"`
	MaxElapsed    float64 `json:"max_elapsed_s"`
	MeanReduction float64 `json:"mean_reduction_s"`
	// Speedup is relative to the single-worker row of the same policy and
	// chunk; zero when that row is missing.
	Speedup    float64 `json:"speedup"`
	Efficiency float64 `json:"efficiency"`
	NonFinite  int     `json:"non_finite,omitempty"`
}

type SweepReport struct {
	SweepID     string     `json:"sweep_id"`
	GeneratedAt string     `json:"generated_at_utc"`
	Agents      int        `json:"agents"`
	Rounds      int        `json:"rounds"`
	Rows        []SweepRow `json:"rows"`
	// Best holds the fastest row of every policy.
	Best []SweepRow `json:"best"`
}

type rowKey struct {
	policy  string
	chunk   int
	workers int
}

// BuildSweepReport groups points by (policy, chunk, workers) and derives
// speedup and efficiency against the one-worker baseline.
func BuildSweepReport(points []SweepPoint) []SweepRow {
	groups := make(map[rowKey][]SweepPoint)
	for _, p := range points {
		key := rowKey{policy: p.Policy, chunk: p.Chunk, workers: p.Workers}
		groups[key] = append(groups[key], p)
	}

	rows := make([]SweepRow, 0, len(groups))
	for key, group := range groups {
		elapsed := make([]float64, len(group))
		reduction := make([]float64, len(group))
		row := SweepRow{Policy: key.policy, Chunk: key.chunk, Workers: key.workers, Samples: len(group)}
		for i, p := range group {
			elapsed[i] = p.Elapsed.Seconds()
			reduction[i] = p.Reduction.Seconds()
			if p.NonFinite {
				row.NonFinite++
			}
		}
		row.MeanElapsed = mean(elapsed)
		row.StdElapsed = std(elapsed)
		row.MinElapsed = slices.Min(elapsed)
		row.MaxElapsed = slices.Max(elapsed)
		row.MeanReduction = mean(reduction)
		rows = append(rows, row)
	}

	baseline := make(map[rowKey]float64)
	for _, row := range rows {
		if row.Workers == 1 {
			baseline[rowKey{policy: row.Policy, chunk: row.Chunk}] = row.MeanElapsed
		}
	}
	for i := range rows {
		base, ok := baseline[rowKey{policy: rows[i].Policy, chunk: rows[i].Chunk}]
		if !ok || rows[i].MeanElapsed <= 0 {
			continue
		}
		rows[i].Speedup = base / rows[i].MeanElapsed
		rows[i].Efficiency = rows[i].Speedup / float64(rows[i].Workers)
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Policy != b.Policy {
			return policyRank(a.Policy) < policyRank(b.Policy)
		}
		if a.Chunk != b.Chunk {
			return a.Chunk < b.Chunk
		}
		return a.Workers < b.Workers
	})
	return rows
}

// BestByPolicy returns the row with the lowest mean elapsed time per policy.
func BestByPolicy(rows []SweepRow) []SweepRow {
	best := make(map[string]SweepRow)
	var order []string
	for _, row := range rows {
		cur, ok := best[row.Policy]
		if !ok {
			order = append(order, row.Policy)
		}
		if !ok || row.MeanElapsed < cur.MeanElapsed {
			best[row.Policy] = row
		}
	}
	out := make([]SweepRow, 0, len(order))
	for _, policy := range order {
		out = append(out, best[policy])
	}
	return out
}

func policyRank(policy string) int {
	for i, p := range schedule.Policies {
		if string(p) == policy {
			return i
		}
	}
	return len(schedule.Policies)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// std is the population standard deviation.
func std(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	acc := 0.0
	for _, v := range values {
		acc += (v - m) * (v - m)
	}
	return math.Sqrt(acc / float64(len(values)))
}
