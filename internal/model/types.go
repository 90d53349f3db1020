package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord is the timing record of one benchmark run. It carries the run
// configuration and its timings only; barycentre series are never persisted.
type RunRecord struct {
	VersionedRecord
	ID        string    `json:"id"`
	SweepID   string    `json:"sweep_id,omitempty"`
	Repeat    int       `json:"repeat"`
	CreatedAt time.Time `json:"created_at"`

	Workers   int    `json:"workers"`
	Policy    string `json:"policy"`
	Chunk     int    `json:"chunk"`
	Reduction string `json:"reduction"`
	Agents    int    `json:"agents"`
	Rounds    int    `json:"rounds"`
	Seed      int64  `json:"seed"`

	Setup            time.Duration   `json:"setup_ns"`
	Elapsed          time.Duration   `json:"elapsed_ns"`
	ElapsedReduction time.Duration   `json:"elapsed_reduction_ns"`
	RoundReduction   []time.Duration `json:"round_reduction_ns"`
	// NonFinite is set when any round ended with a non-finite barycentre.
	NonFinite bool `json:"non_finite"`
}

// SweepRecord summarizes one sweep invocation.
type SweepRecord struct {
	VersionedRecord
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Agents       int       `json:"agents"`
	Rounds       int       `json:"rounds"`
	Repeats      int       `json:"repeats"`
	Points       int       `json:"points"`
	ArtifactsDir string    `json:"artifacts_dir,omitempty"`
}

// RunFilter narrows a run listing. Zero fields match everything.
type RunFilter struct {
	SweepID string
	Policy  string
	Workers int
	Limit   int
}

func (f RunFilter) Match(r RunRecord) bool {
	if f.SweepID != "" && r.SweepID != f.SweepID {
		return false
	}
	if f.Policy != "" && r.Policy != f.Policy {
		return false
	}
	if f.Workers > 0 && r.Workers != f.Workers {
		return false
	}
	return true
}
