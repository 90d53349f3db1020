package stats

import (
	"math"
	"testing"
	"time"
)

func TestBuildSweepReportAggregatesRepeats(t *testing.T) {
	points := []SweepPoint{
		{Workers: 1, Policy: "static", Chunk: 4, Repeat: 0, Elapsed: 4 * time.Second, Reduction: time.Second},
		{Workers: 1, Policy: "static", Chunk: 4, Repeat: 1, Elapsed: 4 * time.Second, Reduction: time.Second},
		{Workers: 4, Policy: "static", Chunk: 4, Repeat: 0, Elapsed: 1 * time.Second},
		{Workers: 4, Policy: "static", Chunk: 4, Repeat: 1, Elapsed: 3 * time.Second},
		{Workers: 2, Policy: "guided", Chunk: 8, Elapsed: 2 * time.Second, NonFinite: true},
		{Workers: 2, Policy: "dynamic", Chunk: 1, Elapsed: 5 * time.Second},
	}
	rows := BuildSweepReport(points)
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}

	order := []string{"static", "static", "dynamic", "guided"}
	for i, want := range order {
		if rows[i].Policy != want {
			t.Fatalf("row %d policy: got %s want %s", i, rows[i].Policy, want)
		}
	}

	base := rows[0]
	if base.Workers != 1 || base.Samples != 2 || base.MeanElapsed != 4 || base.StdElapsed != 0 || base.Speedup != 1 {
		t.Fatalf("unexpected baseline row: %+v", base)
	}
	if base.MeanReduction != 1 {
		t.Fatalf("unexpected mean reduction: %v", base.MeanReduction)
	}

	wide := rows[1]
	if wide.MeanElapsed != 2 || wide.StdElapsed != 1 || wide.MinElapsed != 1 || wide.MaxElapsed != 3 {
		t.Fatalf("unexpected aggregate: %+v", wide)
	}
	if wide.Speedup != 2 || wide.Efficiency != 0.5 {
		t.Fatalf("unexpected speedup/efficiency: %+v", wide)
	}

	if rows[3].Speedup != 0 || rows[3].NonFinite != 1 {
		t.Fatalf("row without baseline must have zero speedup: %+v", rows[3])
	}
}

func TestBestByPolicy(t *testing.T) {
	rows := []SweepRow{
		{Policy: "static", Chunk: 1, Workers: 1, MeanElapsed: 5},
		{Policy: "static", Chunk: 1, Workers: 8, MeanElapsed: 1},
		{Policy: "guided", Chunk: 2, Workers: 8, MeanElapsed: 2},
		{Policy: "guided", Chunk: 4, Workers: 8, MeanElapsed: 3},
	}
	best := BestByPolicy(rows)
	if len(best) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(best))
	}
	if best[0].Policy != "static" || best[0].Workers != 8 {
		t.Fatalf("unexpected static best: %+v", best[0])
	}
	if best[1].Policy != "guided" || best[1].Chunk != 2 {
		t.Fatalf("unexpected guided best: %+v", best[1])
	}
}

func TestSeriesWithinTolerance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want bool
	}{
		{"equal", []float64{1, 2, 3}, []float64{1, 2, 3}, true},
		{"tiny drift", []float64{100}, []float64{100 * (1 + 1e-12)}, true},
		{"large drift", []float64{100}, []float64{100.1}, false},
		{"length mismatch", []float64{1, 2}, []float64{1}, false},
		{"nil", []float64{1}, nil, false},
		{"both nan", []float64{math.NaN()}, []float64{math.NaN()}, true},
		{"nan vs finite", []float64{math.NaN()}, []float64{1}, false},
		{"same inf", []float64{math.Inf(1)}, []float64{math.Inf(1)}, true},
		{"opposite inf", []float64{math.Inf(1)}, []float64{math.Inf(-1)}, false},
		{"zeros", []float64{0}, []float64{0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SeriesWithinTolerance(tt.a, tt.b, 1e-9); got != tt.want {
				t.Fatalf("got %v want %v", got, tt.want)
			}
		})
	}
}

func TestSeriesEQ(t *testing.T) {
	nan := math.NaN()
	if !SeriesEQ([]float64{1, nan}, []float64{1, nan}) {
		t.Fatal("expected identical series to match")
	}
	if SeriesEQ([]float64{1}, []float64{math.Nextafter(1, 2)}) {
		t.Fatal("expected one-ulp difference to fail")
	}
}
