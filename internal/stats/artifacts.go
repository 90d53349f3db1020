package stats

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	sweepReportFile = "sweep.json"
	sweepTableFile  = "sweep.csv"
)

var sweepTableHeader = []string{
	"policy", "chunk", "workers", "samples",
	"mean_elapsed_s", "std_elapsed_s", "min_elapsed_s", "max_elapsed_s",
	"mean_reduction_s", "speedup", "efficiency",
}

// WriteSweepArtifacts writes sweep.json and sweep.csv under
// baseDir/<sweep id> and returns that directory.
func WriteSweepArtifacts(baseDir string, report SweepReport) (string, error) {
	if report.SweepID == "" {
		return "", errors.New("sweep id is required")
	}
	dir := filepath.Join(baseDir, report.SweepID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if report.GeneratedAt == "" {
		report.GeneratedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if err := writeJSON(filepath.Join(dir, sweepReportFile), report); err != nil {
		return "", err
	}
	if err := writeSweepTable(filepath.Join(dir, sweepTableFile), report.Rows); err != nil {
		return "", err
	}
	return dir, nil
}

func ReadSweepReport(dir string) (SweepReport, bool, error) {
	data, err := os.ReadFile(filepath.Join(dir, sweepReportFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return SweepReport{}, false, nil
		}
		return SweepReport{}, false, err
	}
	var report SweepReport
	if err := json.Unmarshal(data, &report); err != nil {
		return SweepReport{}, false, fmt.Errorf("decode sweep report: %w", err)
	}
	return report, true, nil
}

func writeSweepTable(path string, rows []SweepRow) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(sweepTableHeader); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{
			row.Policy,
			strconv.Itoa(row.Chunk),
			strconv.Itoa(row.Workers),
			strconv.Itoa(row.Samples),
			formatFloat(row.MeanElapsed),
			formatFloat(row.StdElapsed),
			formatFloat(row.MinElapsed),
			formatFloat(row.MaxElapsed),
			formatFloat(row.MeanReduction),
			formatFloat(row.Speedup),
			formatFloat(row.Efficiency),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
