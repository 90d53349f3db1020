package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"fishschool/internal/config"
	"fishschool/internal/schedule"
	"fishschool/internal/school"
	"fishschool/pkg/fishschool"
)

func newRunCmd(stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one simulation with a fixed worker count and schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applySimulationFlags(cmd, &cfg.Simulation)
			if err := applyScheduleFlags(cmd, &cfg.Simulation.Schedule); err != nil {
				return err
			}
			a, err := newApp(cmd, cfg, stderr)
			if err != nil {
				return err
			}
			runErr := runSimulation(cmd, a)
			return errors.Join(runErr, a.close())
		},
	}
	addSimulationFlags(cmd)
	cmd.Flags().Int("workers", 0, "worker count")
	cmd.Flags().String("policy", "", "scheduling policy: static|dynamic|guided")
	cmd.Flags().Int("chunk", 0, "chunk size")
	cmd.Flags().String("schedule", "", `schedule as "kind[,chunk]", e.g. "dynamic,64"`)
	return cmd
}

func runSimulation(cmd *cobra.Command, a *app) error {
	sc := a.cfg.Simulation.Schedule
	handle, err := fishschool.ConfigureRun(sc.Workers, sc.Policy.String(), sc.Chunk)
	if err != nil {
		return err
	}
	req := fishschool.SimulationRequestFromConfig(a.cfg.Simulation)
	res, err := a.client.RunSimulation(cmd.Context(), handle, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput(cmd) {
		type roundItem struct {
			Round            int       `json:"round"`
			Barycentre       jsonFloat `json:"barycentre"`
			MaxDiff          jsonFloat `json:"max_diff"`
			ReductionSeconds float64   `json:"reduction_s"`
			NonFiniteWeights int       `json:"non_finite_weights"`
		}
		rounds := make([]roundItem, len(res.Rounds))
		for i, r := range res.Rounds {
			rounds[i] = roundItem{
				Round:            r.Round,
				Barycentre:       jsonFloat(r.Barycentre),
				MaxDiff:          jsonFloat(r.MaxDiff),
				ReductionSeconds: r.Reduction.Seconds(),
				NonFiniteWeights: r.NonFiniteWeights,
			}
		}
		return writeJSON(out, struct {
			RunID            string      `json:"run_id"`
			Schedule         string      `json:"schedule"`
			Agents           int         `json:"agents"`
			ElapsedSeconds   float64     `json:"elapsed_s"`
			ReductionSeconds float64     `json:"reduction_s"`
			Barycentre       []jsonFloat `json:"barycentre"`
			Rounds           []roundItem `json:"rounds"`
		}{
			RunID:            res.RunID,
			Schedule:         handle.Schedule().String(),
			Agents:           req.Agents,
			ElapsedSeconds:   res.ElapsedTotal.Seconds(),
			ReductionSeconds: res.ElapsedReduction.Seconds(),
			Barycentre:       jsonFloats(res.Barycentre),
			Rounds:           rounds,
		})
	}

	fmt.Fprintf(out, "run_id=%s schedule=%s agents=%s population=%s rounds=%d\n",
		res.RunID,
		handle.Schedule(),
		humanize.Comma(int64(req.Agents)),
		humanize.IBytes(uint64(school.Bytes(req.Agents))),
		req.Rounds,
	)
	for _, r := range res.Rounds {
		fmt.Fprintf(out, "round=%d barycentre=%.6f max_diff=%.6f reduction=%s non_finite=%d\n",
			r.Round, r.Barycentre, r.MaxDiff, r.Reduction.Round(time.Microsecond), r.NonFiniteWeights)
	}
	fmt.Fprintf(out, "setup=%s elapsed=%s reduction=%s\n",
		res.Setup.Round(time.Microsecond), res.ElapsedTotal.Round(time.Microsecond), res.ElapsedReduction.Round(time.Microsecond))
	return nil
}

func addSimulationFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("agents", 0, "fish count")
	f.Int("rounds", 0, "round count")
	f.Int64("seed", 0, "run seed (0 selects a time-based seed)")
	f.String("reduction", "", "max reduction strategy: critical|atomic|reduction")
	f.Float64("half-width", 0, "half width of the square domain")
	f.Float64("base-weight", 0, "initial weight")
	f.Float64("jitter", 0, "initial weight jitter")
	f.Float64("max-weight", 0, "weight cap")
	f.Int64("memory-budget", 0, "population memory cap in bytes (0 disables it)")
}

func applySimulationFlags(cmd *cobra.Command, s *config.SimulationConfig) {
	f := cmd.Flags()
	if f.Changed("agents") {
		s.Agents, _ = f.GetInt("agents")
	}
	if f.Changed("rounds") {
		s.Rounds, _ = f.GetInt("rounds")
	}
	if f.Changed("seed") {
		s.Seed, _ = f.GetInt64("seed")
	}
	if f.Changed("reduction") {
		s.Reduction, _ = f.GetString("reduction")
	}
	if f.Changed("half-width") {
		s.Params.DomainHalfWidth, _ = f.GetFloat64("half-width")
	}
	if f.Changed("base-weight") {
		s.Params.BaseWeight, _ = f.GetFloat64("base-weight")
	}
	if f.Changed("jitter") {
		s.Params.WeightJitter, _ = f.GetFloat64("jitter")
	}
	if f.Changed("max-weight") {
		s.Params.MaxWeight, _ = f.GetFloat64("max-weight")
	}
	if f.Changed("memory-budget") {
		s.MemoryBudget, _ = f.GetInt64("memory-budget")
	}
}

func applyScheduleFlags(cmd *cobra.Command, sc *schedule.Config) error {
	f := cmd.Flags()
	if f.Changed("schedule") {
		if f.Changed("policy") || f.Changed("chunk") {
			return errors.New("use either --schedule or --policy/--chunk")
		}
		spec, _ := f.GetString("schedule")
		policy, chunk, err := schedule.ParseSchedule(spec)
		if err != nil {
			return err
		}
		sc.Policy, sc.Chunk = policy, chunk
	}
	if f.Changed("policy") {
		name, _ := f.GetString("policy")
		policy, err := schedule.ParsePolicy(name)
		if err != nil {
			return err
		}
		sc.Policy = policy
	}
	if f.Changed("chunk") {
		sc.Chunk, _ = f.GetInt("chunk")
	}
	if f.Changed("workers") {
		sc.Workers, _ = f.GetInt("workers")
	}
	return nil
}
