package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"fishschool/internal/config"
	"fishschool/internal/schedule"
	"fishschool/internal/stats"
	"fishschool/pkg/fishschool"
)

func newSweepCmd(stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run every worker count, policy and chunk size of the sweep plan",
		Long: `sweep runs worker counts × {static, dynamic, guided} × the chunk menu of
each policy, one fresh run per point and repeat, and prints one timing line per
run followed by the fastest point of every policy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applySimulationFlags(cmd, &cfg.Simulation)
			if err := applySweepFlags(cmd, &cfg.Sweep); err != nil {
				return err
			}
			a, err := newApp(cmd, cfg, stderr)
			if err != nil {
				return err
			}
			sweepErr := runSweep(cmd, a)
			return errors.Join(sweepErr, a.close())
		},
	}
	addSimulationFlags(cmd)
	f := cmd.Flags()
	f.IntSlice("workers", nil, "worker counts to sweep")
	f.StringSlice("policies", nil, "policies to sweep: static,dynamic,guided")
	f.IntSlice("static-chunks", nil, "chunk sizes for the static policy")
	f.IntSlice("dynamic-chunks", nil, "chunk sizes for the dynamic policy")
	f.IntSlice("guided-chunks", nil, "chunk sizes for the guided policy")
	f.Int("repeats", 0, "runs per point")
	f.String("artifacts-dir", "", "write sweep.json and sweep.csv under this directory")
	return cmd
}

func applySweepFlags(cmd *cobra.Command, s *config.SweepConfig) error {
	f := cmd.Flags()
	if f.Changed("workers") {
		s.Workers, _ = f.GetIntSlice("workers")
	}
	if f.Changed("policies") {
		names, _ := f.GetStringSlice("policies")
		policies := make([]schedule.Policy, 0, len(names))
		for _, name := range names {
			p, err := schedule.ParsePolicy(name)
			if err != nil {
				return err
			}
			policies = append(policies, p)
		}
		s.Policies = policies
	}
	if f.Changed("static-chunks") {
		s.StaticChunks, _ = f.GetIntSlice("static-chunks")
	}
	if f.Changed("dynamic-chunks") {
		s.DynamicChunks, _ = f.GetIntSlice("dynamic-chunks")
	}
	if f.Changed("guided-chunks") {
		s.GuidedChunks, _ = f.GetIntSlice("guided-chunks")
	}
	if f.Changed("repeats") {
		s.Repeats, _ = f.GetInt("repeats")
	}
	if f.Changed("artifacts-dir") {
		s.ArtifactsDir, _ = f.GetString("artifacts-dir")
	}
	return nil
}

func runSweep(cmd *cobra.Command, a *app) error {
	out := cmd.OutOrStdout()
	asJSON := jsonOutput(cmd)
	req := fishschool.SweepRequest{
		Simulation: fishschool.SimulationRequestFromConfig(a.cfg.Simulation),
		Plan:       a.cfg.Sweep,
	}

	var onPoint func(stats.SweepPoint)
	if !asJSON {
		fmt.Fprintf(out, "# agents=%s rounds=%d points=%d repeats=%d\n",
			humanize.Comma(int64(req.Simulation.Agents)), req.Simulation.Rounds, len(req.Plan.Points()), req.Plan.Repeats)
		fmt.Fprintln(out, "Num_Threads\tPolicy\tChunk\tTotal_Time\tReduction_Time")
		onPoint = func(p stats.SweepPoint) {
			fmt.Fprintf(out, "%d\t%s\t%d\t%.6f\t%.6f\n", p.Workers, p.Policy, p.Chunk, p.Elapsed.Seconds(), p.Reduction.Seconds())
		}
	}

	report, err := a.client.Sweep(cmd.Context(), req, onPoint)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(out, report)
	}

	fmt.Fprintf(out, "\nsweep_id=%s\n", report.SweepID)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "POLICY\tCHUNK\tWORKERS\tMEAN_S\tSTD_S\tSPEEDUP\tEFFICIENCY")
	for _, row := range report.Best {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.6f\t%.6f\t%.2f\t%.2f\n",
			row.Policy, row.Chunk, row.Workers, row.MeanElapsed, row.StdElapsed, row.Speedup, row.Efficiency)
	}
	return tw.Flush()
}
