package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"fishschool/internal/model"
	"fishschool/pkg/fishschool"
)

func newRunsCmd(stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored timing records, newest last",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cmd, cfg, stderr)
			if err != nil {
				return err
			}
			listErr := listRuns(cmd, a)
			return errors.Join(listErr, a.close())
		},
	}
	f := cmd.Flags()
	f.Int("limit", 20, "max runs to list")
	f.String("sweep", "", "only runs of this sweep id")
	f.String("policy", "", "only runs with this policy")
	f.Int("workers", 0, "only runs with this worker count")
	return cmd
}

func listRuns(cmd *cobra.Command, a *app) error {
	f := cmd.Flags()
	var req fishschool.RunsRequest
	req.Limit, _ = f.GetInt("limit")
	req.SweepID, _ = f.GetString("sweep")
	req.Policy, _ = f.GetString("policy")
	req.Workers, _ = f.GetInt("workers")
	if req.Limit <= 0 {
		return errors.New("limit must be > 0")
	}

	runs, err := a.client.Runs(cmd.Context(), req)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if jsonOutput(cmd) {
		return writeJSON(out, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs found")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN_ID\tCREATED\tSCHEDULE\tAGENTS\tROUNDS\tELAPSED\tREDUCTION")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s,%d/%d\t%s\t%d\t%s\t%s\n",
			r.ID,
			humanize.Time(r.CreatedAt),
			r.Policy, r.Chunk, r.Workers,
			humanize.Comma(int64(r.Agents)),
			r.Rounds,
			r.Elapsed.Round(time.Microsecond),
			r.ElapsedReduction.Round(time.Microsecond),
		)
	}
	return tw.Flush()
}

func newShowCmd(stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id|latest>",
		Short: "Show one stored timing record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cmd, cfg, stderr)
			if err != nil {
				return err
			}
			showErr := showRun(cmd, a, args[0])
			return errors.Join(showErr, a.close())
		},
	}
}

func showRun(cmd *cobra.Command, a *app, id string) error {
	run, err := a.client.Show(cmd.Context(), id)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if jsonOutput(cmd) {
		return writeJSON(out, run)
	}
	printRun(out, run)
	return nil
}

func printRun(w io.Writer, r model.RunRecord) {
	fmt.Fprintf(w, "run_id=%s\n", r.ID)
	if r.SweepID != "" {
		fmt.Fprintf(w, "sweep_id=%s repeat=%d\n", r.SweepID, r.Repeat)
	}
	fmt.Fprintf(w, "created_at=%s (%s)\n", r.CreatedAt.Format(time.RFC3339), humanize.Time(r.CreatedAt))
	fmt.Fprintf(w, "workers=%d policy=%s chunk=%d reduction=%s\n", r.Workers, r.Policy, r.Chunk, r.Reduction)
	fmt.Fprintf(w, "agents=%s rounds=%d seed=%d\n", humanize.Comma(int64(r.Agents)), r.Rounds, r.Seed)
	fmt.Fprintf(w, "setup=%s elapsed=%s reduction=%s non_finite=%t\n", r.Setup, r.Elapsed, r.ElapsedReduction, r.NonFinite)
	for i, d := range r.RoundReduction {
		fmt.Fprintf(w, "round=%d reduction=%s\n", i, d)
	}
}
