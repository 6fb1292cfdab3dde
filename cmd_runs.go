package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/df07/go-drtm/pkg/ledger"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Read the run ledger",
		Long: `Read the SQLite run ledger. The ledger is enabled by setting ledger.path
in the config file or DRTM_LEDGER in the environment.`,
	}
	cmd.AddCommand(newRunsListCmd(), newRunsShowCmd())
	return cmd
}

// openLedger returns the configured ledger or an error when it is disabled
func openLedger(cmd *cobra.Command) (*runtime, error) {
	rt, err := newRuntime(cmd, nil)
	if err != nil {
		return nil, err
	}
	if rt.ledger == nil {
		return nil, fmt.Errorf("run ledger is disabled (set ledger.path or DRTM_LEDGER)")
	}
	return rt, nil
}

func newRunsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			rt, err := openLedger(cmd)
			if err != nil {
				return err
			}
			defer closeInto(&err, rt)

			limit, _ := cmd.Flags().GetInt("limit")
			return runRunsList(cmd.Context(), rt.ledger, cmd.OutOrStdout(), limit)
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum number of runs (0 for all)")
	return cmd
}

func runRunsList(ctx context.Context, l *ledger.Ledger, out io.Writer, limit int) error {
	runs, err := l.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tSTATUS\tSTARTED\tDURATION\tFINAL LOSS\tSCENE")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			run.ID[:8], run.Kind, run.Status,
			run.StartedAt.Local().Format(time.DateTime),
			runDuration(run), formatLoss(run.FinalLoss), run.Scene)
	}
	return tw.Flush()
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one run and its iterations (an id prefix is enough)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			rt, err := openLedger(cmd)
			if err != nil {
				return err
			}
			defer closeInto(&err, rt)
			return runRunsShow(cmd.Context(), rt.ledger, cmd.OutOrStdout(), args[0])
		},
	}
}

func runRunsShow(ctx context.Context, l *ledger.Ledger, out io.Writer, id string) error {
	run, err := l.GetRun(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Run:        %s\n", run.ID)
	fmt.Fprintf(out, "Kind:       %s\n", run.Kind)
	fmt.Fprintf(out, "Scene:      %s\n", run.Scene)
	fmt.Fprintf(out, "Status:     %s\n", run.Status)
	fmt.Fprintf(out, "Started:    %s\n", run.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(out, "Duration:   %s\n", runDuration(*run))
	if run.FinalLoss != nil {
		fmt.Fprintf(out, "Final loss: %s\n", formatLoss(run.FinalLoss))
	}
	if run.Error != "" {
		fmt.Fprintf(out, "Error:      %s\n", run.Error)
	}
	for _, f := range run.Outputs {
		fmt.Fprintf(out, "Output:     %s\n", f)
	}

	its, err := l.Iterations(ctx, run.ID)
	if err != nil {
		return err
	}
	if len(its) == 0 {
		return nil
	}

	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ITER\tLOSS\tPARAM ERROR\tREFLECTANCE\tTRANSMITTANCE")
	for _, it := range its {
		fmt.Fprintf(tw, "%d\t%.6g\t%.6f\t%.4f\t%.4f\n",
			it.Iteration, it.Loss, it.ParameterError, it.Reflectance, it.Transmittance)
	}
	return tw.Flush()
}

func runDuration(run ledger.Run) string {
	if run.FinishedAt == nil {
		return "-"
	}
	return run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
}

func formatLoss(loss *float64) string {
	if loss == nil {
		return "-"
	}
	return fmt.Sprintf("%.6g", *loss)
}
