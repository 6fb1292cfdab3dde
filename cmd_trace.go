package main

import (
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/df07/go-drtm/pkg/trace"
)

func newTraceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Read the reflectance, transmittance and loss arrays of a fit",
	}
	cmd.AddCommand(newTraceShowCmd(), newTraceExportCmd())
	return cmd
}

func newTraceShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [dir]",
		Short: "Print the recorded iterations of a trace directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			last, _ := cmd.Flags().GetInt("last")
			return runTraceShow(cmd.OutOrStdout(), dir, last)
		},
	}
	cmd.Flags().Int("last", 10, "Number of trailing iterations to print (0 for all)")
	return cmd
}

func runTraceShow(out io.Writer, dir string, last int) error {
	history, err := trace.LoadHistory(dir)
	if err != nil {
		return err
	}

	n := history.Len()
	fmt.Fprintf(out, "%d iterations in %s\n", n, dir)
	start := 0
	if last > 0 && n > last {
		start = n - last
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ITER\tLOSS\tREFLECTANCE\tTRANSMITTANCE")
	for i := start; i < n; i++ {
		fmt.Fprintf(tw, "%d\t%.6g\t%.4f\t%.4f\n", i, history.Loss[i], history.Reflectance[i], history.Transmittance[i])
	}
	return tw.Flush()
}

func newTraceExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [dir]",
		Short: "Convert a trace directory into one Arrow IPC file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			output, _ := cmd.Flags().GetString("output")
			if output == "" {
				output = filepath.Join(dir, "trace.arrow")
			}

			rows, err := trace.ExportArrow(dir, output)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d iterations to %s\n", rows, output)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Arrow file to write (default <dir>/trace.arrow)")
	return cmd
}
