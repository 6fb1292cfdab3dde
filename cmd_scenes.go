package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/df07/go-drtm/pkg/scene"
)

func newScenesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenes",
		Short: "List the builtin scenes and the scene files of a directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			scenes, err := scene.ListAllScenes(dir)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tGROUP\tDESCRIPTION")
			for _, s := range scenes {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", s.ID, s.Group, s.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().String("dir", "scenes", "Directory of scene files")
	return cmd
}
