package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/maastricht-university/meeting-conflicts/store"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runs, err := store.Open(conf.Paths.Database)
		if err != nil {
			return err
		}
		defer runs.Close()

		list, err := runs.ListRuns(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCREATED\tSTATUS\tUTTERANCES\tCANDIDATES\tCONFLICTS")
		for _, r := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n", r.ID, r.CreatedAt.Local().Format(time.DateTime),
				r.Status, r.Utterances, r.Candidates, r.Conflicts)
		}
		return w.Flush()
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum number of runs to list")
}
