package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"bataille/internal/ports/sqlite"

	"github.com/spf13/cobra"
)

var resultsOpts struct {
	dbPath string
	limit  int
}

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "List recently finished matches",
	RunE: func(cmd *cobra.Command, args []string) error {
		if resultsOpts.dbPath == "" {
			return errors.New("--db is required")
		}
		repo, err := sqlite.Open(resultsOpts.dbPath)
		if err != nil {
			return err
		}
		defer repo.Close()

		results, err := repo.RecentResults(cmd.Context(), resultsOpts.limit)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "GAME\tMODE\tWINNER\tREASON\tROUNDS")
		for _, r := range results {
			winner := "draw"
			if r.Winner.Valid {
				winner = r.Winner.String
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", r.ID, r.Mode, winner, r.DefeatReason.String, r.Rounds)
		}
		return w.Flush()
	},
}

func init() {
	resultsCmd.Flags().StringVar(&resultsOpts.dbPath, "db", envOr("BATAILLE_DB", ""), "SQLite database path")
	resultsCmd.Flags().IntVar(&resultsOpts.limit, "limit", 20, "number of matches to list")
	rootCmd.AddCommand(resultsCmd)
}
