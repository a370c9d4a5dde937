package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"medic/internal/store"
)

var historyFlags struct {
	dbPath string
	limit  int
}

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List saved check runs, or show one run's full report",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.StringVar(&historyFlags.dbPath, "db", store.DefaultDBPath, "Path to the history database")
	f.IntVar(&historyFlags.limit, "limit", 20, "Max runs to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	s, err := store.Open(historyFlags.dbPath)
	if err != nil {
		return err
	}
	defer s.Close()
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid run id %q", args[0])
		}
		rec, err := s.GetRun(id)
		if err != nil {
			return err
		}
		if rec.Report == "" {
			fmt.Fprintf(out, "run %d has no stored report\n", id)
			return nil
		}
		fmt.Fprintln(out, rec.Report)
		return nil
	}

	recs, err := s.ListRuns(historyFlags.limit)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(out, "No saved runs. Use 'medic check --save' to record one.")
		return nil
	}
	w := table.NewWriter()
	w.SetStyle(table.StyleLight)
	w.AppendHeader(table.Row{"ID", "Started", "Result", "Passed", "Failed", "Unresolved", "Probes"})
	for _, rec := range recs {
		status := "pass"
		if !rec.Succeeded() {
			status = "fail"
		}
		w.AppendRow(table.Row{
			rec.ID, rec.StartedAt, status,
			rec.Passed, rec.Failed, rec.Unresolved,
			strings.Join(rec.Probes, " "),
		})
	}
	fmt.Fprintln(out, w.Render())
	return nil
}
