package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded builds",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of builds to list")
	return cmd
}

func runHistory(cmd *cobra.Command, limit int) error {
	a, err := setup()
	if err != nil {
		return err
	}

	j, err := a.openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	entries, err := j.List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no builds recorded")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tSTATUS\tDURATION\tSHA256\tARCHIVE")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			shortField(e.ID, 8),
			e.StartedAt.Local().Format(time.RFC3339),
			e.Status,
			(time.Duration(e.DurationMS) * time.Millisecond).String(),
			shortField(e.Digest, 12),
			e.ArchivePath,
		)
	}
	return w.Flush()
}

func shortField(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	if s == "" {
		return "-"
	}
	return s
}
