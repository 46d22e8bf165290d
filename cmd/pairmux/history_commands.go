package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"pairmux/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past merge attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(ctx, cmd, nil)
		},
	}

	var failedOnly bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded merges",
		RunE: func(cmd *cobra.Command, args []string) error {
			var statuses []history.Status
			if failedOnly {
				statuses = []history.Status{history.StatusFailed}
			}
			return runHistoryList(ctx, cmd, statuses)
		},
	}
	listCmd.Flags().BoolVar(&failedOnly, "failed", false, "Show only failed merges")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show merge counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}

			caser := cases.Title(language.English)
			rows := make([][]string, 0, len(stats))
			for _, status := range []history.Status{history.StatusCompleted, history.StatusFailed, history.StatusMerging} {
				if count, ok := stats[status]; ok {
					rows = append(rows, []string{caser.String(string(status)), strconv.Itoa(count)})
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Status", "Count"},
				rows,
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all recorded merges",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d records\n", removed)
			return nil
		},
	}

	cmd.AddCommand(listCmd)
	cmd.AddCommand(statsCmd)
	cmd.AddCommand(clearCmd)
	return cmd
}

func openHistory(ctx *commandContext) (*history.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	return history.Open(cfg)
}

func runHistoryList(ctx *commandContext, cmd *cobra.Command, statuses []history.Status) error {
	store, err := openHistory(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(cmd.Context(), statuses...)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No merges recorded")
		return nil
	}

	caser := cases.Title(language.English)
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		detail := record.OutputPath
		if record.Status == history.StatusFailed {
			detail = record.ErrorMessage
		}
		rows = append(rows, []string{
			strconv.FormatInt(record.ID, 10),
			record.SessionKey,
			string(record.Source),
			caser.String(string(record.Status)),
			record.CreatedAt.Local().Format(time.DateTime),
			detail,
		})
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"ID", "Session", "Source", "Status", "Started", "Output / Error"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
	))
	return nil
}
