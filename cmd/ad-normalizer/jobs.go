// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuGH/ad-normalizer/internal/store"
)

const defaultPageSize = 10

func newJobsCommand(cc *commandContext) *cobra.Command {
	var (
		page    int
		size    int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List stored transcode jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := cc.openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			page, size = store.ClampPage(page, size)
			jobs, total, err := st.List(ctx, page, size)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, map[string]any{
					"page":  page,
					"size":  len(jobs),
					"total": total,
					"items": jobs,
				})
			}

			rows := make([][]string, 0, len(jobs))
			for _, j := range jobs {
				rows = append(rows, []string{
					j.CreativeID,
					string(j.Status),
					j.AspectRatio,
					formatFrameRates(j.FrameRates),
					j.LastUpdated().UTC().Format(time.RFC3339),
					j.URL,
				})
			}
			printf(cmd, "%s\n", renderTable(
				[]string{"Creative", "Status", "Aspect", "FPS", "Updated", "URL"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			printf(cmd, "page %d, %d of %d jobs\n", page, len(jobs), total)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 0, "Zero based page")
	cmd.Flags().IntVar(&size, "size", defaultPageSize, "Page size (1-100)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output JSON")
	return cmd
}

func formatFrameRates(rates []float64) string {
	parts := make([]string, len(rates))
	for i, r := range rates {
		parts[i] = strconv.FormatFloat(r, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}
