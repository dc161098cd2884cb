// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuGH/ad-normalizer/internal/store"
)

func newBlacklistCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blacklist",
		Short: "Inspect or edit the source URL blacklist",
	}
	cmd.AddCommand(newBlacklistListCommand(cc))
	cmd.AddCommand(newBlacklistAddCommand(cc))
	cmd.AddCommand(newBlacklistRemoveCommand(cc))
	return cmd
}

func newBlacklistListCommand(cc *commandContext) *cobra.Command {
	var (
		page    int
		size    int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List blacklisted source URLs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := cc.openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			page, size = store.ClampPage(page, size)
			entries, total, err := st.ListBlacklist(ctx, page, size)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, map[string]any{
					"page":  page,
					"size":  len(entries),
					"total": total,
					"items": entries,
				})
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{e.URL, e.AddedAt.Format(time.RFC3339)})
			}
			printf(cmd, "%s\n", renderTable([]string{"URL", "Added"}, rows, nil))
			printf(cmd, "page %d, %d of %d entries\n", page, len(entries), total)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 0, "Zero based page")
	cmd.Flags().IntVar(&size, "size", defaultPageSize, "Page size (1-100)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output JSON")
	return cmd
}

func newBlacklistAddCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <url>...",
		Short: "Blacklist source URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := cc.openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()
			for _, u := range args {
				if err := st.Blacklist(ctx, u); err != nil {
					return err
				}
				printf(cmd, "blacklisted %s\n", u)
			}
			return nil
		},
	}
}

func newBlacklistRemoveCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <url>...",
		Aliases: []string{"rm"},
		Short:   "Remove source URLs from the blacklist",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := cc.openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()
			for _, u := range args {
				if err := st.RemoveFromBlacklist(ctx, u); err != nil {
					return err
				}
				printf(cmd, "removed %s\n", u)
			}
			return nil
		},
	}
}
