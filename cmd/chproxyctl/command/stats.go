// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"fmt"

	"github.com/clickhouse-wire/chproxy/pkg/storage"
	"github.com/spf13/cobra"
)

// NewStatsCmd returns the "stats" subcommand.
func NewStatsCmd(repo **storage.Repository) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show handshake statistics",
		Long:  `Display a summary of the decoded handshake history and blocklist.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := (*repo).Statistics()
			if err != nil {
				return fmt.Errorf("failed to get statistics: %w", err)
			}

			fmt.Println("Handshake statistics:")
			fmt.Printf("  Total handshakes:    %d\n", stats.TotalHandshakes)
			fmt.Printf("  Blocked handshakes:  %d\n", stats.BlockedHandshakes)
			fmt.Printf("  Unique users:        %d\n", stats.UniqueUsers)
			fmt.Printf("  Blocked users:       %d\n", stats.BlockedUsers)

			if stats.TotalHandshakes > 0 {
				rate := float64(stats.BlockedHandshakes) / float64(stats.TotalHandshakes) * 100
				fmt.Printf("  Block rate:          %.2f%%\n", rate)
			}

			return nil
		},
	}

	return cmd
}
