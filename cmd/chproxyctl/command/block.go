// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"fmt"

	"github.com/clickhouse-wire/chproxy/pkg/storage"
	"github.com/spf13/cobra"
)

// NewBlockCmd returns the "block" subcommand.
func NewBlockCmd(repo **storage.Repository) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "block [user...]",
		Short: "Block ClickHouse users",
		Long:  `Add one or more ClickHouse usernames to the persisted blocklist.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, user := range args {
				if err := (*repo).BlockUser(user, reason); err != nil {
					return fmt.Errorf("failed to block %s: %w", user, err)
				}
				fmt.Printf("blocked user: %s\n", user)
			}
			fmt.Println("\nrun 'chproxyctl reload --pid <pid>' to apply changes to the running proxy")
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "manual_block", "reason for blocking")
	return cmd
}
