// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"fmt"

	"github.com/clickhouse-wire/chproxy/pkg/storage"
	"github.com/spf13/cobra"
)

// NewUnblockCmd returns the "unblock" subcommand.
func NewUnblockCmd(repo **storage.Repository) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unblock [user...]",
		Short: "Unblock ClickHouse users",
		Long:  `Remove one or more ClickHouse usernames from the persisted blocklist.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, user := range args {
				if err := (*repo).UnblockUser(user); err != nil {
					return fmt.Errorf("failed to unblock %s: %w", user, err)
				}
				fmt.Printf("unblocked user: %s\n", user)
			}
			fmt.Println("\nrun 'chproxyctl reload --pid <pid>' to apply changes to the running proxy")
			return nil
		},
	}

	return cmd
}
