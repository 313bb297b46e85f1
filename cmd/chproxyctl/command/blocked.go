// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/clickhouse-wire/chproxy/pkg/storage"
	"github.com/spf13/cobra"
)

// NewBlockedCmd returns the "blocked" subcommand.
func NewBlockedCmd(repo **storage.Repository) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blocked",
		Short: "List blocked users",
		Long:  `List every username currently on the persisted blocklist.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := (*repo).LoadBlockedUsers()
			if err != nil {
				return fmt.Errorf("failed to list blocked users: %w", err)
			}
			if len(users) == 0 {
				fmt.Println("no blocked users")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "USER\tREASON")
			for user, reason := range users {
				fmt.Fprintf(w, "%s\t%s\n", user, reason)
			}
			return w.Flush()
		},
	}

	return cmd
}
