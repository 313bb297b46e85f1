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

// NewHistoryCmd returns the "history" subcommand.
func NewHistoryCmd(repo **storage.Repository) *cobra.Command {
	var (
		remote string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show decoded handshake history",
		Long:  `Show the most recent handshakes the proxy decoded, newest first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := (*repo).History(remote, limit)
			if err != nil {
				return fmt.Errorf("failed to list handshake history: %w", err)
			}
			if len(records) == 0 {
				fmt.Println("no handshakes recorded")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIMESTAMP\tSESSION\tREMOTE\tUSER\tVERSION\tCHUNKED\tBLOCKED")
			for _, r := range records {
				blocked := "no"
				if r.Blocked {
					blocked = "YES"
				}
				chunked := "no"
				if r.ChunkedClient || r.ChunkedServer {
					chunked = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
					r.Timestamp.Format("2006-01-02 15:04:05"),
					r.SessionID,
					r.RemoteAddr,
					r.User,
					r.ProtocolVersion,
					chunked,
					blocked)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&remote, "remote", "", "filter by client remote address")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "number of records to show")
	return cmd
}
