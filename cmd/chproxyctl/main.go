// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Command chproxyctl is the operator CLI for the proxy's persisted state:
// the blocklist and the handshake history.
package main

import (
	"fmt"
	"os"

	"github.com/clickhouse-wire/chproxy/cmd/chproxyctl/command"
	"github.com/clickhouse-wire/chproxy/pkg/storage"
	"github.com/spf13/cobra"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	var dbPath string

	root := &cobra.Command{
		Use:   "chproxyctl",
		Short: "Operate a chproxy deployment's blocklist and handshake history",
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "chproxy.db", "SQLite database path")

	var repo *storage.Repository
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		repo, err = storage.NewRepository(db)
		return err
	}

	root.AddCommand(
		command.NewBlockCmd(&repo),
		command.NewUnblockCmd(&repo),
		command.NewBlockedCmd(&repo),
		command.NewHistoryCmd(&repo),
		command.NewStatsCmd(&repo),
		command.NewReloadCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
