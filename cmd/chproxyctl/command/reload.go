// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
)

// NewReloadCmd returns the "reload" subcommand.
func NewReloadCmd() *cobra.Command {
	var pid int

	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Reload a running proxy's blocklist",
		Long:  `Send SIGHUP to a running chproxy process so it reloads the blocklist from storage.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			process, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("failed to find process: %w", err)
			}
			if err := process.Signal(syscall.SIGHUP); err != nil {
				return fmt.Errorf("failed to send SIGHUP: %w", err)
			}
			fmt.Printf("sent SIGHUP to process %d\n", pid)
			return nil
		},
	}

	cmd.Flags().IntVar(&pid, "pid", 0, "PID of the running chproxy process")
	if err := cmd.MarkFlagRequired("pid"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	return cmd
}
