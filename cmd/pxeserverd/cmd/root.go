// Copyright (C) 2026 BQD Services LLC. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package cmd implements the pxeserverd command tree.
package cmd

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:   "pxeserverd",
	Short: "Network boot controller: iPXE bootstrap over HTTP and iSCSI target configuration",
	// serve is the default action: invoking the binary with no
	// subcommand runs the server directly, the way small infra daemons
	// in the pack are started.
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunServe(serveFlags)
	},
}

// Execute runs the command tree; main's only job is to call this.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	bindServeFlags(rootCmd.Flags())
	rootCmd.AddCommand(serveCmd)
}
