// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	configPath       string
	dataDirFlag      string
	languageFlag     string
	logLevelFlag     string
	personalityLevel string // UX personality level (full/standard/minimal/machine)

	statusMode  bool
	cachedMode  bool
	orderFilter string
	assumeYes   bool
	patchMode   bool

	rootCmd = &cobra.Command{
		Use:   "orderwatch",
		Short: "Track changes to your vehicle orders",
		Long: `orderwatch retrieves the current state of your orders, compares it with
the last saved state and keeps a dated history of every change.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setupApp,
		RunE:              runRefresh, // Defined in cmd_refresh.go
	}

	refreshCmd = &cobra.Command{
		Use:   "refresh",
		Short: "Retrieve orders, record changes and show the timelines (default)",
		Args:  cobra.NoArgs,
		RunE:  runRefresh,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Upgrade the stored files to the current layout",
		Args:  cobra.NoArgs,
		RunE:  runMigrate, // Defined in cmd_migrate.go
	}

	timelineCmd = &cobra.Command{
		Use:   "timeline [reference]",
		Short: "Show order timelines from the saved data",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runTimeline, // Defined in cmd_timeline.go
	}

	historyCmd = &cobra.Command{
		Use:   "history [reference]",
		Short: "Show the recorded change history",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHistory, // Defined in cmd_history.go
	}

	diffCmd = &cobra.Command{
		Use:   "diff <old.json> <new.json>",
		Short: "Compare two snapshot files and print the change records",
		Args:  cobra.ExactArgs(2),
		RunE:  runDiff, // Defined in cmd_diff.go
	}

	watchCmd = &cobra.Command{
		Use:   "watch [reference]",
		Short: "Re-render timelines whenever the stored files change",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runWatch, // Defined in cmd_watch.go
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file (default ~/.orderwatch/config.yaml)")
	flags.StringVar(&dataDirFlag, "data-dir", "", "Directory holding the orders and history files")
	flags.StringVar(&languageFlag, "lang", "", "Display language, e.g. en-US or de-DE")
	flags.StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn or error")
	flags.StringVar(&personalityLevel, "personality", "",
		"Output style: full, standard (default), minimal, or machine (scripting)")

	for _, cmd := range []*cobra.Command{rootCmd, refreshCmd} {
		cmd.Flags().BoolVar(&statusMode, "status", false, "Print only 1 (changed), 0 (unchanged) or -1 (unknown)")
		cmd.Flags().BoolVar(&cachedMode, "cached", false, "Use the saved data, do not retrieve")
		cmd.Flags().StringVar(&orderFilter, "order", "", "Only show the order with this reference")
		cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Save on first run without asking")
	}

	historyCmd.Flags().BoolVar(&patchMode, "patch", false, "Print the history as unified diff hunks")

	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(timelineCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(watchCmd)
}
