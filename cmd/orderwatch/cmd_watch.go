// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/orderwatch/cmd/orderwatch/config"
)

func runWatch(cmd *cobra.Command, args []string) error {
	a := current
	ref := refArg(args)

	if err := os.MkdirAll(a.cfg.DataDir, 0o750); err != nil {
		return err
	}
	dirs := []string{a.cfg.DataDir}
	if a.cfg.LegacyDir != "" && a.cfg.LegacyDir != a.cfg.DataDir {
		dirs = append(dirs, a.cfg.LegacyDir)
	}

	w, err := newStoreWatcher(dirs,
		[]string{config.OrdersFileName, config.HistoryFileName},
		defaultDebounce, a.logger.Slog())
	if err != nil {
		return err
	}

	render := func() {
		if err := a.renderSaved(ref); err != nil {
			a.printer.Error(err.Error())
		}
	}
	render()
	a.printer.Muted(a.tr.Tf("Watching %s for changes", strings.Join(dirs, ", ")))

	return w.Run(cmd.Context(), func() {
		a.printer.Line("")
		render()
	})
}
