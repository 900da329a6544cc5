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

func runTimeline(cmd *cobra.Command, args []string) error {
	a := current
	if _, err := a.pipeline().Run(cmd.Context()); err != nil {
		return err
	}
	return a.renderSaved(refArg(args))
}

// renderSaved shows the saved orders with their timelines.
func (a *app) renderSaved(ref string) error {
	store, err := a.loadOrders()
	if err != nil {
		return err
	}
	if store.Len() == 0 {
		a.printer.Warning(a.tr.Tf("No cached orders found in %s", readPath(a.cfg.OrdersPaths())))
		return nil
	}
	hist, err := a.loadHistory()
	if err != nil {
		return err
	}
	return a.showOrders(store, hist, ref)
}

func refArg(args []string) string {
	if len(args) == 0 {
		return orderFilter
	}
	return args[0]
}
