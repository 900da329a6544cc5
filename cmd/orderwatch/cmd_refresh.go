// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/orderwatch/pkg/orderedmap"
	"github.com/AleutianAI/orderwatch/pkg/ux"
	"github.com/AleutianAI/orderwatch/services/orderwatch/diff"
	"github.com/AleutianAI/orderwatch/services/orderwatch/entity"
	"github.com/AleutianAI/orderwatch/services/orderwatch/history"
	"github.com/AleutianAI/orderwatch/services/orderwatch/tracker"
)

func runRefresh(cmd *cobra.Command, _ []string) error {
	a := current
	ctx := cmd.Context()

	spin := a.printer.NewSpinner(a.tr.T("Retrieving orders"))
	var confirm tracker.ConfirmFunc
	if !statusMode {
		confirm = func(ctx context.Context, store *entity.Store) (bool, error) {
			spin.Stop()
			return a.confirmFirstSave(ctx, store)
		}
	}

	if cachedMode && !statusMode {
		a.printer.Warning(a.tr.T("Running in cached mode, nothing is retrieved"))
	}
	if !cachedMode && !statusMode {
		spin.Start()
	}
	res, err := a.tracker(confirm).Refresh(ctx, tracker.Options{
		Cached:     cachedMode,
		StatusOnly: statusMode,
	})
	spin.Stop()

	if statusMode {
		if err != nil {
			a.printer.Line(strconv.Itoa(tracker.StatusUnknown))
			return err
		}
		a.printer.Line(strconv.Itoa(res.Status))
		return nil
	}
	if err != nil {
		return err
	}

	switch {
	case cachedMode && res.Store.Len() == 0:
		a.printer.Warning(a.tr.Tf("No cached orders found in %s", readPath(a.cfg.OrdersPaths())))
		return nil
	case res.KeptCached && res.Store.Len() == 0:
		a.printer.Warning(a.tr.T("No orders retrieved, nothing to display yet"))
		return nil
	case res.KeptCached:
		a.printer.Warning(a.tr.T("No orders retrieved, keeping cached data"))
	case res.FirstRun:
		if res.Saved {
			a.printer.Success(a.tr.T("Orders saved"))
		}
	case len(res.Changes) > 0:
		a.showChanges(res.Grouped)
	case !cachedMode:
		a.printer.Muted(a.tr.T("No changes detected"))
	}

	hist, err := a.loadHistory()
	if err != nil {
		return err
	}
	return a.showOrders(res.Store, hist, orderFilter)
}

// confirmFirstSave asks whether the first retrieved store should be kept.
// --yes answers for the user; without a terminal nothing is saved.
func (a *app) confirmFirstSave(ctx context.Context, store *entity.Store) (bool, error) {
	if assumeYes {
		return true, nil
	}
	if !ux.IsInteractive() {
		a.logger.Info("not a terminal, first run not saved; pass --yes to save",
			"orders", store.Len())
		return false, nil
	}

	save := true
	err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(a.tr.T("Save the current orders for change tracking?")).
			Value(&save),
	)).RunWithContext(ctx)
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return save, nil
}

// showChanges prints the differences of this run, grouped by reference.
func (a *app) showChanges(grouped *orderedmap.Map[[]diff.Change]) {
	a.printer.Title(a.tr.T("Changes detected"))
	grouped.Range(func(ref string, changes []diff.Change) bool {
		a.printer.Line(a.printer.Heading(fmt.Sprintf("%s %s:", a.tr.T("Order"), ref)))
		for _, c := range changes {
			a.printer.Change(string(c.Operation), a.describeChange(c))
		}
		return true
	})
	a.printer.Line("")
}

func (a *app) describeChange(c diff.Change) string {
	label := a.tr.T(history.DefaultLabels.Label(c.Key))
	switch c.Operation {
	case diff.OpAdded:
		return fmt.Sprintf("%s: %s", label, diff.FormatValue(c.Value))
	case diff.OpRemoved:
		return fmt.Sprintf("%s: %s", label, diff.FormatValue(c.OldValue))
	default:
		return fmt.Sprintf("%s: %s -> %s", label, diff.FormatValue(c.OldValue), diff.FormatValue(c.Value))
	}
}
