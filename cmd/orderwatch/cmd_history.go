// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/orderwatch/services/orderwatch/history"
)

func runHistory(cmd *cobra.Command, args []string) error {
	a := current
	if _, err := a.pipeline().Run(cmd.Context()); err != nil {
		return err
	}
	hist, err := a.loadHistory()
	if err != nil {
		return err
	}

	refs := hist.References()
	if ref := refArg(args); ref != "" {
		if len(hist.Entries(ref)) == 0 {
			a.printer.Warning(a.tr.Tf("No order with reference %s found", ref))
			return nil
		}
		refs = []string{ref}
	}
	if len(refs) == 0 {
		a.printer.Muted(a.tr.T("No history recorded"))
		return nil
	}

	if patchMode {
		out, err := history.PrintPatch(hist, refs)
		if err != nil {
			return fmt.Errorf("render patch: %w", err)
		}
		_, err = a.printer.Out.Write(out)
		return err
	}

	a.printer.Title(a.tr.T("Order History"))
	for _, ref := range refs {
		a.printer.Line(a.printer.Heading(fmt.Sprintf("%s %s:", a.tr.T("Order"), ref)))
		if err := history.Render(a.printer.Out, hist.Entries(ref), history.DefaultLabels, a.tr.T); err != nil {
			return err
		}
	}
	return nil
}
