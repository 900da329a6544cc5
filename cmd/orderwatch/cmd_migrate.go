// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"

	"github.com/AleutianAI/orderwatch/services/orderwatch/migrate"
)

func runMigrate(cmd *cobra.Command, _ []string) error {
	a := current

	var results []migrate.Result
	err := a.printer.WithSpinner(a.tr.T("Upgrading stored files"), func() error {
		var err error
		results, err = a.pipeline().Run(cmd.Context())
		return err
	})
	for _, r := range results {
		if r.Applied {
			a.printer.Success(a.tr.Tf("%s: applied to %s", r.Step, r.Path))
			continue
		}
		a.printer.Info(a.tr.Tf("%s: skipped (%s)", r.Step, a.tr.T(r.Reason)))
	}
	return err
}
