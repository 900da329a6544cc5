// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/orderwatch/pkg/orderedmap"
	"github.com/AleutianAI/orderwatch/pkg/ux"
	"github.com/AleutianAI/orderwatch/services/orderwatch/diff"
	"github.com/AleutianAI/orderwatch/services/orderwatch/storage"
)

func runDiff(_ *cobra.Command, args []string) error {
	a := current
	old, err := readSnapshot(args[0])
	if err != nil {
		return err
	}
	updated, err := readSnapshot(args[1])
	if err != nil {
		return err
	}

	changes := diff.Compare(old, updated, "")
	if a.printer.Level == ux.PersonalityMachine {
		enc := json.NewEncoder(a.printer.Out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(changes)
	}
	if len(changes) == 0 {
		a.printer.Muted(a.tr.T("No changes detected"))
		return nil
	}
	for _, c := range changes {
		a.printer.Change(string(c.Operation), a.describeChange(c))
	}
	return nil
}

// readSnapshot loads one JSON object in document order.
func readSnapshot(path string) (*orderedmap.Map[any], error) {
	data, err := storage.ReadJSON(path)
	if err != nil {
		return nil, err
	}
	doc, err := orderedmap.Parse(data)
	if err != nil {
		return nil, &storage.LoadError{Path: path, Kind: storage.ParseError, Err: err}
	}
	snap, ok := doc.(*orderedmap.Map[any])
	if !ok {
		return nil, fmt.Errorf("%s: expected a JSON object", path)
	}
	return snap, nil
}
