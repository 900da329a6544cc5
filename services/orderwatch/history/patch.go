// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package history

import (
	"bytes"
	"fmt"

	godiff "github.com/sourcegraph/go-diff/diff"

	"github.com/AleutianAI/orderwatch/services/orderwatch/diff"
)

// Patch renders one order's history as a unified diff.
//
// # Description
//
// Each Entry becomes one hunk whose section header is the entry's
// timestamp. Removed values are "-" lines, added values are "+" lines and
// a changed value contributes one of each. Line numbers count the
// key/value lines seen so far on each side, so the patch is readable by
// standard diff tooling even though it does not describe a real file.
//
// # Inputs
//
//   - ref: Reference number, used as the file name on both sides.
//   - entries: The order's entries, oldest first.
//
// # Outputs
//
//   - *godiff.FileDiff: Never nil. Has no hunks when entries is empty.
func Patch(ref string, entries []Entry) *godiff.FileDiff {
	fd := &godiff.FileDiff{
		OrigName: "a/" + ref,
		NewName:  "b/" + ref,
	}

	var origLine, newLine int32 = 1, 1
	for _, e := range entries {
		var body bytes.Buffer
		var origCount, newCount int32
		for _, c := range e.Changes {
			key := c.Key
			if key == "" {
				key = EntityLabel
			}
			switch c.Operation {
			case diff.OpAdded:
				fmt.Fprintf(&body, "+%s: %s\n", key, diff.FormatValue(c.Value))
				newCount++
			case diff.OpRemoved:
				fmt.Fprintf(&body, "-%s: %s\n", key, diff.FormatValue(c.OldValue))
				origCount++
			default:
				fmt.Fprintf(&body, "-%s: %s\n", key, diff.FormatValue(c.OldValue))
				fmt.Fprintf(&body, "+%s: %s\n", key, diff.FormatValue(c.Value))
				origCount++
				newCount++
			}
		}
		if body.Len() == 0 {
			continue
		}
		fd.Hunks = append(fd.Hunks, &godiff.Hunk{
			OrigStartLine: origLine,
			OrigLines:     origCount,
			NewStartLine:  newLine,
			NewLines:      newCount,
			Section:       e.Timestamp,
			Body:          body.Bytes(),
		})
		origLine += origCount
		newLine += newCount
	}
	return fd
}

// PrintPatch renders the history of every reference in refs as one
// multi-file unified diff.
func PrintPatch(store *Store, refs []string) ([]byte, error) {
	fds := make([]*godiff.FileDiff, 0, len(refs))
	for _, ref := range refs {
		fd := Patch(ref, store.Entries(ref))
		if len(fd.Hunks) == 0 {
			continue
		}
		fds = append(fds, fd)
	}
	if len(fds) == 0 {
		return nil, nil
	}
	return godiff.PrintMultiFileDiff(fds)
}
