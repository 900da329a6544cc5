// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package timeline

import (
	"fmt"
	"io"
	"strings"

	"github.com/AleutianAI/orderwatch/services/orderwatch/diff"
	"github.com/AleutianAI/orderwatch/services/orderwatch/locale"
)

// Lines formats sorted entries for display, one line per entry:
//
//	- 2025-01-02: Order Booked
//	- 2025-03-04: new Delivery Window: 10 Mar - 20 Mar (14:30)
//
// A key already shown once is prefixed with the translated "new" marker.
func Lines(entries []Entry, tr locale.Translator) []string {
	if tr == nil {
		tr = locale.Identity{}
	}
	lines := make([]string, 0, len(entries))
	seen := make(map[string]bool)
	for _, e := range entries {
		norm := Normalize(e.Key)

		var msg strings.Builder
		if seen[norm] {
			msg.WriteString(tr.T(repeatedKeyMarker))
			msg.WriteByte(' ')
		}
		msg.WriteString(tr.T(e.Key))
		if truthy(e.Value) {
			msg.WriteString(": ")
			msg.WriteString(displayValue(e.Value))
		}

		date, clock := SplitTimestamp(e.Timestamp, tr)
		line := fmt.Sprintf("- %s: %s", date, msg.String())
		if clock != "" {
			line += fmt.Sprintf(" (%s)", clock)
		}
		lines = append(lines, line)
		seen[norm] = true
	}
	return lines
}

// Render writes a heading and the timeline lines. heading styles the
// heading text; nil writes it plain. Nothing is written for an empty
// timeline.
func Render(w io.Writer, entries []Entry, tr locale.Translator, heading func(string) string) error {
	if len(entries) == 0 {
		return nil
	}
	if tr == nil {
		tr = locale.Identity{}
	}
	title := tr.T(timelineTitleMarker) + ":"
	if heading != nil {
		title = heading(title)
	}
	if _, err := fmt.Fprintln(w, title); err != nil {
		return err
	}
	for _, line := range Lines(entries, tr) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func displayValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return diff.FormatValue(v)
}
