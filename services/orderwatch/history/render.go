// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package history

import (
	"fmt"
	"io"

	"github.com/AleutianAI/orderwatch/services/orderwatch/diff"
)

// Event is one change flattened out of an Entry, keyed by display label.
type Event struct {
	Timestamp string
	Key       string
	Value     any
	OldValue  any
}

// Events flattens entries into label-keyed events in stored order.
func Events(entries []Entry, labels Labels) []Event {
	events := make([]Event, 0)
	for _, e := range entries {
		for _, c := range e.Changes {
			events = append(events, Event{
				Timestamp: e.Timestamp,
				Key:       labels.Label(c.Key),
				Value:     c.Value,
				OldValue:  c.OldValue,
			})
		}
	}
	return events
}

// Translate maps a message id to display text.
type Translate func(string) string

// Render writes entries as a plain change log:
//
//	- 2025-01-02
//	  + Label: value
//	  - Label: old
//	  ~ Label: old -> new
func Render(w io.Writer, entries []Entry, labels Labels, t Translate) error {
	if t == nil {
		t = func(s string) string { return s }
	}
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, "- %s\n", e.Timestamp); err != nil {
			return err
		}
		for _, c := range e.Changes {
			label := t(labels.Label(c.Key))
			var line string
			switch c.Operation {
			case diff.OpAdded:
				line = fmt.Sprintf("  + %s: %s", label, diff.FormatValue(c.Value))
			case diff.OpRemoved:
				line = fmt.Sprintf("  - %s: %s", label, diff.FormatValue(c.OldValue))
			default:
				line = fmt.Sprintf("  ~ %s: %s -> %s", label, diff.FormatValue(c.OldValue), diff.FormatValue(c.Value))
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return nil
}
