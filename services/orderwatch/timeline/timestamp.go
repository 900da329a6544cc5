// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package timeline

import (
	"strings"
	"time"

	"github.com/go-openapi/strfmt"

	"github.com/AleutianAI/orderwatch/pkg/orderedmap"
	"github.com/AleutianAI/orderwatch/services/orderwatch/entity"
	"github.com/AleutianAI/orderwatch/services/orderwatch/locale"
)

const (
	dateLayout     = "2006-01-02"
	clockLayout    = "15:04"
	dateTimeLayout = "2006-01-02 15:04"
)

// Layouts tried after strfmt's RFC 3339 family.
var fallbackLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02T15",
	dateLayout,
}

// parse reads an ISO 8601 timestamp, keeping its own offset. A space date
// separator and a "Z" suffix are accepted. Values without an offset are
// read as UTC.
func parse(value string) (time.Time, bool) {
	s := strings.TrimSpace(value)
	if s == "" {
		return time.Time{}, false
	}
	if strings.HasSuffix(s, "Z") || strings.HasSuffix(s, "z") {
		s = s[:len(s)-1] + "+00:00"
	}
	if !strings.Contains(s, "T") && len(s) >= 16 && s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}

	if dt, err := strfmt.ParseDateTime(s); err == nil {
		return time.Time(dt), true
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseTimestamp parses value and converts it to UTC.
func ParseTimestamp(value string) (time.Time, bool) {
	t, ok := parse(value)
	if !ok {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// DateOf truncates a timestamp to its calendar date in its own offset.
// Non-strings, "", "N/A" and unparsable strings are returned unchanged.
func DateOf(v any) any {
	s, ok := v.(string)
	if !ok || s == "" || strings.EqualFold(s, "N/A") {
		return v
	}
	t, ok := parse(s)
	if !ok {
		return v
	}
	return t.Format(dateLayout)
}

// FormatWithTime renders a parsable timestamp as "2006-01-02 15:04" UTC.
func FormatWithTime(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	t, ok := ParseTimestamp(s)
	if !ok {
		return "", false
	}
	return t.Format(dateTimeLayout), true
}

// SplitTimestamp returns the date and clock parts shown for a timeline
// entry. The clock is empty unless the raw value carries time information
// and it is not midnight. Unparsable values are shown trimmed; empty ones
// as the translated "Unknown".
func SplitTimestamp(v any, tr locale.Translator) (date, clock string) {
	s, _ := v.(string)
	if t, ok := ParseTimestamp(s); ok {
		date = t.Format(dateLayout)
		if strings.ContainsAny(s, ":T") {
			if c := t.Format(clockLayout); c != "00:00" {
				clock = c
			}
		}
		return date, clock
	}
	if trimmed := strings.TrimSpace(s); trimmed != "" {
		return trimmed, ""
	}
	return tr.T(unknownMarker), ""
}

var appointmentSources = [][]string{
	{"deliveryDetails", "regData", "deliveryAppointment"},
	{"deliveryDetails", "deliveryAppointment"},
	{"finalPayment", "data", "deliveryAppointment"},
	{"scheduling", "deliveryAppointment"},
}

// AppointmentDisplay derives the delivery appointment shown in the
// timeline from a details.tasks object. ok is false when nothing usable is
// present.
func AppointmentDisplay(tasks *entity.Snapshot) (string, bool) {
	for _, path := range appointmentSources {
		src := orderedmap.DigMap(tasks, path...)
		if src == nil {
			continue
		}
		for _, key := range []string{"appointmentDate", "appointmentDateUtc"} {
			v, _ := src.Get(key)
			if formatted, ok := FormatWithTime(v); ok {
				return formatted, true
			}
		}
	}

	scheduling := orderedmap.DigMap(tasks, "scheduling")
	if scheduling == nil {
		return "", false
	}
	if raw, ok := scheduling.Get("deliveryAppointmentDate"); ok {
		if s, isString := raw.(string); isString {
			if formatted, ok := FormatWithTime(s); ok {
				return formatted, true
			}
			condensed := strings.Join(strings.Fields(s), " ")
			return condensed, condensed != ""
		}
	}
	if raw, ok := scheduling.Get("apptDateTimeAddressStr"); ok {
		if s, isString := raw.(string); isString {
			line, _, _ := strings.Cut(s, "\n")
			line = strings.TrimSpace(line)
			if formatted, ok := FormatWithTime(line); ok {
				return formatted, true
			}
			return line, line != ""
		}
	}
	return "", false
}
