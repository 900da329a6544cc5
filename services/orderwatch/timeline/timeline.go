// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package timeline merges an order's live snapshot with its recorded
// history into a chronological list of display facts.
package timeline

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/AleutianAI/orderwatch/pkg/orderedmap"
	"github.com/AleutianAI/orderwatch/services/orderwatch/entity"
	"github.com/AleutianAI/orderwatch/services/orderwatch/history"
	"github.com/AleutianAI/orderwatch/services/orderwatch/locale"
)

// Display keys. They double as message ids.
const (
	KeyReservation      = "Reservation"
	KeyOrderBooked      = "Order Booked"
	KeyDeliveryWindow   = "Delivery Window"
	KeyExpectedRegDate  = "Expected Registration Date"
	KeyETADelivery      = "ETA to Delivery Center"
	KeyAppointment      = "Delivery Appointment Date"
	KeyVIN              = "VIN"
	KeyOrderStatus      = "Order Status"
	KeyCarBuilt         = "CAR BUILT"
	KeyVehicleOdometer  = "Vehicle Odometer"
	removedMarker       = "removed"
	unknownMarker       = "Unknown"
	repeatedKeyMarker   = "new"
	timelineTitleMarker = "Order Timeline"
)

var whitelist = func() map[string]bool {
	keys := []string{
		KeyReservation, KeyOrderBooked, KeyDeliveryWindow, KeyExpectedRegDate,
		KeyETADelivery, KeyAppointment, KeyVIN, KeyOrderStatus, KeyCarBuilt,
		KeyVehicleOdometer,
	}
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[Normalize(k)] = true
	}
	return m
}()

// Entry is one timeline fact. Timestamp is usually an ISO date or
// datetime but may be free text.
type Entry struct {
	Timestamp any
	Key       string
	Value     any
}

// Builder builds timelines. Labels maps stored change keys to display
// keys; Translator localizes the "removed" marker.
type Builder struct {
	Labels     history.Labels
	Translator locale.Translator
}

// NewBuilder returns a Builder with the default labels. A nil translator
// leaves text untranslated.
func NewBuilder(tr locale.Translator) *Builder {
	if tr == nil {
		tr = locale.Identity{}
	}
	return &Builder{Labels: history.DefaultLabels, Translator: tr}
}

// Build returns the timeline for ref.
//
// # Description
//
// Facts are derived from the live snapshot (reservation, order booked,
// delivery window, expected registration, ETA to delivery center,
// delivery appointment) and from ref's recorded history. A live fact is
// only emitted when the history timeline carries no entry with the same
// normalized key.
//
// # Inputs
//
//   - ref: Reference number.
//   - snapshot: Live snapshot. May be nil.
//   - hist: Recorded history. May be nil.
//
// # Outputs
//
//   - []Entry: Sorted by parsed timestamp; unparsable timestamps last,
//     ties in insertion order. Never nil.
func (b *Builder) Build(ref string, snapshot *entity.Snapshot, hist *history.Store) []Entry {
	var entries []history.Entry
	if hist != nil {
		entries = hist.Entries(ref)
	}

	orderInfo := entity.OrderInfo(snapshot)
	registration := entity.Registration(snapshot)
	scheduling := entity.Scheduling(snapshot)
	finalPayment := entity.FinalPayment(snapshot)

	reservation, _ := orderInfo.Get("reservationDate")
	booked, _ := orderInfo.Get("orderBookedDate")

	fromHistory := b.FromHistory(entries, DateOf(reservation))

	out := make([]Entry, 0)
	if truthy(reservation) && !containsKey(fromHistory, KeyReservation) {
		out = append(out, Entry{Timestamp: DateOf(reservation), Key: KeyReservation, Value: ""})
	}
	if truthy(booked) && !containsKey(fromHistory, KeyOrderBooked) {
		out = append(out, Entry{Timestamp: DateOf(booked), Key: KeyOrderBooked, Value: ""})
	}

	if window, _ := scheduling.Get("deliveryWindowDisplay"); truthy(window) && !containsKey(fromHistory, KeyDeliveryWindow) {
		out = append(out, Entry{Timestamp: DateOf(booked), Key: KeyDeliveryWindow, Value: window})
	}
	if reg, _ := registration.Get("expectedRegDate"); truthy(reg) && !containsKey(fromHistory, KeyExpectedRegDate) {
		out = append(out, Entry{Timestamp: DateOf(reg), Key: KeyExpectedRegDate, Value: ""})
	}
	if eta, _ := finalPayment.Get("etaToDeliveryCenter"); truthy(eta) && !containsKey(fromHistory, KeyETADelivery) {
		out = append(out, Entry{Timestamp: DateOf(eta), Key: KeyETADelivery, Value: ""})
	}
	if appt, ok := AppointmentDisplay(entity.Tasks(snapshot)); ok && !containsKey(fromHistory, KeyAppointment) {
		out = append(out, Entry{Timestamp: appt, Key: KeyAppointment, Value: ""})
	}

	out = append(out, fromHistory...)
	Sort(out)
	return out
}

// FromHistory derives timeline entries from recorded history.
//
// # Description
//
// Entries are walked in stored order:
//
//   - The first odometer change to a real value becomes a CAR BUILT
//     entry. Odometer changes are never shown themselves.
//   - The first delivery-window change whose old value is meaningful also
//     emits that old value stamped at startDate.
//   - A value cleared from a non-empty old value shows as "removed".
//   - Keys outside the timeline whitelist are dropped.
//
// The result is sorted.
func (b *Builder) FromHistory(entries []history.Entry, startDate any) []Entry {
	tr := b.translator()
	out := make([]Entry, 0)
	carBuilt := false
	firstWindow := true

	for _, ev := range history.Events(entries, b.Labels) {
		key := Normalize(ev.Key)

		if key == Normalize(KeyVehicleOdometer) {
			if carBuilt || isBlankOrNA(ev.Value) {
				continue
			}
			out = append(out, Entry{Timestamp: ev.Timestamp, Key: KeyCarBuilt, Value: ""})
			carBuilt = true
			continue
		}

		if key == Normalize(KeyDeliveryWindow) && firstWindow && meaningful(ev.OldValue) {
			out = append(out, Entry{Timestamp: startDate, Key: KeyDeliveryWindow, Value: ev.OldValue})
			firstWindow = false
		}

		value := ev.Value
		if s, ok := value.(string); ok && s == "" && ev.OldValue != "" {
			value = tr.T(removedMarker)
		}

		if !whitelist[key] {
			continue
		}
		out = append(out, Entry{Timestamp: ev.Timestamp, Key: ev.Key, Value: value})
	}

	Sort(out)
	return out
}

func (b *Builder) translator() locale.Translator {
	if b.Translator == nil {
		return locale.Identity{}
	}
	return b.Translator
}

// Sort orders entries by parsed timestamp, stably. Entries whose
// timestamp does not parse go last in their original order.
func Sort(entries []Entry) {
	keys := make([]time.Time, len(entries))
	parsed := make([]bool, len(entries))
	for i, e := range entries {
		s, _ := e.Timestamp.(string)
		keys[i], parsed[i] = ParseTimestamp(s)
	}

	idx := make([]int, len(entries))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ia, ib := idx[a], idx[b]
		switch {
		case parsed[ia] && parsed[ib]:
			return keys[ia].Before(keys[ib])
		default:
			return parsed[ia] && !parsed[ib]
		}
	})

	sorted := make([]Entry, len(entries))
	for i, j := range idx {
		sorted[i] = entries[j]
	}
	copy(entries, sorted)
}

// Normalize trims, collapses whitespace and lowercases a key.
func Normalize(key string) string {
	return strings.ToLower(strings.Join(strings.Fields(key), " "))
}

func containsKey(entries []Entry, key string) bool {
	want := Normalize(key)
	for _, e := range entries {
		if Normalize(e.Key) == want {
			return true
		}
	}
	return false
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case bool:
		return val
	case float64:
		return val != 0
	case json.Number:
		f, err := val.Float64()
		return err != nil || f != 0
	case *orderedmap.Map[any]:
		return val.Len() > 0
	case []any:
		return len(val) > 0
	}
	return true
}

func isBlankOrNA(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && (s == "" || s == "N/A")
}

// meaningful reports whether a previous delivery window is worth showing.
func meaningful(v any) bool {
	if v == nil {
		return false
	}
	s, ok := v.(string)
	if !ok {
		return true
	}
	return s != "" && s != "None" && s != "N/A"
}
