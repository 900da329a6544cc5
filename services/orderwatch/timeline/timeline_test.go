// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package timeline

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/orderwatch/pkg/orderedmap"
	"github.com/AleutianAI/orderwatch/services/orderwatch/diff"
	"github.com/AleutianAI/orderwatch/services/orderwatch/entity"
	"github.com/AleutianAI/orderwatch/services/orderwatch/history"
	"github.com/AleutianAI/orderwatch/services/orderwatch/locale"
)

const (
	odometerKey = "details.tasks.registration.orderDetails.vehicleOdometer"
	windowKey   = "details.tasks.scheduling.deliveryWindowDisplay"
)

func snapshot(t *testing.T, raw string) *entity.Snapshot {
	t.Helper()
	v, err := orderedmap.Parse([]byte(raw))
	require.NoError(t, err)
	m, ok := v.(*orderedmap.Map[any])
	require.True(t, ok)
	return m
}

func changed(key string, old, value any) diff.Change {
	return diff.Change{Operation: diff.OpChanged, Key: key, OldValue: old, Value: value}
}

func keys(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Key
	}
	return out
}

// =============================================================================
// FromHistory
// =============================================================================

func TestFromHistory_CarBuiltOnce(t *testing.T) {
	b := NewBuilder(nil)
	entries := []history.Entry{
		{Timestamp: "2025-03-01", Changes: []diff.Change{changed(odometerKey, "N/A", "30")}},
		{Timestamp: "2025-03-05", Changes: []diff.Change{changed(odometerKey, "30", "1024")}},
	}

	got := b.FromHistory(entries, nil)

	require.Len(t, got, 1)
	assert.Equal(t, Entry{Timestamp: "2025-03-01", Key: KeyCarBuilt, Value: ""}, got[0])
}

func TestFromHistory_OdometerWithoutValueWaits(t *testing.T) {
	b := NewBuilder(nil)
	entries := []history.Entry{
		{Timestamp: "2025-03-01", Changes: []diff.Change{changed(odometerKey, "", "N/A")}},
		{Timestamp: "2025-03-09", Changes: []diff.Change{changed(odometerKey, "N/A", "12")}},
	}

	got := b.FromHistory(entries, nil)

	require.Len(t, got, 1)
	assert.Equal(t, "2025-03-09", got[0].Timestamp)
	assert.Equal(t, KeyCarBuilt, got[0].Key)
}

func TestFromHistory_FirstDeliveryWindowKeepsOldValue(t *testing.T) {
	b := NewBuilder(nil)
	entries := []history.Entry{
		{Timestamp: "2025-02-01", Changes: []diff.Change{changed(windowKey, "Mar 1 - Mar 10", "Mar 5 - Mar 15")}},
		{Timestamp: "2025-02-20", Changes: []diff.Change{changed(windowKey, "Mar 5 - Mar 15", "Mar 8 - Mar 18")}},
	}

	got := b.FromHistory(entries, "2025-01-10")

	assert.Equal(t, []Entry{
		{Timestamp: "2025-01-10", Key: KeyDeliveryWindow, Value: "Mar 1 - Mar 10"},
		{Timestamp: "2025-02-01", Key: KeyDeliveryWindow, Value: "Mar 5 - Mar 15"},
		{Timestamp: "2025-02-20", Key: KeyDeliveryWindow, Value: "Mar 8 - Mar 18"},
	}, got)
}

func TestFromHistory_DeliveryWindowWithoutMeaningfulOldValue(t *testing.T) {
	b := NewBuilder(nil)
	entries := []history.Entry{
		{Timestamp: "2025-02-01", Changes: []diff.Change{
			{Operation: diff.OpAdded, Key: windowKey, Value: "Mar 5 - Mar 15"},
		}},
		{Timestamp: "2025-02-20", Changes: []diff.Change{changed(windowKey, "N/A", "Mar 8 - Mar 18")}},
	}

	got := b.FromHistory(entries, "2025-01-10")

	assert.Equal(t, []string{KeyDeliveryWindow, KeyDeliveryWindow}, keys(got))
	assert.Equal(t, "2025-02-01", got[0].Timestamp)
}

func TestFromHistory_RemovedMarkerAndWhitelist(t *testing.T) {
	de := locale.MustLoadEmbedded().Catalog("de-DE")
	b := NewBuilder(de)
	entries := []history.Entry{
		{Timestamp: "2025-02-01", Changes: []diff.Change{
			changed("order.vin", "5YJ3E1EA", ""),
			changed("details.tasks.finalPayment.data.amountDue", "100", "0"),
			changed("order.orderStatus", "BOOKED", "DELIVERED"),
		}},
	}

	got := b.FromHistory(entries, nil)

	assert.Equal(t, []Entry{
		{Timestamp: "2025-02-01", Key: KeyVIN, Value: "entfernt"},
		{Timestamp: "2025-02-01", Key: KeyOrderStatus, Value: "DELIVERED"},
	}, got)
}

// =============================================================================
// Build
// =============================================================================

const liveOrder = `{
  "order": {"referenceNumber": "RN1"},
  "details": {"tasks": {
    "registration": {
      "expectedRegDate": "2025-04-01",
      "orderDetails": {
        "reservationDate": "2025-01-10T08:00:00Z",
        "orderBookedDate": "2025-01-12T09:00:00+01:00"
      }
    },
    "scheduling": {
      "deliveryWindowDisplay": "Apr 1 - Apr 10",
      "deliveryAppointmentDate": "2025-04-05T10:30:00Z"
    },
    "finalPayment": {"data": {"etaToDeliveryCenter": "2025-03-28T12:00:00Z"}}
  }}
}`

func TestBuild_LiveFactsOnly(t *testing.T) {
	got := NewBuilder(nil).Build("RN1", snapshot(t, liveOrder), nil)

	assert.Equal(t, []Entry{
		{Timestamp: "2025-01-10", Key: KeyReservation, Value: ""},
		{Timestamp: "2025-01-12", Key: KeyOrderBooked, Value: ""},
		{Timestamp: "2025-01-12", Key: KeyDeliveryWindow, Value: "Apr 1 - Apr 10"},
		{Timestamp: "2025-03-28", Key: KeyETADelivery, Value: ""},
		{Timestamp: "2025-04-01", Key: KeyExpectedRegDate, Value: ""},
		{Timestamp: "2025-04-05 10:30", Key: KeyAppointment, Value: ""},
	}, got)
}

func TestBuild_HistoryTakesPrecedenceOverLiveFacts(t *testing.T) {
	hist := history.NewStore()
	hist.Append("RN1", history.Entry{
		Timestamp: "2025-02-01",
		Changes:   []diff.Change{changed(windowKey, "Mar 1 - Mar 10", "Apr 1 - Apr 10")},
	})
	hist.Append("RN2", history.Entry{
		Timestamp: "2025-02-02",
		Changes:   []diff.Change{changed("order.orderStatus", "A", "B")},
	})

	got := NewBuilder(nil).Build("RN1", snapshot(t, liveOrder), hist)

	windows := make([]Entry, 0)
	for _, e := range got {
		if e.Key == KeyDeliveryWindow {
			windows = append(windows, e)
		}
		assert.NotEqual(t, KeyOrderStatus, e.Key)
	}
	assert.Equal(t, []Entry{
		{Timestamp: "2025-01-10", Key: KeyDeliveryWindow, Value: "Mar 1 - Mar 10"},
		{Timestamp: "2025-02-01", Key: KeyDeliveryWindow, Value: "Apr 1 - Apr 10"},
	}, windows)
	assert.Equal(t, KeyReservation, got[0].Key)
}

func TestBuild_RecordedDatesReplaceLiveDates(t *testing.T) {
	hist := history.NewStore()
	hist.Append("RN1", history.Entry{
		Timestamp: "2025-02-01",
		Changes: []diff.Change{
			changed("details.tasks.registration.orderDetails.reservationDate", "2025-01-05", "2025-01-10T08:00:00Z"),
			changed("details.tasks.registration.orderDetails.orderBookedDate", "2025-01-06", "2025-01-12T09:00:00+01:00"),
		},
	})

	got := NewBuilder(nil).Build("RN1", snapshot(t, liveOrder), hist)

	var dates []Entry
	for _, e := range got {
		if e.Key == KeyReservation || e.Key == KeyOrderBooked {
			dates = append(dates, e)
		}
	}
	assert.Equal(t, []Entry{
		{Timestamp: "2025-02-01", Key: KeyReservation, Value: "2025-01-10T08:00:00Z"},
		{Timestamp: "2025-02-01", Key: KeyOrderBooked, Value: "2025-01-12T09:00:00+01:00"},
	}, dates)
}

func TestBuild_EmptySnapshot(t *testing.T) {
	got := NewBuilder(nil).Build("RN1", nil, nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestBuild_IsSorted(t *testing.T) {
	hist := history.NewStore()
	hist.Append("RN1", history.Entry{Timestamp: "2025-05-01", Changes: []diff.Change{changed("order.orderStatus", "A", "B")}})
	hist.Append("RN1", history.Entry{Timestamp: "2024-12-01", Changes: []diff.Change{changed("order.orderStatus", "B", "C")}})

	got := NewBuilder(nil).Build("RN1", snapshot(t, liveOrder), hist)

	last := ""
	for _, e := range got {
		ts, ok := ParseTimestamp(e.Timestamp.(string))
		require.True(t, ok)
		cur := ts.Format("2006-01-02 15:04")
		assert.GreaterOrEqual(t, cur, last)
		last = cur
	}
}

// =============================================================================
// Sort
// =============================================================================

func TestSort_UnparsableLastAndStable(t *testing.T) {
	entries := []Entry{
		{Timestamp: "soon", Key: "a"},
		{Timestamp: "2025-02-01", Key: "b"},
		{Timestamp: nil, Key: "c"},
		{Timestamp: "2025-01-01T10:00:00Z", Key: "d"},
		{Timestamp: "2025-02-01", Key: "e"},
	}

	Sort(entries)

	assert.Equal(t, []string{"d", "b", "e", "a", "c"}, keys(entries))
}

// =============================================================================
// Timestamps
// =============================================================================

func TestSplitTimestamp(t *testing.T) {
	tests := []struct {
		name      string
		in        any
		wantDate  string
		wantClock string
	}{
		{"date only", "2025-01-02", "2025-01-02", ""},
		{"midnight", "2025-01-02T00:00:00", "2025-01-02", ""},
		{"utc", "2025-01-02T10:30:00Z", "2025-01-02", "10:30"},
		{"offset converted", "2025-01-02T23:30:00-02:00", "2025-01-03", "01:30"},
		{"space separator", "2025-01-02 08:15", "2025-01-02", "08:15"},
		{"free text", "  next week ", "next week", ""},
		{"empty", "", "Unknown", ""},
		{"nil", nil, "Unknown", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			date, clock := SplitTimestamp(tt.in, locale.Identity{})
			assert.Equal(t, tt.wantDate, date)
			assert.Equal(t, tt.wantClock, clock)
		})
	}
}

func TestDateOf(t *testing.T) {
	assert.Equal(t, "2025-01-01", DateOf("2025-01-01T23:30:00-05:00"))
	assert.Equal(t, "2025-01-02", DateOf("2025-01-02T10:00:00.123Z"))
	assert.Equal(t, "N/A", DateOf("N/A"))
	assert.Equal(t, "", DateOf(""))
	assert.Equal(t, "garbage", DateOf("garbage"))
	assert.Equal(t, 42.0, DateOf(42.0))
	assert.Nil(t, DateOf(nil))
}

func TestAppointmentDisplay(t *testing.T) {
	tests := []struct {
		name   string
		tasks  string
		want   string
		wantOK bool
	}{
		{
			name:   "registration appointment utc",
			tasks:  `{"deliveryDetails":{"regData":{"deliveryAppointment":{"appointmentDate":"x","appointmentDateUtc":"2025-04-05T10:30:00Z"}}},"scheduling":{"deliveryAppointmentDate":"2025-01-01T00:00:00Z"}}`,
			want:   "2025-04-05 10:30",
			wantOK: true,
		},
		{
			name:   "scheduling free text condensed",
			tasks:  `{"scheduling":{"deliveryAppointmentDate":"  Apr  5,   10:30 "}}`,
			want:   "Apr 5, 10:30",
			wantOK: true,
		},
		{
			name:   "address string first line",
			tasks:  `{"scheduling":{"apptDateTimeAddressStr":"2025-04-05T10:30:00Z\nTesla Center"}}`,
			want:   "2025-04-05 10:30",
			wantOK: true,
		},
		{
			name:   "address string unparsable",
			tasks:  `{"scheduling":{"apptDateTimeAddressStr":" Saturday morning \nTesla Center"}}`,
			want:   "Saturday morning",
			wantOK: true,
		},
		{
			name:  "nothing",
			tasks: `{"scheduling":{}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := AppointmentDisplay(snapshot(t, tt.tasks))
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "eta to delivery center", Normalize("  ETA To\tDelivery   Center "))
}

// =============================================================================
// Rendering
// =============================================================================

func TestLines_RepeatedKeysMarkedNew(t *testing.T) {
	entries := []Entry{
		{Timestamp: "2025-01-10", Key: KeyReservation, Value: ""},
		{Timestamp: "2025-02-01T14:30:00Z", Key: KeyDeliveryWindow, Value: "Mar"},
		{Timestamp: "2025-02-20", Key: "delivery  window", Value: "Apr"},
		{Timestamp: "", Key: KeyVIN, Value: nil},
	}

	got := Lines(entries, nil)

	assert.Equal(t, []string{
		"- 2025-01-10: Reservation",
		"- 2025-02-01: Delivery Window: Mar (14:30)",
		"- 2025-02-20: new delivery  window: Apr",
		"- Unknown: VIN",
	}, got)
}

func TestRender_Translated(t *testing.T) {
	de := locale.MustLoadEmbedded().Catalog("de-DE")
	var buf bytes.Buffer

	err := Render(&buf, []Entry{{Timestamp: "2025-01-10", Key: KeyOrderBooked, Value: ""}}, de, strings.ToUpper)

	require.NoError(t, err)
	assert.Equal(t, "BESTELLVERLAUF:\n- 2025-01-10: Bestellung gebucht\n", buf.String())
}

func TestRender_EmptyWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, nil, nil, nil))
	assert.Empty(t, buf.String())
}
