// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package history

import (
	"strings"

	"github.com/AleutianAI/orderwatch/services/orderwatch/diff"
)

// Labels maps stored change keys (dotted field paths) to display labels.
// Labels are message ids for the locale catalog.
type Labels map[string]string

// EntityLabel is shown for whole-order changes, which have an empty key.
const EntityLabel = "Order"

// DefaultLabels covers the fields the timeline and history views care
// about.
var DefaultLabels = Labels{
	"order.orderStatus": "Order Status",
	"order.vin":         "VIN",
	"order.mktOptions":  "Configuration",
	"order.modelCode":   "Model",

	"details.tasks.registration.orderDetails.reservationDate":        "Reservation",
	"details.tasks.registration.orderDetails.orderBookedDate":        "Order Booked",
	"details.tasks.registration.orderDetails.vin":                    "VIN",
	"details.tasks.registration.orderDetails.vehicleOdometer":        "Vehicle Odometer",
	"details.tasks.registration.orderDetails.vehicleRoutingLocation": "Routing Location",
	"details.tasks.registration.orderDetails.licensePlateNumber":     "License Plate",
	"details.tasks.registration.expectedRegDate":                     "Expected Registration Date",

	"details.tasks.scheduling.deliveryWindowDisplay":   "Delivery Window",
	"details.tasks.scheduling.deliveryAddressTitle":    "Delivery Center",
	"details.tasks.scheduling.deliveryAppointmentDate": "Delivery Appointment Date",
	"details.tasks.scheduling.apptDateTimeAddressStr":  "Delivery Appointment Date",

	"details.tasks.finalPayment.data.etaToDeliveryCenter": "ETA to Delivery Center",
	"details.tasks.finalPayment.data.amountDue":           "Amount Due",
}

// Label returns the display label for key. Unknown keys label themselves.
func (l Labels) Label(key string) string {
	if key == "" {
		return EntityLabel
	}
	if label, ok := l[key]; ok {
		return label
	}
	return key
}

// DefaultIgnoredPrefixes lists change-key prefixes that never count as a
// status change on their own.
var DefaultIgnoredPrefixes = []string{
	"details.tasks.financing.",
	"details.tasks.insurance.",
	"details.tasks.tradeIn.",
	"details.tasks.finalPayment.data.amountDue",
}

// StatusRelevant reports whether any change is outside the ignored
// prefixes.
func StatusRelevant(changes []diff.Change, ignored []string) bool {
	for _, c := range changes {
		if !hasAnyPrefix(c.Key, ignored) {
			return true
		}
	}
	return false
}

func hasAnyPrefix(key string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}
