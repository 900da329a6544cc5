// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package entity

import "github.com/AleutianAI/orderwatch/pkg/orderedmap"

// Tasks returns details.tasks, or nil.
func Tasks(s *Snapshot) *Snapshot {
	return orderedmap.DigMap(s, "details", "tasks")
}

// OrderInfo returns details.tasks.registration.orderDetails, or nil.
func OrderInfo(s *Snapshot) *Snapshot {
	return orderedmap.DigMap(s, "details", "tasks", "registration", "orderDetails")
}

// Scheduling returns details.tasks.scheduling, or nil.
func Scheduling(s *Snapshot) *Snapshot {
	return orderedmap.DigMap(s, "details", "tasks", "scheduling")
}

// Registration returns details.tasks.registration, or nil.
func Registration(s *Snapshot) *Snapshot {
	return orderedmap.DigMap(s, "details", "tasks", "registration")
}

// FinalPayment returns details.tasks.finalPayment.data, or nil.
func FinalPayment(s *Snapshot) *Snapshot {
	return orderedmap.DigMap(s, "details", "tasks", "finalPayment", "data")
}

// Summary is the display header for one entity.
type Summary struct {
	Reference     string
	Status        string
	VIN           string
	Model         string
	Options       string
	DeliveryTitle string
	Window        string
}

// Summarize extracts the header fields shown above an entity's timeline.
func Summarize(ref string, s *Snapshot) Summary {
	order := orderedmap.DigMap(s, "order")
	sum := Summary{
		Reference:     ref,
		Status:        orderedmap.DigString(order, "orderStatus"),
		VIN:           orderedmap.DigString(order, "vin"),
		Model:         orderedmap.DigString(order, "modelCode"),
		Options:       orderedmap.DigString(order, "mktOptions"),
		DeliveryTitle: orderedmap.DigString(Scheduling(s), "deliveryAddressTitle"),
		Window:        orderedmap.DigString(Scheduling(s), "deliveryWindowDisplay"),
	}
	if sum.VIN == "" {
		sum.VIN = orderedmap.DigString(OrderInfo(s), "vin")
	}
	return sum
}
