package model

import "time"

// FloorUpdate is one new paragraph of the live floor log.
type FloorUpdate struct {
	ID             string    `json:"id"`
	Chamber        string    `json:"chamber"`
	Congress       int       `json:"session"`
	LegislativeDay string    `json:"legislative_day"`
	Timestamp      time.Time `json:"timestamp"`
	Events         []string  `json:"events"`
	BillIDs        []string  `json:"bill_ids"`
	RollIDs        []string  `json:"roll_ids"`
	LegislatorIDs  []string  `json:"legislator_ids"`
}

// Kind implements Record.
func (f *FloorUpdate) Kind() Kind { return KindFloorUpdate }

// Key implements Record.
func (f *FloorUpdate) Key() string { return f.ID }
